package bstore

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"github.com/lni/dragonboat/v4/logger"
	bbolt "go.etcd.io/bbolt"
)

var Logger = logger.GetLogger("store")

type boltStore struct {
	bolt *bbolt.DB
}

// NewBoltStore opens or creates a bbolt database file and ensures all buckets exist.
func NewBoltStore(path string) (claimstore.IClaimStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketClaims, bucketOwners} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bstore: create buckets: %w", err)
	}

	Logger.Infof("Opened bolt claim store %s", path)
	return &boltStore{bolt: db}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see claimstore.IClaimStore)
// --------------------------------------------------------------------------

func (s *boltStore) Exists(location int) (bool, error) {
	var found bool
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketClaims).Get(locationToKey(location)) != nil
		return nil
	})
	return found, wrapInternal(err)
}

func (s *boltStore) Add(location int, owner string) error {
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		claims := tx.Bucket(bucketClaims)
		key := locationToKey(location)

		if claims.Get(key) != nil {
			return claimstore.NewConflictError(location)
		}

		data, err := json.Marshal(claimstore.ClaimRecord{Location: location, Owner: owner})
		if err != nil {
			return fmt.Errorf("bstore: encode claim %d: %w", location, err)
		}
		if err := claims.Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(bucketOwners).Put(ownerKey(owner, location), []byte{})
	})
	return wrapInternal(err)
}

func (s *boltStore) Remove(location int, requester string) error {
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		claims := tx.Bucket(bucketClaims)
		key := locationToKey(location)

		existing, found, err := decode(claims.Get(key))
		if err != nil {
			return err
		}
		if err := claimstore.CheckRemove(location, existing, found, requester); err != nil {
			return err
		}

		if err := claims.Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketOwners).Delete(ownerKey(existing.Owner, location))
	})
	return wrapInternal(err)
}

func (s *boltStore) FindByLocation(location int) (claimstore.ClaimRecord, bool, error) {
	var record claimstore.ClaimRecord
	var found bool
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		var err error
		record, found, err = decode(tx.Bucket(bucketClaims).Get(locationToKey(location)))
		return err
	})
	return record, found, wrapInternal(err)
}

func (s *boltStore) FindByOwner(owner string) (claimstore.ClaimRecord, bool, error) {
	var record claimstore.ClaimRecord
	var found bool
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		prefix := ownerPrefix(owner)
		c := tx.Bucket(bucketOwners).Cursor()
		if k, _ := c.Seek(prefix); k != nil && hasOwnerPrefix(k, prefix) {
			record = claimstore.ClaimRecord{Location: keyToLocation(k[len(prefix):]), Owner: owner}
			found = true
		}
		return nil
	})
	return record, found, wrapInternal(err)
}

func (s *boltStore) ListAll() ([]claimstore.ClaimRecord, error) {
	var records []claimstore.ClaimRecord
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketClaims).ForEach(func(_, v []byte) error {
			record, _, err := decode(v)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	return records, wrapInternal(err)
}

func (s *boltStore) ListByOwner(owner string) ([]claimstore.ClaimRecord, error) {
	var records []claimstore.ClaimRecord
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		prefix := ownerPrefix(owner)
		c := tx.Bucket(bucketOwners).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasOwnerPrefix(k, prefix); k, _ = c.Next() {
			records = append(records, claimstore.ClaimRecord{Location: keyToLocation(k[len(prefix):]), Owner: owner})
		}
		return nil
	})
	return records, wrapInternal(err)
}

func (s *boltStore) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// decode decodes a stored claim. A nil value means no claim.
func decode(data []byte) (claimstore.ClaimRecord, bool, error) {
	var record claimstore.ClaimRecord
	if data == nil {
		return record, false, nil
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, false, fmt.Errorf("bstore: decode claim: %w", err)
	}
	return record, true, nil
}

// wrapInternal passes claim store errors through and wraps everything else as an internal error
func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*claimstore.Error); ok {
		return err
	}
	return claimstore.NewError(claimstore.RetCInternalError, err.Error())
}
