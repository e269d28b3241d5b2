package fstore

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"github.com/ValentinKolb/dSync/lib/lockmgr"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var Logger = logger.GetLogger("store")

const (
	// FileExtension is the extension of a claim file
	FileExtension = ".claim"
	tempSuffix    = ".tmp"
)

type fileStore struct {
	dir   string
	index *xsync.MapOf[int, claimstore.ClaimRecord]
	locks lockmgr.ILockManager
}

// NewFileStore opens (and creates if needed) a file store in dir.
// Every claim file in dir is read once to rebuild the in-memory index, a
// file that cannot be parsed is logged and skipped.
func NewFileStore(dir string) (claimstore.IClaimStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fstore: create %s: %w", dir, err)
	}

	s := &fileStore{
		dir:   dir,
		index: xsync.NewMapOf[int, claimstore.ClaimRecord](),
		locks: lockmgr.NewLockManager(0),
	}

	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}

	Logger.Infof("Loaded %d claims from %s", s.index.Size(), dir)
	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see claimstore.IClaimStore)
// --------------------------------------------------------------------------

func (s *fileStore) Exists(location int) (bool, error) {
	_, ok := s.index.Load(location)
	return ok, nil
}

func (s *fileStore) Add(location int, owner string) error {
	return s.locks.WithLock(location, func() error {
		if _, ok := s.index.Load(location); ok {
			return claimstore.NewConflictError(location)
		}

		record := claimstore.ClaimRecord{Location: location, Owner: owner}
		if err := s.writeRecord(record); err != nil {
			return claimstore.NewError(claimstore.RetCInternalError, err.Error())
		}

		s.index.Store(location, record)
		return nil
	})
}

func (s *fileStore) Remove(location int, requester string) error {
	return s.locks.WithLock(location, func() error {
		existing, ok := s.index.Load(location)
		if err := claimstore.CheckRemove(location, existing, ok, requester); err != nil {
			return err
		}

		if err := os.Remove(s.path(location)); err != nil && !os.IsNotExist(err) {
			return claimstore.NewError(claimstore.RetCInternalError, fmt.Sprintf("fstore: remove claim %d: %v", location, err))
		}

		s.index.Delete(location)
		return nil
	})
}

func (s *fileStore) FindByLocation(location int) (claimstore.ClaimRecord, bool, error) {
	record, ok := s.index.Load(location)
	return record, ok, nil
}

func (s *fileStore) FindByOwner(owner string) (claimstore.ClaimRecord, bool, error) {
	records, err := s.ListByOwner(owner)
	if err != nil || len(records) == 0 {
		return claimstore.ClaimRecord{}, false, err
	}
	return records[0], true, nil
}

func (s *fileStore) ListAll() ([]claimstore.ClaimRecord, error) {
	records := make([]claimstore.ClaimRecord, 0, s.index.Size())
	s.index.Range(func(_ int, record claimstore.ClaimRecord) bool {
		records = append(records, record)
		return true
	})
	claimstore.SortRecords(records)
	return records, nil
}

func (s *fileStore) ListByOwner(owner string) ([]claimstore.ClaimRecord, error) {
	var records []claimstore.ClaimRecord
	s.index.Range(func(_ int, record claimstore.ClaimRecord) bool {
		if record.Owner == owner {
			records = append(records, record)
		}
		return true
	})
	claimstore.SortRecords(records)
	return records, nil
}

func (s *fileStore) Close() error {
	s.index.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// path returns the file path of the claim at location
func (s *fileStore) path(location int) string {
	return filepath.Join(s.dir, strconv.Itoa(location)+FileExtension)
}

// writeRecord writes the record to a temp file, syncs it and moves it into place
func (s *fileStore) writeRecord(record claimstore.ClaimRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("fstore: encode claim %d: %w", record.Location, err)
	}

	final := s.path(record.Location)
	tmp := final + tempSuffix

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("fstore: create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fstore: write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fstore: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("fstore: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("fstore: rename %s: %w", tmp, err)
	}
	return nil
}

// rebuildIndex reads every claim file of the directory into the index
func (s *fileStore) rebuildIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("fstore: read %s: %w", s.dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, FileExtension) {
			// leftovers of interrupted writes are never valid claims
			if strings.HasSuffix(name, FileExtension+tempSuffix) {
				os.Remove(filepath.Join(s.dir, name))
			}
			continue
		}

		record, err := readRecord(filepath.Join(s.dir, name))
		if err != nil {
			Logger.Warningf("Skipping claim file %s: %v", name, err)
			continue
		}

		if want := strings.TrimSuffix(name, FileExtension); want != strconv.Itoa(record.Location) {
			Logger.Warningf("Skipping claim file %s: location %d does not match the file name", name, record.Location)
			continue
		}

		s.index.Store(record.Location, record)
	}
	return nil
}

// readRecord reads a single claim file
func readRecord(path string) (claimstore.ClaimRecord, error) {
	var record claimstore.ClaimRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, err
	}
	if record.Owner == "" {
		return record, fmt.Errorf("claim without owner")
	}
	return record, nil
}
