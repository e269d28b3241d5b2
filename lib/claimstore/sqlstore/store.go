package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"github.com/lni/dragonboat/v4/logger"
	_ "modernc.org/sqlite"
)

var Logger = logger.GetLogger("store")

const schema = `
CREATE TABLE IF NOT EXISTS claims (
	location INTEGER PRIMARY KEY,
	owner    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS claims_owner ON claims (owner, location);
`

type sqlStore struct {
	db   *sql.DB
	path string
}

// NewSQLStore opens a SQLite database, sets WAL mode and busy timeout and creates the schema.
func NewSQLStore(path string, busyTimeoutSec int) (claimstore.IClaimStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}

	// a single connection serializes all writers of this process
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutSec*1000),
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: init %s: %w", path, err)
		}
	}

	Logger.Infof("Opened sqlite claim store %s", path)
	return &sqlStore{db: db, path: path}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see claimstore.IClaimStore)
// --------------------------------------------------------------------------

func (s *sqlStore) Exists(location int) (bool, error) {
	_, found, err := s.FindByLocation(location)
	return found, err
}

func (s *sqlStore) Add(location int, owner string) error {
	res, err := s.db.Exec(
		"INSERT INTO claims (location, owner) VALUES (?, ?) ON CONFLICT(location) DO NOTHING",
		location, owner,
	)
	if err != nil {
		return internal("add", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internal("add", err)
	}
	if n == 0 {
		return claimstore.NewConflictError(location)
	}
	return nil
}

func (s *sqlStore) Remove(location int, requester string) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return internal("remove", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing claimstore.ClaimRecord
	found := true
	row := tx.QueryRow("SELECT location, owner FROM claims WHERE location = ?", location)
	if scanErr := row.Scan(&existing.Location, &existing.Owner); errors.Is(scanErr, sql.ErrNoRows) {
		found = false
	} else if scanErr != nil {
		return internal("remove", scanErr)
	}

	if err = claimstore.CheckRemove(location, existing, found, requester); err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM claims WHERE location = ?", location); err != nil {
		return internal("remove", err)
	}
	if err = tx.Commit(); err != nil {
		return internal("remove", err)
	}
	return nil
}

func (s *sqlStore) FindByLocation(location int) (claimstore.ClaimRecord, bool, error) {
	var record claimstore.ClaimRecord
	err := s.db.QueryRow("SELECT location, owner FROM claims WHERE location = ?", location).
		Scan(&record.Location, &record.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return record, false, nil
	}
	if err != nil {
		return record, false, internal("find", err)
	}
	return record, true, nil
}

func (s *sqlStore) FindByOwner(owner string) (claimstore.ClaimRecord, bool, error) {
	var record claimstore.ClaimRecord
	err := s.db.QueryRow("SELECT location, owner FROM claims WHERE owner = ? ORDER BY location LIMIT 1", owner).
		Scan(&record.Location, &record.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return record, false, nil
	}
	if err != nil {
		return record, false, internal("find", err)
	}
	return record, true, nil
}

func (s *sqlStore) ListAll() ([]claimstore.ClaimRecord, error) {
	return s.query("SELECT location, owner FROM claims ORDER BY location")
}

func (s *sqlStore) ListByOwner(owner string) ([]claimstore.ClaimRecord, error) {
	return s.query("SELECT location, owner FROM claims WHERE owner = ? ORDER BY location", owner)
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// query runs a select returning (location, owner) rows
func (s *sqlStore) query(query string, args ...any) ([]claimstore.ClaimRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, internal("list", err)
	}
	defer rows.Close()

	var records []claimstore.ClaimRecord
	for rows.Next() {
		var record claimstore.ClaimRecord
		if err := rows.Scan(&record.Location, &record.Owner); err != nil {
			return nil, internal("list", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("list", err)
	}
	return records, nil
}

// internal wraps a driver error as an internal claim store error
func internal(op string, err error) error {
	return claimstore.NewError(claimstore.RetCInternalError, fmt.Sprintf("sqlstore: %s: %v", op, err))
}
