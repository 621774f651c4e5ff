package tokenstore

import (
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists the entries to a local database so a session survives
// agent restarts. Set and Clear each run in a single transaction.
type SQLiteStore struct {
	db     *sql.DB
	sealer *sealer
}

type SQLiteOption func(*sqliteOptions)

type sqliteOptions struct {
	sealKey string
}

// WithSealKey encrypts token values at rest with a key derived from secret.
func WithSealKey(secret string) SQLiteOption {
	return func(o *sqliteOptions) {
		o.sealKey = secret
	}
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string, options ...SQLiteOption) (*SQLiteStore, error) {
	opts := sqliteOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, pkgerrors.Wrap(err, "[NewSQLiteStore] create directory")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[NewSQLiteStore] open database")
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS tokens (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			path       TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			secure     INTEGER NOT NULL,
			http_only  INTEGER NOT NULL,
			same_site  INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "[NewSQLiteStore] create tokens table")
	}

	s, err := newSealer(opts.sealKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, sealer: s}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Set(pair TokenPair, policy Policy) error {
	if pair.AccessToken == "" {
		return errors.ErrMissingAccessToken
	}

	tx, err := s.db.Begin()
	if err != nil {
		return pkgerrors.Wrap(err, "[SQLiteStore.Set] begin")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tokens`); err != nil {
		return pkgerrors.Wrap(err, "[SQLiteStore.Set] delete")
	}
	for _, c := range cookiesForPair(pair, policy, NowTimeFunc()) {
		value, err := s.sealer.seal(c.Value)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO tokens (name, value, path, expires_at, secure, http_only, same_site) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Name, value, c.Path, c.Expires.UnixMilli(), c.Secure, c.HttpOnly, int(c.SameSite),
		)
		if err != nil {
			return pkgerrors.Wrapf(err, "[SQLiteStore.Set] insert %s", c.Name)
		}
	}
	return pkgerrors.Wrap(tx.Commit(), "[SQLiteStore.Set] commit")
}

func (s *SQLiteStore) Get() (*TokenPair, error) {
	cookies, err := s.load()
	if err != nil {
		return nil, err
	}
	return pairFromCookies(cookies, NowTimeFunc()), nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM tokens`); err != nil {
		return pkgerrors.Wrap(err, "[SQLiteStore.Clear] delete")
	}
	return nil
}

func (s *SQLiteStore) Cookies() ([]*http.Cookie, error) {
	cookies, err := s.load()
	if err != nil {
		return nil, err
	}
	now := NowTimeFunc()
	live := cookies[:0]
	for _, c := range cookies {
		if now.Before(c.Expires) {
			live = append(live, c)
		}
	}
	return live, nil
}

// load reads every entry in one query so the result is a consistent snapshot.
func (s *SQLiteStore) load() ([]*http.Cookie, error) {
	rows, err := s.db.Query(`SELECT name, value, path, expires_at, secure, http_only, same_site FROM tokens`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[SQLiteStore.load] query")
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		var (
			c         http.Cookie
			stored    string
			expiresAt int64
			sameSite  int
		)
		if err := rows.Scan(&c.Name, &stored, &c.Path, &expiresAt, &c.Secure, &c.HttpOnly, &sameSite); err != nil {
			return nil, pkgerrors.Wrap(err, "[SQLiteStore.load] scan")
		}
		if c.Value, err = s.sealer.open(stored); err != nil {
			return nil, pkgerrors.Wrapf(err, "[SQLiteStore.load] %s", c.Name)
		}
		c.Expires = time.UnixMilli(expiresAt)
		c.MaxAge = int(time.Until(c.Expires).Seconds())
		c.SameSite = http.SameSite(sameSite)
		cookies = append(cookies, &c)
	}
	return cookies, pkgerrors.Wrap(rows.Err(), "[SQLiteStore.load] rows")
}
