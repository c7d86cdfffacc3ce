package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/jobscout/jobscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &SQLiteStore{db: db, opts: o}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_results (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	params      TEXT NOT NULL,
	listing_ids TEXT NOT NULL,
	total_count INTEGER NOT NULL,
	total_pages INTEGER NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	id          TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	validity    TEXT NOT NULL DEFAULT 'unverified',
	verified_at DATETIME,
	attempts    INTEGER NOT NULL DEFAULT 0,
	cached_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_results_created_at ON search_results(created_at);
CREATE INDEX IF NOT EXISTS idx_listings_cached_at ON listings(cached_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSearch(ctx context.Context, fingerprint string) (*model.CachedSearchResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, params, listing_ids, total_count, total_pages, created_at
		 FROM search_results WHERE fingerprint = ?`,
		fingerprint,
	)

	var (
		res        model.CachedSearchResult
		paramsJSON string
		idsJSON    string
	)
	err := row.Scan(&res.Fingerprint, &paramsJSON, &idsJSON, &res.TotalCount, &res.TotalPages, &res.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get search %s", fingerprint)
	}

	// Lazy expiry: a stale row reads as absent; the sweeper removes it later.
	if s.opts.expired(res.CreatedAt) {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(paramsJSON), &res.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal search params")
	}
	if err := json.Unmarshal([]byte(idsJSON), &res.ListingIDs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal listing ids")
	}
	return &res, nil
}

func (s *SQLiteStore) PutSearch(ctx context.Context, params model.SearchParams, listingIDs []string, totalCount, totalPages int) error {
	return s.putSearch(ctx, s.db, params, listingIDs, totalCount, totalPages)
}

// execer abstracts *sql.DB and *sql.Tx so the batch write reuses the same
// statements inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) putSearch(ctx context.Context, db execer, params model.SearchParams, listingIDs []string, totalCount, totalPages int) error {
	params = params.Normalize()
	fp := params.Fingerprint()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal search params")
	}
	if listingIDs == nil {
		listingIDs = []string{}
	}
	idsJSON, err := json.Marshal(listingIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal listing ids")
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO search_results (id, fingerprint, params, listing_ids, total_count, total_pages, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
			params      = excluded.params,
			listing_ids = excluded.listing_ids,
			total_count = excluded.total_count,
			total_pages = excluded.total_pages,
			created_at  = excluded.created_at`,
		uuid.New().String(), fp, string(paramsJSON), string(idsJSON), totalCount, totalPages, s.opts.now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put search %s", fp)
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, validity, verified_at, attempts, cached_at FROM listings WHERE id = ?`,
		id,
	)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get listing %s", id)
	}
	if s.opts.expired(l.CachedAt) {
		return nil, nil
	}
	return l, nil
}

func (s *SQLiteStore) GetListings(ctx context.Context, ids []string) ([]model.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, validity, verified_at, attempts, cached_at FROM listings WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get listings")
	}
	defer rows.Close()

	byID := make(map[string]model.Listing, len(ids))
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		byID[l.ID] = *l
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: get listings")
	}

	// Preserve the cached order; drop missing, expired, and confirmed-dead
	// listings without deleting anything.
	out := make([]model.Listing, 0, len(ids))
	for _, id := range ids {
		l, ok := byID[id]
		if !ok || s.opts.expired(l.CachedAt) || !l.Visible() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *SQLiteStore) PutListing(ctx context.Context, listing model.Listing) error {
	return s.putListing(ctx, s.db, listing)
}

func (s *SQLiteStore) putListing(ctx context.Context, db execer, listing model.Listing) error {
	listing = sanitizeListing(listing)
	if listing.CachedAt.IsZero() {
		listing.CachedAt = s.opts.now().UTC()
	}
	if listing.Validity == "" {
		listing.Validity = model.ValidityUnverified
	}

	payload, err := json.Marshal(listing)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal listing")
	}

	// Verification state lives in its own columns and survives overwrites:
	// ON CONFLICT only replaces the payload and cache timestamp.
	_, err = db.ExecContext(ctx,
		`INSERT INTO listings (id, payload, validity, attempts, cached_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			payload   = excluded.payload,
			cached_at = excluded.cached_at`,
		listing.ID, string(payload), string(listing.Validity), listing.Attempts, listing.CachedAt,
	)
	return eris.Wrapf(err, "sqlite: put listing %s", listing.ID)
}

func (s *SQLiteStore) PutListings(ctx context.Context, listings []model.Listing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin batch")
	}
	defer tx.Rollback()

	for _, l := range listings {
		if err := s.putListing(ctx, tx, l); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit batch")
}

func (s *SQLiteStore) SetListingValidity(ctx context.Context, id string, isValid bool) (bool, error) {
	validity := model.ValidityValid
	if !isValid {
		validity = model.ValidityInvalid
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE listings SET validity = ?, verified_at = ?, attempts = attempts + 1 WHERE id = ?`,
		string(validity), s.opts.now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: set validity %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	// Zero rows is not an error: verification races with expiry.
	return n > 0, nil
}

func (s *SQLiteStore) DeleteExpiredListings(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, eris.New("sqlite: batch size must be positive")
	}
	cutoff := s.opts.now().UTC().Add(-s.opts.retention)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM listings WHERE id IN (
			SELECT id FROM listings WHERE cached_at <= ? ORDER BY cached_at ASC LIMIT ?
		)`,
		cutoff, batchSize,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired listings")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}

	// Stale search rows already read as absent; clear them alongside the
	// listing batch so the table does not grow without bound.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM search_results WHERE created_at <= ?`, cutoff,
	); err != nil {
		return int(n), eris.Wrap(err, "sqlite: delete expired searches")
	}
	return int(n), nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanListing rebuilds a Listing from its payload JSON, with the
// verification columns taking precedence over whatever the payload carries.
func scanListing(row scanner) (*model.Listing, error) {
	var (
		payload    string
		validity   string
		verifiedAt sql.NullTime
		attempts   int
		cachedAt   time.Time
	)
	if err := row.Scan(&payload, &validity, &verifiedAt, &attempts, &cachedAt); err != nil {
		return nil, err
	}

	var l model.Listing
	if err := json.Unmarshal([]byte(payload), &l); err != nil {
		return nil, fmt.Errorf("unmarshal listing payload: %w", err)
	}
	l.Validity = model.Validity(validity)
	l.Attempts = attempts
	l.CachedAt = cachedAt
	if verifiedAt.Valid {
		t := verifiedAt.Time
		l.VerifiedAt = &t
	} else {
		l.VerifiedAt = nil
	}
	return &l, nil
}
