package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/jobscout/jobscout/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// which keeps the Postgres backend unit-testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	opts    options
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, opts ...Option) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &PostgresStore{pool: pool, opts: o, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS search_results (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	fingerprint TEXT NOT NULL UNIQUE,
	params      JSONB NOT NULL,
	listing_ids JSONB NOT NULL,
	total_count INTEGER NOT NULL,
	total_pages INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listings (
	id          TEXT PRIMARY KEY,
	payload     JSONB NOT NULL,
	validity    TEXT NOT NULL DEFAULT 'unverified',
	verified_at TIMESTAMPTZ,
	attempts    INTEGER NOT NULL DEFAULT 0,
	cached_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_search_results_created_at ON search_results(created_at);
CREATE INDEX IF NOT EXISTS idx_listings_cached_at ON listings(cached_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetSearch(ctx context.Context, fingerprint string) (*model.CachedSearchResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT fingerprint, params, listing_ids, total_count, total_pages, created_at
		 FROM search_results WHERE fingerprint = $1`,
		fingerprint,
	)

	var (
		res        model.CachedSearchResult
		paramsJSON []byte
		idsJSON    []byte
	)
	err := row.Scan(&res.Fingerprint, &paramsJSON, &idsJSON, &res.TotalCount, &res.TotalPages, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get search %s", fingerprint)
	}

	if s.opts.expired(res.CreatedAt) {
		return nil, nil
	}

	if err := json.Unmarshal(paramsJSON, &res.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal search params")
	}
	if err := json.Unmarshal(idsJSON, &res.ListingIDs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal listing ids")
	}
	return &res, nil
}

// pgExecer abstracts Pool and pgx.Tx for the batch write path.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) PutSearch(ctx context.Context, params model.SearchParams, listingIDs []string, totalCount, totalPages int) error {
	return s.putSearch(ctx, s.pool, params, listingIDs, totalCount, totalPages)
}

func (s *PostgresStore) putSearch(ctx context.Context, db pgExecer, params model.SearchParams, listingIDs []string, totalCount, totalPages int) error {
	params = params.Normalize()
	fp := params.Fingerprint()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal search params")
	}
	if listingIDs == nil {
		listingIDs = []string{}
	}
	idsJSON, err := json.Marshal(listingIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal listing ids")
	}

	_, err = db.Exec(ctx,
		`INSERT INTO search_results (id, fingerprint, params, listing_ids, total_count, total_pages, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (fingerprint) DO UPDATE SET
			params      = EXCLUDED.params,
			listing_ids = EXCLUDED.listing_ids,
			total_count = EXCLUDED.total_count,
			total_pages = EXCLUDED.total_pages,
			created_at  = EXCLUDED.created_at`,
		uuid.New().String(), fp, paramsJSON, idsJSON, totalCount, totalPages, s.opts.now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put search %s", fp)
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload, validity, verified_at, attempts, cached_at FROM listings WHERE id = $1`,
		id,
	)
	l, err := scanPgListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get listing %s", id)
	}
	if s.opts.expired(l.CachedAt) {
		return nil, nil
	}
	return l, nil
}

func (s *PostgresStore) GetListings(ctx context.Context, ids []string) ([]model.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload, validity, verified_at, attempts, cached_at FROM listings WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get listings")
	}
	defer rows.Close()

	byID := make(map[string]model.Listing, len(ids))
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		byID[l.ID] = *l
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: get listings")
	}

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

func (s *PostgresStore) PutListing(ctx context.Context, listing model.Listing) error {
	return s.putListing(ctx, s.pool, listing)
}

func (s *PostgresStore) putListing(ctx context.Context, db pgExecer, listing model.Listing) error {
	listing = sanitizeListing(listing)
	if listing.CachedAt.IsZero() {
		listing.CachedAt = s.opts.now().UTC()
	}
	if listing.Validity == "" {
		listing.Validity = model.ValidityUnverified
	}

	payload, err := json.Marshal(listing)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal listing")
	}

	_, err = db.Exec(ctx,
		`INSERT INTO listings (id, payload, validity, attempts, cached_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			payload   = EXCLUDED.payload,
			cached_at = EXCLUDED.cached_at`,
		listing.ID, payload, string(listing.Validity), listing.Attempts, listing.CachedAt,
	)
	return eris.Wrapf(err, "postgres: put listing %s", listing.ID)
}

func (s *PostgresStore) PutListings(ctx context.Context, listings []model.Listing) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin batch")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, l := range listings {
		if err := s.putListing(ctx, tx, l); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit batch")
}

func (s *PostgresStore) SetListingValidity(ctx context.Context, id string, isValid bool) (bool, error) {
	validity := model.ValidityValid
	if !isValid {
		validity = model.ValidityInvalid
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET validity = $1, verified_at = $2, attempts = attempts + 1 WHERE id = $3`,
		string(validity), s.opts.now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: set validity %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteExpiredListings(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, eris.New("postgres: batch size must be positive")
	}
	cutoff := s.opts.now().UTC().Add(-s.opts.retention)

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM listings WHERE id IN (
			SELECT id FROM listings WHERE cached_at <= $1 ORDER BY cached_at ASC LIMIT $2
		)`,
		cutoff, batchSize,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired listings")
	}
	n := int(tag.RowsAffected())

	// Stale search rows already read as absent; clear them alongside the
	// listing batch so the table does not grow without bound.
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM search_results WHERE created_at <= $1`, cutoff,
	); err != nil {
		return n, eris.Wrap(err, "postgres: delete expired searches")
	}
	return n, nil
}

// scanPgListing rebuilds a Listing from a payload row; verification columns
// override the payload copy.
func scanPgListing(row pgx.Row) (*model.Listing, error) {
	var (
		payload    []byte
		validity   string
		verifiedAt *time.Time
		attempts   int
		cachedAt   time.Time
	)
	if err := row.Scan(&payload, &validity, &verifiedAt, &attempts, &cachedAt); err != nil {
		return nil, err
	}

	var l model.Listing
	if err := json.Unmarshal(payload, &l); err != nil {
		return nil, eris.Wrap(err, "unmarshal listing payload")
	}
	l.Validity = model.Validity(validity)
	l.Attempts = attempts
	l.CachedAt = cachedAt
	l.VerifiedAt = verifiedAt
	return &l, nil
}
