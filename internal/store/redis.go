package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/jobscout/jobscout/internal/model"
)

// RedisStore implements Store on top of Redis. Listings and search results
// are JSON documents under prefixed keys; a sorted set indexed by cache
// timestamp gives the sweeper its range scan.
//
// Documents are written with a TTL slightly past the retention window as a
// belt-and-braces cleanup, but reads still apply the same lazy expiry check
// as the other backends so the boundary is exact.
type RedisStore struct {
	rdb  *redis.Client
	opts options
}

const (
	redisSearchPrefix  = "search:"
	redisListingPrefix = "listing:"
	redisCachedAtIndex = "listings:by_cached_at"
)

// NewRedis parses redisURL, verifies connectivity, and returns a RedisStore.
func NewRedis(ctx context.Context, redisURL string, opts ...Option) (*RedisStore, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrapf(err, "redis: parse url %q", redisURL)
	}

	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrap(err, "redis: ping")
	}

	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &RedisStore{rdb: rdb, opts: o}, nil
}

// Migrate is a no-op: Redis needs no schema.
func (s *RedisStore) Migrate(ctx context.Context) error { return nil }

func (s *RedisStore) Close() error { return s.rdb.Close() }

// keyTTL is how long a document key lives server-side. A day of slack past
// the retention window keeps lazy-expiry reads authoritative.
func (s *RedisStore) keyTTL() time.Duration {
	return s.opts.retention + 24*time.Hour
}

func (s *RedisStore) GetSearch(ctx context.Context, fingerprint string) (*model.CachedSearchResult, error) {
	data, err := s.rdb.Get(ctx, redisSearchPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get search %s", fingerprint)
	}

	var res model.CachedSearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal search result")
	}
	if s.opts.expired(res.CreatedAt) {
		return nil, nil
	}
	return &res, nil
}

func (s *RedisStore) PutSearch(ctx context.Context, params model.SearchParams, listingIDs []string, totalCount, totalPages int) error {
	pipe := s.rdb.TxPipeline()
	if err := s.pipeSearch(ctx, pipe, params, listingIDs, totalCount, totalPages); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return eris.Wrap(err, "redis: put search")
}

func (s *RedisStore) pipeSearch(ctx context.Context, pipe redis.Pipeliner, params model.SearchParams, listingIDs []string, totalCount, totalPages int) error {
	params = params.Normalize()
	if listingIDs == nil {
		listingIDs = []string{}
	}
	res := model.CachedSearchResult{
		Fingerprint: params.Fingerprint(),
		Params:      params,
		ListingIDs:  listingIDs,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		CreatedAt:   s.opts.now().UTC(),
	}
	data, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "redis: marshal search result")
	}
	pipe.Set(ctx, redisSearchPrefix+res.Fingerprint, data, s.keyTTL())
	return nil
}

func (s *RedisStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	data, err := s.rdb.Get(ctx, redisListingPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get listing %s", id)
	}

	var l model.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal listing")
	}
	if s.opts.expired(l.CachedAt) {
		return nil, nil
	}
	return &l, nil
}

func (s *RedisStore) GetListings(ctx context.Context, ids []string) ([]model.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisListingPrefix + id
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: mget listings")
	}

	out := make([]model.Listing, 0, len(ids))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // missing key
		}
		var l model.Listing
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return nil, eris.Wrap(err, "redis: unmarshal listing")
		}
		if s.opts.expired(l.CachedAt) || !l.Visible() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *RedisStore) PutListing(ctx context.Context, listing model.Listing) error {
	pipe := s.rdb.TxPipeline()
	if err := s.pipeListing(ctx, pipe, listing); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return eris.Wrapf(err, "redis: put listing %s", listing.ID)
}

func (s *RedisStore) pipeListing(ctx context.Context, pipe redis.Pipeliner, listing model.Listing) error {
	listing = sanitizeListing(listing)
	if listing.CachedAt.IsZero() {
		listing.CachedAt = s.opts.now().UTC()
	}

	// Preserve verification state from an existing document; only the
	// verification engine is allowed to move it off its current value.
	existing, err := s.GetListing(ctx, listing.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		listing.Validity = existing.Validity
		listing.VerifiedAt = existing.VerifiedAt
		listing.Attempts = existing.Attempts
	} else if listing.Validity == "" {
		listing.Validity = model.ValidityUnverified
	}

	data, err := json.Marshal(listing)
	if err != nil {
		return eris.Wrap(err, "redis: marshal listing")
	}
	pipe.Set(ctx, redisListingPrefix+listing.ID, data, s.keyTTL())
	pipe.ZAdd(ctx, redisCachedAtIndex, redis.Z{
		Score:  float64(listing.CachedAt.Unix()),
		Member: listing.ID,
	})
	return nil
}

func (s *RedisStore) PutListings(ctx context.Context, listings []model.Listing) error {
	pipe := s.rdb.TxPipeline()

	for _, l := range listings {
		if err := s.pipeListing(ctx, pipe, l); err != nil {
			return err
		}
	}

	_, err := pipe.Exec(ctx)
	return eris.Wrap(err, "redis: commit batch")
}

func (s *RedisStore) SetListingValidity(ctx context.Context, id string, isValid bool) (bool, error) {
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return false, err
	}
	if l == nil {
		// The listing expired underneath the verifier; not an error.
		return false, nil
	}

	if isValid {
		l.Validity = model.ValidityValid
	} else {
		l.Validity = model.ValidityInvalid
	}
	now := s.opts.now().UTC()
	l.VerifiedAt = &now
	l.Attempts++

	data, err := json.Marshal(l)
	if err != nil {
		return false, eris.Wrap(err, "redis: marshal listing")
	}
	if err := s.rdb.Set(ctx, redisListingPrefix+id, data, s.keyTTL()).Err(); err != nil {
		return false, eris.Wrapf(err, "redis: set validity %s", id)
	}
	return true, nil
}

func (s *RedisStore) DeleteExpiredListings(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, eris.New("redis: batch size must be positive")
	}
	cutoff := s.opts.now().UTC().Add(-s.opts.retention)

	ids, err := s.rdb.ZRangeByScore(ctx, redisCachedAtIndex, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatScore(cutoff),
		Count: int64(batchSize),
	}).Result()
	if err != nil {
		return 0, eris.Wrap(err, "redis: range expired listings")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.TxPipeline()
	members := make([]any, len(ids))
	for i, id := range ids {
		pipe.Del(ctx, redisListingPrefix+id)
		members[i] = id
	}
	pipe.ZRem(ctx, redisCachedAtIndex, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, eris.Wrap(err, "redis: delete expired listings")
	}
	return len(ids), nil
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
