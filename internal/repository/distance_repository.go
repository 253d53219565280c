// Package repository implements tabular-store access for the
// optimizer: week inputs, the distance cache, and run persistence.
package repository

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dragonseats/optimizer/internal/solver"
)

const (
	distanceKeyPrefix = "dist:"
	distanceKeyTTL    = 24 * time.Hour
	// pairKeyPrecision rounds coordinates in Redis keys so nearby
	// lookups collide onto the same entry.
	pairKeyPrecision = 1e4
)

// DistanceRepository is the persistent distance cache. PostgreSQL is
// the durable cross-run layer; Redis fronts it with a 24 h TTL so hot
// weeks skip the full table read growing over a season.
type DistanceRepository struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// NewDistanceRepository wires the cache layers. redis may be nil.
func NewDistanceRepository(pool *pgxpool.Pool, rdb *redis.Client) *DistanceRepository {
	return &DistanceRepository{pool: pool, redis: rdb}
}

// Entries returns every cached pair, merging the Redis hot layer over
// the PostgreSQL rows. A failure in one layer is logged and the other
// layer's rows are still returned.
func (r *DistanceRepository) Entries(ctx context.Context) ([]solver.CachedDistance, error) {
	var entries []solver.CachedDistance
	seen := make(map[string]bool)

	hot, hotErr := r.redisEntries(ctx)
	if hotErr != nil {
		log.Printf("[distance-cache] redis read failed: %v", hotErr)
	}
	for _, e := range hot {
		entries = append(entries, e)
		seen[pairKey(e.OriginLat, e.OriginLng, e.DestLat, e.DestLng)] = true
	}

	rows, pgErr := r.pool.Query(ctx, `
		SELECT origin_lat, origin_lng, dest_lat, dest_lng,
		       distance_miles, duration_minutes
		FROM distance_cache`)
	if pgErr != nil {
		if hotErr != nil {
			return nil, fmt.Errorf("distance cache unavailable: %w", pgErr)
		}
		log.Printf("[distance-cache] postgres read failed: %v", pgErr)
		return entries, nil
	}
	defer rows.Close()

	for rows.Next() {
		var e solver.CachedDistance
		if err := rows.Scan(&e.OriginLat, &e.OriginLng, &e.DestLat, &e.DestLng,
			&e.DistanceMiles, &e.DurationMinutes); err != nil {
			log.Printf("[distance-cache] skipping unreadable row: %v", err)
			continue
		}
		if seen[pairKey(e.OriginLat, e.OriginLng, e.DestLat, e.DestLng)] {
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Store persists newly fetched pairs to both layers. Conflicting rows
// are overwritten; same key means same value within tolerance, so
// last write wins is safe.
func (r *DistanceRepository) Store(ctx context.Context, entries []solver.CachedDistance) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO distance_cache
				(origin_lat, origin_lng, dest_lat, dest_lng, distance_miles, duration_minutes)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (origin_lat, origin_lng, dest_lat, dest_lng)
			DO UPDATE SET distance_miles = EXCLUDED.distance_miles,
			              duration_minutes = EXCLUDED.duration_minutes`,
			e.OriginLat, e.OriginLng, e.DestLat, e.DestLng,
			e.DistanceMiles, e.DurationMinutes)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("distance cache insert: %w", err)
	}

	if r.redis != nil {
		pipe := r.redis.Pipeline()
		for _, e := range entries {
			key := pairKey(e.OriginLat, e.OriginLng, e.DestLat, e.DestLng)
			val := fmt.Sprintf("%g|%g", e.DistanceMiles, e.DurationMinutes)
			pipe.Set(ctx, key, val, distanceKeyTTL)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[distance-cache] redis write failed: %v", err)
		}
	}
	return nil
}

func (r *DistanceRepository) redisEntries(ctx context.Context) ([]solver.CachedDistance, error) {
	if r.redis == nil {
		return nil, nil
	}

	var entries []solver.CachedDistance
	iter := r.redis.Scan(ctx, 0, distanceKeyPrefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, raw := range vals {
		val, ok := raw.(string)
		if !ok {
			continue
		}
		e, ok := parsePair(keys[i], val)
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func pairKey(olat, olng, dlat, dlng float64) string {
	r := func(v float64) float64 { return math.Round(v*pairKeyPrecision) / pairKeyPrecision }
	return fmt.Sprintf("%s%g:%g:%g:%g", distanceKeyPrefix, r(olat), r(olng), r(dlat), r(dlng))
}

func parsePair(key, val string) (solver.CachedDistance, bool) {
	var e solver.CachedDistance

	coords := strings.Split(strings.TrimPrefix(key, distanceKeyPrefix), ":")
	parts := strings.Split(val, "|")
	if len(coords) != 4 || len(parts) != 2 {
		return e, false
	}

	nums := make([]float64, 0, 6)
	for _, s := range append(coords, parts...) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return e, false
		}
		nums = append(nums, f)
	}

	e.OriginLat, e.OriginLng = nums[0], nums[1]
	e.DestLat, e.DestLng = nums[2], nums[3]
	e.DistanceMiles, e.DurationMinutes = nums[4], nums[5]
	return e, true
}
