package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"equipment_service/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the overview cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

const (
	// tombstone marks a key invalidated within the last invalidationHold.
	tombstone        = "-"
	invalidationHold = 10 * time.Second
)

// Redis keeps overviews as JSON strings with a TTL.
//
// Invalidate leaves a short-lived tombstone and SetOverview only writes
// absent keys, so a reader that computed its aggregate before a concurrent
// write cannot put it back after the write invalidated the key.
type Redis struct {
	client redis.Cmdable
	closer io.Closer
	ttl    time.Duration
	hold   time.Duration
}

// NewRedis creates a new cache backed by Redis.
func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r := NewRedisWithClient(rdb, cfg.TTL)
	r.closer = rdb
	return r
}

func NewRedisWithClient(client redis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{client: client, ttl: ttl, hold: invalidationHold}
}

// Close releases the connection pool when the cache owns its client.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) GetOverview(ctx context.Context, equipmentID string) (models.EquipmentOverview, bool, error) {
	raw, err := r.client.Get(ctx, OverviewKey(equipmentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.EquipmentOverview{}, false, nil
	}
	if err != nil {
		return models.EquipmentOverview{}, false, fmt.Errorf("redis get overview %q: %w", equipmentID, err)
	}
	if string(raw) == tombstone {
		return models.EquipmentOverview{}, false, nil
	}
	var o models.EquipmentOverview
	if err := json.Unmarshal(raw, &o); err != nil {
		// corrupt entry: treat as a miss so it gets recomputed
		return models.EquipmentOverview{}, false, nil
	}
	return o, true, nil
}

func (r *Redis) SetOverview(ctx context.Context, o models.EquipmentOverview) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal overview: %w", err)
	}
	// A false result means the key is tombstoned or already filled.
	if err := r.client.SetNX(ctx, OverviewKey(o.Equipment.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set overview %q: %w", o.Equipment.ID, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		if err := r.client.Set(ctx, k, tombstone, r.hold).Err(); err != nil {
			return fmt.Errorf("redis invalidate %q: %w", k, err)
		}
	}
	return nil
}
