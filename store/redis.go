package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/market"
)

// RedisConfig configures the Redis state store.
type RedisConfig struct {
	Addr           string        `json:"addr" yaml:"addr"`
	Username       string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string        `json:"password,omitempty" yaml:"password,omitempty"`
	DB             int           `json:"db" yaml:"db"`
	Prefix         string        `json:"prefix" yaml:"prefix"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	PoolSize       int           `json:"pool_size" yaml:"pool_size"`
}

// Redis keeps each series as a version string plus a sorted set of
// checkpoints scored by interval start. Writes WATCH the version key and
// commit in one MULTI/EXEC. Partition snapshots are plain strings.
type Redis struct {
	rdb       redis.UniversalClient
	prefix    string
	retention int
}

// NewRedis connects and pings.
func NewRedis(ctx context.Context, cfg RedisConfig, retention int) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.ConnectTimeout,
		ReadTimeout:  cfg.ConnectTimeout,
		WriteTimeout: cfg.ConnectTimeout,
		PoolSize:     cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisFromClient(rdb, cfg.Prefix, retention), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb redis.UniversalClient, prefix string, retention int) *Redis {
	if prefix == "" {
		prefix = "candlestream:"
	}
	return &Redis{rdb: rdb, prefix: prefix, retention: retentionOrDefault(retention)}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// The hash tag keeps both keys of a series in one cluster slot.
func (r *Redis) versionKey(key market.SeriesKey) string {
	return r.prefix + "{" + key.String() + "}:version"
}

func (r *Redis) checkpointsKey(key market.SeriesKey) string {
	return r.prefix + "{" + key.String() + "}:checkpoints"
}

func (r *Redis) snapshotKey(p market.PartitionKey) string {
	return r.prefix + "{" + p.String() + "}:snapshot"
}

func score(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// GetState reads the newest checkpoint and the version in one MULTI/EXEC
// so the pair is always consistent.
func (r *Redis) GetState(ctx context.Context, key market.SeriesKey) (*indicators.State, error) {
	var (
		head *redis.StringSliceCmd
		ver  *redis.StringCmd
	)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		head = pipe.ZRevRange(ctx, r.checkpointsKey(key), 0, 0)
		ver = pipe.Get(ctx, r.versionKey(key))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	vals, err := head.Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	cp, err := decodeCheckpoint(vals[0])
	if err != nil {
		return nil, err
	}

	version, err := ver.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	cp.State.Version = version
	return &cp.State, nil
}

func (r *Redis) PutState(ctx context.Context, key market.SeriesKey, cp indicators.Checkpoint, expectedVersion int64) (bool, error) {
	return r.write(ctx, key, cp.Candle.IntervalStart, []indicators.Checkpoint{cp}, expectedVersion)
}

func (r *Redis) ReplaceFrom(ctx context.Context, key market.SeriesKey, t time.Time, cps []indicators.Checkpoint, expectedVersion int64) (bool, error) {
	return r.write(ctx, key, t, cps, expectedVersion)
}

func (r *Redis) write(ctx context.Context, key market.SeriesKey, from time.Time, cps []indicators.Checkpoint, expectedVersion int64) (bool, error) {
	vkey, ckey := r.versionKey(key), r.checkpointsKey(key)
	next := expectedVersion + 1

	members := make([]redis.Z, 0, len(cps))
	for _, cp := range cps {
		cp.State.Version = next
		raw, err := json.Marshal(cp)
		if err != nil {
			return false, err
		}
		members = append(members, redis.Z{Score: float64(cp.Candle.IntervalStart.Unix()), Member: string(raw)})
	}

	conflict := false
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != expectedVersion {
			conflict = true
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, vkey, next, 0)
			pipe.ZRemRangeByScore(ctx, ckey, score(from), "+inf")
			if len(members) > 0 {
				pipe.ZAdd(ctx, ckey, members...)
			}
			pipe.ZRemRangeByRank(ctx, ckey, 0, int64(-r.retention-1))
			return nil
		})
		return err
	}, vkey)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !conflict, nil
}

func (r *Redis) CheckpointBefore(ctx context.Context, key market.SeriesKey, t time.Time) (*indicators.Checkpoint, error) {
	vals, err := r.rdb.ZRevRangeByScore(ctx, r.checkpointsKey(key), &redis.ZRangeBy{
		Max:   "(" + score(t),
		Min:   "-inf",
		Count: 1,
	}).Result()
	if err != nil || len(vals) == 0 {
		return nil, err
	}
	cp, err := decodeCheckpoint(vals[0])
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *Redis) CheckpointsFrom(ctx context.Context, key market.SeriesKey, t time.Time) ([]indicators.Checkpoint, error) {
	vals, err := r.rdb.ZRangeByScore(ctx, r.checkpointsKey(key), &redis.ZRangeBy{
		Min: score(t),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]indicators.Checkpoint, 0, len(vals))
	for _, v := range vals {
		cp, err := decodeCheckpoint(v)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func decodeCheckpoint(raw string) (indicators.Checkpoint, error) {
	var cp indicators.Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return cp, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}

func (r *Redis) LoadSnapshot(ctx context.Context, p market.PartitionKey) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.snapshotKey(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *Redis) SaveSnapshot(ctx context.Context, p market.PartitionKey, data []byte) error {
	return r.rdb.Set(ctx, r.snapshotKey(p), data, 0).Err()
}
