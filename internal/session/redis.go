package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript ends a session's window and reports whether it was still open.
var claimScript = redis.NewScript(`
	local deadline = redis.call("ZSCORE", KEYS[1], ARGV[1])
	redis.call("ZREM", KEYS[1], ARGV[1])
	if deadline and tonumber(deadline) > tonumber(ARGV[2]) then
		return 1
	end
	return 0
`)

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps parked sessions and the broadcast log in Redis, out of the
// server's memory. Offsets restart with the process, so each store writes
// under its own run id and never reads what an earlier process left behind.
type RedisStore struct {
	client    *redis.Client
	opts      Options
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "shoplist:session"
	}
	return &RedisStore{
		client:    client,
		opts:      opts,
		keyPrefix: prefix + ":" + uuid.NewString(),
	}, nil
}

func (s *RedisStore) parkedKey() string {
	return s.keyPrefix + ":parked"
}

func (s *RedisStore) logKey() string {
	return s.keyPrefix + ":log"
}

// keyTTL lets keys of a dead run expire. It is refreshed on every write.
func (s *RedisStore) keyTTL() time.Duration {
	if ttl := 2 * s.opts.Window; ttl > time.Minute {
		return ttl
	}
	return time.Minute
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func (s *RedisStore) Park(ctx context.Context, id string) error {
	now := time.Now()
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, s.parkedKey(), "-inf", millis(now))
	pipe.ZAdd(ctx, s.parkedKey(), redis.Z{Score: float64(now.Add(s.opts.Window).UnixMilli()), Member: id})
	pipe.PExpire(ctx, s.parkedKey(), s.keyTTL())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("park session: %w", err)
	}
	return nil
}

func (s *RedisStore) Claim(ctx context.Context, id string) (bool, error) {
	n, err := claimScript.Run(ctx, s.client, []string{s.parkedKey()}, id, millis(time.Now())).Int()
	if err != nil {
		return false, fmt.Errorf("claim session: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Append(ctx context.Context, rec Record) error {
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.logKey(), redis.Z{Score: float64(rec.Offset), Member: rec.Frame})
	pipe.ZRemRangeByRank(ctx, s.logKey(), 0, -int64(s.opts.maxFrames())-1)
	pipe.PExpire(ctx, s.logKey(), s.keyTTL())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append broadcast: %w", err)
	}
	return nil
}

func (s *RedisStore) Since(ctx context.Context, after int64) ([]Record, error) {
	zs, err := s.client.ZRangeByScoreWithScores(ctx, s.logKey(), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(after, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read broadcast log: %w", err)
	}

	out := make([]Record, 0, len(zs))
	for _, z := range zs {
		frame, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("read broadcast log: unexpected member %T", z.Member)
		}
		out = append(out, Record{Offset: int64(z.Score), Frame: []byte(frame)})
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
