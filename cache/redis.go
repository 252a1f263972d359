package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dosada05/tournament-engine/models"
)

const mutateAttempts = 3

// envelope is the stored value. The secret hash is kept next to the snapshot because the
// tournament's own JSON form never includes it.
type envelope struct {
	Tournament *models.Tournament `json:"tournament"`
	SecretHash string             `json:"secret_hash"`
	Deadline   time.Time          `json:"deadline"`
}

// Redis shares snapshots between processes. Redis failures are logged and behave like misses.
type Redis struct {
	client *redis.Client
	prefix string
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

func NewRedis(client *redis.Client, opts Options, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		prefix: "tournament:",
		opts:   opts.withDefaults(),
		now:    time.Now,
		logger: logger,
	}
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *Redis) key(id int) string {
	return fmt.Sprintf("%s%d", c.prefix, id)
}

func (c *Redis) Get(ctx context.Context, id int) (*models.Tournament, bool) {
	key := c.key(id)
	env, ok := c.read(ctx, c.client, key)
	if !ok {
		return nil, false
	}
	now := c.now()
	if !now.Before(env.Deadline) {
		c.client.Del(ctx, key)
		return nil, false
	}
	if err := c.client.PExpire(ctx, key, expiry(now, env.Deadline, c.opts.SlidingTTL).Sub(now)).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache: failed to extend expiry", slog.Int("tournament_id", id), slog.Any("error", err))
	}
	return env.tournament(), true
}

func (c *Redis) Put(ctx context.Context, t *models.Tournament) {
	data, ttl, err := c.encode(t)
	if err != nil {
		c.logger.ErrorContext(ctx, "cache: failed to encode", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	if err := c.client.SetNX(ctx, c.key(t.ID), data, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache: put failed", slog.Int("tournament_id", t.ID), slog.Any("error", err))
	}
}

func (c *Redis) Replace(ctx context.Context, t *models.Tournament) {
	data, ttl, err := c.encode(t)
	if err != nil {
		c.logger.ErrorContext(ctx, "cache: failed to encode", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		c.Invalidate(ctx, t.ID)
		return
	}
	if err := c.client.Set(ctx, c.key(t.ID), data, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache: replace failed", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		c.Invalidate(ctx, t.ID)
	}
}

// MutatePlayers runs an optimistic WATCH/MULTI cycle so concurrent writers cannot interleave.
func (c *Redis) MutatePlayers(ctx context.Context, id int, m PlayerMutation) bool {
	key := c.key(id)
	applied := false
	txf := func(tx *redis.Tx) error {
		applied = false
		env, ok := c.read(ctx, tx, key)
		if !ok {
			return nil
		}
		t := env.tournament()
		if !m.apply(t) {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}
		now := c.now()
		if !now.Before(env.Deadline) {
			return nil
		}
		data, err := json.Marshal(envelope{Tournament: t, SecretHash: t.SecretHash, Deadline: env.Deadline})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, expiry(now, env.Deadline, c.opts.SlidingTTL).Sub(now))
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}

	for i := 0; i < mutateAttempts; i++ {
		err := c.client.Watch(ctx, txf, key)
		if err == nil {
			return applied
		}
		if !errors.Is(err, redis.TxFailedErr) {
			c.logger.WarnContext(ctx, "cache: mutate players failed", slog.Int("tournament_id", id), slog.Any("error", err))
			break
		}
	}
	c.Invalidate(ctx, id)
	return false
}

func (c *Redis) Invalidate(ctx context.Context, id int) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache: invalidate failed", slog.Int("tournament_id", id), slog.Any("error", err))
	}
}

func (c *Redis) encode(t *models.Tournament) ([]byte, time.Duration, error) {
	now := c.now()
	deadline := now.Add(c.opts.AbsoluteTTL)
	data, err := json.Marshal(envelope{Tournament: t, SecretHash: t.SecretHash, Deadline: deadline})
	if err != nil {
		return nil, 0, err
	}
	return data, expiry(now, deadline, c.opts.SlidingTTL).Sub(now), nil
}

// reader is satisfied by *redis.Client and by *redis.Tx inside WATCH.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func (c *Redis) read(ctx context.Context, cmd reader, key string) (*envelope, bool) {
	data, err := cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "cache: get failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Tournament == nil {
		c.logger.WarnContext(ctx, "cache: dropping undecodable entry", slog.String("key", key), slog.Any("error", err))
		cmd.Del(ctx, key)
		return nil, false
	}
	return &env, true
}

func (e *envelope) tournament() *models.Tournament {
	t := e.Tournament
	t.SecretHash = e.SecretHash
	return t
}
