package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/ytlearner/internal/model"
)

// Keys builds the redis key layout.
type Keys struct {
	Prefix string
}

// Quiz returns the key holding a quiz payload.
func (k Keys) Quiz(id string) string {
	return fmt.Sprintf("%squiz:%s", k.Prefix, id)
}

// Attempt returns the key holding an attempt payload.
func (k Keys) Attempt(id string) string {
	return fmt.Sprintf("%sattempt:%s", k.Prefix, id)
}

// AttemptIndex returns the sorted set of attempt ids scored by submission time.
func (k Keys) AttemptIndex() string {
	return k.Prefix + "attempts"
}

// Redis is a durable store for multi-instance deployments. Quiz expiry uses
// native key TTLs.
type Redis struct {
	creator

	rdb  *redis.Client
	keys Keys
	ttl  time.Duration
	now  func() time.Time
}

// DialRedis connects to the server at url and verifies it with PING.
func DialRedis(ctx context.Context, url string, ttl time.Duration, opts ...Option) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected", "addr", opt.Addr, "db", opt.DB)
	return NewRedis(rdb, Keys{Prefix: "ytlearner:"}, ttl, opts...), nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, keys Keys, ttl time.Duration, opts ...Option) *Redis {
	o := buildOptions(opts)
	return &Redis{rdb: rdb, keys: keys, ttl: ttl, now: o.now}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) GetOrCreate(ctx context.Context, id string, create CreateFunc) (*model.Quiz, error) {
	return r.getOrCreate(ctx, r, id, create)
}

func (r *Redis) Get(ctx context.Context, id string) (*model.Quiz, error) {
	raw, err := r.rdb.Get(ctx, r.keys.Quiz(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz %s: %w", id, err)
	}
	var q model.Quiz
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode quiz %s: %w", id, err)
	}
	return &q, nil
}

func (r *Redis) insertQuiz(ctx context.Context, q *model.Quiz) (*model.Quiz, error) {
	remaining := q.CreatedAt.Add(r.ttl).Sub(r.now())
	if remaining <= 0 {
		return nil, fmt.Errorf("quiz %s created at %s is already expired", q.ID, q.CreatedAt)
	}
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quiz %s: %w", q.ID, err)
	}

	// The winning record may expire between SETNX and GET; one retry covers it.
	for range 2 {
		ok, err := r.rdb.SetNX(ctx, r.keys.Quiz(q.ID), payload, remaining).Result()
		if err != nil {
			return nil, fmt.Errorf("store quiz %s: %w", q.ID, err)
		}
		if ok {
			return q, nil
		}
		stored, err := r.Get(ctx, q.ID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return stored, err
	}
	return nil, fmt.Errorf("store quiz %s: lost insert race twice", q.ID)
}

func (r *Redis) SaveAttempt(ctx context.Context, a *model.Attempt) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt %s: %w", a.ID, err)
	}
	ok, err := r.rdb.SetNX(ctx, r.keys.Attempt(a.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("store attempt %s: %w", a.ID, err)
	}
	if !ok {
		return fmt.Errorf("attempt %s: %w", a.ID, ErrAttemptExists)
	}
	err = r.rdb.ZAdd(ctx, r.keys.AttemptIndex(), redis.Z{
		Score:  float64(a.SubmittedAt.UnixMilli()),
		Member: a.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("index attempt %s: %w", a.ID, err)
	}
	return nil
}

func (r *Redis) GetAttempt(ctx context.Context, id string) (*model.Attempt, error) {
	raw, err := r.rdb.Get(ctx, r.keys.Attempt(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt %s: %w", id, err)
	}
	var a model.Attempt
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode attempt %s: %w", id, err)
	}
	return &a, nil
}

func (r *Redis) ListAttempts(ctx context.Context) ([]model.Attempt, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.keys.AttemptIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list attempt index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keys.Attempt(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	out := make([]model.Attempt, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			slog.Warn("attempt indexed but missing", "attempt_id", ids[i])
			continue
		}
		var a model.Attempt
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("decode attempt %s: %w", ids[i], err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Redis) clock() time.Time { return r.now() }
