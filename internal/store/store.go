package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pavelanni/ytlearner/internal/model"
)

var (
	// ErrNotFound is returned when a quiz or attempt does not exist or has expired.
	ErrNotFound = errors.New("not found")
	// ErrAttemptExists is returned when an attempt id is stored twice.
	ErrAttemptExists = errors.New("attempt already exists")
)

// DefaultQuizTTL is how long a generated quiz stays fresh.
const DefaultQuizTTL = 30 * 24 * time.Hour

// CreateTimeout bounds one quiz creation. Creation outlives the caller that
// started it, so waiting callers are not failed by its cancellation.
const CreateTimeout = 2 * time.Minute

// CreateFunc builds a quiz on a cache miss.
type CreateFunc func(ctx context.Context) (*model.Quiz, error)

// Store persists quizzes and attempts.
type Store interface {
	// GetOrCreate returns the stored quiz for id, invoking create at most once
	// per process for concurrent misses. Racing writers across processes all
	// observe the first stored record.
	GetOrCreate(ctx context.Context, id string, create CreateFunc) (*model.Quiz, error)
	Get(ctx context.Context, id string) (*model.Quiz, error)
	SaveAttempt(ctx context.Context, a *model.Attempt) error
	GetAttempt(ctx context.Context, id string) (*model.Attempt, error)
	// ListAttempts returns all attempts, newest first.
	ListAttempts(ctx context.Context) ([]model.Attempt, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend  string
	Path     string
	RedisURL string
	QuizTTL  time.Duration
}

// Open creates the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	ttl := cfg.QuizTTL
	if ttl <= 0 {
		ttl = DefaultQuizTTL
	}
	switch strings.ToLower(cfg.Backend) {
	case "", "sqlite":
		return NewSQLite(cfg.Path, ttl)
	case "redis":
		return DialRedis(ctx, cfg.RedisURL, ttl)
	case "memory":
		return NewMemory(ttl), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Option adjusts a backend.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// quizBackend is the persistence half of GetOrCreate.
type quizBackend interface {
	Get(ctx context.Context, id string) (*model.Quiz, error)
	// insertQuiz stores q unless a live record exists and returns whichever
	// record is stored afterwards.
	insertQuiz(ctx context.Context, q *model.Quiz) (*model.Quiz, error)
	clock() time.Time
}

// creator serializes quiz creation per id within the process.
type creator struct {
	flight singleflight.Group
}

func (c *creator) getOrCreate(ctx context.Context, b quizBackend, id string, create CreateFunc) (*model.Quiz, error) {
	q, err := b.Get(ctx, id)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ch := c.flight.DoChan(id, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CreateTimeout)
		defer cancel()

		// A flight that finished between our miss and DoChan already stored it.
		q, err := b.Get(fctx, id)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		q, err = create(fctx)
		if err != nil {
			return nil, err
		}
		if q.ID != id {
			return nil, fmt.Errorf("created quiz id %q does not match key %q", q.ID, id)
		}
		if q.CreatedAt.IsZero() {
			q.CreatedAt = b.clock().UTC()
		}
		return b.insertQuiz(fctx, q)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Quiz), nil
	}
}
