package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"todo-api/internal/cache"
	"todo-api/internal/models"
)

const generationKey = "todos:generation"

type cachedPage struct {
	Todos []models.Todo `json:"todos"`
	Total int64         `json:"total"`
}

// CachedTodoStore serves list pages from Redis. Every successful write bumps
// a generation counter that is part of each page key, so stale pages are
// never read again and simply expire. Redis failures never fail a request.
type CachedTodoStore struct {
	store   TodoStore
	cache   *cache.RedisCache
	breaker *cache.CircuitBreaker
	metrics *cache.CacheMetrics
	ttl     time.Duration
	log     *logrus.Entry
}

func NewCachedTodoStore(store TodoStore, redisCache *cache.RedisCache, ttl time.Duration, logger *logrus.Logger) *CachedTodoStore {
	log := logger.WithField("component", "cache")

	return &CachedTodoStore{
		store: store,
		cache: redisCache,
		breaker: cache.NewCircuitBreaker(&cache.CircuitBreakerConfig{
			MaxFailures:      5,
			Timeout:          30 * time.Second,
			HalfOpenMaxCalls: 3,
			OnStateChange: func(from, to cache.CircuitBreakerState) {
				log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("Cache circuit breaker changed state")
			},
		}),
		metrics: cache.NewCacheMetrics(),
		ttl:     ttl,
		log:     log,
	}
}

func (s *CachedTodoStore) Metrics() *cache.CacheMetrics {
	return s.metrics
}

func (s *CachedTodoStore) InitializeSchema(ctx context.Context) error {
	return s.store.InitializeSchema(ctx)
}

func (s *CachedTodoStore) Create(ctx context.Context, todo models.NewTodo) (models.Todo, error) {
	created, err := s.store.Create(ctx, todo)
	if err != nil {
		return created, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *CachedTodoStore) List(ctx context.Context, filter models.ListFilter) ([]models.Todo, int64, error) {
	var generation int64
	err := s.breaker.Execute(func() error {
		var err error
		generation, err = s.cache.GetInt(ctx, generationKey)
		return err
	})
	if err != nil {
		s.recordFailure(err, "read generation")
		return s.store.List(ctx, filter)
	}

	key := fmt.Sprintf("todos:list:v%d:%s:%d:%d", generation, filter.Status, filter.Limit, filter.Offset)

	var page cachedPage
	err = s.breaker.Execute(func() error {
		err := s.cache.Get(ctx, key, &page)
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil
		}
		return err
	})
	switch {
	case err != nil:
		s.recordFailure(err, "read page")
	case page.Todos != nil:
		s.metrics.RecordHit()
		return page.Todos, page.Total, nil
	default:
		s.metrics.RecordMiss()
	}

	todos, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	err = s.breaker.Execute(func() error {
		return s.cache.Set(ctx, key, cachedPage{Todos: todos, Total: total}, s.ttl)
	})
	if err != nil {
		s.recordFailure(err, "write page")
	} else {
		s.metrics.RecordSet()
	}

	return todos, total, nil
}

func (s *CachedTodoStore) Exists(ctx context.Context, id int64) (bool, error) {
	return s.store.Exists(ctx, id)
}

func (s *CachedTodoStore) Get(ctx context.Context, id int64) (models.Todo, error) {
	return s.store.Get(ctx, id)
}

func (s *CachedTodoStore) Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error) {
	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return updated, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *CachedTodoStore) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedTodoStore) Stats() map[string]interface{} {
	return map[string]interface{}{
		"hit_rate": s.metrics.HitRate(),
		"metrics":  s.metrics.GetStats(),
		"breaker":  s.breaker.GetStats(),
		"redis":    s.cache.Stats(),
	}
}

func (s *CachedTodoStore) invalidate(ctx context.Context) {
	err := s.breaker.Execute(func() error {
		_, err := s.cache.Incr(ctx, generationKey)
		return err
	})
	if err != nil {
		s.recordFailure(err, "bump generation")
		return
	}
	s.metrics.RecordDelete()
}

func (s *CachedTodoStore) recordFailure(err error, op string) {
	if errors.Is(err, cache.ErrCircuitBreakerOpen) {
		s.metrics.RecordBypass()
		return
	}
	s.metrics.RecordError()
	s.log.WithError(err).WithField("op", op).Warn("Cache operation failed")
}
