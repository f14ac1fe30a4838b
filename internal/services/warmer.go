package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"todo-api/internal/models"
)

// ListWarmer keeps the hottest list pages in the cache by reading them on an
// interval. After a write bumps the generation the next tick repopulates
// them, so clients rarely pay for the miss.
type ListWarmer struct {
	store    TodoStore
	pages    []models.ListFilter
	interval time.Duration
	log      *logrus.Entry
}

// DefaultWarmPages is the unfiltered first page plus the first page of each
// status.
func DefaultWarmPages() []models.ListFilter {
	pages := []models.ListFilter{{Limit: models.DefaultLimit, Offset: models.DefaultOffset}}
	for _, status := range models.ValidStatuses {
		pages = append(pages, models.ListFilter{Status: status, Limit: models.DefaultLimit, Offset: models.DefaultOffset})
	}
	return pages
}

func NewListWarmer(store TodoStore, pages []models.ListFilter, interval time.Duration, logger *logrus.Logger) *ListWarmer {
	if len(pages) == 0 {
		pages = DefaultWarmPages()
	}
	return &ListWarmer{
		store:    store,
		pages:    pages,
		interval: interval,
		log:      logger.WithField("component", "warmer"),
	}
}

// Warm reads every configured page once and returns how many succeeded.
func (w *ListWarmer) Warm(ctx context.Context) int {
	warmed := 0
	for _, page := range w.pages {
		if ctx.Err() != nil {
			break
		}
		if _, _, err := w.store.List(ctx, page); err != nil {
			w.log.WithError(err).WithField("status", string(page.Status)).Debug("Failed to warm list page")
			continue
		}
		warmed++
	}
	return warmed
}

// Run warms immediately and then on every tick until ctx is done.
func (w *ListWarmer) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	w.Warm(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Warm(ctx)
		}
	}
}
