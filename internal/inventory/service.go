package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	listFlightKey   = "list"
	listLoadTimeout = 30 * time.Second
)

// ItemRepository is the persistence port used by Service.
type ItemRepository interface {
	List(ctx context.Context) ([]Item, error)
	Create(ctx context.Context, fields ItemFields, meta MutationMeta) (Item, error)
	Update(ctx context.Context, id string, fields ItemFields, meta MutationMeta) (Item, error)
	Delete(ctx context.Context, id string, meta MutationMeta) error
}

// ListCache caches the collection between mutations.
type ListCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// Service is the authoritative Store: it validates, persists and keeps the
// list cache coherent.
type Service struct {
	repo      ItemRepository
	cache     ListCache
	validator *Validator
	logger    *slog.Logger
	group     singleflight.Group

	// loadTimeout bounds a shared list load, which outlives its callers.
	loadTimeout time.Duration
}

// NewService builds Service. cache may be nil.
func NewService(repo ItemRepository, cache ListCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, validator: NewValidator(), logger: logger, loadTimeout: listLoadTimeout}
}

// List returns the full collection. Concurrent callers share one load.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	ch := s.group.DoChan(listFlightKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		return s.list(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		items := res.Val.([]Item)
		out := make([]Item, len(items))
		copy(out, items)
		return out, nil
	}
}

func (s *Service) list(ctx context.Context) ([]Item, error) {
	if s.cache == nil {
		return s.load(ctx)
	}
	key, err := s.cache.BuildKey(ctx, "items")
	if err != nil {
		s.logger.Warn("inventory cache key", slog.Any("error", err))
		return s.load(ctx)
	}
	var items []Item
	var loadErr error
	err = s.cache.FetchJSON(ctx, key, &items, func(ctx context.Context) (any, error) {
		loaded, err := s.load(ctx)
		loadErr = err
		return loaded, err
	})
	if loadErr != nil {
		return nil, loadErr
	}
	if err != nil {
		s.logger.Warn("inventory cache fetch", slog.Any("error", err))
		return s.load(ctx)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

func (s *Service) load(ctx context.Context) ([]Item, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// Create validates fields and stores a new item. An idempotency key on ctx
// guards against the same submission being stored twice.
func (s *Service) Create(ctx context.Context, fields ItemFields) (Item, error) {
	fields = fields.Normalize()
	if errs := s.validator.Check(fields); len(errs) > 0 {
		return Item{}, errs
	}
	item, err := s.repo.Create(ctx, fields, metaFromContext(ctx))
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	s.logger.Info("inventory item created", slog.String("id", item.ID))
	return item, nil
}

// Update validates fields and replaces item id.
func (s *Service) Update(ctx context.Context, id string, fields ItemFields) (Item, error) {
	fields = fields.Normalize()
	if errs := s.validator.Check(fields); len(errs) > 0 {
		return Item{}, errs
	}
	item, err := s.repo.Update(ctx, id, fields, metaFromContext(ctx))
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	s.logger.Info("inventory item updated", slog.String("id", id))
	return item, nil
}

// Delete removes item id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id, metaFromContext(ctx)); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger.Info("inventory item deleted", slog.String("id", id))
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.group.Forget(listFlightKey)
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("inventory cache bump", slog.Any("error", err))
	}
}
