package inventory

import (
	"context"
	"time"
)

// StoreObserver receives the outcome of every store call.
type StoreObserver interface {
	ObserveStoreCall(op, outcome string, d time.Duration)
}

type instrumentedStore struct {
	next     Store
	observer StoreObserver
}

// Instrument reports each call of next to observer. Outcome is "ok" or the
// classified error kind.
func Instrument(next Store, observer StoreObserver) Store {
	if observer == nil {
		return next
	}
	return &instrumentedStore{next: next, observer: observer}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(Classify(op, "", err).Kind)
	}
	s.observer.ObserveStoreCall(op, outcome, time.Since(start))
}

func (s *instrumentedStore) List(ctx context.Context) ([]Item, error) {
	start := time.Now()
	items, err := s.next.List(ctx)
	s.observe(opList, start, err)
	return items, err
}

func (s *instrumentedStore) Create(ctx context.Context, fields ItemFields) (Item, error) {
	start := time.Now()
	item, err := s.next.Create(ctx, fields)
	s.observe(opCreate, start, err)
	return item, err
}

func (s *instrumentedStore) Update(ctx context.Context, id string, fields ItemFields) (Item, error) {
	start := time.Now()
	item, err := s.next.Update(ctx, id, fields)
	s.observe(opUpdate, start, err)
	return item, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.observe(opDelete, start, err)
	return err
}
