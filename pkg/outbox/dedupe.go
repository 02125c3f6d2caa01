package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type markerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Deduper remembers which envelopes a publisher already handed to the broker,
// so a row whose publish succeeded but whose commit failed is not sent twice.
type Deduper struct {
	store markerStore
	scope string
	ttl   time.Duration
}

func NewDeduper(store markerStore, publisher string, ttl time.Duration) (*Deduper, error) {
	switch {
	case store == nil:
		return nil, errors.New("marker store is required")
	case publisher == "":
		return nil, errors.New("publisher name is required")
	case ttl <= 0:
		return nil, errors.New("marker ttl must be positive")
	}
	return &Deduper{store: store, scope: "delivered:" + publisher, ttl: ttl}, nil
}

// FirstDelivery sets the marker for id and reports whether it was unset.
func (d *Deduper) FirstDelivery(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.store.SetNX(ctx, d.key(id), "1", d.ttl)
}

// Forget clears the marker after a failed publish so the retry goes out.
func (d *Deduper) Forget(ctx context.Context, id uuid.UUID) error {
	return d.store.Del(ctx, d.key(id))
}

func (d *Deduper) key(id uuid.UUID) string {
	return d.store.IdempotencyKey(d.scope, id.String())
}
