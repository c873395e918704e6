package inventory

import (
	"context"
	"strings"
	"time"
)

// CSVFilename is the download name of the exported inventory report.
const CSVFilename = "inventory_report.csv"

// Item is one row of the inventory collection. ID is assigned by the store.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Fields returns the editable attributes of the item.
func (i Item) Fields() ItemFields {
	return ItemFields{Name: i.Name, Description: i.Description, Price: i.Price}
}

// ItemFields carries the attributes accepted by create and update.
// Price keeps the "LKR 300.00" text form used by the store.
type ItemFields struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Price       string `json:"price" validate:"required,lkrprice"`
}

// Normalize trims surrounding whitespace from every field.
func (f ItemFields) Normalize() ItemFields {
	return ItemFields{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		Price:       strings.TrimSpace(f.Price),
	}
}

// Store is the inventory collection the screen talks to. Implementations
// are the in-process Service and the HTTP client.
type Store interface {
	List(ctx context.Context) ([]Item, error)
	Create(ctx context.Context, fields ItemFields) (Item, error)
	Update(ctx context.Context, id string, fields ItemFields) (Item, error)
	Delete(ctx context.Context, id string) error
}

// MutationMeta describes who changed an item and under which submission.
type MutationMeta struct {
	ActorID        int64
	IdempotencyKey string
}

type idempotencyKeyCtx struct{}

type actorCtx struct{}

// WithIdempotencyKey attaches a submission token to a create call.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKeyFromContext returns the submission token, if any.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

// WithActor records the acting user for audit purposes.
func WithActor(ctx context.Context, actorID int64) context.Context {
	if actorID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, actorCtx{}, actorID)
}

// ActorFromContext returns the acting user or zero.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorCtx{}).(int64)
	return id
}

func metaFromContext(ctx context.Context) MutationMeta {
	return MutationMeta{ActorID: ActorFromContext(ctx), IdempotencyKey: IdempotencyKeyFromContext(ctx)}
}
