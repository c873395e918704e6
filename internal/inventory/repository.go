package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-inventory/internal/platform/db"
	"github.com/odyssey-erp/odyssey-inventory/internal/shared"
)

const (
	auditEntity       = "inventory_item"
	idempotencyModule = "inventory"
	checkViolation    = "23514"
)

const itemColumns = `id::text, name, description, price, created_at, updated_at`

// Repository persists inventory items in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	audit       *shared.AuditLogger
	idempotency *shared.IdempotencyStore
	now         func() time.Time
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger, idem *shared.IdempotencyStore) *Repository {
	return &Repository{pool: pool, audit: audit, idempotency: idem, now: time.Now}
}

// List returns every item ordered by creation.
func (r *Repository) List(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) { return scanItem(row) })
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	return items, nil
}

// Create inserts the item, claiming the idempotency key of meta when set.
func (r *Repository) Create(ctx context.Context, fields ItemFields, meta MutationMeta) (Item, error) {
	var item Item
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if meta.IdempotencyKey != "" {
			if err := r.idempotency.Claim(ctx, tx, meta.IdempotencyKey, idempotencyModule); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					return ErrDuplicateSubmission
				}
				return err
			}
		}
		now := r.now().UTC()
		row := tx.QueryRow(ctx, `INSERT INTO inventory_items (id, name, description, price, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5) RETURNING `+itemColumns,
			uuid.New(), fields.Name, fields.Description, fields.Price, now)
		var err error
		if item, err = scanItem(row); err != nil {
			return mapWriteError(err)
		}
		return r.record(ctx, tx, meta, "create", item)
	})
	if err != nil {
		return Item{}, fmt.Errorf("inventory: create: %w", err)
	}
	return item, nil
}

// Update replaces the fields of item id.
func (r *Repository) Update(ctx context.Context, id string, fields ItemFields, meta MutationMeta) (Item, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Item{}, fmt.Errorf("inventory: update %s: %w", id, ErrNotFound)
	}
	var item Item
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `UPDATE inventory_items SET name = $2, description = $3, price = $4, updated_at = $5
WHERE id = $1 RETURNING `+itemColumns,
			uid, fields.Name, fields.Description, fields.Price, r.now().UTC())
		var err error
		if item, err = scanItem(row); err != nil {
			return mapWriteError(err)
		}
		return r.record(ctx, tx, meta, "update", item)
	})
	if err != nil {
		return Item{}, fmt.Errorf("inventory: update %s: %w", id, err)
	}
	return item, nil
}

// Delete removes item id.
func (r *Repository) Delete(ctx context.Context, id string, meta MutationMeta) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("inventory: delete %s: %w", id, ErrNotFound)
	}
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `DELETE FROM inventory_items WHERE id = $1 RETURNING `+itemColumns, uid)
		item, err := scanItem(row)
		if err != nil {
			return mapWriteError(err)
		}
		return r.record(ctx, tx, meta, "delete", item)
	})
	if err != nil {
		return fmt.Errorf("inventory: delete %s: %w", id, err)
	}
	return nil
}

func (r *Repository) record(ctx context.Context, tx pgx.Tx, meta MutationMeta, action string, item Item) error {
	if r.audit == nil {
		return nil
	}
	return r.audit.Record(ctx, tx, shared.AuditLog{
		ActorID:  meta.ActorID,
		Action:   action,
		Entity:   auditEntity,
		EntityID: item.ID,
		Meta:     map[string]any{"name": item.Name, "price": item.Price},
		At:       r.now().UTC(),
	})
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func mapWriteError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
		return fmt.Errorf("%w: %s", ErrValidation, pgErr.ConstraintName)
	}
	return err
}
