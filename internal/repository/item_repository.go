package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"edushare/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const itemColumns = `
        id, kind, name, parent_id, owner_id, mime_type, size_bytes,
        content_key, created_at, updated_at, updated_by, deleted_at`

// ItemRepository — постгресовая реализация хранилища дерева.
// Контракт тот же, что у store.ItemStore.
type ItemRepository struct {
	db *sqlx.DB
}

func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	query := `
        SELECT ` + itemColumns + `
        FROM items
        WHERE id = $1 AND deleted_at IS NULL`

	var item domain.Item
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return &item, nil
}

func (r *ItemRepository) Children(ctx context.Context, folderID uuid.UUID) ([]domain.Item, error) {
	if folderID != uuid.Nil {
		if err := r.checkLiveFolder(ctx, r.db, folderID); err != nil {
			return nil, err
		}
	}

	query := `
        SELECT ` + itemColumns + `
        FROM items
        WHERE parent_id IS NOT DISTINCT FROM $1 AND deleted_at IS NULL
        ORDER BY (kind = 'folder') DESC, name`

	items := []domain.Item{}
	if err := r.db.SelectContext(ctx, &items, query, nullableID(folderID)); err != nil {
		return nil, fmt.Errorf("failed to get children: %w", err)
	}

	return items, nil
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	item.Name = trimName(item.Name)
	if item.Name == "" {
		return fmt.Errorf("item name is empty: %w", domain.ErrValidation)
	}

	if item.ParentID != nil {
		if err := r.checkLiveFolder(ctx, r.db, *item.ParentID); err != nil {
			return err
		}
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	query := `
        INSERT INTO items (id, kind, name, parent_id, owner_id, mime_type,
                           size_bytes, content_key, updated_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		item.ID,
		item.Kind,
		item.Name,
		item.ParentID,
		item.OwnerID,
		item.MIMEType,
		item.SizeBytes,
		item.ContentKey,
		item.UpdatedBy,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

func (r *ItemRepository) Rename(ctx context.Context, id uuid.UUID, newName, userID string) (*domain.Item, error) {
	newName = trimName(newName)
	if newName == "" {
		return nil, fmt.Errorf("new name is empty: %w", domain.ErrValidation)
	}

	query := `
        UPDATE items
        SET name = $1, updated_at = CURRENT_TIMESTAMP, updated_by = $2
        WHERE id = $3 AND deleted_at IS NULL
        RETURNING ` + itemColumns

	var item domain.Item
	if err := r.db.GetContext(ctx, &item, query, newName, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to rename item: %w", err)
	}

	return &item, nil
}

// Move переносит пачку элементов в dest одним коммитом. Проверка циклов
// идёт по цепочке предков назначения до корня: если она пересекается с
// переносимым множеством, вся пачка отклоняется до каких-либо изменений.
func (r *ItemRepository) Move(ctx context.Context, ids []uuid.UUID, dest uuid.UUID, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if dest != uuid.Nil {
		if err := r.checkLiveFolder(ctx, tx, dest); err != nil {
			return err
		}
	}

	// Все переносимые элементы должны быть живыми
	var liveCount int
	err = tx.GetContext(ctx, &liveCount,
		`SELECT COUNT(*) FROM items WHERE id = ANY($1) AND deleted_at IS NULL`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to check moved items: %w", err)
	}
	if liveCount != len(ids) {
		return fmt.Errorf("some items do not exist: %w", domain.ErrNotFound)
	}

	if dest != uuid.Nil {
		var cycle bool
		err = tx.GetContext(ctx, &cycle, `
            WITH RECURSIVE chain AS (
                SELECT id, parent_id FROM items WHERE id = $1
                UNION ALL
                SELECT i.id, i.parent_id
                FROM items i
                INNER JOIN chain c ON i.id = c.parent_id
            )
            SELECT EXISTS(SELECT 1 FROM chain WHERE id = ANY($2))`,
			dest, pq.Array(ids),
		)
		if err != nil {
			return fmt.Errorf("failed to check destination chain: %w", err)
		}
		if cycle {
			return fmt.Errorf("destination %s is inside the moved subtree: %w", dest, domain.ErrCycle)
		}
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE items
        SET parent_id = $1, updated_at = CURRENT_TIMESTAMP, updated_by = $2
        WHERE id = ANY($3)`,
		nullableID(dest), userID, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to move items: %w", err)
	}

	return tx.Commit()
}

// SoftDelete помечает поддеревья удалёнными. Уже удалённые id
// пропускаются, это не ошибка.
func (r *ItemRepository) SoftDelete(ctx context.Context, ids []uuid.UUID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
        WITH RECURSIVE subtree AS (
            SELECT id FROM items WHERE id = ANY($1) AND deleted_at IS NULL
            UNION ALL
            SELECT i.id
            FROM items i
            INNER JOIN subtree s ON i.parent_id = s.id
            WHERE i.deleted_at IS NULL
        )
        UPDATE items
        SET deleted_at = CURRENT_TIMESTAMP,
            updated_at = CURRENT_TIMESTAMP,
            updated_by = $2
        WHERE id IN (SELECT id FROM subtree)`,
		pq.Array(ids), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete items: %w", err)
	}

	return nil
}

// Restore снимает пометку удаления. Если родитель восстанавливаемого
// элемента сам удалён, элемент поднимается в корень.
func (r *ItemRepository) Restore(ctx context.Context, ids []uuid.UUID, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		var deletedAt *time.Time
		err := tx.GetContext(ctx, &deletedAt, `SELECT deleted_at FROM items WHERE id = $1`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to get item: %w", err)
		}
		if deletedAt == nil {
			continue
		}

		_, err = tx.ExecContext(ctx, `
            UPDATE items
            SET parent_id = NULL
            WHERE id = $1
            AND parent_id IN (SELECT id FROM items WHERE deleted_at IS NOT NULL)`,
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to reparent restored item: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
            WITH RECURSIVE subtree AS (
                SELECT id FROM items WHERE id = $1
                UNION ALL
                SELECT i.id
                FROM items i
                INNER JOIN subtree s ON i.parent_id = s.id
                WHERE i.deleted_at IS NOT NULL
            )
            UPDATE items
            SET deleted_at = NULL,
                updated_at = CURRENT_TIMESTAMP,
                updated_by = $2
            WHERE id IN (SELECT id FROM subtree)`,
			id, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to restore item: %w", err)
		}
	}

	return tx.Commit()
}

// Purge окончательно удаляет поддеревья и возвращает ключи блобов.
func (r *ItemRepository) Purge(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var keys []string
	err = tx.SelectContext(ctx, &keys, `
        WITH RECURSIVE subtree AS (
            SELECT id, content_key FROM items WHERE id = ANY($1)
            UNION ALL
            SELECT i.id, i.content_key
            FROM items i
            INNER JOIN subtree s ON i.parent_id = s.id
        )
        SELECT content_key FROM subtree WHERE content_key IS NOT NULL`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to collect content keys: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
        WITH RECURSIVE subtree AS (
            SELECT id FROM items WHERE id = ANY($1)
            UNION ALL
            SELECT i.id
            FROM items i
            INNER JOIN subtree s ON i.parent_id = s.id
        )
        DELETE FROM items WHERE id IN (SELECT id FROM subtree)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to purge items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return keys, nil
}

// PurgeExpired удаляет всё, что помечено удалённым раньше cutoff.
// Поддерево тумбстонится одним моментом времени, поэтому дети корня
// корзины попадают под тот же порог.
func (r *ItemRepository) PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var keys []string
	err = tx.SelectContext(ctx, &keys, `
        SELECT content_key FROM items
        WHERE deleted_at < $1 AND content_key IS NOT NULL`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to collect expired content keys: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE deleted_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to purge expired items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("[PurgeExpired] removed %d expired items", n)
	}

	return keys, nil
}

// AncestorChain возвращает путь от корня до элемента включительно.
func (r *ItemRepository) AncestorChain(ctx context.Context, id uuid.UUID) ([]domain.Item, error) {
	query := `
        WITH RECURSIVE chain AS (
            SELECT ` + itemColumns + `, 0 AS depth
            FROM items
            WHERE id = $1 AND deleted_at IS NULL
            UNION ALL
            SELECT i.id, i.kind, i.name, i.parent_id, i.owner_id, i.mime_type,
                   i.size_bytes, i.content_key, i.created_at, i.updated_at,
                   i.updated_by, i.deleted_at, c.depth + 1
            FROM items i
            INNER JOIN chain c ON i.id = c.parent_id
            WHERE i.deleted_at IS NULL
        )
        SELECT ` + itemColumns + ` FROM chain ORDER BY depth DESC`

	var chain []domain.Item
	if err := r.db.SelectContext(ctx, &chain, query, id); err != nil {
		return nil, fmt.Errorf("failed to get ancestor chain: %w", err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}

	return chain, nil
}

// checkLiveFolder проверяет, что id — живая папка.
func (r *ItemRepository) checkLiveFolder(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) error {
	var kind domain.ItemKind
	err := sqlx.GetContext(ctx, q, &kind,
		`SELECT kind FROM items WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to check folder: %w", err)
	}
	if kind != domain.KindFolder {
		return fmt.Errorf("item %s is not a folder: %w", id, domain.ErrValidation)
	}

	return nil
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
