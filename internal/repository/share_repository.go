package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"edushare/internal/domain"

	"github.com/jmoiron/sqlx"
)

func trimName(name string) string {
	return strings.TrimSpace(name)
}

// ShareRepository — постгресовое хранилище share-ссылок.
type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) Create(ctx context.Context, link *domain.ShareLink) error {
	query := `
        INSERT INTO share_links (id, token, root_item_id, role, created_by, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		link.ID,
		link.Token,
		link.RootItemID,
		link.Role,
		link.CreatedBy,
		link.ExpiresAt,
	).Scan(&link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create share link: %w", err)
	}

	return nil
}

// GetByToken возвращает ссылку, если она существует и не истекла.
func (r *ShareRepository) GetByToken(ctx context.Context, token string) (*domain.ShareLink, error) {
	query := `
        SELECT id, token, root_item_id, role, created_by, created_at, expires_at
        FROM share_links
        WHERE token = $1
        AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`

	var link domain.ShareLink
	if err := r.db.GetContext(ctx, &link, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("share link: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}

	return &link, nil
}

func (r *ShareRepository) Delete(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM share_links WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete share link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("share link: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *ShareRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM share_links WHERE expires_at < CURRENT_TIMESTAMP`)
	return err
}
