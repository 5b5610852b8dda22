package store

import (
	"context"
	"testing"
	"time"

	"edushare/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareStoreTokenUnique(t *testing.T) {
	ctx := context.Background()
	s := NewShareStore()

	link := &domain.ShareLink{
		ID:         uuid.New(),
		Token:      "tok",
		RootItemID: uuid.New(),
		Role:       domain.RoleViewer,
		CreatedBy:  "alice",
	}
	require.NoError(t, s.Create(ctx, link))

	dup := &domain.ShareLink{
		ID:         uuid.New(),
		Token:      "tok",
		RootItemID: uuid.New(),
		Role:       domain.RoleEditor,
		CreatedBy:  "bob",
	}
	err := s.Create(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrInternal)

	got, err := s.GetByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)
}

func TestShareStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewShareStore()

	past := time.Now().Add(-time.Minute)
	expired := &domain.ShareLink{
		ID:         uuid.New(),
		Token:      "old",
		RootItemID: uuid.New(),
		Role:       domain.RoleViewer,
		CreatedBy:  "alice",
		ExpiresAt:  &past,
	}
	require.NoError(t, s.Create(ctx, expired))

	_, err := s.GetByToken(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.DeleteExpired(ctx))
	assert.ErrorIs(t, s.Delete(ctx, "old"), domain.ErrNotFound)
}
