package service

import (
	"context"
	"testing"

	"edushare/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigatorOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.folder(t, "a", nil)
	b := f.folder(t, "b", &a.ID)
	doc := f.file(t, "doc.txt", &a.ID)

	nav := NewNavigator(f.items)
	assert.Equal(t, uuid.Nil, nav.Current())

	// В корне крошки пусты
	crumbs, err := nav.Breadcrumb(ctx)
	require.NoError(t, err)
	assert.Empty(t, crumbs)

	require.NoError(t, nav.Enter(ctx, a.ID))
	require.NoError(t, nav.Enter(ctx, b.ID))
	assert.Equal(t, b.ID, nav.Current())

	crumbs, err = nav.Breadcrumb(ctx)
	require.NoError(t, err)
	require.Len(t, crumbs, 2)
	assert.Equal(t, domain.Breadcrumb{ID: a.ID, Name: "a"}, crumbs[0])
	assert.Equal(t, domain.Breadcrumb{ID: b.ID, Name: "b"}, crumbs[1])

	require.NoError(t, nav.Up(ctx))
	assert.Equal(t, a.ID, nav.Current())
	require.NoError(t, nav.Up(ctx))
	assert.Equal(t, uuid.Nil, nav.Current())

	// На корне Up — no-op
	require.NoError(t, nav.Up(ctx))
	assert.Equal(t, uuid.Nil, nav.Current())

	// В файл войти нельзя
	err = nav.Enter(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = nav.Enter(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNavigatorEnterDeletedFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.folder(t, "a", nil)
	require.NoError(t, f.items.SoftDelete(ctx, []uuid.UUID{a.ID}, "alice"))

	nav := NewNavigator(f.items)
	err := nav.Enter(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSharedNavigator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	root := f.folder(t, "root", nil)
	shared := f.folder(t, "shared", &root.ID)
	sub := f.folder(t, "sub", &shared.ID)
	outside := f.folder(t, "outside", &root.ID)

	link, err := f.svc.CreateShare(ctx, shared.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)

	nav, err := NewSharedNavigator(ctx, f.items, link)
	require.NoError(t, err)
	assert.Equal(t, shared.ID, nav.Current())

	// Крошки начинаются с корня ссылки, предки выше не видны
	crumbs, err := nav.Breadcrumb(ctx)
	require.NoError(t, err)
	require.Len(t, crumbs, 1)
	assert.Equal(t, shared.ID, crumbs[0].ID)

	require.NoError(t, nav.Enter(ctx, sub.ID))
	crumbs, err = nav.Breadcrumb(ctx)
	require.NoError(t, err)
	require.Len(t, crumbs, 2)
	assert.Equal(t, shared.ID, crumbs[0].ID)
	assert.Equal(t, sub.ID, crumbs[1].ID)

	require.NoError(t, nav.Up(ctx))
	assert.Equal(t, shared.ID, nav.Current())

	// Выше корня ссылки подняться нельзя
	require.NoError(t, nav.Up(ctx))
	assert.Equal(t, shared.ID, nav.Current())

	// За пределы поддерева войти нельзя
	err = nav.Enter(ctx, outside.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	err = nav.Enter(ctx, root.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	err = nav.Enter(ctx, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Equal(t, shared.ID, nav.Current())
}

func TestSharedNavigatorDanglingRoot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	shared := f.folder(t, "shared", nil)
	link, err := f.svc.CreateShare(ctx, shared.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)

	require.NoError(t, f.items.SoftDelete(ctx, []uuid.UUID{shared.ID}, "alice"))

	_, err = NewSharedNavigator(ctx, f.items, link)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
