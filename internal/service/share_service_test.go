package service

import (
	"context"
	"testing"
	"time"

	"edushare/internal/domain"
	"edushare/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	items  *store.ItemStore
	shares *store.ShareStore
	svc    *ShareService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	items := store.NewItemStore()
	shares := store.NewShareStore()
	return &fixture{
		items:  items,
		shares: shares,
		svc:    NewShareService(shares, items),
	}
}

func (f *fixture) folder(t *testing.T, name string, parent *uuid.UUID) *domain.Item {
	t.Helper()
	item := &domain.Item{
		Kind:      domain.KindFolder,
		Name:      name,
		ParentID:  parent,
		OwnerID:   "alice",
		UpdatedBy: "alice",
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func (f *fixture) file(t *testing.T, name string, parent *uuid.UUID) *domain.Item {
	t.Helper()
	item := &domain.Item{
		Kind:      domain.KindFile,
		Name:      name,
		ParentID:  parent,
		OwnerID:   "alice",
		UpdatedBy: "alice",
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func TestCreateShare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	docs := f.folder(t, "docs", nil)

	link, err := f.svc.CreateShare(ctx, docs.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	assert.Equal(t, docs.ID, link.RootItemID)
	assert.Equal(t, domain.RoleViewer, link.Role)
	assert.Nil(t, link.ExpiresAt)

	// Разные ссылки получают разные токены
	second, err := f.svc.CreateShare(ctx, docs.ID, domain.RoleEditor, nil, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, link.Token, second.Token)

	_, err = f.svc.CreateShare(ctx, docs.ID, domain.Role("admin"), nil, "alice")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateShare(ctx, uuid.New(), domain.RoleViewer, nil, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	docs := f.folder(t, "docs", nil)

	link, err := f.svc.CreateShare(ctx, docs.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)

	got, root, err := f.svc.Resolve(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)
	assert.Equal(t, docs.ID, root.ID)

	_, _, err = f.svc.Resolve(ctx, "no-such-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	docs := f.folder(t, "docs", nil)

	expires := -time.Minute
	link, err := f.svc.CreateShare(ctx, docs.ID, domain.RoleViewer, &expires, "alice")
	require.NoError(t, err)

	_, _, err = f.svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveDanglingToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	docs := f.folder(t, "docs", nil)

	link, err := f.svc.CreateShare(ctx, docs.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)

	// Цель ссылки удалена: токен больше ничего не открывает
	require.NoError(t, f.items.SoftDelete(ctx, []uuid.UUID{docs.ID}, "alice"))

	_, _, err = f.svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Authorize(ctx, link.Token, OperationView, docs.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthorizeScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	root := f.folder(t, "root", nil)
	shared := f.folder(t, "shared", &root.ID)
	inside := f.file(t, "inside.txt", &shared.ID)
	outside := f.file(t, "outside.txt", &root.ID)

	link, err := f.svc.CreateShare(ctx, shared.ID, domain.RoleEditor, nil, "alice")
	require.NoError(t, err)

	// Сам корень ссылки и его потомки — в зоне действия
	_, err = f.svc.Authorize(ctx, link.Token, OperationView, shared.ID)
	assert.NoError(t, err)
	_, err = f.svc.Authorize(ctx, link.Token, OperationDownload, inside.ID)
	assert.NoError(t, err)

	// Сосед вне поддерева — отказ даже для editor
	_, err = f.svc.Authorize(ctx, link.Token, OperationView, outside.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	_, err = f.svc.Authorize(ctx, link.Token, OperationView, root.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestAuthorizeRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	shared := f.folder(t, "shared", nil)
	doc := f.file(t, "doc.txt", &shared.ID)

	viewer, err := f.svc.CreateShare(ctx, shared.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)
	editor, err := f.svc.CreateShare(ctx, shared.ID, domain.RoleEditor, nil, "alice")
	require.NoError(t, err)

	reads := []OperationType{OperationView, OperationDownload}
	writes := []OperationType{
		OperationCreate, OperationUpload, OperationRename,
		OperationMove, OperationDelete,
	}

	for _, op := range reads {
		_, err := f.svc.Authorize(ctx, viewer.Token, op, doc.ID)
		assert.NoError(t, err, "viewer %s", op)
		_, err = f.svc.Authorize(ctx, editor.Token, op, doc.ID)
		assert.NoError(t, err, "editor %s", op)
	}

	for _, op := range writes {
		_, err := f.svc.Authorize(ctx, viewer.Token, op, doc.ID)
		assert.ErrorIs(t, err, domain.ErrAccessDenied, "viewer %s", op)
		_, err = f.svc.Authorize(ctx, editor.Token, op, doc.ID)
		assert.NoError(t, err, "editor %s", op)
	}
}

func TestAuthorizeMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	root := f.folder(t, "root", nil)
	shared := f.folder(t, "shared", &root.ID)
	sub := f.folder(t, "sub", &shared.ID)
	doc := f.file(t, "doc.txt", &shared.ID)
	outside := f.folder(t, "outside", &root.ID)

	editor, err := f.svc.CreateShare(ctx, shared.ID, domain.RoleEditor, nil, "alice")
	require.NoError(t, err)
	viewer, err := f.svc.CreateShare(ctx, shared.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)

	_, err = f.svc.AuthorizeMove(ctx, editor.Token, []uuid.UUID{doc.ID}, sub.ID)
	assert.NoError(t, err)

	// Назначение за пределами поддерева ссылки
	_, err = f.svc.AuthorizeMove(ctx, editor.Token, []uuid.UUID{doc.ID}, outside.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	// В корень дерева под токеном переносить нельзя
	_, err = f.svc.AuthorizeMove(ctx, editor.Token, []uuid.UUID{doc.ID}, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	// Источник за пределами поддерева ссылки
	_, err = f.svc.AuthorizeMove(ctx, editor.Token, []uuid.UUID{outside.ID}, sub.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = f.svc.AuthorizeMove(ctx, viewer.Token, []uuid.UUID{doc.ID}, sub.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

// Сквозной сценарий: от создания дерева до операций под ссылками
// обеих ролей.
func TestShareWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.folder(t, "a", nil)
	b := f.folder(t, "b", &a.ID)

	err := f.items.Move(ctx, []uuid.UUID{a.ID}, b.ID, "alice")
	require.ErrorIs(t, err, domain.ErrCycle)

	file := f.file(t, "draft", &a.ID)

	viewer, err := f.svc.CreateShare(ctx, a.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)

	_, err = f.svc.Authorize(ctx, viewer.Token, OperationDelete, file.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = f.svc.Authorize(ctx, viewer.Token, OperationView, a.ID)
	require.NoError(t, err)
	children, err := f.items.Children(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, b.ID, children[0].ID)
	assert.Equal(t, file.ID, children[1].ID)

	editor, err := f.svc.CreateShare(ctx, a.ID, domain.RoleEditor, nil, "alice")
	require.NoError(t, err)

	_, err = f.svc.Authorize(ctx, editor.Token, OperationRename, file.ID)
	require.NoError(t, err)
	renamed, err := f.items.Rename(ctx, file.ID, "notes.txt", "share:"+editor.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", renamed.Name)

	// Вынос файла в корень дерева под токеном запрещён, хотя само
	// хранилище такой перенос допустило бы
	_, err = f.svc.AuthorizeMove(ctx, editor.Token, []uuid.UUID{file.ID}, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	docs := f.folder(t, "docs", nil)

	link, err := f.svc.CreateShare(ctx, docs.ID, domain.RoleViewer, nil, "alice")
	require.NoError(t, err)

	// Отзывать может только автор ссылки
	err = f.svc.Revoke(ctx, link.Token, "mallory")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	require.NoError(t, f.svc.Revoke(ctx, link.Token, "alice"))

	_, _, err = f.svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.svc.Revoke(ctx, link.Token, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	docs := f.folder(t, "docs", nil)

	expired := -time.Minute
	gone, err := f.svc.CreateShare(ctx, docs.ID, domain.RoleViewer, &expired, "alice")
	require.NoError(t, err)

	alive := time.Hour
	kept, err := f.svc.CreateShare(ctx, docs.ID, domain.RoleViewer, &alive, "alice")
	require.NoError(t, err)

	require.NoError(t, f.svc.CleanupExpired(ctx))

	_, _, err = f.svc.Resolve(ctx, gone.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = f.svc.Resolve(ctx, kept.Token)
	assert.NoError(t, err)
}
