package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"edushare/internal/domain"
	"edushare/internal/service/s3"

	"github.com/google/uuid"
)

// ItemStorage — контракт хранилища дерева. Его реализуют
// store.ItemStore (память) и repository.ItemRepository (Postgres).
type ItemStorage interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	Children(ctx context.Context, folderID uuid.UUID) ([]domain.Item, error)
	Create(ctx context.Context, item *domain.Item) error
	Rename(ctx context.Context, id uuid.UUID, newName, userID string) (*domain.Item, error)
	Move(ctx context.Context, ids []uuid.UUID, dest uuid.UUID, userID string) error
	SoftDelete(ctx context.Context, ids []uuid.UUID, userID string) error
	Restore(ctx context.Context, ids []uuid.UUID, userID string) error
	Purge(ctx context.Context, ids []uuid.UUID) ([]string, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error)
	AncestorChain(ctx context.Context, id uuid.UUID) ([]domain.Item, error)
}

type ItemService struct {
	items ItemStorage
	blobs s3.Storage
}

func NewItemService(items ItemStorage, blobs s3.Storage) *ItemService {
	return &ItemService{
		items: items,
		blobs: blobs,
	}
}

func (s *ItemService) Get(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	return s.items.Get(ctx, id)
}

// Children возвращает живое содержимое папки, folderID == uuid.Nil — корень.
func (s *ItemService) Children(ctx context.Context, folderID uuid.UUID) ([]domain.Item, error) {
	return s.items.Children(ctx, folderID)
}

func (s *ItemService) CreateFolder(ctx context.Context, name string, parentID *uuid.UUID, userID string) (*domain.Item, error) {
	folder := &domain.Item{
		Kind:      domain.KindFolder,
		Name:      name,
		ParentID:  parentID,
		OwnerID:   userID,
		UpdatedBy: userID,
	}

	if err := s.items.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	return folder, nil
}

// UploadFile кладёт байты в блоб-хранилище и регистрирует файл в
// дереве. В ядро попадают только метаданные и непрозрачный ключ.
func (s *ItemService) UploadFile(ctx context.Context, up domain.FileUpload, userID string) (*domain.Item, error) {
	mime := up.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}

	key := fmt.Sprintf("edushare_files/%s/%s", userID, uuid.New())
	if s.blobs != nil {
		if err := s.blobs.UploadBytes(key, up.Data); err != nil {
			return nil, fmt.Errorf("failed to store file content: %w", err)
		}
	}

	file := &domain.Item{
		Kind:       domain.KindFile,
		Name:       up.Name,
		ParentID:   up.ParentID,
		OwnerID:    userID,
		MIMEType:   &mime,
		SizeBytes:  int64(len(up.Data)),
		ContentKey: &key,
		UpdatedBy:  userID,
	}

	if err := s.items.Create(ctx, file); err != nil {
		// Блоб без записи в дереве никому не принадлежит, убираем сразу
		if s.blobs != nil {
			if delErr := s.blobs.DeleteObject(key); delErr != nil {
				log.Printf("[UploadFile] warning: failed to remove orphan blob %s: %v", key, delErr)
			}
		}
		return nil, fmt.Errorf("failed to create file item: %w", err)
	}

	return file, nil
}

// Download возвращает метаданные файла и поток его содержимого.
func (s *ItemService) Download(ctx context.Context, id uuid.UUID) (*domain.Item, s3.S3Object, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if item.IsFolder() {
		return nil, nil, fmt.Errorf("item %s is not a file: %w", id, domain.ErrValidation)
	}
	if item.ContentKey == nil || s.blobs == nil {
		return nil, nil, fmt.Errorf("file %s has no stored content: %w", id, domain.ErrInternal)
	}

	obj, err := s.blobs.GetObject(ctx, *item.ContentKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get file content: %w", err)
	}

	return item, obj, nil
}

func (s *ItemService) Rename(ctx context.Context, id uuid.UUID, newName, userID string) (*domain.Item, error) {
	item, err := s.items.Rename(ctx, id, newName, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to rename item: %w", err)
	}

	return item, nil
}

func (s *ItemService) Move(ctx context.Context, ids []uuid.UUID, dest uuid.UUID, userID string) error {
	if len(ids) == 0 {
		return fmt.Errorf("no items to move: %w", domain.ErrValidation)
	}

	return s.items.Move(ctx, ids, dest, userID)
}

// Delete помечает поддеревья удалёнными. Окончательное удаление
// выполняет фоновая чистка по истечении срока хранения.
func (s *ItemService) Delete(ctx context.Context, ids []uuid.UUID, userID string) error {
	if len(ids) == 0 {
		return fmt.Errorf("no items to delete: %w", domain.ErrValidation)
	}

	return s.items.SoftDelete(ctx, ids, userID)
}

func (s *ItemService) Restore(ctx context.Context, ids []uuid.UUID, userID string) error {
	if len(ids) == 0 {
		return fmt.Errorf("no items to restore: %w", domain.ErrValidation)
	}

	return s.items.Restore(ctx, ids, userID)
}

// Path строит хлебные крошки: путь от корня до элемента включительно.
func (s *ItemService) Path(ctx context.Context, id uuid.UUID) ([]domain.Breadcrumb, error) {
	chain, err := s.items.AncestorChain(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ancestor chain: %w", err)
	}

	crumbs := make([]domain.Breadcrumb, 0, len(chain))
	for _, item := range chain {
		crumbs = append(crumbs, domain.Breadcrumb{ID: item.ID, Name: item.Name})
	}

	return crumbs, nil
}

// PurgeExpired окончательно удаляет элементы, пролежавшие в корзине
// дольше retention, вместе с их блобами.
func (s *ItemService) PurgeExpired(ctx context.Context, retention time.Duration) error {
	keys, err := s.items.PurgeExpired(ctx, time.Now().Add(-retention))
	if err != nil {
		return fmt.Errorf("failed to purge expired items: %w", err)
	}

	for _, key := range keys {
		if s.blobs == nil {
			break
		}
		if err := s.blobs.DeleteObject(key); err != nil {
			log.Printf("[PurgeExpired] warning: failed to delete blob %s: %v", key, err)
		}
	}

	return nil
}
