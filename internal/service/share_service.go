package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"edushare/internal/domain"

	"github.com/google/uuid"
)

// ShareStorage — контракт хранилища share-ссылок.
type ShareStorage interface {
	Create(ctx context.Context, link *domain.ShareLink) error
	GetByToken(ctx context.Context, token string) (*domain.ShareLink, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}

// OperationType определяет тип операции для проверки прав
type OperationType string

const (
	OperationView     OperationType = "view"
	OperationDownload OperationType = "download"
	OperationCreate   OperationType = "create"
	OperationUpload   OperationType = "upload"
	OperationRename   OperationType = "rename"
	OperationMove     OperationType = "move"
	OperationDelete   OperationType = "delete"
)

// ShareService выдаёт токены на поддеревья и служит единственной точкой
// проверки прав для операций под токеном. Проверки прав нигде больше
// не дублируются.
type ShareService struct {
	shares ShareStorage
	items  ItemStorage
}

func NewShareService(shares ShareStorage, items ItemStorage) *ShareService {
	return &ShareService{
		shares: shares,
		items:  items,
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// CreateShare выдаёт токен с ролью на поддерево itemID.
func (s *ShareService) CreateShare(ctx context.Context, itemID uuid.UUID, role domain.Role, expiresIn *time.Duration, userID string) (*domain.ShareLink, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("role must be viewer or editor: %w", domain.ErrValidation)
	}

	// Цель должна существовать на момент выдачи
	if _, err := s.items.Get(ctx, itemID); err != nil {
		return nil, fmt.Errorf("share target: %w", err)
	}

	var expiresAt *time.Time
	if expiresIn != nil {
		t := time.Now().Add(*expiresIn)
		expiresAt = &t
	}

	// Коллизия 32 случайных байт — внутренний сбой, а не ошибка
	// пользователя: одна повторная генерация, дальше ErrInternal
	for attempt := 0; attempt < 2; attempt++ {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}

		link := &domain.ShareLink{
			ID:         uuid.New(),
			Token:      token,
			RootItemID: itemID,
			Role:       role,
			CreatedBy:  userID,
			ExpiresAt:  expiresAt,
		}

		if err := s.shares.Create(ctx, link); err != nil {
			log.Printf("[CreateShare] token collision, retrying: %v", err)
			continue
		}
		return link, nil
	}

	return nil, fmt.Errorf("token generation exhausted: %w", domain.ErrInternal)
}

// Resolve возвращает ссылку и её корневой элемент. Неизвестный, истёкший
// или повисший (цель удалена) токен отдаётся как ErrNotFound.
func (s *ShareService) Resolve(ctx context.Context, token string) (*domain.ShareLink, *domain.Item, error) {
	link, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("share link: %w", err)
	}

	root, err := s.items.Get(ctx, link.RootItemID)
	if err != nil {
		return nil, nil, fmt.Errorf("share target is gone: %w", err)
	}

	return link, root, nil
}

// roleAllows — матрица прав: viewer только читает, editor может всё
// в пределах своей области.
func roleAllows(role domain.Role, operation OperationType) bool {
	switch role {
	case domain.RoleViewer:
		return operation == OperationView || operation == OperationDownload
	case domain.RoleEditor:
		return true
	default:
		return false
	}
}

// withinScope проверяет, что target совпадает с корнем ссылки или
// лежит в его поддереве.
func (s *ShareService) withinScope(ctx context.Context, rootID, targetID uuid.UUID) (bool, error) {
	if targetID == rootID {
		return true, nil
	}
	if targetID == uuid.Nil {
		// Корень дерева всегда выше корня любой ссылки
		return false, nil
	}

	chain, err := s.items.AncestorChain(ctx, targetID)
	if err != nil {
		return false, err
	}
	for _, item := range chain {
		if item.ID == rootID {
			return true, nil
		}
	}

	return false, nil
}

// Authorize — единственные ворота для операций под токеном: сначала
// область (target внутри поддерева ссылки), затем роль.
func (s *ShareService) Authorize(ctx context.Context, token string, operation OperationType, targetID uuid.UUID) (*domain.ShareLink, error) {
	link, _, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	ok, err := s.withinScope(ctx, link.RootItemID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check share scope: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("item %s is outside the shared subtree: %w", targetID, domain.ErrAccessDenied)
	}

	if !roleAllows(link.Role, operation) {
		return nil, fmt.Errorf("role %s does not allow %s: %w", link.Role, operation, domain.ErrAccessDenied)
	}

	return link, nil
}

// AuthorizeMove проверяет перенос под токеном: каждый источник и
// назначение должны лежать внутри области ссылки. Вынос элемента за
// пределы расшаренного поддерева запрещён независимо от проверки циклов
// в самом хранилище.
func (s *ShareService) AuthorizeMove(ctx context.Context, token string, ids []uuid.UUID, dest uuid.UUID) (*domain.ShareLink, error) {
	var link *domain.ShareLink
	for _, id := range ids {
		l, err := s.Authorize(ctx, token, OperationMove, id)
		if err != nil {
			return nil, err
		}
		link = l
	}
	if link == nil {
		return nil, fmt.Errorf("no items to move: %w", domain.ErrValidation)
	}

	ok, err := s.withinScope(ctx, link.RootItemID, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to check move destination: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("move destination %s is outside the shared subtree: %w", dest, domain.ErrAccessDenied)
	}

	return link, nil
}

// Revoke отзывает ссылку. Отозвать может только её создатель.
func (s *ShareService) Revoke(ctx context.Context, token, userID string) error {
	link, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("share link: %w", err)
	}
	if link.CreatedBy != userID {
		return fmt.Errorf("only the creator can revoke a share link: %w", domain.ErrAccessDenied)
	}

	return s.shares.Delete(ctx, token)
}

// CleanupExpired удаляет истёкшие ссылки, вызывается фоновым тикером.
func (s *ShareService) CleanupExpired(ctx context.Context) error {
	return s.shares.DeleteExpired(ctx)
}
