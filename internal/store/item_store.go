package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"edushare/internal/domain"

	"github.com/google/uuid"
)

// ItemStore хранит дерево элементов в памяти. Контракт совпадает с
// repository.ItemRepository, поэтому сервисы работают с любым из них.
// Родительский индекс поддерживается инкрементально при каждой мутации,
// чтобы листинг и проверка циклов не сканировали всю коллекцию.
type ItemStore struct {
	mu       sync.RWMutex
	items    map[uuid.UUID]*domain.Item
	children map[uuid.UUID]map[uuid.UUID]struct{} // parent -> set of child ids, uuid.Nil = корень
}

func NewItemStore() *ItemStore {
	return &ItemStore{
		items:    make(map[uuid.UUID]*domain.Item),
		children: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func parentKey(item *domain.Item) uuid.UUID {
	if item.ParentID == nil {
		return uuid.Nil
	}
	return *item.ParentID
}

// getLive возвращает живой (не помеченный удалённым) элемент.
func (s *ItemStore) getLive(id uuid.UUID) (*domain.Item, error) {
	item, ok := s.items[id]
	if !ok || item.DeletedAt != nil {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

// resolveFolder проверяет, что id указывает на живую папку.
// uuid.Nil (корень) резолвится всегда.
func (s *ItemStore) resolveFolder(id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	item, err := s.getLive(id)
	if err != nil {
		return err
	}
	if !item.IsFolder() {
		return fmt.Errorf("item %s is not a folder: %w", id, domain.ErrValidation)
	}
	return nil
}

func (s *ItemStore) Get(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.getLive(id)
	if err != nil {
		return nil, err
	}
	copied := *item
	return &copied, nil
}

func (s *ItemStore) Children(ctx context.Context, folderID uuid.UUID) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.resolveFolder(folderID); err != nil {
		return nil, err
	}

	result := make([]domain.Item, 0, len(s.children[folderID]))
	for id := range s.children[folderID] {
		item := s.items[id]
		if item == nil || item.DeletedAt != nil {
			continue
		}
		result = append(result, *item)
	}

	// Папки первыми, внутри групп — по имени, как в выдаче листинга
	sort.Slice(result, func(i, j int) bool {
		if result[i].Kind != result[j].Kind {
			return result[i].Kind == domain.KindFolder
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

func (s *ItemStore) Create(ctx context.Context, item *domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return fmt.Errorf("item name is empty: %w", domain.ErrValidation)
	}
	if item.Kind != domain.KindFolder && item.Kind != domain.KindFile {
		return fmt.Errorf("unknown item kind %q: %w", item.Kind, domain.ErrValidation)
	}
	if err := s.resolveFolder(parentKey(item)); err != nil {
		return err
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	copied := *item
	s.items[copied.ID] = &copied
	s.link(parentKey(&copied), copied.ID)

	return nil
}

func (s *ItemStore) Rename(ctx context.Context, id uuid.UUID, newName, userID string) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("new name is empty: %w", domain.ErrValidation)
	}

	item, err := s.getLive(id)
	if err != nil {
		return nil, err
	}

	item.Name = newName
	item.UpdatedAt = time.Now()
	item.UpdatedBy = userID

	copied := *item
	return &copied, nil
}

// Move переносит все элементы ids в папку dest (uuid.Nil — корень).
// Проверка циклов выполняется для всей пачки до первого изменения:
// частично применённый перенос запрещён.
func (s *ItemStore) Move(ctx context.Context, ids []uuid.UUID, dest uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resolveFolder(dest); err != nil {
		return err
	}

	moved := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, err := s.getLive(id); err != nil {
			return err
		}
		moved[id] = struct{}{}
	}

	// Цикл: назначение совпадает с переносимым элементом либо
	// лежит внутри переносимого поддерева
	if _, ok := moved[dest]; ok {
		return fmt.Errorf("destination %s is part of the moved set: %w", dest, domain.ErrCycle)
	}
	cur := dest
	for cur != uuid.Nil {
		item, ok := s.items[cur]
		if !ok {
			return fmt.Errorf("broken parent chain at %s: %w", cur, domain.ErrInternal)
		}
		cur = parentKey(item)
		if _, ok := moved[cur]; ok {
			return fmt.Errorf("destination %s is inside the moved subtree: %w", dest, domain.ErrCycle)
		}
	}

	now := time.Now()
	for id := range moved {
		item := s.items[id]
		s.unlink(parentKey(item), id)
		if dest == uuid.Nil {
			item.ParentID = nil
		} else {
			d := dest
			item.ParentID = &d
		}
		item.UpdatedAt = now
		item.UpdatedBy = userID
		s.link(dest, id)
	}

	return nil
}

// SoftDelete помечает элементы и все их поддеревья удалёнными.
// Повторное удаление уже удалённого id — no-op.
func (s *ItemStore) SoftDelete(ctx context.Context, ids []uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok || item.DeletedAt != nil {
			continue
		}
		s.markDeleted(item, now, userID)
	}

	return nil
}

func (s *ItemStore) markDeleted(item *domain.Item, now time.Time, userID string) {
	item.DeletedAt = &now
	item.UpdatedAt = now
	item.UpdatedBy = userID
	for childID := range s.children[item.ID] {
		child := s.items[childID]
		if child != nil && child.DeletedAt == nil {
			s.markDeleted(child, now, userID)
		}
	}
}

// Restore снимает пометку удаления с поддеревьев. Если родитель
// восстанавливаемого элемента сам удалён, элемент переносится в корень.
func (s *ItemStore) Restore(ctx context.Context, ids []uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok {
			return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
		if item.DeletedAt == nil {
			continue
		}

		if parent := parentKey(item); parent != uuid.Nil {
			p, ok := s.items[parent]
			if !ok || p.DeletedAt != nil {
				s.unlink(parent, id)
				item.ParentID = nil
				s.link(uuid.Nil, id)
			}
		}
		s.markRestored(item, now, userID)
	}

	return nil
}

func (s *ItemStore) markRestored(item *domain.Item, now time.Time, userID string) {
	item.DeletedAt = nil
	item.UpdatedAt = now
	item.UpdatedBy = userID
	for childID := range s.children[item.ID] {
		child := s.items[childID]
		if child != nil && child.DeletedAt != nil {
			s.markRestored(child, now, userID)
		}
	}
}

// Purge окончательно удаляет поддеревья из хранилища и возвращает
// ключи содержимого файлов, чтобы вызывающая сторона убрала блобы.
func (s *ItemStore) Purge(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for _, id := range ids {
		if _, ok := s.items[id]; !ok {
			continue
		}
		keys = append(keys, s.purgeSubtree(id)...)
	}

	return keys, nil
}

// PurgeExpired удаляет элементы, помеченные удалёнными раньше cutoff.
func (s *ItemStore) PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []uuid.UUID
	for id, item := range s.items {
		if item.DeletedAt != nil && item.DeletedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}

	var keys []string
	for _, id := range expired {
		if _, ok := s.items[id]; !ok {
			continue // уже удалён как часть чужого поддерева
		}
		keys = append(keys, s.purgeSubtree(id)...)
	}

	return keys, nil
}

func (s *ItemStore) purgeSubtree(id uuid.UUID) []string {
	item := s.items[id]

	var keys []string
	for childID := range s.children[id] {
		keys = append(keys, s.purgeSubtree(childID)...)
	}

	if item.ContentKey != nil {
		keys = append(keys, *item.ContentKey)
	}

	s.unlink(parentKey(item), id)
	delete(s.children, id)
	delete(s.items, id)

	return keys
}

// AncestorChain возвращает путь от корня до элемента включительно.
// Цепочка обязана заканчиваться в корне без повторов: повтор id означает
// повреждённое дерево и отдаётся как ErrInternal.
func (s *ItemStore) AncestorChain(ctx context.Context, id uuid.UUID) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.getLive(id)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]struct{}{}
	var chain []domain.Item
	for {
		if _, ok := seen[item.ID]; ok {
			return nil, fmt.Errorf("cycle in parent chain at %s: %w", item.ID, domain.ErrInternal)
		}
		seen[item.ID] = struct{}{}
		chain = append([]domain.Item{*item}, chain...)

		parent := parentKey(item)
		if parent == uuid.Nil {
			return chain, nil
		}
		item, err = s.getLive(parent)
		if err != nil {
			return nil, err
		}
	}
}

func (s *ItemStore) link(parent, child uuid.UUID) {
	set, ok := s.children[parent]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.children[parent] = set
	}
	set[child] = struct{}{}
}

func (s *ItemStore) unlink(parent, child uuid.UUID) {
	if set, ok := s.children[parent]; ok {
		delete(set, child)
	}
}
