package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"edushare/internal/domain"
)

// ShareStore хранит ссылки доступа в памяти, токен -> ссылка.
type ShareStore struct {
	mu      sync.RWMutex
	byToken map[string]*domain.ShareLink
}

func NewShareStore() *ShareStore {
	return &ShareStore{byToken: make(map[string]*domain.ShareLink)}
}

func (s *ShareStore) Create(ctx context.Context, link *domain.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[link.Token]; ok {
		return fmt.Errorf("token already exists: %w", domain.ErrInternal)
	}

	link.CreatedAt = time.Now()
	copied := *link
	s.byToken[copied.Token] = &copied

	return nil
}

// GetByToken возвращает ссылку, если она существует и не истекла.
func (s *ShareStore) GetByToken(ctx context.Context, token string) (*domain.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.byToken[token]
	if !ok || link.Expired(time.Now()) {
		return nil, fmt.Errorf("share link: %w", domain.ErrNotFound)
	}

	copied := *link
	return &copied, nil
}

func (s *ShareStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[token]; !ok {
		return fmt.Errorf("share link: %w", domain.ErrNotFound)
	}
	delete(s.byToken, token)

	return nil
}

func (s *ShareStore) DeleteExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for token, link := range s.byToken {
		if link.Expired(now) {
			delete(s.byToken, token)
		}
	}

	return nil
}
