package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleEditor
}

// ShareLink — капабилити-ссылка на поддерево.
// Получатель владеет только токеном, всё остальное резолвится по нему.
type ShareLink struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Token      string     `json:"token" db:"token"`
	RootItemID uuid.UUID  `json:"root_item_id" db:"root_item_id"`
	Role       Role       `json:"role" db:"role"`
	CreatedBy  string     `json:"created_by" db:"created_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
