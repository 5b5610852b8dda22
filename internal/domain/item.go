package domain

import (
	"time"

	"github.com/google/uuid"
)

type ItemKind string

const (
	KindFolder ItemKind = "folder"
	KindFile   ItemKind = "file"
)

// Item представляет узел дерева: папку или файл.
// ParentID == nil означает, что элемент лежит в корне.
type Item struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Kind       ItemKind   `json:"kind" db:"kind"`
	Name       string     `json:"name" db:"name"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	OwnerID    string     `json:"owner_id" db:"owner_id"`
	MIMEType   *string    `json:"mime_type,omitempty" db:"mime_type"`
	SizeBytes  int64      `json:"size_bytes" db:"size_bytes"`
	ContentKey *string    `json:"-" db:"content_key"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy  string     `json:"updated_by" db:"updated_by"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (i *Item) IsFolder() bool {
	return i.Kind == KindFolder
}

// Breadcrumb — один элемент пути от корня до текущей папки.
type Breadcrumb struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// FileUpload содержит загружаемый файл: метаданные и содержимое.
// Дальше сервиса содержимое не уходит, в дереве остаётся только ключ.
type FileUpload struct {
	Name     string
	MIMEType string
	ParentID *uuid.UUID
	Data     []byte
}
