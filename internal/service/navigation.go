package service

import (
	"context"
	"fmt"

	"edushare/internal/domain"

	"github.com/google/uuid"
)

// Navigator отслеживает текущую позицию в дереве и строит хлебные
// крошки. Отдельной истории посещений нет: путь каждый раз выводится
// из цепочки предков, поэтому рассинхронизация с деревом невозможна.
//
// Два режима: владельца (scopeRoot == uuid.Nil, доступно всё дерево)
// и расшаренный (scopeRoot закреплён за корнем ссылки, подняться выше
// него нельзя). Режим фиксируется на время жизни навигатора.
type Navigator struct {
	items     ItemStorage
	scopeRoot uuid.UUID
	current   uuid.UUID
}

// NewNavigator создаёт навигатор владельца, начиная с корня дерева.
func NewNavigator(items ItemStorage) *Navigator {
	return &Navigator{items: items}
}

// NewSharedNavigator создаёт навигатор, привязанный к корню share-ссылки.
func NewSharedNavigator(ctx context.Context, items ItemStorage, link *domain.ShareLink) (*Navigator, error) {
	root, err := items.Get(ctx, link.RootItemID)
	if err != nil {
		return nil, fmt.Errorf("share root: %w", err)
	}

	return &Navigator{
		items:     items,
		scopeRoot: root.ID,
		current:   root.ID,
	}, nil
}

func (n *Navigator) Current() uuid.UUID {
	return n.current
}

func (n *Navigator) shared() bool {
	return n.scopeRoot != uuid.Nil
}

// Enter переходит в папку folderID. В режиме владельца uuid.Nil
// возвращает к корню дерева.
func (n *Navigator) Enter(ctx context.Context, folderID uuid.UUID) error {
	if folderID == uuid.Nil {
		if n.shared() {
			return fmt.Errorf("tree root is outside the shared subtree: %w", domain.ErrAccessDenied)
		}
		n.current = uuid.Nil
		return nil
	}

	item, err := n.items.Get(ctx, folderID)
	if err != nil {
		return err
	}
	if !item.IsFolder() {
		return fmt.Errorf("item %s is not a folder: %w", folderID, domain.ErrValidation)
	}

	if n.shared() {
		in, err := n.inScope(ctx, folderID)
		if err != nil {
			return err
		}
		if !in {
			return fmt.Errorf("folder %s is outside the shared subtree: %w", folderID, domain.ErrAccessDenied)
		}
	}

	n.current = folderID
	return nil
}

// Up поднимается к родителю. На границе (корень дерева либо корень
// ссылки) вызов ничего не делает.
func (n *Navigator) Up(ctx context.Context) error {
	if n.current == uuid.Nil || n.current == n.scopeRoot {
		return nil
	}

	item, err := n.items.Get(ctx, n.current)
	if err != nil {
		return err
	}

	if item.ParentID == nil {
		n.current = uuid.Nil
	} else {
		n.current = *item.ParentID
	}

	return nil
}

// Breadcrumb возвращает путь от корня (в расшаренном режиме — от корня
// ссылки) до текущей папки.
func (n *Navigator) Breadcrumb(ctx context.Context) ([]domain.Breadcrumb, error) {
	if n.current == uuid.Nil {
		return []domain.Breadcrumb{}, nil
	}

	chain, err := n.items.AncestorChain(ctx, n.current)
	if err != nil {
		return nil, fmt.Errorf("failed to get ancestor chain: %w", err)
	}

	if n.shared() {
		// Отбрасываем предков выше корня ссылки
		for i, item := range chain {
			if item.ID == n.scopeRoot {
				chain = chain[i:]
				break
			}
		}
	}

	crumbs := make([]domain.Breadcrumb, 0, len(chain))
	for _, item := range chain {
		crumbs = append(crumbs, domain.Breadcrumb{ID: item.ID, Name: item.Name})
	}

	return crumbs, nil
}

func (n *Navigator) inScope(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == n.scopeRoot {
		return true, nil
	}

	chain, err := n.items.AncestorChain(ctx, id)
	if err != nil {
		return false, err
	}
	for _, item := range chain {
		if item.ID == n.scopeRoot {
			return true, nil
		}
	}

	return false, nil
}
