package domain

import "errors"

// Виды ошибок ядра. Обработчики сопоставляют их с HTTP-статусами
// через errors.Is, сервисы оборачивают через fmt.Errorf("...: %w", ...).
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrCycle        = errors.New("move would create a cycle")
	ErrAccessDenied = errors.New("access denied")
	ErrInternal     = errors.New("internal error")
)
