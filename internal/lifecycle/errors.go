package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — у абонента нет записи о назначении.
	ErrNotFound = errors.New("assignment not found")
	// ErrExists — запись уже создана (create поверх существующей).
	ErrExists = errors.New("assignment already exists")
	// ErrConflict — конкурирующий переход уже выполняется; клиент повторяет с backoff.
	ErrConflict = errors.New("conflicting transition in progress")
)

// InvalidTransitionError — операция недопустима из текущего состояния.
// Постоянная ошибка, не повторяется.
type InvalidTransitionError struct {
	Op   Op
	From State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %q", e.Op, e.From)
}

// ExternalError — отказ гейтирующей внешней системы (IPAM).
// Переход не завершён, операция повторяема.
type ExternalError struct {
	System string // "ipam"
	Err    error
}

func (e *ExternalError) Error() string { return fmt.Sprintf("%s: %v", e.System, e.Err) }
func (e *ExternalError) Unwrap() error { return e.Err }

// Retryable — можно ли повторять операцию после этой ошибки.
func Retryable(err error) bool {
	var ext *ExternalError
	return errors.Is(err, ErrConflict) || errors.As(err, &ext)
}
