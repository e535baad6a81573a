// Package apperr defines the error kinds returned by the order and point engines.
// The HTTP layer maps each kind to a fixed status code.
package apperr

import "fmt"

// Issue is one invalid input field.
type Issue struct {
	Path string `json:"path"`
	Msg  string `json:"msg"`
}

// ValidationError reports malformed input. It is raised before any write happens.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Issues[0].Path, e.Issues[0].Msg)
}

// Validation builds a ValidationError with a single issue.
func Validation(path, msg string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Path: path, Msg: msg}}}
}

// NotFoundError reports a referenced resource that is absent or soft-deleted.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// NotFound builds a NotFoundError.
func NotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError reports a line whose quantity exceeds the product stock.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q (id %d): requested %d, available %d",
		e.Name, e.ProductID, e.Requested, e.Available)
}

// InsufficientPointsError reports a transfer larger than the sender balance.
type InsufficientPointsError struct {
	UserID    int64
	Balance   int64
	Requested int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, requested %d", e.Balance, e.Requested)
}

// ConflictError reports a write rejected by the store because concurrent work
// changed the row after validation (stock consumed by another order).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// Conflict builds a ConflictError.
func Conflict(format string, args ...any) *ConflictError {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}
