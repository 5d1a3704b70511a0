package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/bookstore/internal/transport"
)

var (
	ErrValidation          = errors.New("validation")                     // 400
	ErrProductNotFound     = errors.New("product not found")              // 400
	ErrInsufficientStock   = errors.New("insufficient stock")             // 400
	ErrUnauthorized        = errors.New("unauthorized")                   // 401
	ErrForbidden           = errors.New("forbidden")                      // 403
	ErrNotFound            = errors.New("not found")                      // 404
	ErrConflict            = errors.New("conflict")                       // 409
	ErrIdempotencyMismatch = errors.New("idempotency key reused")         // 409
	ErrCommitTimeout       = errors.New("order commit deadline exceeded") // 503
)

type ValidationError struct {
	Fields []transport.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, transport.FieldError{Field: field, Message: msg})
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }

type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

type InsufficientStockError struct {
	ProductID uuid.UUID
	Title     string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
