package repository

import "errors"

// Ошибки хранилища аналитики; драйверы (pgx, mongo) приводятся к ним.
var (
	ErrNotFound      = errors.New("analytics store: record not found")
	ErrAlreadyExists = errors.New("analytics store: record already exists")
	// ErrConflict: условное обновление не нашло строку в ожидаемом состоянии
	ErrConflict     = errors.New("analytics store: record changed concurrently")
	ErrInvalidInput = errors.New("analytics store: invalid input")
)
