package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrStorage              = errors.New("storage error")
	ErrStorageConfiguration = errors.New("storage configuration error")
)

// StorageError reports a failed ledger file operation.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "storage error")
	if op := strings.TrimSpace(e.Op); op != "" {
		parts = append(parts, fmt.Sprintf("%s %s", op, e.Path))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
