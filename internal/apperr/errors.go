package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrEmptyCorpus        = errors.New("empty corpus")
	ErrCorpusMissing      = errors.New("corpus directory missing")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnknownCapability  = errors.New("unknown capability")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)
