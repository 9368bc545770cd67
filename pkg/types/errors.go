package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidRank  = errors.New("rank must be >= 1")
	ErrEmptyContent = errors.New("content cannot be empty")
)
