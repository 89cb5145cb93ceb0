package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidChunkID  = errors.New("invalid chunk ID")
	ErrMissingFileInfo = errors.New("source file is required")
	ErrUnknownKind     = errors.New("unknown chunk kind")
	ErrInvalidScore    = errors.New("similarity score must be between -1 and 1")
	ErrEmptyContent    = errors.New("content cannot be empty")
)
