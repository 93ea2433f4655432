package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the expected, non-fatal cases. Batch operations
// treat ErrUnsupportedFormat as skip-and-continue; everything else in
// this file is fatal to the item that triggered it but never to its
// siblings.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// EmbeddingError wraps a failed embedding call. The index never
// substitutes a zero vector for a failed embedding.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexWriteError wraps a failed upsert or delete against the vector
// index.
type IndexWriteError struct {
	Op  string
	Err error
}

func (e *IndexWriteError) Error() string { return fmt.Sprintf("index %s: %v", e.Op, e.Err) }
func (e *IndexWriteError) Unwrap() error { return e.Err }

// IndexQueryError wraps a failed similarity search.
type IndexQueryError struct {
	Err error
}

func (e *IndexQueryError) Error() string { return fmt.Sprintf("index query: %v", e.Err) }
func (e *IndexQueryError) Unwrap() error { return e.Err }

// GenerationError wraps a failed language model call, batch or
// mid-stream.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }
