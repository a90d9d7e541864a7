package domain

import (
	"errors"
	"fmt"
)

// Store-level sentinel conditions surfaced by the seen-store.
var (
	ErrDuplicate = errors.New("seen record already exists")
	ErrNotFound  = errors.New("seen record not found")
)

// SourceError marks a failure listing one configured source. The remaining
// sources are still processed.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// FetchError marks an exhausted content fetch for one candidate. The candidate
// is not finalized and will reappear on the next run.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ScoreError marks an exhausted scoring attempt-sequence, whether the language
// model was unreachable or its replies never matched the grammar.
type ScoreError struct {
	URL string
	Err error
}

func (e *ScoreError) Error() string {
	return fmt.Sprintf("score %s: %v", e.URL, e.Err)
}

func (e *ScoreError) Unwrap() error { return e.Err }

// NotifyError marks an exhausted notification send for an already-scored
// article. The article stays recorded with notified=false.
type NotifyError struct {
	URL string
	Err error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.URL, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// StorageError marks a seen-store read or write failure at a given stage.
type StorageError struct {
	Stage string
	URL   string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
