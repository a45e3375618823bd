package shared

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Request errors
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrNotFound     = fmt.Errorf("not found")

	// Store errors
	ErrTransientStore = fmt.Errorf("datastore temporarily unavailable")
	ErrUnexpected     = fmt.Errorf("unexpected failure")

	// Playlist source errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrSourceRequest    = fmt.Errorf("playlist source request failed")

	// CLI errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// Classify maps a datastore error onto the error taxonomy.
//
// Busy and locked SQLite errors become [ErrTransientStore] so callers can retry the whole operation.
// Errors already carrying a taxonomy sentinel are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, known := range []error{ErrUnauthorized, ErrInvalidInput, ErrNotFound, ErrTransientStore, ErrUnexpected} {
		if errors.Is(err, known) {
			return err
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrTransientStore, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return fmt.Errorf("%w: %v", ErrUnexpected, err)
}

// IsRetryable reports whether repeating the operation may succeed.
func IsRetryable(err error) bool {
	return errors.Is(Classify(err), ErrTransientStore)
}
