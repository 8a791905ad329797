package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
)

// Service defines the interface for streaming catalog providers that can list
// account favorites and produce downloadable artifacts.
type Service interface {
	// Authenticate performs credential authentication with the provider.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context) error

	// ListFavorites retrieves all favorites of the given kind for the
	// authenticated account, in the provider's listing order.
	ListFavorites(ctx context.Context, kind models.Kind) ([]models.FavoriteItem, error)

	// FetchArtifact downloads the item at the given quality level into local
	// storage and reports what was written.
	FetchArtifact(ctx context.Context, item models.FavoriteItem, quality int) (*ArtifactResult, error)

	// Name returns the name of the provider (e.g., "Qobuz")
	Name() string
}

// ArtifactResult describes what a successful fetch wrote to storage.
type ArtifactResult struct {
	Path         string // Root path of the written artifact
	Files        int    // Number of files written (albums and artists span several)
	BytesWritten int64  // Total bytes written to storage
}

// TransientError marks a download failure worth retrying within the cycle:
// timeouts, rate limits, temporary provider unavailability.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a terminal download failure: the item is recorded as
// failed-permanent and not retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is classified as terminal.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
