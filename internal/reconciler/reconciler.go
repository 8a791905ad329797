// package reconciler computes the per-kind pending work list for a cycle.
//
// Pending is the set difference between the provider's current favorites and
// the download ledger, with the provider's listing order passed through
// unmodified. Items already recorded in the ledger are never resubmitted.
package reconciler

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
)

// Lister is the slice of the catalog client the reconciler needs.
type Lister interface {
	ListFavorites(ctx context.Context, kind models.Kind) ([]models.FavoriteItem, error)
}

// Store is the slice of the ledger the reconciler needs.
type Store interface {
	IsHandled(ctx context.Context, itemID string) (bool, error)
}

// Reconciler filters current favorites through the ledger.
type Reconciler struct {
	lister Lister
	store  Store
	logger *log.Logger
}

// New creates a Reconciler over the given catalog lister and ledger store.
func New(lister Lister, store Store, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{lister: lister, store: store, logger: logger}
}

// Pending lists the current favorites of the given kind and returns the ones
// not yet handled, in listing order. The favorites count is returned alongside
// so cycle accounting sees the full listing even when most items are handled.
//
// A listing failure yields an empty pending list and the error; other kinds
// are unaffected. A ledger failure is returned as-is and aborts the cycle.
func (r *Reconciler) Pending(ctx context.Context, kind models.Kind) ([]models.FavoriteItem, int, error) {
	favorites, err := r.lister.ListFavorites(ctx, kind)
	if err != nil {
		r.logger.Error("failed to list favorites", "kind", kind, "error", err)
		return nil, 0, err
	}

	var pending []models.FavoriteItem
	for _, item := range favorites {
		handled, err := r.store.IsHandled(ctx, item.ID)
		if err != nil {
			return nil, len(favorites), err
		}
		if !handled {
			pending = append(pending, item)
		}
	}

	r.logger.Info("reconciled favorites", "kind", kind, "favorites", len(favorites), "pending", len(pending))
	return pending, len(favorites), nil
}
