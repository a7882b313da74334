package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Outcome is the reconciler's decision for one sanitized record.
type Outcome string

const (
	OutcomeInserted        Outcome = "inserted"
	OutcomeUpdated         Outcome = "updated"
	OutcomeSkippedConflict Outcome = "skipped_conflict"
)

// Reconciler writes sanitized records with insert-or-update semantics
// keyed on customer_id.
type Reconciler struct {
	store PlaceStore
	log   *zap.Logger
}

// New creates a Reconciler.
func New(store PlaceStore) *Reconciler {
	return &Reconciler{
		store: store,
		log:   zap.L().With(zap.String("component", "reconciler")),
	}
}

// Reconcile persists one sanitized record. A place id already owned by a
// different customer yields OutcomeSkippedConflict with no write; that is
// a skip, not a failure. Store errors come back wrapped with their
// classified category so callers can report them without re-parsing.
func (r *Reconciler) Reconcile(ctx context.Context, sanitized map[string]any) (Outcome, error) {
	customerID, ok := sanitized["customer_id"].(string)
	if !ok || customerID == "" {
		return "", eris.New("reconcile: sanitized record missing customer_id")
	}
	placeID, ok := sanitized["place_id"].(string)
	if !ok || placeID == "" {
		return "", eris.New("reconcile: sanitized record missing place_id")
	}

	owned, err := r.store.PlaceIDOwnedByOther(ctx, placeID, customerID)
	if err != nil {
		return "", eris.Wrapf(err, "reconcile: conflict pre-check (%s)", Classify(err))
	}
	if owned {
		r.log.Info("place id already attached to another customer, skipping",
			zap.String("place_id", placeID),
			zap.String("customer_id", customerID))
		return OutcomeSkippedConflict, nil
	}

	exists, err := r.store.ExistsByCustomerID(ctx, customerID)
	if err != nil {
		return "", eris.Wrapf(err, "reconcile: existence check (%s)", Classify(err))
	}

	if exists {
		if err := r.store.Update(ctx, customerID, sanitized); err != nil {
			return "", eris.Wrapf(err, "reconcile: update failed (%s): %s", Classify(err), Describe(err))
		}
		return OutcomeUpdated, nil
	}

	if err := r.store.Insert(ctx, sanitized); err != nil {
		return "", eris.Wrapf(err, "reconcile: insert failed (%s): %s", Classify(err), Describe(err))
	}
	return OutcomeInserted, nil
}
