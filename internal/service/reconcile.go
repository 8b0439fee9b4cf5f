package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentfaucet/faucetd/internal/domain"
)

type reconcileLedger interface {
	StaleReservations(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
	Release(ctx context.Context, reservation domain.Reservation) error
	Discard(ctx context.Context, reservation domain.Reservation) error
}

type reconcileClaims interface {
	HasClaimForReservation(ctx context.Context, reservationID int64) (bool, error)
}

// ReconcileService sweeps reservations whose owning request died between
// reserve and resolve (process crash, lost DB connection). Anything older
// than the reserve timeout with no matching committed claim is released so
// the allowance is not lost for the rest of the day.
type ReconcileService struct {
	config domain.Config
	ledger reconcileLedger
	claims reconcileClaims
}

func NewReconcileService(
	config domain.Config,
	ledger reconcileLedger,
	claims reconcileClaims,
) *ReconcileService {
	return &ReconcileService{
		config: config,
		ledger: ledger,
		claims: claims,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *ReconcileService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.ReconcileEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.ErrorContext(
					ctx, "Reconciliation sweep failed",
					slog.String("error", err.Error()),
					slog.String("module", "reconcile"),
				)
			}
		}
	}
}

func (s *ReconcileService) Sweep(ctx context.Context) error {

	cutoff := time.Now().Add(-s.config.ReserveTimeout)
	stale, err := s.ledger.StaleReservations(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, reservation := range stale {

		// A committed claim referencing this reservation means the spend
		// landed but the reservation row survived; releasing would hand out
		// allowance that was actually spent. Discard the row so it stops
		// surfacing in every sweep.
		committed, err := s.claims.HasClaimForReservation(ctx, reservation.ID)
		if err != nil {
			return err
		}
		if committed {
			if err := s.ledger.Discard(ctx, reservation); err != nil {
				return err
			}
			slog.WarnContext(
				ctx, "Discarded stale reservation with a committed claim",
				slog.Int64("reservation", reservation.ID),
				slog.String("subject", reservation.Subject),
				slog.String("module", "reconcile"),
			)
			continue
		}

		if err := s.ledger.Release(ctx, reservation); err != nil {
			return err
		}

		slog.InfoContext(
			ctx, "Released stale reservation",
			slog.Int64("reservation", reservation.ID),
			slog.String("subject", reservation.Subject),
			slog.Int64("amountWei", reservation.AmountWei),
			slog.String("module", "reconcile"),
		)
	}

	return nil
}
