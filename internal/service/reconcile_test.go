package service

import (
	"context"
	"testing"
	"time"

	"github.com/agentfaucet/faucetd/internal/domain"
)

type stubLedger struct {
	stale     []domain.Reservation
	released  []int64
	discarded []int64
}

func (m *stubLedger) StaleReservations(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range m.stale {
		if r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *stubLedger) Release(ctx context.Context, reservation domain.Reservation) error {
	m.released = append(m.released, reservation.ID)
	return nil
}

func (m *stubLedger) Discard(ctx context.Context, reservation domain.Reservation) error {
	m.discarded = append(m.discarded, reservation.ID)
	return nil
}

type stubClaims struct {
	committed map[int64]bool // keyed by reservation id
}

func (m *stubClaims) HasClaimForReservation(ctx context.Context, reservationID int64) (bool, error) {
	return m.committed[reservationID], nil
}

func TestSweepReleasesOnlyStaleUncommitted(t *testing.T) {
	now := time.Now()
	conf := domain.Config{
		ReserveTimeout: 15 * time.Minute,
		ReconcileEvery: time.Minute,
	}

	ledger := &stubLedger{
		stale: []domain.Reservation{
			{ID: 1, Subject: "gh:a", AmountWei: 100, CreatedAt: now.Add(-20 * time.Minute)},
			{ID: 2, Subject: "gh:b", AmountWei: 200, CreatedAt: now.Add(-time.Minute)},
			{ID: 3, Subject: "gh:c", AmountWei: 300, CreatedAt: now.Add(-30 * time.Minute)},
		},
	}
	claims := &stubClaims{committed: map[int64]bool{3: true}}

	svc := NewReconcileService(conf, ledger, claims)
	if err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	// 1 is stale and unresolved: released. 2 is too fresh. 3 has a committed
	// claim behind it: never released, but the row is discarded so it stops
	// showing up in later sweeps.
	if len(ledger.released) != 1 || ledger.released[0] != 1 {
		t.Fatalf("unexpected releases: %v", ledger.released)
	}
	if len(ledger.discarded) != 1 || ledger.discarded[0] != 3 {
		t.Fatalf("unexpected discards: %v", ledger.discarded)
	}
}

func TestSweepReleasesDespiteUnrelatedClaims(t *testing.T) {
	now := time.Now()
	conf := domain.Config{
		ReserveTimeout: 15 * time.Minute,
		ReconcileEvery: time.Minute,
	}

	// The subject has a committed claim for the same amount, but it belongs to
	// a different reservation. The orphaned one must still be released.
	ledger := &stubLedger{
		stale: []domain.Reservation{
			{ID: 7, Subject: "gh:a", AmountWei: 100, CreatedAt: now.Add(-20 * time.Minute)},
		},
	}
	claims := &stubClaims{committed: map[int64]bool{8: true}}

	svc := NewReconcileService(conf, ledger, claims)
	if err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(ledger.released) != 1 || ledger.released[0] != 7 {
		t.Fatalf("unexpected releases: %v", ledger.released)
	}
	if len(ledger.discarded) != 0 {
		t.Fatalf("unexpected discards: %v", ledger.discarded)
	}
}
