package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/internal/infra/database/models"
)

// LedgerRepository owns the per (subject, UTC day) usage counters. The
// reserve/commit/release discipline guarantees that at most the daily quota
// is ever durably committed, even under concurrent claims for one subject:
// the increment happens as a single conditional UPDATE at the database, not
// under any in-process lock, so multiple server instances stay correct.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Reserve atomically adds amountWei to the day's counter if the result stays
// within quotaWei, and persists a reservation row for crash recovery. On
// exhausted quota it returns domain.RateLimitError carrying quota, claimed
// and remaining.
func (r *LedgerRepository) Reserve(ctx context.Context, subject, day string, amountWei, quotaWei int64) (domain.Reservation, error) {

	var reservation models.Reservation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		// Day rows are created lazily; a fresh UTC day starts from zero.
		if err := tx.Clauses(clause.OnConflict{
			DoNothing: true,
		}).Create(&models.DailyUsage{
			Subject: subject,
			Day:     day,
		}).Error; err != nil {
			return err
		}

		res := tx.Model(&models.DailyUsage{}).
			Where("subject = ? AND day = ? AND claimed_wei + ? <= ?", subject, day, amountWei, quotaWei).
			Update("claimed_wei", gorm.Expr("claimed_wei + ?", amountWei))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			var usage models.DailyUsage
			if err := tx.Where("subject = ? AND day = ?", subject, day).Take(&usage).Error; err != nil {
				return err
			}
			remaining := quotaWei - usage.ClaimedWei
			if remaining < 0 {
				remaining = 0
			}
			return domain.RateLimitError{
				QuotaWei:     quotaWei,
				ClaimedWei:   usage.ClaimedWei,
				RemainingWei: remaining,
			}
		}

		reservation = models.Reservation{
			Subject:   subject,
			Day:       day,
			AmountWei: amountWei,
			CDate:     time.Now().UTC(),
		}
		return tx.Create(&reservation).Error
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	return domain.Reservation{
		ID:        reservation.ID,
		Subject:   reservation.Subject,
		Day:       reservation.Day,
		AmountWei: reservation.AmountWei,
		CreatedAt: reservation.CDate,
	}, nil
}

// Commit finalizes a reservation: the counter increment becomes permanent,
// the claim record is written (unique on tx hash, so settlement-side retries
// cannot be double-recorded) and the reservation row is removed.
func (r *LedgerRepository) Commit(ctx context.Context, reservation domain.Reservation, claim domain.Claim) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}},
			DoNothing: true,
		}).Create(&models.Claim{
			ID:            claim.ID,
			Subject:       claim.Subject,
			WalletAddress: claim.WalletAddress,
			AmountWei:     claim.AmountWei,
			TxHash:        claim.TxHash,
			AgentTokenID:  claim.AgentTokenID,
			ReservationID: reservation.ID,
		}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Reservation{}, "id = ?", reservation.ID).Error
	})
}

// Release returns a reservation's amount to the day's allowance. Releasing a
// reservation that was already resolved is a no-op, so the reconciler and a
// slow request cannot double-release.
func (r *LedgerRepository) Release(ctx context.Context, reservation domain.Reservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		res := tx.Delete(&models.Reservation{}, "id = ?", reservation.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		return tx.Model(&models.DailyUsage{}).
			Where("subject = ? AND day = ? AND claimed_wei >= ?", reservation.Subject, reservation.Day, reservation.AmountWei).
			Update("claimed_wei", gorm.Expr("claimed_wei - ?", reservation.AmountWei)).Error
	})
}

// Discard removes a reservation row without returning its amount to the
// day's allowance. Used when the reservation's spend is known to have
// landed (a committed claim references it) but the row survived.
func (r *LedgerRepository) Discard(ctx context.Context, reservation domain.Reservation) error {
	return r.db.WithContext(ctx).Delete(&models.Reservation{}, "id = ?", reservation.ID).Error
}

// ClaimedOn reads the day's cumulative counter. Absent rows read as zero.
func (r *LedgerRepository) ClaimedOn(ctx context.Context, subject, day string) (int64, error) {
	var usage models.DailyUsage
	err := r.db.WithContext(ctx).
		Where("subject = ? AND day = ?", subject, day).
		Take(&usage).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return usage.ClaimedWei, nil
}

// StaleReservations lists reservations opened before the cutoff that were
// never committed or released, for the reconciliation sweep.
func (r *LedgerRepository) StaleReservations(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("c_date < ?", cutoff).
		Order("c_date asc").
		Limit(100).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	reservations := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		reservations = append(reservations, domain.Reservation{
			ID:        row.ID,
			Subject:   row.Subject,
			Day:       row.Day,
			AmountWei: row.AmountWei,
			CreatedAt: row.CDate,
		})
	}
	return reservations, nil
}
