package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentfaucet/faucetd/internal/infra/database/models"
)

// ClaimRepository serves the read side of the dispensation record: aggregate
// sums, counts, and the idempotency outcome store. Claim rows themselves are
// written by the ledger's Commit so they land in the same transaction as the
// reservation resolution.
type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) CountBySubject(ctx context.Context, subject string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("subject = ?", subject).
		Count(&count).Error
	return count, err
}

func (r *ClaimRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Claim{}).Count(&count).Error
	return count, err
}

// TotalDistributed sums all claim amounts. The sum is computed in the
// database and returned as a decimal string; it can outgrow int64 over the
// faucet's lifetime.
func (r *ClaimRepository) TotalDistributed(ctx context.Context) (string, error) {
	var total string
	err := r.db.WithContext(ctx).Model(&models.Claim{}).
		Select("COALESCE(SUM(amount_wei), 0)::text").
		Scan(&total).Error
	return total, err
}

func (r *ClaimRepository) CountFundedWallets(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Claim{}).
		Distinct("wallet_address").
		Count(&count).Error
	return count, err
}

// GetIdempotent returns the stored outcome for (subject, key), if any.
func (r *ClaimRepository) GetIdempotent(ctx context.Context, subject, key string) (string, bool, error) {
	var row models.IdempotencyKey
	err := r.db.WithContext(ctx).
		Where("subject = ? AND key = ? AND expires_at > ?", subject, key, time.Now()).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Response, true, nil
}

// StoreIdempotent records a claim outcome for replay. First write wins.
func (r *ClaimRepository) StoreIdempotent(ctx context.Context, subject, key, response string, ttl time.Duration) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.IdempotencyKey{
		Subject:   subject,
		Key:       key,
		Response:  response,
		ExpiresAt: time.Now().Add(ttl),
	}).Error
}

// HasClaimForReservation reports whether a committed claim references the
// reservation. The reconciler uses it as a safety check before releasing;
// matching on the reservation id keeps unrelated claims by the same subject
// from shadowing an orphaned reservation.
func (r *ClaimRepository) HasClaimForReservation(ctx context.Context, reservationID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("reservation_id = ?", reservationID).
		Count(&count).Error
	return count > 0, err
}
