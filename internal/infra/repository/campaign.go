package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/internal/infra/database/models"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// RecordCampaign stores one verified sponsor deposit. A deposit tx hash can
// only be recorded once; replays surface as domain.DuplicateError.
func (r *CampaignRepository) RecordCampaign(ctx context.Context, campaign domain.Campaign) error {
	err := r.db.WithContext(ctx).Create(&models.Campaign{
		SponsorAddress: strings.ToLower(campaign.SponsorAddress),
		Name:           campaign.Name,
		DepositTxHash:  campaign.DepositTxHash,
		AmountWei:      campaign.AmountWei,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.DuplicateError{Resource: "deposit"}
	}
	return err
}

func (r *CampaignRepository) ListBySponsor(ctx context.Context, sponsorAddress string) ([]domain.Campaign, error) {
	var rows []models.Campaign
	err := r.db.WithContext(ctx).
		Where("sponsor_address = ?", strings.ToLower(sponsorAddress)).
		Order("c_date desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(rows))
	for _, row := range rows {
		campaigns = append(campaigns, domain.Campaign{
			ID:             row.ID,
			SponsorAddress: row.SponsorAddress,
			Name:           row.Name,
			DepositTxHash:  row.DepositTxHash,
			AmountWei:      row.AmountWei,
			CreatedAt:      row.CDate,
		})
	}
	return campaigns, nil
}

func (r *CampaignRepository) TotalSponsored(ctx context.Context) (string, error) {
	var total string
	err := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Select("COALESCE(SUM(amount_wei), 0)::text").
		Scan(&total).Error
	return total, err
}

// RecordReturn stores one verified token return, unique on tx hash.
func (r *CampaignRepository) RecordReturn(ctx context.Context, ret domain.TokenReturn) error {
	err := r.db.WithContext(ctx).Create(&models.TokenReturn{
		FromAddress: strings.ToLower(ret.FromAddress),
		TxHash:      ret.TxHash,
		AmountWei:   ret.AmountWei,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.DuplicateError{Resource: "return"}
	}
	return err
}

func (r *CampaignRepository) TotalReturned(ctx context.Context) (string, error) {
	var total string
	err := r.db.WithContext(ctx).Model(&models.TokenReturn{}).
		Select("COALESCE(SUM(amount_wei), 0)::text").
		Scan(&total).Error
	return total, err
}
