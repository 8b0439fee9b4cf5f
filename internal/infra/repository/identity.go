package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/internal/infra/database/models"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Create inserts the identity if its subject is new; an existing row wins and
// is returned unchanged, making registration idempotent.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {

	row := models.Identity{
		Subject:         identity.Subject,
		Username:        identity.Username,
		AvatarURL:       identity.AvatarURL,
		ReputationScore: identity.Score,
		Tier:            identity.Tier,
		DailyLimitWei:   identity.DailyLimitWei,
		AgentTokenID:    identity.AgentTokenID,
		TokenGeneration: 1,
		Token:           identity.Token,
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return domain.Identity{}, err
	}

	return r.Get(ctx, identity.Subject)
}

func (r *IdentityRepository) Get(ctx context.Context, subject string) (domain.Identity, error) {
	var row models.Identity
	err := r.db.WithContext(ctx).
		Where("subject = ?", subject).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return fromModel(row), nil
}

// GetByUsername resolves an identity by its provider username, for the public
// agent document lookup.
func (r *IdentityRepository) GetByUsername(ctx context.Context, username string) (domain.Identity, error) {
	var row models.Identity
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return fromModel(row), nil
}

// RotateToken bumps the token generation and stores the freshly signed token,
// logically superseding all previously issued tokens. Returns the new
// generation.
func (r *IdentityRepository) RotateToken(ctx context.Context, subject string, tok string) (int64, error) {
	var generation int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Identity
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subject = ?", subject).
			Take(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.NotFoundError{Resource: "identity"}
			}
			return err
		}

		generation = row.TokenGeneration + 1
		return tx.Model(&models.Identity{}).
			Where("subject = ?", subject).
			Updates(map[string]any{
				"token_generation": generation,
				"token":            tok,
			}).Error
	})
	return generation, err
}

// SetToken replaces the stored token without bumping the generation, used
// when the snapshot changed but older tokens stay acceptable (agent mint).
func (r *IdentityRepository) SetToken(ctx context.Context, subject string, tok string) error {
	return r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("subject = ?", subject).
		Update("token", tok).Error
}

func (r *IdentityRepository) SetAgentTokenID(ctx context.Context, subject string, agentTokenID int64) error {
	return r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("subject = ?", subject).
		Update("agent_token_id", agentTokenID).Error
}

func (r *IdentityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Identity{}).Count(&count).Error
	return count, err
}

func fromModel(row models.Identity) domain.Identity {
	return domain.Identity{
		Subject:         row.Subject,
		Username:        row.Username,
		AvatarURL:       row.AvatarURL,
		Score:           row.ReputationScore,
		Tier:            row.Tier,
		DailyLimitWei:   row.DailyLimitWei,
		AgentTokenID:    row.AgentTokenID,
		TokenGeneration: row.TokenGeneration,
		Token:           row.Token,
		CreatedAt:       row.CDate,
	}
}
