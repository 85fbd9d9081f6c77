package cards

import (
	"context"
	"errors"

	"github.com/lnfunding/tipcards/internal/models"
	"gorm.io/gorm"
)

// Repo is the persistence collaborator for cards, sets and bulk withdraws.
type Repo struct {
	db *gorm.DB
}

// NewRepo constructs a Repo.
func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetCard loads a card by hash, returning nil when no record exists.
func (r *Repo) GetCard(ctx context.Context, cardHash string) (*models.Card, error) {
	var card models.Card
	if errFind := r.db.WithContext(ctx).First(&card, "card_hash = ?", cardHash).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &card, nil
}

// SaveCard inserts or updates a card.
func (r *Repo) SaveCard(ctx context.Context, card *models.Card) error {
	return r.db.WithContext(ctx).Save(card).Error
}

// DeleteCard removes a card.
func (r *Repo) DeleteCard(ctx context.Context, card *models.Card) error {
	return r.db.WithContext(ctx).Delete(card).Error
}

// GetSet loads a set by id, returning nil when no record exists.
func (r *Repo) GetSet(ctx context.Context, setID string) (*models.Set, error) {
	var set models.Set
	if errFind := r.db.WithContext(ctx).First(&set, "id = ?", setID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &set, nil
}

// GetSetsByUserID loads all sets owned by a user.
func (r *Repo) GetSetsByUserID(ctx context.Context, userID string) ([]models.Set, error) {
	var sets []models.Set
	if errFind := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created ASC").
		Find(&sets).Error; errFind != nil {
		return nil, errFind
	}
	return sets, nil
}

// SaveSet inserts or updates a set.
func (r *Repo) SaveSet(ctx context.Context, set *models.Set) error {
	return r.db.WithContext(ctx).Save(set).Error
}

// DeleteSet removes a set.
func (r *Repo) DeleteSet(ctx context.Context, set *models.Set) error {
	return r.db.WithContext(ctx).Delete(set).Error
}

// GetBulkWithdraw loads a bulk withdraw by id, returning nil when no record exists.
func (r *Repo) GetBulkWithdraw(ctx context.Context, id string) (*models.BulkWithdraw, error) {
	var bulk models.BulkWithdraw
	if errFind := r.db.WithContext(ctx).First(&bulk, "id = ?", id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &bulk, nil
}

// SaveBulkWithdraw inserts or updates a bulk withdraw.
func (r *Repo) SaveBulkWithdraw(ctx context.Context, bulk *models.BulkWithdraw) error {
	return r.db.WithContext(ctx).Save(bulk).Error
}
