package billing

import (
	"time"

	"github.com/prepvidya/PrepVidya/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger provides the persistence operations the resolver needs. Grants are
// append-only; nothing here updates or deletes rows.
type Ledger interface {
	FindPlan(id uint) (*models.Plan, error)
	FindGrant(userID uint, rail Rail, externalTxID string) (*models.Subscription, error)
	// InsertGrant persists a grant. When the storage-level unique key on
	// (user, rail, external transaction id) fires, the existing row is
	// fetched and returned with created=false instead of an error.
	InsertGrant(grant *models.Subscription) (*models.Subscription, bool, error)
	FindActiveGrant(userID uint, now time.Time) (*models.Subscription, error)
}

type gormLedger struct {
	db *gorm.DB
}

// NewLedger creates a subscription ledger backed by GORM.
func NewLedger(db *gorm.DB) Ledger {
	return &gormLedger{db: db}
}

func (l *gormLedger) FindPlan(id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := l.db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (l *gormLedger) FindGrant(userID uint, rail Rail, externalTxID string) (*models.Subscription, error) {
	var grant models.Subscription
	err := l.db.
		Where("user_id = ? AND platform = ? AND payment_id = ?", userID, string(rail), externalTxID).
		First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (l *gormLedger) InsertGrant(grant *models.Subscription) (*models.Subscription, bool, error) {
	// The unique key is the actual serialization point for concurrent
	// submissions of the same receipt; a conflicting insert is treated
	// identically to "grant already existed".
	tx := l.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "platform"},
			{Name: "payment_id"},
		},
		DoNothing: true,
	}).Create(grant)
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Subscription
	if err := l.db.
		Where("user_id = ? AND platform = ? AND payment_id = ?", grant.UserID, grant.Platform, grant.PaymentID).
		First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

func (l *gormLedger) FindActiveGrant(userID uint, now time.Time) (*models.Subscription, error) {
	var grant models.Subscription
	err := l.db.
		Where("user_id = ? AND payment_status = ? AND amount > 0 AND end_date > ?",
			userID, models.PaymentStatusSuccess, now).
		Order("end_date DESC").
		First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}
