package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
)

// Repository persists checkout sessions. The partial unique index on active
// sessions is what enforces the single-owner rule, so Create must surface
// duplicate-key errors untranslated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.CheckoutSession) (*models.CheckoutSession, error)
	FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.CheckoutSession, error)
	AttachOrder(ctx context.Context, id, orderID uuid.UUID, paymentIntentID string) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkAbandoned(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout session repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.CheckoutSession) (*models.CheckoutSession, error) {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repository) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, enums.CheckoutSessionStatusActive).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) AttachOrder(ctx context.Context, id, orderID uuid.UUID, paymentIntentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"order_id":          orderID,
			"payment_intent_id": paymentIntentID,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, enums.CheckoutSessionStatusCompleted)
}

func (r *repository) MarkAbandoned(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, enums.CheckoutSessionStatusAbandoned)
}

func (r *repository) setStatus(ctx context.Context, id uuid.UUID, status enums.CheckoutSessionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND status = ?", id, enums.CheckoutSessionStatusActive).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}
