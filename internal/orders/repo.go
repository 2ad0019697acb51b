package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/Shahir-47/sarva-backend/pkg/pagination"
)

// Repository encapsulates order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error)
	ListWaitingForDriver(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	ClaimForDriver(ctx context.Context, id, driverID uuid.UUID) (bool, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) error
	MarkDelivered(ctx context.Context, id, driverID uuid.UUID) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, from enums.OrderStatus, reason string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Preload("Hold").
		Preload("Transfers").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "customer_id = ?", customerID)
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "vendor_id = ?", vendorID)
}

func (r *repository) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "driver_id = ?", driverID)
}

func (r *repository) ListWaitingForDriver(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("status = ? AND driver_id IS NULL", enums.OrderStatusWaitingForDriver).
		Order("created_at ASC, id ASC")
	if cursor != nil {
		q = q.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where(query, args...).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus performs a guarded status write. The WHERE clause carries the
// expected current status so a stale caller loses instead of overwriting.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimForDriver is the atomic compare-and-set for the driver claim: it only
// succeeds when the order is still waiting and no driver is set. Both fields
// change in the same statement so two concurrent claims cannot interleave.
func (r *repository) ClaimForDriver(ctx context.Context, id, driverID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND driver_id IS NULL", id, enums.OrderStatusWaitingForDriver).
		Updates(map[string]any{
			"driver_id":  driverID,
			"status":     enums.OrderStatusDriverComingToPickup,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"payment_intent_id": paymentIntentID, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) MarkDelivered(ctx context.Context, id, driverID uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND driver_id = ?", id, enums.OrderStatusDriverDelivering, driverID).
		Updates(map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, from enums.OrderStatus, reason string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":           enums.OrderStatusCancelled,
			"cancelled_at":     now,
			"cancelled_reason": reason,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
