package basket

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
)

// Service exposes per-vendor basket operations for one customer.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (models.BasketDocument, error)
	Upsert(ctx context.Context, customerID uuid.UUID, line models.BasketLine) (models.BasketDocument, error)
	Decrement(ctx context.Context, customerID, vendorID, itemID uuid.UUID) (models.BasketDocument, error)
	RemoveVendor(ctx context.Context, customerID, vendorID uuid.UUID) (models.BasketDocument, error)
	ClearAll(ctx context.Context, customerID uuid.UUID) error
	CountFor(ctx context.Context, customerID, vendorID, itemID uuid.UUID) (int, error)
	TotalCount(ctx context.Context, customerID uuid.UUID) (int, error)
	TotalPriceCents(ctx context.Context, customerID uuid.UUID) (int, error)
	VendorPriceCents(ctx context.Context, customerID, vendorID uuid.UUID) (int, error)
	Subscribe(listener Listener) uuid.UUID
	Unsubscribe(token uuid.UUID)
}

type service struct {
	store    Store
	logg     *logger.Logger
	notifier *notifier
}

// NewService builds a basket service backed by the provided store.
func NewService(store Store, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("basket store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		store:    store,
		logg:     logg,
		notifier: newNotifier(),
	}, nil
}

// Get returns the basket document for the customer.
func (s *service) Get(ctx context.Context, customerID uuid.UUID) (models.BasketDocument, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	return s.load(ctx, customerID)
}

// Upsert sets the quantity for one item. Quantity zero removes the item, and
// a quantity above the known stock is rejected as a no-op so the stored
// basket never exceeds what the vendor can fulfil.
func (s *service) Upsert(ctx context.Context, customerID uuid.UUID, line models.BasketLine) (models.BasketDocument, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if line.ItemID == uuid.Nil || line.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id and vendor id are required")
	}
	if line.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}
	if line.UnitPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative")
	}

	doc, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if line.StockUnits != nil && line.Quantity > *line.StockUnits {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"item_id":     line.ItemID,
			"vendor_id":   line.VendorID,
			"quantity":    line.Quantity,
			"stock_units": *line.StockUnits,
		}), "rejected basket upsert above stock")
		return doc, nil
	}

	lines := doc[line.VendorID]
	idx := indexOf(lines, line.ItemID)
	switch {
	case line.Quantity == 0 && idx >= 0:
		lines = append(lines[:idx], lines[idx+1:]...)
	case line.Quantity == 0:
		// removing an absent item is a no-op
	case idx >= 0:
		lines[idx] = line
	default:
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		delete(doc, line.VendorID)
	} else {
		doc[line.VendorID] = lines
	}

	if err := s.persist(ctx, customerID, line.VendorID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decrement lowers the item quantity by one, removing it at zero.
func (s *service) Decrement(ctx context.Context, customerID, vendorID, itemID uuid.UUID) (models.BasketDocument, error) {
	if customerID == uuid.Nil || vendorID == uuid.Nil || itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer, vendor and item ids are required")
	}

	doc, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	lines := doc[vendorID]
	idx := indexOf(lines, itemID)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in basket")
	}

	lines[idx].Quantity--
	if lines[idx].Quantity <= 0 {
		lines = append(lines[:idx], lines[idx+1:]...)
	}
	if len(lines) == 0 {
		delete(doc, vendorID)
	} else {
		doc[vendorID] = lines
	}

	if err := s.persist(ctx, customerID, vendorID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveVendor drops the vendor's entire basket.
func (s *service) RemoveVendor(ctx context.Context, customerID, vendorID uuid.UUID) (models.BasketDocument, error) {
	if customerID == uuid.Nil || vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and vendor ids are required")
	}

	doc, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	delete(doc, vendorID)

	if err := s.persist(ctx, customerID, vendorID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ClearAll empties the customer's basket across all vendors.
func (s *service) ClearAll(ctx context.Context, customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	return s.persist(ctx, customerID, uuid.Nil, models.BasketDocument{})
}

// CountFor returns the quantity held for one item.
func (s *service) CountFor(ctx context.Context, customerID, vendorID, itemID uuid.UUID) (int, error) {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return 0, err
	}
	idx := indexOf(doc[vendorID], itemID)
	if idx < 0 {
		return 0, nil
	}
	return doc[vendorID][idx].Quantity, nil
}

// TotalCount returns the total units across all vendors.
func (s *service) TotalCount(ctx context.Context, customerID uuid.UUID) (int, error) {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return totalCount(doc), nil
}

// TotalPriceCents sums quantity times unit price across all vendors.
func (s *service) TotalPriceCents(ctx context.Context, customerID uuid.UUID) (int, error) {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return 0, err
	}
	total := 0
	for vendorID := range doc {
		total += vendorPrice(doc, vendorID)
	}
	return total, nil
}

// VendorPriceCents sums quantity times unit price for one vendor.
func (s *service) VendorPriceCents(ctx context.Context, customerID, vendorID uuid.UUID) (int, error) {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return vendorPrice(doc, vendorID), nil
}

// Subscribe registers a listener for basket changes and returns its token.
func (s *service) Subscribe(listener Listener) uuid.UUID {
	return s.notifier.subscribe(listener)
}

// Unsubscribe removes a previously registered listener.
func (s *service) Unsubscribe(token uuid.UUID) {
	s.notifier.unsubscribe(token)
}

func (s *service) load(ctx context.Context, customerID uuid.UUID) (models.BasketDocument, error) {
	doc, err := s.store.Load(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket")
	}
	if doc == nil {
		doc = models.BasketDocument{}
	}
	return doc, nil
}

func (s *service) persist(ctx context.Context, customerID, vendorID uuid.UUID, doc models.BasketDocument) error {
	if err := s.store.Save(ctx, customerID, doc); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save basket")
	}
	s.notifier.publish(Change{
		CustomerID: customerID,
		VendorID:   vendorID,
		TotalCount: totalCount(doc),
	})
	return nil
}

func indexOf(lines []models.BasketLine, itemID uuid.UUID) int {
	for i, line := range lines {
		if line.ItemID == itemID {
			return i
		}
	}
	return -1
}

func totalCount(doc models.BasketDocument) int {
	total := 0
	for _, lines := range doc {
		for _, line := range lines {
			total += line.Quantity
		}
	}
	return total
}

func vendorPrice(doc models.BasketDocument, vendorID uuid.UUID) int {
	total := 0
	for _, line := range doc[vendorID] {
		total += line.Quantity * line.UnitPriceCents
	}
	return total
}
