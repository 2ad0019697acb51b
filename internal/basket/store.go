package basket

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
)

// Store abstracts basket document persistence so tests can swap the database
// for an in-memory map.
type Store interface {
	Load(ctx context.Context, customerID uuid.UUID) (models.BasketDocument, error)
	Save(ctx context.Context, customerID uuid.UUID, doc models.BasketDocument) error
}

// GormStore persists the basket document as a single jsonb row per customer.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore binds the store to the provided GORM handle.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("gorm handle required")
	}
	return &GormStore{db: db}, nil
}

// Load returns the customer's basket document, or an empty document when the
// customer has never written one.
func (s *GormStore) Load(ctx context.Context, customerID uuid.UUID) (models.BasketDocument, error) {
	var record models.BasketRecord
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.BasketDocument{}, nil
		}
		return nil, err
	}
	if record.Document == nil {
		return models.BasketDocument{}, nil
	}
	return record.Document, nil
}

// Save writes the whole document in one statement so readers never observe a
// partially updated vendor mapping.
func (s *GormStore) Save(ctx context.Context, customerID uuid.UUID, doc models.BasketDocument) error {
	record := models.BasketRecord{
		CustomerID: customerID,
		Document:   doc,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
		}).
		Create(&record).Error
}

// MemoryStore keeps basket documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]models.BasketDocument
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[uuid.UUID]models.BasketDocument)}
}

// Load returns a deep copy so callers cannot mutate stored state.
func (s *MemoryStore) Load(ctx context.Context, customerID uuid.UUID) (models.BasketDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[customerID]
	if !ok {
		return models.BasketDocument{}, nil
	}
	return copyDocument(doc), nil
}

// Save replaces the customer's document.
func (s *MemoryStore) Save(ctx context.Context, customerID uuid.UUID, doc models.BasketDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[customerID] = copyDocument(doc)
	return nil
}

func copyDocument(doc models.BasketDocument) models.BasketDocument {
	out := make(models.BasketDocument, len(doc))
	for vendorID, lines := range doc {
		copied := make([]models.BasketLine, len(lines))
		copy(copied, lines)
		out[vendorID] = copied
	}
	return out
}
