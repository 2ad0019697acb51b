//go:build db
// +build db

package db

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Shahir-47/sarva-backend/pkg/config"
	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
)

func openTestClient(t *testing.T) *Client {
	t.Helper()

	dsn := os.Getenv("SARVA_DB_DSN")
	if dsn == "" {
		t.Skip("SARVA_DB_DSN is not set")
	}

	logg := logger.New(logger.Options{ServiceName: "sarva-test", Output: io.Discard})
	client, err := New(context.Background(), config.DBConfig{DSN: dsn}, logg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// Services recognize unique-constraint races via errors.Is(err,
// gorm.ErrDuplicatedKey), which requires the driver error to be translated.
func TestClientTranslatesDuplicateKey(t *testing.T) {
	client := openTestClient(t)

	tx := client.DB().Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		VendorID:      uuid.New(),
		Status:        enums.OrderStatusPreparing,
		Currency:      enums.CurrencyUSD,
		SubtotalCents: 1000,
		TotalCents:    1000,
	}
	if err := tx.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}

	orderID := order.ID
	hold := func(intentID string) *models.PaymentHold {
		return &models.PaymentHold{
			ID:              uuid.New(),
			OrderID:         orderID,
			PaymentIntentID: intentID,
			AmountCents:     1000,
			Currency:        enums.CurrencyUSD,
			TransferGroup:   orderID.String(),
			Status:          enums.HoldStatusRequiresCapture,
		}
	}

	if err := tx.Create(hold("pi_test_first")).Error; err != nil {
		t.Fatalf("create hold: %v", err)
	}

	err := tx.Create(hold("pi_test_second")).Error
	if err == nil {
		t.Fatal("expected duplicate hold insert to fail")
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
	}
}
