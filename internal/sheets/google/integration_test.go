//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_Export(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := New(ctx, Config{
		SpreadsheetID:      spreadsheetID,
		SheetName:          os.Getenv("GOOGLE_SHEET_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	e, err := core.Construct(core.Fields{
		OccurredAt:    time.Now(),
		Platform:      "Integration",
		ProductName:   "Test product",
		OrderQuantity: 1,
		TotalSales:    decimal.NewFromInt(100),
		PlatformFee:   decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatal(err)
	}
	n, err := client.Export(ctx, []core.Entry{e})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if n != 1 {
		t.Errorf("exported %d rows, want 1", n)
	}
}
