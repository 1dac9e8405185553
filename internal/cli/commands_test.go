package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting/internal/amqp"
	"accounting/internal/config"
	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/sheets"
	"accounting/internal/sheets/xlsx"
)

func TestEntryFlagsApplyRequired(t *testing.T) {
	flags := entryFlags{platform: "Shopee", product: "Widget", quantity: "2", sales: "1000"}
	_, err := flags.apply(core.Fields{}, true)
	require.ErrorIs(t, err, errRequired)
	assert.Contains(t, err.Error(), "-fee")

	flags.fee = "100"
	flags.date = "2023-08-15 14:30"
	flags.invoice = "是"
	f, err := flags.apply(core.Fields{}, true)
	require.NoError(t, err)
	e, err := core.Construct(f)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 8, 15, 14, 30, 0, 0, time.Local), e.OccurredAt)
	assert.True(t, e.InvoiceRequired)
	assert.True(t, e.Taxable)
	assert.True(t, e.ActualIncome().Equal(decimal.NewFromInt(900)))
}

func TestEntryFlagsApplyOverlay(t *testing.T) {
	base := testEntry(t, "Shopee").Fields()
	f, err := (&entryFlags{fee: "20", taxable: "n"}).apply(base, false)
	require.NoError(t, err)

	assert.Equal(t, "Shopee", f.Platform)
	assert.True(t, f.PlatformFee.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, f.Taxable)
	assert.False(t, *f.Taxable)
}

func TestEntryFlagsApplyRejects(t *testing.T) {
	tests := []struct {
		name  string
		flags entryFlags
		want  error
	}{
		{"quantity", entryFlags{quantity: "1.5"}, core.ErrInvalidQuantity},
		{"sales", entryFlags{sales: "1,000"}, core.ErrInvalidAmount},
		{"fee", entryFlags{fee: "-1"}, core.ErrInvalidAmount},
		{"invoice", entryFlags{invoice: "perhaps"}, core.ErrInvalidBool},
		{"date", entryFlags{date: "15/08/2023"}, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.flags.apply(core.Fields{}, false)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFormatChange(t *testing.T) {
	e := testEntry(t, "Shopee")
	ev := core.NewChangeEvent(core.OpAppend, 2, &e)
	line := FormatChange(amqp.NewChangeMessage(ev))
	assert.Contains(t, line, "append  row 2 Shopee | Widget | qty 1 | sales 100 | income 90")

	line = FormatChange(amqp.NewChangeMessage(core.NewChangeEvent(core.OpRemove, 3, nil)))
	assert.True(t, strings.HasSuffix(line, "remove  row 3"), line)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "row 1 is the header and cannot be changed", describe(fmt.Errorf("replace entry: row 1: %w", sheets.ErrHeaderRow)))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		LedgerFile:         filepath.Join(dir, "data", "ledger.xlsx"),
		LedgerHeaderBackup: true,
		LogLevel:           "warn",
		LogFormat:          "text",
		AuditDBPath:        filepath.Join(dir, "audit.db"),
	}
}

func TestOpenAppJournalsChanges(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	app, err := OpenApp(ctx, cfg, log.Discard())
	require.NoError(t, err)
	require.NotNil(t, app.Audit)
	assert.Nil(t, app.Broker)
	assert.Equal(t, xlsx.HeaderOK, app.Store.HeaderReport().Status)

	row, err := app.Ledger.Add(ctx, testEntry(t, "Shopee"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	require.NoError(t, app.Ledger.Delete(ctx, 2))

	records, err := app.Audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, core.OpRemove, records[0].Event.Op)
	assert.Equal(t, core.OpAppend, records[1].Event.Op)
	require.NoError(t, app.Close())

	entries, err := ReadLedger(cfg, log.Discard())(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadLedgerSeesFlushedEntries(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuditDBPath = ""
	ctx := context.Background()

	app, err := OpenApp(ctx, cfg, log.Discard())
	require.NoError(t, err)
	assert.Nil(t, app.Audit)
	_, err = app.Ledger.Add(ctx, testEntry(t, "Momo"))
	require.NoError(t, err)

	entries, err := ReadLedger(cfg, log.Discard())(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Momo", entries[0].Platform)
	require.NoError(t, app.Close())
}
