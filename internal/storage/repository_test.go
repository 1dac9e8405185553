package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting/internal/core"
)

func newRepo(t *testing.T) *AuditRepository {
	t.Helper()
	repo, err := NewAuditRepository(filepath.Join(t.TempDir(), "db", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleEntry(t *testing.T) core.Entry {
	t.Helper()
	e, err := core.Construct(core.Fields{
		OccurredAt:      time.Date(2023, 8, 15, 14, 30, 0, 0, time.Local),
		Platform:        "蝦皮",
		ProductName:     "測試商品",
		OrderQuantity:   2,
		TotalSales:      decimal.RequireFromString("1000.50"),
		PlatformFee:     decimal.NewFromInt(100),
		InvoiceRequired: true,
	})
	require.NoError(t, err)
	return e
}

func TestAuditRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	e := sampleEntry(t)

	first := core.NewChangeEvent(core.OpAppend, 2, &e)
	second := core.NewChangeEvent(core.OpReplace, 2, &e)
	third := core.NewChangeEvent(core.OpRemove, 2, nil)
	for _, ev := range []core.ChangeEvent{first, second, third} {
		require.NoError(t, repo.Record(ctx, ev))
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, third.ID, recent[0].Event.ID)
	assert.Equal(t, core.OpRemove, recent[0].Event.Op)
	assert.Nil(t, recent[0].Event.Entry)

	assert.Equal(t, second.ID, recent[1].Event.ID)
	require.NotNil(t, recent[1].Event.Entry)
	assert.True(t, recent[1].Event.Entry.Equal(e))
	assert.True(t, recent[0].Seq > recent[1].Seq)
}

func TestAuditRejectsDuplicateEvent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	e := sampleEntry(t)
	ev := core.NewChangeEvent(core.OpAppend, 2, &e)
	require.NoError(t, repo.Record(ctx, ev))
	assert.Error(t, repo.Record(ctx, ev))
}

func TestAuditRecentLimit(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Recent(context.Background(), 0)
	assert.Error(t, err)

	recent, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}
