package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncrvault/syncr/internal/domain"
	"github.com/syncrvault/syncr/internal/usecase"
)

func TestQuotaService_Usage(t *testing.T) {
	ledger := &memLedger{total: 4200}
	s := usecase.NewQuotaService(ledger, 10000)

	total, limit, err := s.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4200, total)
	assert.Equal(t, 10000, limit)
}

func TestQuotaService_Set(t *testing.T) {
	ledger := &memLedger{total: 4200}
	s := usecase.NewQuotaService(ledger, 10000)

	require.NoError(t, s.Set(context.Background(), 9000))
	total, _ := ledger.Used(context.Background())
	assert.Equal(t, 9000, total)

	require.Error(t, s.Set(context.Background(), -1))
}

func TestBillProvider_ZeroCostPassesThrough(t *testing.T) {
	p := newFakeProvider()
	ledger := &memLedger{}
	assert.Same(t, domain.Provider(p), usecase.BillProvider(p, ledger))
}

func TestBillProvider_ConsumesPerCall(t *testing.T) {
	p := newFakeProvider()
	p.costs = map[domain.ProviderOp]int{domain.OpInsertItem: 50, domain.OpSearch: 100}
	p.playlists["Mix"] = domain.Playlist{ID: "pl-1", Title: "Mix"}
	ledger := &memLedger{}
	billed := usecase.BillProvider(p, ledger)

	require.NoError(t, billed.AddToPlaylist(context.Background(), "pl-1", []string{"v-1", "v-2"}))
	_, err := billed.SearchAuto(context.Background(), "Song", "Artist")
	require.NoError(t, err)

	used, _ := ledger.Used(context.Background())
	// Two inserts at 50 plus one search at 100.
	assert.Equal(t, 200, used)
}
