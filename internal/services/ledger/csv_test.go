package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

const sampleCSV = `date,kind,quantity,price,fees
2026-01-02,buy,10,"1,000.50",1.5
2026-01-05,dividend,,2.40,

2026-01-09,SELL,4,1010,
`

func TestParseCSV(t *testing.T) {
	txs, err := ParseCSV(strings.NewReader(sampleCSV), "a1")
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, models.KindBuy, txs[0].Kind)
	assert.Equal(t, 1000.5, txs[0].Buy.Price)
	assert.Equal(t, 1.5, txs[0].Buy.Fees)
	assert.Equal(t, "a1", txs[0].AssetID)
	assert.Equal(t, day(2), txs[0].Date)

	require.NotNil(t, txs[1].Dividend)
	assert.Equal(t, 2.4, txs[1].Dividend.Amount)

	require.NotNil(t, txs[2].Sell)
	assert.Equal(t, 4.0, txs[2].Sell.Quantity)
	assert.Equal(t, 0.0, txs[2].Sell.Fees)
}

func TestParseCSV_ColumnOrder(t *testing.T) {
	txs, err := ParseCSV(strings.NewReader("Kind, Price, Quantity, Date\nbuy,5,2,2026-01-03\n"), "a1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 2.0, txs[0].Buy.Quantity)
	assert.Equal(t, 5.0, txs[0].Buy.Price)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		line int
	}{
		{"empty", "", 0},
		{"missing column", "date,kind,price\n2026-01-02,buy,1\n", 0},
		{"bad date", "date,kind,quantity,price\n02/01/2026,buy,1,1\n", 2},
		{"bad number", "date,kind,quantity,price\n2026-01-02,buy,ten,1\n", 2},
		{"buy missing price", "date,kind,quantity,price\n2026-01-02,buy,1,1\n2026-01-03,buy,1,\n", 3},
		{"negative fees", "date,kind,quantity,price,fees\n2026-01-02,buy,1,1,-2\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.csv), "a1")
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrMalformedTransaction)

			var rowErr *RowError
			if tt.line == 0 {
				assert.False(t, errors.As(err, &rowErr))
				return
			}
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, tt.line, rowErr.Line)
		})
	}
}

func TestImportCSV(t *testing.T) {
	svc, store, inv, p, a := setup(t)

	recs, err := svc.ImportCSV(context.Background(), p.ID, a.ID, strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{recs[0].Seq, recs[1].Seq, recs[2].Seq})
	assert.Len(t, store.Transactions[a.ID], 3)
	assert.Len(t, inv.calls, 1, "one version bump per import")
}

func TestImportCSV_AllOrNothing(t *testing.T) {
	svc, store, inv, p, a := setup(t)
	bad := "date,kind,quantity,price\n2026-01-02,buy,1,100\n2026-01-03,sell,,100\n"

	_, err := svc.ImportCSV(context.Background(), p.ID, a.ID, strings.NewReader(bad))
	assert.ErrorIs(t, err, common.ErrMalformedTransaction)
	assert.Empty(t, store.Transactions[a.ID])
	assert.Empty(t, inv.calls)
}

func TestImportCSV_HeaderOnly(t *testing.T) {
	svc, store, _, p, a := setup(t)

	recs, err := svc.ImportCSV(context.Background(), p.ID, a.ID, strings.NewReader("date,kind,quantity,price\n"))
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, store.Transactions[a.ID])
}

func TestImportCSV_BumpFailureRollsBack(t *testing.T) {
	svc, store, inv, p, a := setup(t)
	store.BumpErr = errors.New("db down")

	_, err := svc.ImportCSV(context.Background(), p.ID, a.ID, strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, store.BumpErr)
	assert.Empty(t, store.Transactions[a.ID])
	assert.Equal(t, []string{p.ID}, inv.calls)
}
