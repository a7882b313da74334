package customersync

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qamarero/placesync/pkg/metabase"
)

func pgx5Identifier(name string) pgx.Identifier { return pgx.Identifier{name} }

type fakeMetabase struct {
	result *metabase.CardResult
	err    error

	gotCardID int
}

func (f *fakeMetabase) CardData(ctx context.Context, cardID int) (*metabase.CardResult, error) {
	f.gotCardID = cardID
	return f.result, f.err
}

func cardResult() *metabase.CardResult {
	return &metabase.CardResult{
		Columns: []string{"id", "name", "created_week", "order_count", "address", "city", "facturacion_total_historico", "reservas_count"},
		Rows: [][]any{
			{"cust-1", "Bar Manolo", "2024-W03", float64(12), "Calle Mayor 5", "Madrid", float64(1500.5), float64(2)},
			{"cust-2", "La Tasca", nil, nil, nil, nil, nil, nil},
			{nil, "Sin ID", nil, float64(1), nil, nil, nil, nil},
		},
	}
}

func TestMapRows(t *testing.T) {
	res := cardResult()
	customers, skipped := mapRows(res.ColumnIndex(), res.Rows, zap.NewNop())

	assert.Equal(t, 1, skipped, "row without id must be skipped")
	require.Len(t, customers, 2)

	first := customers[0]
	assert.Equal(t, "cust-1", first.ID)
	assert.Equal(t, "Bar Manolo", first.Name)
	assert.Equal(t, 12, first.OrderCount)
	require.NotNil(t, first.CreatedWeek)
	assert.Equal(t, "2024-W03", *first.CreatedWeek)
	require.NotNil(t, first.Address)
	assert.Equal(t, "Calle Mayor 5", *first.Address)
	require.NotNil(t, first.RevenueTotal)
	assert.Equal(t, 1500.5, *first.RevenueTotal)
	require.NotNil(t, first.ReservasCount)
	assert.Equal(t, 2, *first.ReservasCount)

	second := customers[1]
	assert.Equal(t, 0, second.OrderCount, "missing counts default to zero")
	assert.Nil(t, second.CreatedWeek)
	assert.Nil(t, second.Address)
	assert.Nil(t, second.RevenueTotal)
	assert.Nil(t, second.ReservasCount)
}

func TestMapRowsStringNumbers(t *testing.T) {
	res := &metabase.CardResult{
		Columns: []string{"id", "name", "order_count", "facturacion_total_historico"},
		Rows:    [][]any{{"cust-1", "Bar Manolo", "7", "99.5"}},
	}
	customers, skipped := mapRows(res.ColumnIndex(), res.Rows, zap.NewNop())
	require.Len(t, customers, 1)
	assert.Zero(t, skipped)
	assert.Equal(t, 7, customers[0].OrderCount)
	require.NotNil(t, customers[0].RevenueTotal)
	assert.Equal(t, 99.5, *customers[0].RevenueTotal)
}

func TestSyncUpsertsMappedRows(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_customers"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx5Identifier("_tmp_upsert_customers"), customerColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "customers" .* ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	mb := &fakeMetabase{result: cardResult()}
	summary, err := New(mb, mock, 42, 0).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 42, mb.gotCardID)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 2, summary.Mapped)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, int64(2), summary.Upserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRowLimit(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx5Identifier("_tmp_upsert_customers"), customerColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "customers"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	mb := &fakeMetabase{result: cardResult()}
	summary, err := New(mb, mock, 42, 1).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fetched)
}

func TestSyncFetchError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mb := &fakeMetabase{err: assert.AnError}
	_, err = New(mb, mock, 42, 0).Sync(context.Background())
	assert.ErrorContains(t, err, "customersync: fetch card")
}
