package source

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockReader(t *testing.T) (*Reader, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewReader(mock), mock
}

func pendingRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "customer_id", "name", "place_id", "created_at", "updated_at"})
}

func customerRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "created_week", "order_count", "pos_count", "waiter_count",
		"takeaway_count", "delivery_count", "selfservice_count", "reservas_count",
		"horario_count", "subscription_status", "address", "city", "phone",
		"facturacion_total_historico", "facturacion_ultimos_30_dias", "modulos",
		"modulos_con_uso", "score_cliente", "estado_clientes", "created_at", "updated_at",
	})
}

func addCustomer(rows *pgxmock.Rows, id, name string) *pgxmock.Rows {
	return rows.AddRow(
		id, name, (*string)(nil), 0, 0, 0,
		0, 0, 0, (*int)(nil),
		(*int)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
		(*float64)(nil), (*float64)(nil), 0,
		0, 0, (*string)(nil), (*time.Time)(nil), (*time.Time)(nil),
	)
}

func TestNextPendingJoinsCustomerByID(t *testing.T) {
	r, mock := newMockReader(t)
	now := time.Now()

	mock.ExpectQuery(`FROM places_pending`).
		WithArgs(10).
		WillReturnRows(pendingRows().AddRow("rec-1", ptr("cust-1"), ptr("Bar Manolo"), (*string)(nil), now, now))
	mock.ExpectQuery(`FROM customers WHERE id = \$1`).
		WithArgs("cust-1").
		WillReturnRows(addCustomer(customerRows(), "cust-1", "Bar Manolo"))

	records, err := r.NextPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Customer)
	assert.Equal(t, "cust-1", records[0].Customer.ID)
	assert.Nil(t, records[0].Customer.CreatedWeek, "NULL created_week must scan cleanly")
	assert.True(t, records[0].Pending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextPendingNameFallback(t *testing.T) {
	r, mock := newMockReader(t)
	now := time.Now()

	mock.ExpectQuery(`FROM places_pending`).
		WithArgs(10).
		WillReturnRows(pendingRows().AddRow("rec-1", (*string)(nil), ptr("cafe nandu"), (*string)(nil), now, now))
	mock.ExpectQuery(`FROM customers`).
		WithArgs("cafe nandu").
		WillReturnRows(addCustomer(customerRows(), "cust-7", "Café Ñandú"))

	records, err := r.NextPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Customer)
	assert.Equal(t, "cust-7", records[0].Customer.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextPendingUnresolvedCustomer(t *testing.T) {
	r, mock := newMockReader(t)
	now := time.Now()

	mock.ExpectQuery(`FROM places_pending`).
		WithArgs(10).
		WillReturnRows(pendingRows().AddRow("rec-1", (*string)(nil), ptr("Unknown Bar"), (*string)(nil), now, now))
	mock.ExpectQuery(`FROM customers`).
		WithArgs("Unknown Bar").
		WillReturnRows(customerRows())

	records, err := r.NextPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Customer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestByIDs(t *testing.T) {
	r, mock := newMockReader(t)
	now := time.Now()

	mock.ExpectQuery(`WHERE id = ANY\(\$1\)`).
		WithArgs([]string{"rec-1", "rec-2"}).
		WillReturnRows(pendingRows().
			AddRow("rec-1", ptr("cust-1"), ptr("Bar Manolo"), ptr("PROCESSED_123"), now, now).
			AddRow("rec-2", ptr("cust-2"), ptr("La Tasca"), (*string)(nil), now, now))
	mock.ExpectQuery(`FROM customers WHERE id = \$1`).
		WithArgs("cust-1").
		WillReturnRows(addCustomer(customerRows(), "cust-1", "Bar Manolo"))
	mock.ExpectQuery(`FROM customers WHERE id = \$1`).
		WithArgs("cust-2").
		WillReturnRows(addCustomer(customerRows(), "cust-2", "La Tasca"))

	records, err := r.ByIDs(context.Background(), []string{"rec-1", "rec-2"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Processed())
	assert.True(t, records[1].Pending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestByIDsEmpty(t *testing.T) {
	r, _ := newMockReader(t)
	records, err := r.ByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestFoldName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Café Ñandú", "CAFE NANDU"},
		{"  bar   manolo ", "BAR MANOLO"},
		{"LA TASCA", "LA TASCA"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FoldName(tt.in))
	}
}

func ptr[T any](v T) *T { return &v }
