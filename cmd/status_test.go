package main

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectStatus(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	count := func(n int64) *pgxmock.Rows {
		return pgxmock.NewRows([]string{"count"}).AddRow(n)
	}
	mock.ExpectQuery(`SELECT count\(\*\) FROM customers`).WillReturnRows(count(120))
	mock.ExpectQuery(`SELECT count\(\*\) FROM places_pending WHERE place_id IS NULL`).WillReturnRows(count(30))
	mock.ExpectQuery(`SELECT count\(\*\) FROM places_pending WHERE place_id LIKE`).WillReturnRows(count(80))
	mock.ExpectQuery(`SELECT count\(\*\) FROM places`).WillReturnRows(count(70))

	info, err := collectStatus(context.Background(), mock, false)
	require.NoError(t, err)

	assert.Equal(t, int64(120), info.Customers)
	assert.Equal(t, int64(30), info.Pending)
	assert.Equal(t, int64(80), info.Processed)
	assert.Equal(t, int64(70), info.Places)
	assert.Empty(t, info.FailureRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectStatusWithFailures(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	count := func(n int64) *pgxmock.Rows {
		return pgxmock.NewRows([]string{"count"}).AddRow(n)
	}
	mock.ExpectQuery(`SELECT count\(\*\) FROM customers`).WillReturnRows(count(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM places_pending WHERE place_id IS NULL`).WillReturnRows(count(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM places_pending WHERE place_id LIKE`).WillReturnRows(count(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM places`).WillReturnRows(count(0))

	cust := "cust-1"
	name := "Bar Manolo"
	marker := "PROCESSED_1770000000000"
	mock.ExpectQuery(`LEFT JOIN places p ON`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "name", "place_id"}).
			AddRow("rec-1", &cust, &name, &marker))

	info, err := collectStatus(context.Background(), mock, true)
	require.NoError(t, err)

	require.Len(t, info.FailureRows, 1)
	assert.Equal(t, "rec-1", info.FailureRows[0].ID)
	assert.Equal(t, int64(1), info.Unenriched)
	assert.NoError(t, mock.ExpectationsWereMet())
}
