// Package reconcile persists sanitized place records, deciding per record
// between insert, update, and conflict skip.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/qamarero/placesync/internal/db"
	"github.com/qamarero/placesync/internal/model"
)

// PlaceStore is the persistence surface the reconciler and pipeline need.
type PlaceStore interface {
	PlaceIDOwnedByOther(ctx context.Context, placeID, customerID string) (bool, error)
	ExistsByCustomerID(ctx context.Context, customerID string) (bool, error)
	Insert(ctx context.Context, cols map[string]any) error
	Update(ctx context.Context, customerID string, cols map[string]any) error
	MarkProcessed(ctx context.Context, pendingID string) error
}

// PostgresStore implements PlaceStore over a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// Overridden in tests.
var timeNow = time.Now

// NewPostgresStore wraps an existing pool. The caller owns the pool's
// lifecycle.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect creates a PostgresStore with its own connection pool.
func Connect(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: parse pool config")
	}
	if maxConns > 0 {
		pgxCfg.MaxConns = maxConns
	}
	if minConns > 0 {
		pgxCfg.MinConns = minConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "reconcile: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (customer sync, status command).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Close releases the pool if this store created it.
func (s *PostgresStore) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

const schemaMigration = `
CREATE TABLE IF NOT EXISTS customers (
	id                          TEXT PRIMARY KEY,
	name                        TEXT NOT NULL,
	created_week                TEXT,
	order_count                 INT NOT NULL DEFAULT 0,
	pos_count                   INT NOT NULL DEFAULT 0,
	waiter_count                INT NOT NULL DEFAULT 0,
	takeaway_count              INT NOT NULL DEFAULT 0,
	delivery_count              INT NOT NULL DEFAULT 0,
	selfservice_count           INT NOT NULL DEFAULT 0,
	reservas_count              INT,
	horario_count               INT,
	subscription_status         TEXT,
	address                     TEXT,
	city                        TEXT,
	phone                       TEXT,
	facturacion_total_historico  DOUBLE PRECISION,
	facturacion_ultimos_30_dias  DOUBLE PRECISION,
	modulos                     INT NOT NULL DEFAULT 0,
	modulos_con_uso             INT NOT NULL DEFAULT 0,
	score_cliente               INT NOT NULL DEFAULT 0,
	estado_clientes             TEXT,
	created_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS places_pending (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	customer_id TEXT,
	name        TEXT,
	place_id    TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS places (
	id                       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	customer_id              TEXT NOT NULL UNIQUE,
	place_id                 TEXT UNIQUE,
	google_id                TEXT,
	cid                      TEXT,
	kgmid                    TEXT,
	reviews_id               TEXT,
	name                     TEXT,
	phone                    TEXT,
	site                     TEXT,
	category                 TEXT,
	subtypes                 TEXT,
	full_address             TEXT,
	borough                  TEXT,
	street                   TEXT,
	city                     TEXT,
	postal_code              TEXT,
	state                    TEXT,
	country                  TEXT,
	latitude                 DOUBLE PRECISION,
	longitude                DOUBLE PRECISION,
	rating                   DOUBLE PRECISION,
	reviews                  INT,
	reviews_per_score        TEXT,
	photos_count             INT,
	photo                    TEXT,
	working_hours            TEXT,
	about                    TEXT,
	range                    TEXT,
	prices                   TEXT,
	description              TEXT,
	typical_time_spent       TEXT,
	verified                 BOOLEAN,
	reservation_links        TEXT,
	booking_appointment_link TEXT,
	menu_link                TEXT,
	order_links              TEXT,
	location_link            TEXT,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_places_pending_place_id ON places_pending (place_id);
CREATE INDEX IF NOT EXISTS idx_places_pending_customer_id ON places_pending (customer_id);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaMigration); err != nil {
		return eris.Wrap(err, "reconcile: migrate")
	}
	return nil
}

// PlaceIDOwnedByOther reports whether placeID is already attached to a
// different customer. The unique constraint on place_id would reject the
// write anyway; checking first lets the pipeline report a clean skip.
func (s *PostgresStore) PlaceIDOwnedByOther(ctx context.Context, placeID, customerID string) (bool, error) {
	var owner string
	err := s.pool.QueryRow(ctx,
		`SELECT customer_id FROM places WHERE place_id = $1 LIMIT 1`,
		placeID,
	).Scan(&owner)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, eris.Wrap(err, "reconcile: check place_id owner")
	}
	return owner != customerID, nil
}

// ExistsByCustomerID reports whether a place row exists for the customer.
func (s *PostgresStore) ExistsByCustomerID(ctx context.Context, customerID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM places WHERE customer_id = $1)`,
		customerID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "reconcile: check customer_id exists")
	}
	return exists, nil
}

// Insert writes a new place row. created_at comes from the column
// default.
func (s *PostgresStore) Insert(ctx context.Context, cols map[string]any) error {
	names := make([]string, 0, len(model.PlaceColumns))
	placeholders := make([]string, 0, len(model.PlaceColumns))
	args := make([]any, 0, len(model.PlaceColumns))
	for _, col := range model.PlaceColumns {
		v, ok := cols[col]
		if !ok {
			continue
		}
		names = append(names, quoteIdent(col))
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)+1))
		args = append(args, v)
	}
	if len(names) == 0 {
		return eris.New("reconcile: insert with no columns")
	}

	query := fmt.Sprintf(
		"INSERT INTO places (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return eris.Wrap(err, "reconcile: insert place")
	}
	return nil
}

// Update rewrites an existing customer's place row. customer_id and
// created_at are never touched.
func (s *PostgresStore) Update(ctx context.Context, customerID string, cols map[string]any) error {
	assignments := make([]string, 0, len(model.PlaceColumns))
	args := make([]any, 0, len(model.PlaceColumns)+1)
	for _, col := range model.PlaceColumns {
		if col == "customer_id" {
			continue
		}
		v, ok := cols[col]
		if !ok {
			continue
		}
		args = append(args, v)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)))
	}
	if len(assignments) == 0 {
		return eris.New("reconcile: update with no columns")
	}
	args = append(args, customerID)

	query := fmt.Sprintf(
		"UPDATE places SET %s WHERE customer_id = $%d",
		strings.Join(assignments, ", "), len(args),
	)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return eris.Wrap(err, "reconcile: update place")
	}
	return nil
}

// MarkProcessed stamps the staging row so later passes skip it. The stamp
// encodes the processing time, which the cleanup command uses to find
// stale markers.
func (s *PostgresStore) MarkProcessed(ctx context.Context, pendingID string) error {
	marker := fmt.Sprintf("%s%d", model.ProcessedMarkerPrefix, timeNow().UnixMilli())
	_, err := s.pool.Exec(ctx,
		`UPDATE places_pending SET place_id = $1, updated_at = now() WHERE id = $2`,
		marker, pendingID,
	)
	if err != nil {
		return eris.Wrap(err, "reconcile: mark processed")
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// quoteIdent protects column names that collide with SQL keywords
// (the places table has a "range" column).
func quoteIdent(name string) string {
	return `"` + name + `"`
}
