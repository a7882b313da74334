// Package source reads pending staging rows and resolves each one to its
// customer record.
package source

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/qamarero/placesync/internal/db"
	"github.com/qamarero/placesync/internal/model"
)

const customerColumns = `id, name, created_week, order_count, pos_count, waiter_count,
	takeaway_count, delivery_count, selfservice_count, reservas_count, horario_count,
	subscription_status, address, city, phone, facturacion_total_historico,
	facturacion_ultimos_30_dias, modulos, modulos_con_uso, score_cliente,
	estado_clientes, created_at, updated_at`

// Reader pages through places_pending and joins customers by id, falling
// back to a fuzzy name match for rows staged without a customer id.
type Reader struct {
	pool db.Pool
	log  *zap.Logger
}

// NewReader creates a Reader.
func NewReader(pool db.Pool) *Reader {
	return &Reader{
		pool: pool,
		log:  zap.L().With(zap.String("component", "source")),
	}
}

// NextPending returns up to limit staging rows that still need
// enrichment, newest first. Each row carries its resolved customer, or
// nil when neither the id join nor the name fallback matched.
func (r *Reader) NextPending(ctx context.Context, limit int) ([]model.PendingRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_id, name, place_id, created_at, updated_at
		 FROM places_pending
		 WHERE place_id IS NULL
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "source: query pending")
	}
	records, err := scanPending(rows)
	if err != nil {
		return nil, err
	}
	return r.attachCustomers(ctx, records)
}

// ByIDs returns the given staging rows regardless of their marker state,
// for targeted reprocessing.
func (r *Reader) ByIDs(ctx context.Context, ids []string) ([]model.PendingRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_id, name, place_id, created_at, updated_at
		 FROM places_pending
		 WHERE id = ANY($1)
		 ORDER BY created_at DESC`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "source: query by ids")
	}
	records, err := scanPending(rows)
	if err != nil {
		return nil, err
	}
	return r.attachCustomers(ctx, records)
}

// CustomerByID fetches one customer record.
func (r *Reader) CustomerByID(ctx context.Context, id string) (*model.Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "source: customer by id")
	}
	return c, nil
}

// CustomerByName resolves a customer by fuzzy name match: candidates come
// from a case-insensitive containment query in either direction, then the
// first candidate whose accent-folded name contains (or is contained by)
// the folded target wins.
func (r *Reader) CustomerByName(ctx context.Context, name string) (*model.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+customerColumns+`
		 FROM customers
		 WHERE name ILIKE '%' || $1 || '%' OR $1 ILIKE '%' || name || '%'
		 ORDER BY name
		 LIMIT 25`,
		name,
	)
	if err != nil {
		return nil, eris.Wrap(err, "source: customer by name")
	}
	defer rows.Close()

	target := FoldName(name)
	var first *model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "source: scan customer")
		}
		if first == nil {
			first = c
		}
		folded := FoldName(c.Name)
		if strings.Contains(folded, target) || strings.Contains(target, folded) {
			return c, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: iterate customers")
	}
	return first, nil
}

func (r *Reader) attachCustomers(ctx context.Context, records []model.PendingRecord) ([]model.PendingRecord, error) {
	for i := range records {
		rec := &records[i]
		if rec.CustomerID != nil && *rec.CustomerID != "" {
			c, err := r.CustomerByID(ctx, *rec.CustomerID)
			if err != nil {
				return nil, err
			}
			rec.Customer = c
			continue
		}
		if rec.Name != nil && *rec.Name != "" {
			c, err := r.CustomerByName(ctx, *rec.Name)
			if err != nil {
				return nil, err
			}
			if c != nil {
				r.log.Debug("resolved customer by name fallback",
					zap.String("record_id", rec.ID),
					zap.String("customer_id", c.ID))
			}
			rec.Customer = c
		}
	}
	return records, nil
}

// FoldName normalizes a business name for comparison: diacritics removed,
// uppercased, whitespace collapsed.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}
