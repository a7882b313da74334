// Package customersync pulls the authoritative customer dataset from a
// Metabase card and bulk-upserts it into the customers table.
package customersync

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qamarero/placesync/internal/db"
	"github.com/qamarero/placesync/internal/model"
	"github.com/qamarero/placesync/pkg/metabase"
)

const (
	batchSize     = 500
	maxConcurrent = 4
)

// customerColumns is the write order for the bulk upsert.
var customerColumns = []string{
	"id", "name", "created_week", "order_count", "pos_count", "waiter_count",
	"takeaway_count", "delivery_count", "selfservice_count", "reservas_count",
	"horario_count", "subscription_status", "address", "city", "phone",
	"facturacion_total_historico", "facturacion_ultimos_30_dias", "modulos",
	"modulos_con_uso", "score_cliente", "estado_clientes", "updated_at",
}

// Summary reports what one sync did.
type Summary struct {
	Fetched  int       `json:"fetched"`
	Mapped   int       `json:"mapped"`
	Skipped  int       `json:"skipped"`
	Upserted int64     `json:"upserted"`
	Took     string    `json:"took"`
	SyncedAt time.Time `json:"synced_at"`
}

// Syncer runs the card-to-table sync.
type Syncer struct {
	mb       metabase.Client
	pool     db.Pool
	cardID   int
	rowLimit int
	log      *zap.Logger
}

// New creates a Syncer. rowLimit <= 0 means no cap.
func New(mb metabase.Client, pool db.Pool, cardID, rowLimit int) *Syncer {
	return &Syncer{
		mb:       mb,
		pool:     pool,
		cardID:   cardID,
		rowLimit: rowLimit,
		log:      zap.L().With(zap.String("component", "customersync")),
	}
}

// Sync fetches the card, maps its rows, and upserts them in concurrent
// batches. Rows missing id or name are skipped, not fatal: one bad row
// must not block the dataset.
func (s *Syncer) Sync(ctx context.Context) (*Summary, error) {
	started := time.Now()

	result, err := s.mb.CardData(ctx, s.cardID)
	if err != nil {
		return nil, eris.Wrap(err, "customersync: fetch card")
	}

	rows := result.Rows
	if s.rowLimit > 0 && len(rows) > s.rowLimit {
		rows = rows[:s.rowLimit]
	}

	customers, skipped := mapRows(result.ColumnIndex(), rows, s.log)

	summary := &Summary{
		Fetched: len(rows),
		Mapped:  len(customers),
		Skipped: skipped,
	}

	var (
		mu    sync.Mutex
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for start := 0; start < len(customers); start += batchSize {
		end := start + batchSize
		if end > len(customers) {
			end = len(customers)
		}
		batch := customers[start:end]

		g.Go(func() error {
			n, err := db.BulkUpsert(gctx, s.pool, db.UpsertConfig{
				Table:        "customers",
				Columns:      customerColumns,
				ConflictKeys: []string{"id"},
				SkipCols:     []string{"created_at"},
			}, toRows(batch))
			if err != nil {
				return err
			}
			mu.Lock()
			total += n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "customersync: upsert batches")
	}

	summary.Upserted = total
	summary.Took = time.Since(started).Round(time.Millisecond).String()
	summary.SyncedAt = time.Now().UTC()

	s.log.Info("customer sync complete",
		zap.Int("fetched", summary.Fetched),
		zap.Int("mapped", summary.Mapped),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("upserted", summary.Upserted))

	return summary, nil
}

func toRows(customers []model.Customer) [][]any {
	rows := make([][]any, 0, len(customers))
	now := time.Now().UTC()
	for _, c := range customers {
		rows = append(rows, []any{
			c.ID, c.Name, c.CreatedWeek, c.OrderCount, c.POSCount, c.WaiterCount,
			c.TakeawayCount, c.DeliveryCount, c.SelfServiceCount, c.ReservasCount,
			c.HorarioCount, c.SubscriptionStatus, c.Address, c.City, c.Phone,
			c.RevenueTotal, c.RevenueLast30Days, c.Modules, c.ModulesInUse,
			c.Score, c.Status, now,
		})
	}
	return rows
}
