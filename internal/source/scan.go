package source

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/qamarero/placesync/internal/model"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanPending(rows pgx.Rows) ([]model.PendingRecord, error) {
	defer rows.Close()

	var records []model.PendingRecord
	for rows.Next() {
		var rec model.PendingRecord
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &rec.Name, &rec.PlaceID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "source: scan pending row")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: iterate pending rows")
	}
	return records, nil
}

func scanCustomer(row scanner) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(
		&c.ID, &c.Name, &c.CreatedWeek, &c.OrderCount, &c.POSCount, &c.WaiterCount,
		&c.TakeawayCount, &c.DeliveryCount, &c.SelfServiceCount, &c.ReservasCount,
		&c.HorarioCount, &c.SubscriptionStatus, &c.Address, &c.City, &c.Phone,
		&c.RevenueTotal, &c.RevenueLast30Days, &c.Modules, &c.ModulesInUse,
		&c.Score, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
