package customersync

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/qamarero/placesync/internal/model"
)

// mapRows converts card rows to customer records. Column lookup goes
// through the index map so the card can reorder or add columns without
// breaking the sync.
func mapRows(idx map[string]int, rows [][]any, log *zap.Logger) ([]model.Customer, int) {
	customers := make([]model.Customer, 0, len(rows))
	skipped := 0

	for i, row := range rows {
		id := cellString(row, idx, "id")
		name := cellString(row, idx, "name")
		if id == "" || name == "" {
			skipped++
			log.Warn("skipping card row without id or name", zap.Int("row", i))
			continue
		}

		customers = append(customers, model.Customer{
			ID:                 id,
			Name:               name,
			CreatedWeek:        cellStringPtr(row, idx, "created_week"),
			OrderCount:         cellInt(row, idx, "order_count"),
			POSCount:           cellInt(row, idx, "pos_count"),
			WaiterCount:        cellInt(row, idx, "waiter_count"),
			TakeawayCount:      cellInt(row, idx, "takeaway_count"),
			DeliveryCount:      cellInt(row, idx, "delivery_count"),
			SelfServiceCount:   cellInt(row, idx, "selfservice_count"),
			ReservasCount:      cellIntPtr(row, idx, "reservas_count"),
			HorarioCount:       cellIntPtr(row, idx, "horario_count"),
			SubscriptionStatus: cellStringPtr(row, idx, "subscription_status"),
			Address:            cellStringPtr(row, idx, "address"),
			City:               cellStringPtr(row, idx, "city"),
			Phone:              cellStringPtr(row, idx, "phone"),
			RevenueTotal:       cellFloatPtr(row, idx, "facturacion_total_historico"),
			RevenueLast30Days:  cellFloatPtr(row, idx, "facturacion_ultimos_30_dias"),
			Modules:            cellInt(row, idx, "modulos"),
			ModulesInUse:       cellInt(row, idx, "modulos_con_uso"),
			Score:              cellInt(row, idx, "score_cliente"),
			Status:             cellStringPtr(row, idx, "estado_clientes"),
		})
	}

	return customers, skipped
}

func cell(row []any, idx map[string]int, col string) any {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return nil
	}
	return row[i]
}

func cellString(row []any, idx map[string]int, col string) string {
	switch v := cell(row, idx, col).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func cellStringPtr(row []any, idx map[string]int, col string) *string {
	s := cellString(row, idx, col)
	if s == "" {
		return nil
	}
	return &s
}

func cellInt(row []any, idx map[string]int, col string) int {
	switch v := cell(row, idx, col).(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func cellIntPtr(row []any, idx map[string]int, col string) *int {
	if cell(row, idx, col) == nil {
		return nil
	}
	n := cellInt(row, idx, col)
	return &n
}

func cellFloatPtr(row []any, idx map[string]int, col string) *float64 {
	switch v := cell(row, idx, col).(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
