// Package model holds the shared data types passed between the sync,
// source, mapper, validate, and reconcile layers.
package model

import "time"

// Customer is the authoritative business record synced from the analytics
// card. The enrichment pipeline reads it for query construction and
// fallback field values; only the customer sync writes it.
type Customer struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	CreatedWeek        *string    `json:"created_week"`
	OrderCount         int        `json:"order_count"`
	POSCount           int        `json:"pos_count"`
	WaiterCount        int        `json:"waiter_count"`
	TakeawayCount      int        `json:"takeaway_count"`
	DeliveryCount      int        `json:"delivery_count"`
	SelfServiceCount   int        `json:"selfservice_count"`
	ReservasCount      *int       `json:"reservas_count"`
	HorarioCount       *int       `json:"horario_count"`
	SubscriptionStatus *string    `json:"subscription_status"`
	Address            *string    `json:"address"`
	City               *string    `json:"city"`
	Phone              *string    `json:"phone"`
	RevenueTotal       *float64   `json:"facturacion_total_historico"`
	RevenueLast30Days  *float64   `json:"facturacion_ultimos_30_dias"`
	Modules            int        `json:"modulos"`
	ModulesInUse       int        `json:"modulos_con_uso"`
	Score              int        `json:"score_cliente"`
	Status             *string    `json:"estado_clientes"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}
