package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyTransactionSummary holds the per-day revenue decomposition.
//
// Grain: (business_id, restaurant_id, business_date), upserted per date.
// Invariant by construction:
//
//	net_sales = gross_sales - total_service_charges - total_discounts - total_refunds
type DailyTransactionSummary struct {
	ID           uint      `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"size:64;uniqueIndex:idx_dts_biz_rest_date,priority:1;not null" json:"business_id"`
	RestaurantId string    `gorm:"size:100;uniqueIndex:idx_dts_biz_rest_date,priority:2;not null" json:"restaurant_id"`
	BusinessDate time.Time `gorm:"type:date;uniqueIndex:idx_dts_biz_rest_date,priority:3;not null" json:"business_date"`

	GrossSales          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_sales"`
	TotalDiscounts      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_discounts"`
	TotalRefunds        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_refunds"`
	TotalServiceCharges decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_service_charges"`
	NetSales            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_sales"`
	TransactionCount    int             `gorm:"default:0" json:"transaction_count"`
	AverageCheckSize    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"average_check_size"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
