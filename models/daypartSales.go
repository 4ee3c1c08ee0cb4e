package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaypartSalesSummary is a small, query-friendly aggregate table used by dashboards.
//
// Grain: (business_id, restaurant_id, business_date, daypart).
// Category columns hold net selection amounts attributed to that daypart;
// total_sales includes uncategorized amounts so the day reconciles even when
// the sales-category mapping is incomplete.
//
// NOTE: This table is derived data. Rows for a date are deleted and reinserted
// on every sync of that date, so it can always be rebuilt from the provider.
type DaypartSalesSummary struct {
	ID           uint      `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"size:64;index:idx_dps_biz_rest_date,priority:1;not null" json:"business_id"`
	RestaurantId string    `gorm:"size:100;index:idx_dps_biz_rest_date,priority:2;not null" json:"restaurant_id"`
	BusinessDate time.Time `gorm:"type:date;index:idx_dps_biz_rest_date,priority:3;not null" json:"business_date"`
	Daypart      string    `gorm:"size:32;not null" json:"daypart"`

	FoodSales         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"food_sales"`
	BeerSales         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"beer_sales"`
	WineSales         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"wine_sales"`
	LiquorSales       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"liquor_sales"`
	NonAlcoholicSales decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"non_alcoholic_sales"`
	TotalSales        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_sales"`
	OrderCount        int             `gorm:"default:0" json:"order_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
