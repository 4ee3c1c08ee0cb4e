package tablysync

import (
	"context"
	"errors"
	"time"

	"github.com/forkmetrics/resto_backend/models"
	"gorm.io/gorm"
)

// ReplaceDaypartRows persists daypart aggregates with full-replace semantics:
// for every business date touched, prior rows for that (business, restaurant,
// date) are deleted and the fresh rows inserted. Re-running the same window is
// therefore idempotent, which is what makes mid-range crashes safe to retry.
func ReplaceDaypartRows(ctx context.Context, db *gorm.DB, businessId string, rows []DaypartAggregate) error {
	datesTouched := map[time.Time]bool{}
	for i := range rows {
		datesTouched[rows[i].BusinessDate] = true
	}

	for date := range datesTouched {
		if err := db.WithContext(ctx).
			Where("business_id = ? AND restaurant_id = ? AND business_date = ?", businessId, restaurantIdOf(rows), date).
			Delete(&models.DaypartSalesSummary{}).Error; err != nil {
			return err
		}
	}

	for i := range rows {
		agg := &rows[i]
		record := models.DaypartSalesSummary{
			BusinessId:        businessId,
			RestaurantId:      agg.RestaurantId,
			BusinessDate:      agg.BusinessDate,
			Daypart:           agg.Daypart,
			FoodSales:         agg.Food,
			BeerSales:         agg.Beer,
			WineSales:         agg.Wine,
			LiquorSales:       agg.Liquor,
			NonAlcoholicSales: agg.NonAlcoholic,
			TotalSales:        agg.Total,
			OrderCount:        agg.OrderCount,
		}
		if err := db.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpsertTransactionRows persists day-level summaries with update-or-create
// semantics per (business, restaurant, date).
func UpsertTransactionRows(ctx context.Context, db *gorm.DB, businessId string, rows []TransactionAggregate) error {
	for i := range rows {
		agg := &rows[i]

		var existing models.DailyTransactionSummary
		err := db.WithContext(ctx).
			Where("business_id = ? AND restaurant_id = ? AND business_date = ?", businessId, agg.RestaurantId, agg.BusinessDate).
			Take(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			record := models.DailyTransactionSummary{
				BusinessId:          businessId,
				RestaurantId:        agg.RestaurantId,
				BusinessDate:        agg.BusinessDate,
				GrossSales:          agg.GrossSales,
				TotalDiscounts:      agg.TotalDiscounts,
				TotalRefunds:        agg.TotalRefunds,
				TotalServiceCharges: agg.TotalServiceCharges,
				NetSales:            agg.NetSales,
				TransactionCount:    agg.TransactionCount,
				AverageCheckSize:    agg.AverageCheckSize,
			}
			if err := db.WithContext(ctx).Create(&record).Error; err != nil {
				return err
			}
			continue
		}

		if err := db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"gross_sales":           agg.GrossSales,
			"total_discounts":       agg.TotalDiscounts,
			"total_refunds":         agg.TotalRefunds,
			"total_service_charges": agg.TotalServiceCharges,
			"net_sales":             agg.NetSales,
			"transaction_count":     agg.TransactionCount,
			"average_check_size":    agg.AverageCheckSize,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

func restaurantIdOf(rows []DaypartAggregate) string {
	if len(rows) == 0 {
		return ""
	}
	return rows[0].RestaurantId
}
