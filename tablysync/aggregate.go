package tablysync

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DaypartAggregate is one (restaurant, date, daypart) row of category sales.
type DaypartAggregate struct {
	RestaurantId string
	BusinessDate time.Time
	Daypart      string

	Food          decimal.Decimal
	Beer          decimal.Decimal
	Wine          decimal.Decimal
	Liquor        decimal.Decimal
	NonAlcoholic  decimal.Decimal
	Uncategorized decimal.Decimal
	Total         decimal.Decimal
	OrderCount    int
}

// TransactionAggregate is one (restaurant, date) row of the revenue
// decomposition across all dayparts.
type TransactionAggregate struct {
	RestaurantId string
	BusinessDate time.Time

	GrossSales          decimal.Decimal
	TotalDiscounts      decimal.Decimal
	TotalRefunds        decimal.Decimal
	TotalServiceCharges decimal.Decimal
	NetSales            decimal.Decimal
	TransactionCount    int
	AverageCheckSize    decimal.Decimal
}

// AggregateOrders runs the full pipeline over one fetched order list:
// range gate -> exclusion ladder -> decomposition -> allocation -> daily fold.
// The fold is a commutative sum and the outputs are sorted, so re-running on
// the same input produces byte-identical aggregates. diag observes every
// stage; callers pass a fresh Diagnostics per run.
func AggregateOrders(restaurantId string, orders []Order, maps ConfigMappings, startDate, endDate time.Time, diag *Diagnostics) ([]DaypartAggregate, []TransactionAggregate) {
	dayparts := map[string]*DaypartAggregate{}
	days := map[string]*TransactionAggregate{}

	for i := range orders {
		o := &orders[i]

		businessDate, err := ParseBusinessDate(o.BusinessDate)
		if err != nil {
			diag.recordUnparsableDate(o.GUID, o.BusinessDate)
			continue
		}
		if !DateWithinRange(businessDate, startDate, endDate) {
			diag.recordOutOfRangeOrder(o.GUID, o.BusinessDate)
			continue
		}
		if classifyOrder(o, diag) != orderAdmitted {
			continue
		}
		diag.recordProcessedOrder(businessDate)

		daypart := daypartForOrder(o, maps)
		dp := daypartRow(dayparts, restaurantId, businessDate, daypart)
		dp.OrderCount++
		day := dayRow(days, restaurantId, businessDate)

		for c := range o.Checks {
			chk := &o.Checks[c]
			if !admitCheck(chk, diag) {
				continue
			}

			f := decomposeCheck(chk, diag)
			day.GrossSales = day.GrossSales.Add(f.Gross)
			day.TotalDiscounts = day.TotalDiscounts.Add(f.discounts())
			day.TotalRefunds = day.TotalRefunds.Add(f.Refunds)
			day.TotalServiceCharges = day.TotalServiceCharges.Add(f.serviceCharges())
			day.NetSales = day.NetSales.Add(f.Net)
			day.TransactionCount++

			for s := range chk.Selections {
				sel := &chk.Selections[s]
				if !admitSelection(sel, diag) {
					continue
				}
				amount := netSelectionAmount(sel)
				category, mapped := categoryForSelection(sel, maps)
				rawId := ""
				if sel.SalesCategory != nil {
					rawId = sel.SalesCategory.GUID
				}
				diag.recordCategorySale(amount, mapped, rawId)
				dp.addCategory(category, amount)
			}
		}
	}

	daypartRows := make([]DaypartAggregate, 0, len(dayparts))
	for _, dp := range dayparts {
		daypartRows = append(daypartRows, *dp)
	}
	sort.Slice(daypartRows, func(i, j int) bool {
		if !daypartRows[i].BusinessDate.Equal(daypartRows[j].BusinessDate) {
			return daypartRows[i].BusinessDate.Before(daypartRows[j].BusinessDate)
		}
		return daypartRows[i].Daypart < daypartRows[j].Daypart
	})

	dayRows := make([]TransactionAggregate, 0, len(days))
	for _, day := range days {
		if day.TransactionCount > 0 {
			day.AverageCheckSize = day.NetSales.Div(decimal.NewFromInt(int64(day.TransactionCount))).Round(2)
		}
		dayRows = append(dayRows, *day)
	}
	sort.Slice(dayRows, func(i, j int) bool {
		return dayRows[i].BusinessDate.Before(dayRows[j].BusinessDate)
	})

	return daypartRows, dayRows
}

// netSelectionAmount is the selection's price less its own item-level
// discounts; this is the figure allocated to the sales category.
func netSelectionAmount(sel *Selection) decimal.Decimal {
	amount := decimalFromNumber(sel.Price)
	for i := range sel.AppliedDiscounts {
		amount = amount.Sub(decimalFromNumber(sel.AppliedDiscounts[i].Amount))
	}
	return amount
}

func (dp *DaypartAggregate) addCategory(category SalesCategory, amount decimal.Decimal) {
	switch category {
	case CategoryFood:
		dp.Food = dp.Food.Add(amount)
	case CategoryBeer:
		dp.Beer = dp.Beer.Add(amount)
	case CategoryWine:
		dp.Wine = dp.Wine.Add(amount)
	case CategoryLiquor:
		dp.Liquor = dp.Liquor.Add(amount)
	case CategoryNonAlcoholic:
		dp.NonAlcoholic = dp.NonAlcoholic.Add(amount)
	default:
		dp.Uncategorized = dp.Uncategorized.Add(amount)
	}
	dp.Total = dp.Total.Add(amount)
}

func daypartRow(rows map[string]*DaypartAggregate, restaurantId string, businessDate time.Time, daypart string) *DaypartAggregate {
	key := businessDate.Format(time.DateOnly) + "|" + daypart
	if row, ok := rows[key]; ok {
		return row
	}
	row := &DaypartAggregate{
		RestaurantId: restaurantId,
		BusinessDate: businessDate,
		Daypart:      daypart,
	}
	rows[key] = row
	return row
}

func dayRow(rows map[string]*TransactionAggregate, restaurantId string, businessDate time.Time) *TransactionAggregate {
	key := businessDate.Format(time.DateOnly)
	if row, ok := rows[key]; ok {
		return row
	}
	row := &TransactionAggregate{
		RestaurantId: restaurantId,
		BusinessDate: businessDate,
	}
	rows[key] = row
	return row
}
