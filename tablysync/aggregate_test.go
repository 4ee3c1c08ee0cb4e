package tablysync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func windowJan2024() (time.Time, time.Time) {
	return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
}

// fixtureOrders exercises every exclusion tier, both refund representations,
// an unmapped category and two business dates.
func fixtureOrders() []Order {
	return []Order{
		// Clean lunch order, two categorized selections, check-level discount.
		{
			GUID:         "ord-1",
			BusinessDate: "20240115",
			OpenedDate:   "2024-01-15T12:00:00Z",
			Checks: []Check{
				{
					GUID:   "chk-1",
					Amount: json.Number("55.00"),
					Selections: []Selection{
						{GUID: "sel-1", Price: json.Number("40.00"), SalesCategory: &EntityRef{GUID: "cat-food"}},
						{GUID: "sel-2", Price: json.Number("15.00"), SalesCategory: &EntityRef{GUID: "cat-beer"}},
					},
					AppliedDiscounts: []Discount{{GUID: "dsc-1", Amount: json.Number("5.00")}},
				},
			},
		},
		// Deleted order: contributes nothing anywhere.
		{
			GUID:         "ord-2",
			BusinessDate: "20240115",
			Deleted:      true,
			Checks:       []Check{{GUID: "chk-2", Amount: json.Number("99.00")}},
		},
		// Voided order: contributes nothing anywhere.
		{
			GUID:         "ord-3",
			BusinessDate: "20240115",
			Voided:       true,
			Checks:       []Check{{GUID: "chk-3", Amount: json.Number("88.00")}},
		},
		// Dinner order: one voided check (dropped) plus one live check carrying
		// a voided item, a refund object and a gratuity charge.
		{
			GUID:         "ord-4",
			BusinessDate: "2024-01-16",
			OpenedDate:   "2024-01-16T19:00:00Z",
			Checks: []Check{
				{GUID: "chk-4", Voided: true, Amount: json.Number("30.00")},
				{
					GUID:   "chk-5",
					Amount: json.Number("70.00"),
					Selections: []Selection{
						{GUID: "sel-3", Price: json.Number("50.00"), SalesCategory: &EntityRef{GUID: "cat-food"}},
						{GUID: "sel-4", Price: json.Number("20.00"), Voided: true, SalesCategory: &EntityRef{GUID: "cat-wine"}},
						{GUID: "sel-5", Price: json.Number("20.00"), SalesCategory: &EntityRef{GUID: "cat-unknown"}},
					},
					Payments: []Payment{
						{GUID: "pay-1", Amount: json.Number("70.00"), Refund: &Refund{Amount: json.Number("6.00")}},
					},
					AppliedServiceCharges: []ServiceCharge{
						{GUID: "svc-1", Amount: json.Number("4.00"), Gratuity: true},
					},
				},
			},
		},
		// Outside the requested window: dropped by the range gate.
		{
			GUID:         "ord-5",
			BusinessDate: "20240201",
			Checks:       []Check{{GUID: "chk-6", Amount: json.Number("10.00")}},
		},
		// Unparsable business date: dropped before classification.
		{
			GUID:         "ord-6",
			BusinessDate: "soon",
			Checks:       []Check{{GUID: "chk-7", Amount: json.Number("10.00")}},
		},
	}
}

func TestAggregateOrdersExclusionsAndTotals(t *testing.T) {
	start, end := windowJan2024()
	diag := NewDiagnostics()

	daypartRows, dayRows := AggregateOrders("rest-1", fixtureOrders(), testMappings(), start, end, diag)

	if len(dayRows) != 2 {
		t.Fatalf("day rows = %d, want 2", len(dayRows))
	}

	jan15 := dayRows[0]
	if jan15.BusinessDate.Format(time.DateOnly) != "2024-01-15" {
		t.Fatalf("rows not sorted by date: first is %s", jan15.BusinessDate)
	}
	if jan15.GrossSales.String() != "55" || jan15.TotalDiscounts.String() != "5" || jan15.NetSales.String() != "50" {
		t.Errorf("jan15 gross=%s discounts=%s net=%s", jan15.GrossSales, jan15.TotalDiscounts, jan15.NetSales)
	}
	if jan15.TransactionCount != 1 {
		t.Errorf("jan15 transactions = %d (deleted/voided orders leaked?)", jan15.TransactionCount)
	}

	jan16 := dayRows[1]
	// Voided check dropped; the live check keeps its full amount even though
	// one of its items is voided.
	if jan16.GrossSales.String() != "70" {
		t.Errorf("jan16 gross = %s, want 70", jan16.GrossSales)
	}
	if jan16.TotalRefunds.String() != "6" || jan16.TotalServiceCharges.String() != "4" {
		t.Errorf("jan16 refunds=%s charges=%s", jan16.TotalRefunds, jan16.TotalServiceCharges)
	}
	if jan16.NetSales.String() != "60" {
		t.Errorf("jan16 net = %s, want 60", jan16.NetSales)
	}
	if jan16.AverageCheckSize.String() != "60" {
		t.Errorf("jan16 avg check = %s, want 60", jan16.AverageCheckSize)
	}

	// Daypart rows: lunch on the 15th, dinner on the 16th.
	if len(daypartRows) != 2 {
		t.Fatalf("daypart rows = %d, want 2", len(daypartRows))
	}
	lunch := daypartRows[0]
	if lunch.Daypart != DaypartLunch || lunch.Food.String() != "40" || lunch.Beer.String() != "15" {
		t.Errorf("lunch row = %+v", lunch)
	}
	if lunch.Total.String() != "55" {
		t.Errorf("lunch total = %s, want 55", lunch.Total)
	}
	dinner := daypartRows[1]
	if dinner.Daypart != DaypartDinner {
		t.Fatalf("second row daypart = %s", dinner.Daypart)
	}
	// Voided wine selection excluded from categories; unknown category lands
	// in the uncategorized bucket and still counts toward the total.
	if !dinner.Wine.IsZero() {
		t.Errorf("dinner wine = %s, want 0", dinner.Wine)
	}
	if dinner.Food.String() != "50" || dinner.Uncategorized.String() != "20" || dinner.Total.String() != "70" {
		t.Errorf("dinner food=%s uncategorized=%s total=%s", dinner.Food, dinner.Uncategorized, dinner.Total)
	}

	snap := diag.Snapshot()
	if snap.Exclusions.DeletedOrders.Count != 1 || snap.Exclusions.VoidedOrders.Count != 1 {
		t.Errorf("order exclusions = %+v", snap.Exclusions)
	}
	if snap.Exclusions.VoidedChecks.Count != 1 || snap.Exclusions.VoidedItems.Count != 1 {
		t.Errorf("check/item exclusions = %+v", snap.Exclusions)
	}
	if snap.Exclusions.OutOfRangeOrders != 1 || snap.Exclusions.UnparsableDates != 1 {
		t.Errorf("gate drops = %+v", snap.Exclusions)
	}
	if snap.Exclusions.ProcessedOrders != 2 || snap.Exclusions.AdmittedChecks != 2 {
		t.Errorf("processed=%d admitted=%d", snap.Exclusions.ProcessedOrders, snap.Exclusions.AdmittedChecks)
	}
	if snap.MinBusinessDate != "2024-01-15" || snap.MaxBusinessDate != "2024-01-16" {
		t.Errorf("date span = %s..%s", snap.MinBusinessDate, snap.MaxBusinessDate)
	}
	if snap.Revenue.UncategorizedSales.String() != "20" {
		t.Errorf("uncategorized sales = %s", snap.Revenue.UncategorizedSales)
	}
	if snap.Revenue.UnmappedCategoryIds["cat-unknown"] != 1 {
		t.Errorf("unmapped ids = %v", snap.Revenue.UnmappedCategoryIds)
	}
}

func TestAggregateOrdersConservationToTheCent(t *testing.T) {
	start, end := windowJan2024()
	diag := NewDiagnostics()

	_, dayRows := AggregateOrders("rest-1", fixtureOrders(), testMappings(), start, end, diag)

	for _, day := range dayRows {
		want := day.GrossSales.Sub(day.TotalServiceCharges).Sub(day.TotalDiscounts).Sub(day.TotalRefunds)
		if !day.NetSales.Equal(want) {
			t.Errorf("%s: net %s != gross-charges-discounts-refunds %s",
				day.BusinessDate.Format(time.DateOnly), day.NetSales, want)
		}
	}

	// The diagnostics net total must equal the sum over the day rows.
	sum := decimal.Zero
	for _, day := range dayRows {
		sum = sum.Add(day.NetSales)
	}
	snap := diag.Snapshot()
	if !snap.Revenue.NetSalesTotal.Equal(sum) {
		t.Errorf("diagnostics net %s != summed day rows %s", snap.Revenue.NetSalesTotal, sum)
	}
}

func TestAggregateOrdersNoDoubleCounting(t *testing.T) {
	start, end := windowJan2024()
	diag := NewDiagnostics()

	_, dayRows := AggregateOrders("rest-1", fixtureOrders(), testMappings(), start, end, diag)

	transactions := 0
	for _, day := range dayRows {
		transactions += day.TransactionCount
	}
	if admitted := diag.ExclusionStats().AdmittedChecks; transactions != admitted {
		t.Errorf("transaction count %d != admitted checks %d", transactions, admitted)
	}
}

func TestAggregateOrdersExclusionExhaustive(t *testing.T) {
	start, end := windowJan2024()
	diag := NewDiagnostics()

	orders := fixtureOrders()
	AggregateOrders("rest-1", orders, testMappings(), start, end, diag)

	// Every input order lands in exactly one bucket.
	ex := diag.ExclusionStats()
	accounted := ex.ProcessedOrders + ex.DeletedOrders.Count + ex.VoidedOrders.Count +
		ex.OutOfRangeOrders + ex.UnparsableDates
	if accounted != len(orders) {
		t.Errorf("accounted for %d of %d orders", accounted, len(orders))
	}
}

func TestAggregateOrdersDaypartTotalsMatchCategorySum(t *testing.T) {
	start, end := windowJan2024()
	diag := NewDiagnostics()

	daypartRows, _ := AggregateOrders("rest-1", fixtureOrders(), testMappings(), start, end, diag)

	catTotal := decimal.Zero
	for _, dp := range daypartRows {
		rowSum := dp.Food.Add(dp.Beer).Add(dp.Wine).Add(dp.Liquor).Add(dp.NonAlcoholic).Add(dp.Uncategorized)
		if !dp.Total.Equal(rowSum) {
			t.Errorf("%s/%s total %s != category sum %s",
				dp.BusinessDate.Format(time.DateOnly), dp.Daypart, dp.Total, rowSum)
		}
		catTotal = catTotal.Add(dp.Total)
	}

	snap := diag.Snapshot()
	if !snap.Revenue.CategorySalesTotal.Equal(catTotal) {
		t.Errorf("diagnostics category total %s != summed rows %s", snap.Revenue.CategorySalesTotal, catTotal)
	}
}

func TestAggregateOrdersDeterministic(t *testing.T) {
	start, end := windowJan2024()

	var first []byte
	for i := 0; i < 100; i++ {
		diag := NewDiagnostics()
		daypartRows, dayRows := AggregateOrders("rest-1", fixtureOrders(), testMappings(), start, end, diag)

		encoded, err := json.Marshal(struct {
			Dayparts []DaypartAggregate
			Days     []TransactionAggregate
			Snap     DiagnosticsSnapshot
		}{daypartRows, dayRows, diag.Snapshot()})
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = encoded
			continue
		}
		if string(encoded) != string(first) {
			t.Fatalf("iteration %d produced different output", i)
		}
	}
}

func TestAggregateOrdersEmptyInput(t *testing.T) {
	start, end := windowJan2024()
	diag := NewDiagnostics()

	daypartRows, dayRows := AggregateOrders("rest-1", nil, testMappings(), start, end, diag)
	if len(daypartRows) != 0 || len(dayRows) != 0 {
		t.Errorf("empty input produced rows: %d dayparts, %d days", len(daypartRows), len(dayRows))
	}
	snap := diag.Snapshot()
	if snap.MinBusinessDate != "" || snap.MaxBusinessDate != "" {
		t.Errorf("date span set on empty input: %s..%s", snap.MinBusinessDate, snap.MaxBusinessDate)
	}
}

func TestNetSelectionAmount(t *testing.T) {
	sel := &Selection{
		Price: json.Number("30.00"),
		AppliedDiscounts: []Discount{
			{Amount: json.Number("2.50")},
			{Amount: json.Number("1.50")},
		},
	}
	if got := netSelectionAmount(sel); got.String() != "26" {
		t.Errorf("netSelectionAmount = %s, want 26", got)
	}
}
