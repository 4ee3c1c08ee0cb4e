package tablysync

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// diagnosticSampleLimit caps how many dropped-entity identifiers are retained
// verbatim; beyond that only the running totals grow.
const diagnosticSampleLimit = 5

// Tally is a count plus the summed amount it represents.
type Tally struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

func (t *Tally) add(amount decimal.Decimal) {
	t.Count++
	t.Amount = t.Amount.Add(amount)
}

// DroppedOrderSample identifies one of the first few orders dropped before
// aggregation, kept to make upstream data problems debuggable.
type DroppedOrderSample struct {
	OrderGUID    string `json:"orderGuid"`
	BusinessDate string `json:"businessDate"`
}

// Diagnostics is the reconciliation side channel for exactly one sync run.
// A fresh instance is created per run and returned with the aggregates; it is
// never shared across runs. All mutators are mutex-guarded so the per-order
// fold may be parallelized.
type Diagnostics struct {
	mu sync.Mutex

	deletedOrders Tally
	voidedOrders  Tally
	voidedChecks  Tally
	voidedItems   Tally

	processedOrders int
	admittedChecks  int

	outOfRangeOrders      int
	outOfRangeSamples     []DroppedOrderSample
	unparsableDates       int
	unparsableDateSamples []DroppedOrderSample

	itemDiscounts           Tally
	checkDiscounts          Tally
	derivedDiscountEstimate decimal.Decimal

	refundsFromObject Tally
	refundsFromField  Tally

	gratuityCharges    Tally
	nonGratuityCharges Tally

	categorySalesTotal  decimal.Decimal
	netSalesTotal       decimal.Decimal
	uncategorizedSales  decimal.Decimal
	unmappedCategoryIds map[string]int

	minDate time.Time
	maxDate time.Time
}

func NewDiagnostics() *Diagnostics {
	d := &Diagnostics{}
	d.Reset()
	return d
}

// Reset zeroes every counter. Idempotent; must run before a run reuses an
// instance after an error.
func (d *Diagnostics) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deletedOrders = Tally{}
	d.voidedOrders = Tally{}
	d.voidedChecks = Tally{}
	d.voidedItems = Tally{}
	d.processedOrders = 0
	d.admittedChecks = 0
	d.outOfRangeOrders = 0
	d.outOfRangeSamples = nil
	d.unparsableDates = 0
	d.unparsableDateSamples = nil
	d.itemDiscounts = Tally{}
	d.checkDiscounts = Tally{}
	d.derivedDiscountEstimate = decimal.Zero
	d.refundsFromObject = Tally{}
	d.refundsFromField = Tally{}
	d.gratuityCharges = Tally{}
	d.nonGratuityCharges = Tally{}
	d.categorySalesTotal = decimal.Zero
	d.netSalesTotal = decimal.Zero
	d.uncategorizedSales = decimal.Zero
	d.unmappedCategoryIds = map[string]int{}
	d.minDate = time.Time{}
	d.maxDate = time.Time{}
}

func (d *Diagnostics) recordDeletedOrder(excludedAmount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deletedOrders.add(excludedAmount)
}

func (d *Diagnostics) recordVoidedOrder(excludedAmount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.voidedOrders.add(excludedAmount)
}

func (d *Diagnostics) recordVoidedCheck(excludedAmount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.voidedChecks.add(excludedAmount)
}

func (d *Diagnostics) recordVoidedItem(excludedAmount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.voidedItems.add(excludedAmount)
}

func (d *Diagnostics) recordProcessedOrder(businessDate time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processedOrders++
	if d.minDate.IsZero() || businessDate.Before(d.minDate) {
		d.minDate = businessDate
	}
	if d.maxDate.IsZero() || businessDate.After(d.maxDate) {
		d.maxDate = businessDate
	}
}

func (d *Diagnostics) recordAdmittedCheck() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.admittedChecks++
}

func (d *Diagnostics) recordOutOfRangeOrder(orderGUID string, businessDate string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outOfRangeOrders++
	if len(d.outOfRangeSamples) < diagnosticSampleLimit {
		d.outOfRangeSamples = append(d.outOfRangeSamples, DroppedOrderSample{
			OrderGUID:    orderGUID,
			BusinessDate: businessDate,
		})
	}
}

func (d *Diagnostics) recordUnparsableDate(orderGUID string, raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unparsableDates++
	if len(d.unparsableDateSamples) < diagnosticSampleLimit {
		d.unparsableDateSamples = append(d.unparsableDateSamples, DroppedOrderSample{
			OrderGUID:    orderGUID,
			BusinessDate: raw,
		})
	}
}

func (d *Diagnostics) recordItemDiscount(amount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.itemDiscounts.add(amount)
}

func (d *Diagnostics) recordCheckDiscount(amount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkDiscounts.add(amount)
}

func (d *Diagnostics) recordDerivedDiscountEstimate(amount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.derivedDiscountEstimate = d.derivedDiscountEstimate.Add(amount)
}

func (d *Diagnostics) recordRefund(r resolvedRefund) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch r.Source {
	case refundFromObject:
		d.refundsFromObject.add(r.Amount)
	case refundFromField:
		d.refundsFromField.add(r.Amount)
	}
}

func (d *Diagnostics) recordServiceCharge(gratuity bool, amount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gratuity {
		d.gratuityCharges.add(amount)
	} else {
		d.nonGratuityCharges.add(amount)
	}
}

func (d *Diagnostics) recordCategorySale(amount decimal.Decimal, mapped bool, rawCategoryId string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.categorySalesTotal = d.categorySalesTotal.Add(amount)
	if !mapped {
		d.uncategorizedSales = d.uncategorizedSales.Add(amount)
		if rawCategoryId != "" {
			d.unmappedCategoryIds[rawCategoryId]++
		}
	}
}

func (d *Diagnostics) recordNetSales(amount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.netSalesTotal = d.netSalesTotal.Add(amount)
}

// ExclusionStats is the per-tier void/delete breakdown plus the orders that
// never reached classification.
type ExclusionStats struct {
	DeletedOrders         Tally                `json:"deletedOrders"`
	VoidedOrders          Tally                `json:"voidedOrders"`
	VoidedChecks          Tally                `json:"voidedChecks"`
	VoidedItems           Tally                `json:"voidedItems"`
	OutOfRangeOrders      int                  `json:"outOfRangeOrders"`
	OutOfRangeSamples     []DroppedOrderSample `json:"outOfRangeSamples,omitempty"`
	UnparsableDates       int                  `json:"unparsableDates"`
	UnparsableDateSamples []DroppedOrderSample `json:"unparsableDateSamples,omitempty"`
	ProcessedOrders       int                  `json:"processedOrders"`
	AdmittedChecks        int                  `json:"admittedChecks"`
}

type DiscountStats struct {
	ItemLevel               Tally           `json:"itemLevel"`
	CheckLevel              Tally           `json:"checkLevel"`
	AuthoritativeTotal      decimal.Decimal `json:"authoritativeTotal"`
	DerivedDiscountEstimate decimal.Decimal `json:"derivedDiscountEstimate"`
}

type RefundStats struct {
	FromRefundObject Tally           `json:"fromRefundObject"`
	FromPaymentField Tally           `json:"fromPaymentField"`
	TotalApplied     decimal.Decimal `json:"totalApplied"`
}

type ServiceChargeStats struct {
	Gratuity    Tally `json:"gratuity"`
	NonGratuity Tally `json:"nonGratuity"`
}

// RevenueComparison cross-checks the two independent revenue computations.
// Gap is signed: categorized sales minus decomposed net sales. A persistent
// non-zero gap means sales categories are going unmapped or upstream check
// totals disagree with their selections.
type RevenueComparison struct {
	CategorySalesTotal  decimal.Decimal `json:"categorySalesTotal"`
	NetSalesTotal       decimal.Decimal `json:"netSalesTotal"`
	Gap                 decimal.Decimal `json:"gap"`
	UncategorizedSales  decimal.Decimal `json:"uncategorizedSales"`
	UnmappedCategoryIds map[string]int  `json:"unmappedCategoryIds,omitempty"`
}

// DiagnosticsSnapshot is a point-in-time copy of every counter. Reading it has
// no side effects and may be repeated.
type DiagnosticsSnapshot struct {
	Exclusions      ExclusionStats     `json:"exclusions"`
	Discounts       DiscountStats      `json:"discounts"`
	Refunds         RefundStats        `json:"refunds"`
	ServiceCharges  ServiceChargeStats `json:"serviceCharges"`
	Revenue         RevenueComparison  `json:"revenue"`
	MinBusinessDate string             `json:"minBusinessDate,omitempty"`
	MaxBusinessDate string             `json:"maxBusinessDate,omitempty"`
}

func (d *Diagnostics) Snapshot() DiagnosticsSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	unmapped := make(map[string]int, len(d.unmappedCategoryIds))
	for k, v := range d.unmappedCategoryIds {
		unmapped[k] = v
	}

	snap := DiagnosticsSnapshot{
		Exclusions: ExclusionStats{
			DeletedOrders:         d.deletedOrders,
			VoidedOrders:          d.voidedOrders,
			VoidedChecks:          d.voidedChecks,
			VoidedItems:           d.voidedItems,
			OutOfRangeOrders:      d.outOfRangeOrders,
			OutOfRangeSamples:     append([]DroppedOrderSample(nil), d.outOfRangeSamples...),
			UnparsableDates:       d.unparsableDates,
			UnparsableDateSamples: append([]DroppedOrderSample(nil), d.unparsableDateSamples...),
			ProcessedOrders:       d.processedOrders,
			AdmittedChecks:        d.admittedChecks,
		},
		Discounts: DiscountStats{
			ItemLevel:               d.itemDiscounts,
			CheckLevel:              d.checkDiscounts,
			AuthoritativeTotal:      d.itemDiscounts.Amount.Add(d.checkDiscounts.Amount),
			DerivedDiscountEstimate: d.derivedDiscountEstimate,
		},
		Refunds: RefundStats{
			FromRefundObject: d.refundsFromObject,
			FromPaymentField: d.refundsFromField,
			TotalApplied:     d.refundsFromObject.Amount.Add(d.refundsFromField.Amount),
		},
		ServiceCharges: ServiceChargeStats{
			Gratuity:    d.gratuityCharges,
			NonGratuity: d.nonGratuityCharges,
		},
		Revenue: RevenueComparison{
			CategorySalesTotal:  d.categorySalesTotal,
			NetSalesTotal:       d.netSalesTotal,
			Gap:                 d.categorySalesTotal.Sub(d.netSalesTotal),
			UncategorizedSales:  d.uncategorizedSales,
			UnmappedCategoryIds: unmapped,
		},
	}
	if !d.minDate.IsZero() {
		snap.MinBusinessDate = d.minDate.Format(time.DateOnly)
	}
	if !d.maxDate.IsZero() {
		snap.MaxBusinessDate = d.maxDate.Format(time.DateOnly)
	}
	return snap
}

// Section accessors for callers that only need one slice of the snapshot.

func (d *Diagnostics) ExclusionStats() ExclusionStats { return d.Snapshot().Exclusions }

func (d *Diagnostics) DiscountStats() DiscountStats { return d.Snapshot().Discounts }

func (d *Diagnostics) RefundStats() RefundStats { return d.Snapshot().Refunds }

func (d *Diagnostics) ServiceChargeStats() ServiceChargeStats { return d.Snapshot().ServiceCharges }

func (d *Diagnostics) RevenueComparison() RevenueComparison { return d.Snapshot().Revenue }
