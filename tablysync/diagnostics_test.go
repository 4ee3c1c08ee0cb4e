package tablysync

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDiagnosticsResetIdempotent(t *testing.T) {
	d := NewDiagnostics()
	d.recordDeletedOrder(decimal.NewFromInt(10))
	d.recordProcessedOrder(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	d.recordCategorySale(decimal.NewFromInt(5), false, "cat-x")

	d.Reset()
	first := d.Snapshot()
	d.Reset()
	second := d.Snapshot()

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated Reset produced different snapshots")
	}
	if first.Exclusions.DeletedOrders.Count != 0 || first.Exclusions.ProcessedOrders != 0 {
		t.Errorf("reset left counters: %+v", first.Exclusions)
	}
	if !first.Revenue.CategorySalesTotal.IsZero() || len(first.Revenue.UnmappedCategoryIds) != 0 {
		t.Errorf("reset left revenue state: %+v", first.Revenue)
	}
}

func TestDiagnosticsSnapshotHasNoSideEffects(t *testing.T) {
	d := NewDiagnostics()
	d.recordVoidedCheck(decimal.NewFromInt(25))
	d.recordNetSales(decimal.NewFromInt(100))
	d.recordCategorySale(decimal.NewFromInt(90), true, "")

	first := d.Snapshot()
	second := d.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated Snapshot calls disagree")
	}

	// Mutating a snapshot's copies must not reach the live counters.
	first.Revenue.UnmappedCategoryIds["injected"] = 1
	if len(d.Snapshot().Revenue.UnmappedCategoryIds) != 0 {
		t.Error("snapshot shares the unmapped-ids map with the live instance")
	}
}

func TestDiagnosticsSampleLimit(t *testing.T) {
	d := NewDiagnostics()
	for i := 0; i < diagnosticSampleLimit+10; i++ {
		d.recordOutOfRangeOrder(fmt.Sprintf("ord-%d", i), "20240201")
		d.recordUnparsableDate(fmt.Sprintf("ord-bad-%d", i), "???")
	}

	snap := d.Snapshot()
	if snap.Exclusions.OutOfRangeOrders != diagnosticSampleLimit+10 {
		t.Errorf("out-of-range count = %d", snap.Exclusions.OutOfRangeOrders)
	}
	if len(snap.Exclusions.OutOfRangeSamples) != diagnosticSampleLimit {
		t.Errorf("out-of-range samples = %d, want %d", len(snap.Exclusions.OutOfRangeSamples), diagnosticSampleLimit)
	}
	if len(snap.Exclusions.UnparsableDateSamples) != diagnosticSampleLimit {
		t.Errorf("unparsable samples = %d, want %d", len(snap.Exclusions.UnparsableDateSamples), diagnosticSampleLimit)
	}
	// The retained samples are the first seen, in arrival order.
	if snap.Exclusions.OutOfRangeSamples[0].OrderGUID != "ord-0" {
		t.Errorf("first sample = %+v", snap.Exclusions.OutOfRangeSamples[0])
	}
}

func TestDiagnosticsSectionAccessors(t *testing.T) {
	d := NewDiagnostics()
	d.recordVoidedItem(decimal.NewFromInt(4))
	d.recordItemDiscount(decimal.NewFromInt(2))
	d.recordRefund(resolvedRefund{Source: refundFromField, Amount: decimal.NewFromInt(1)})
	d.recordServiceCharge(true, decimal.NewFromInt(3))
	d.recordCategorySale(decimal.NewFromInt(50), true, "")

	snap := d.Snapshot()
	if !reflect.DeepEqual(d.ExclusionStats(), snap.Exclusions) {
		t.Error("ExclusionStats disagrees with snapshot")
	}
	if !reflect.DeepEqual(d.DiscountStats(), snap.Discounts) {
		t.Error("DiscountStats disagrees with snapshot")
	}
	if !reflect.DeepEqual(d.RefundStats(), snap.Refunds) {
		t.Error("RefundStats disagrees with snapshot")
	}
	if !reflect.DeepEqual(d.ServiceChargeStats(), snap.ServiceCharges) {
		t.Error("ServiceChargeStats disagrees with snapshot")
	}
	if !reflect.DeepEqual(d.RevenueComparison(), snap.Revenue) {
		t.Error("RevenueComparison disagrees with snapshot")
	}
}

func TestDiagnosticsRevenueGap(t *testing.T) {
	d := NewDiagnostics()
	d.recordCategorySale(decimal.NewFromInt(95), true, "")
	d.recordNetSales(decimal.NewFromInt(100))

	snap := d.Snapshot()
	if snap.Revenue.Gap.String() != "-5" {
		t.Errorf("gap = %s, want -5 (category minus net)", snap.Revenue.Gap)
	}
}

func TestDiagnosticsDateSpan(t *testing.T) {
	d := NewDiagnostics()
	d.recordProcessedOrder(time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC))
	d.recordProcessedOrder(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))
	d.recordProcessedOrder(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	snap := d.Snapshot()
	if snap.MinBusinessDate != "2024-01-12" || snap.MaxBusinessDate != "2024-01-18" {
		t.Errorf("span = %s..%s", snap.MinBusinessDate, snap.MaxBusinessDate)
	}
}

func TestDiagnosticsRefundSourcesKeptSeparate(t *testing.T) {
	d := NewDiagnostics()
	d.recordRefund(resolvedRefund{Source: refundFromObject, Amount: decimal.NewFromInt(8)})
	d.recordRefund(resolvedRefund{Source: refundFromField, Amount: decimal.NewFromInt(3)})
	d.recordRefund(resolvedRefund{Source: refundNone, Amount: decimal.NewFromInt(99)})

	snap := d.Snapshot()
	if snap.Refunds.FromRefundObject.Count != 1 || snap.Refunds.FromRefundObject.Amount.String() != "8" {
		t.Errorf("object tally = %+v", snap.Refunds.FromRefundObject)
	}
	if snap.Refunds.FromPaymentField.Count != 1 || snap.Refunds.FromPaymentField.Amount.String() != "3" {
		t.Errorf("field tally = %+v", snap.Refunds.FromPaymentField)
	}
	if snap.Refunds.TotalApplied.String() != "11" {
		t.Errorf("total = %s, want 11 (refundNone leaked?)", snap.Refunds.TotalApplied)
	}
}
