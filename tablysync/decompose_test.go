package tablysync

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestResolvePaymentRefundPrecedence(t *testing.T) {
	cases := []struct {
		name       string
		payment    Payment
		wantSource refundSource
		wantAmount string
	}{
		{
			name:       "object wins over flat field",
			payment:    Payment{RefundAmount: json.Number("5.00"), Refund: &Refund{Amount: json.Number("8.00")}},
			wantSource: refundFromObject,
			wantAmount: "8",
		},
		{
			name:       "flat field used when object absent",
			payment:    Payment{RefundAmount: json.Number("5.00")},
			wantSource: refundFromField,
			wantAmount: "5",
		},
		{
			name:       "zero object falls through to flat field",
			payment:    Payment{RefundAmount: json.Number("5.00"), Refund: &Refund{Amount: json.Number("0")}},
			wantSource: refundFromField,
			wantAmount: "5",
		},
		{
			name:       "no refund",
			payment:    Payment{Amount: json.Number("20.00")},
			wantSource: refundNone,
			wantAmount: "0",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := resolvePaymentRefund(&c.payment)
			if got.Source != c.wantSource {
				t.Errorf("source = %v, want %v", got.Source, c.wantSource)
			}
			if got.Amount.String() != c.wantAmount {
				t.Errorf("amount = %s, want %s", got.Amount, c.wantAmount)
			}
		})
	}
}

func TestDecomposeCheckConservation(t *testing.T) {
	chk := &Check{
		GUID:   "c1",
		Amount: json.Number("100.00"),
		Selections: []Selection{
			{Price: json.Number("60.00"), AppliedDiscounts: []Discount{{Amount: json.Number("5.00")}}},
			{Price: json.Number("45.00")},
		},
		AppliedDiscounts: []Discount{{Amount: json.Number("10.00")}},
		Payments: []Payment{
			{Amount: json.Number("100.00"), Refund: &Refund{Amount: json.Number("7.00")}},
		},
		AppliedServiceCharges: []ServiceCharge{
			{Amount: json.Number("3.00"), Gratuity: true},
			{Amount: json.Number("2.00"), Gratuity: false},
		},
	}

	diag := NewDiagnostics()
	f := decomposeCheck(chk, diag)

	if f.Gross.String() != "100" {
		t.Errorf("gross = %s", f.Gross)
	}
	if f.ItemDiscounts.String() != "5" || f.CheckDiscounts.String() != "10" {
		t.Errorf("discounts item=%s check=%s", f.ItemDiscounts, f.CheckDiscounts)
	}
	if f.Refunds.String() != "7" {
		t.Errorf("refunds = %s", f.Refunds)
	}
	if f.GratuityCharges.String() != "3" || f.NonGratuityCharges.String() != "2" {
		t.Errorf("charges gratuity=%s other=%s", f.GratuityCharges, f.NonGratuityCharges)
	}

	// net = gross - serviceCharges - discounts - refunds, exactly.
	want := f.Gross.Sub(f.serviceCharges()).Sub(f.discounts()).Sub(f.Refunds)
	if !f.Net.Equal(want) {
		t.Errorf("net = %s, want %s", f.Net, want)
	}
	if f.Net.String() != "73" {
		t.Errorf("net = %s, want 73", f.Net)
	}
}

func TestDecomposeCheckSimpleDiscount(t *testing.T) {
	chk := &Check{
		Amount:           json.Number("100.00"),
		AppliedDiscounts: []Discount{{Amount: json.Number("10.00")}},
	}
	diag := NewDiagnostics()
	f := decomposeCheck(chk, diag)

	if f.Net.String() != "90" || f.discounts().String() != "10" || !f.Refunds.IsZero() {
		t.Errorf("net=%s discounts=%s refunds=%s, want 90/10/0", f.Net, f.discounts(), f.Refunds)
	}
}

func TestDecomposeCheckRefundsNeverSummed(t *testing.T) {
	// Both representations present on one payment: only the object amount
	// may reach the total.
	chk := &Check{
		Amount: json.Number("50.00"),
		Payments: []Payment{
			{RefundAmount: json.Number("10.00"), Refund: &Refund{Amount: json.Number("10.00")}},
		},
	}
	diag := NewDiagnostics()
	f := decomposeCheck(chk, diag)

	if f.Refunds.String() != "10" {
		t.Fatalf("refunds = %s, want 10 (summed representations?)", f.Refunds)
	}
	snap := diag.Snapshot()
	if snap.Refunds.FromRefundObject.Count != 1 || snap.Refunds.FromPaymentField.Count != 0 {
		t.Errorf("refund source tallies = %+v", snap.Refunds)
	}
	if snap.Refunds.TotalApplied.String() != "10" {
		t.Errorf("total applied = %s", snap.Refunds.TotalApplied)
	}
}

func TestDecomposeCheckVoidedSelectionDiscountsExcluded(t *testing.T) {
	chk := &Check{
		Amount: json.Number("40.00"),
		Selections: []Selection{
			{Price: json.Number("40.00")},
			{Price: json.Number("15.00"), Voided: true, AppliedDiscounts: []Discount{{Amount: json.Number("3.00")}}},
		},
	}
	diag := NewDiagnostics()
	f := decomposeCheck(chk, diag)

	if !f.ItemDiscounts.IsZero() {
		t.Errorf("item discounts = %s, want 0 (voided selection's discount leaked)", f.ItemDiscounts)
	}
}

func TestDecomposeCheckDerivedEstimateIsDiagnosticOnly(t *testing.T) {
	// Selection prices exceed the check amount by 12: the provider discounted
	// without sending discount records. The estimate must surface in
	// diagnostics without touching the authoritative total or net.
	chk := &Check{
		Amount: json.Number("88.00"),
		Selections: []Selection{
			{Price: json.Number("100.00")},
		},
	}
	diag := NewDiagnostics()
	f := decomposeCheck(chk, diag)

	snap := diag.Snapshot()
	if snap.Discounts.DerivedDiscountEstimate.String() != "12" {
		t.Errorf("derived estimate = %s, want 12", snap.Discounts.DerivedDiscountEstimate)
	}
	if !snap.Discounts.AuthoritativeTotal.IsZero() {
		t.Errorf("authoritative total = %s, want 0", snap.Discounts.AuthoritativeTotal)
	}
	if f.Net.String() != "88" {
		t.Errorf("net = %s, want 88", f.Net)
	}
}

func TestDecomposeCheckNegativeNetPassesThrough(t *testing.T) {
	chk := &Check{
		Amount:           json.Number("10.00"),
		AppliedDiscounts: []Discount{{Amount: json.Number("15.00")}},
	}
	diag := NewDiagnostics()
	f := decomposeCheck(chk, diag)

	if !f.Net.Equal(decimal.NewFromInt(-5)) {
		t.Errorf("net = %s, want -5 (clamped?)", f.Net)
	}
}
