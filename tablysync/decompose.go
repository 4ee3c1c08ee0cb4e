package tablysync

import "github.com/shopspring/decimal"

// refundSource tags which wire representation a payment's refund came from.
type refundSource int

const (
	refundNone refundSource = iota
	refundFromObject
	refundFromField
)

type resolvedRefund struct {
	Source refundSource
	Amount decimal.Decimal
}

// resolvePaymentRefund picks exactly one refund amount per payment. The
// embedded refund object takes precedence over the flat refundAmount field;
// the two describe the same real-world refund and must never be summed.
func resolvePaymentRefund(p *Payment) resolvedRefund {
	if p.Refund != nil {
		if amt := decimalFromNumber(p.Refund.Amount); !amt.IsZero() {
			return resolvedRefund{Source: refundFromObject, Amount: amt}
		}
	}
	if amt := decimalFromNumber(p.RefundAmount); !amt.IsZero() {
		return resolvedRefund{Source: refundFromField, Amount: amt}
	}
	return resolvedRefund{Source: refundNone, Amount: decimal.Zero}
}

// checkFinancials is the full monetary decomposition of one admitted check.
type checkFinancials struct {
	Gross              decimal.Decimal
	ItemDiscounts      decimal.Decimal
	CheckDiscounts     decimal.Decimal
	Refunds            decimal.Decimal
	GratuityCharges    decimal.Decimal
	NonGratuityCharges decimal.Decimal
	Net                decimal.Decimal
}

func (f checkFinancials) discounts() decimal.Decimal {
	return f.ItemDiscounts.Add(f.CheckDiscounts)
}

func (f checkFinancials) serviceCharges() decimal.Decimal {
	return f.GratuityCharges.Add(f.NonGratuityCharges)
}

// decomposeCheck breaks one admitted check's overlapping monetary fields into
// the exclusive buckets the net-sales formula needs:
//
//	net = gross - serviceCharges - discounts - refunds
//
// Net is never clamped: a negative value is passed through so the revenue
// comparison can flag the upstream data problem.
func decomposeCheck(chk *Check, diag *Diagnostics) checkFinancials {
	f := checkFinancials{Gross: decimalFromNumber(chk.Amount)}

	// Discounts, by source. Item-level discounts on voided selections are
	// excluded along with their selection.
	selectionSubtotal := decimal.Zero
	for i := range chk.Selections {
		sel := &chk.Selections[i]
		selectionSubtotal = selectionSubtotal.Add(decimalFromNumber(sel.Price))
		if sel.Voided {
			continue
		}
		for j := range sel.AppliedDiscounts {
			amt := decimalFromNumber(sel.AppliedDiscounts[j].Amount)
			f.ItemDiscounts = f.ItemDiscounts.Add(amt)
			diag.recordItemDiscount(amt)
		}
	}
	for i := range chk.AppliedDiscounts {
		amt := decimalFromNumber(chk.AppliedDiscounts[i].Amount)
		f.CheckDiscounts = f.CheckDiscounts.Add(amt)
		diag.recordCheckDiscount(amt)
	}

	// Cross-check only: the gap between pre-discount selection prices and the
	// post-discount check amount estimates how much discounting the provider
	// applied, whether or not it sent discount records for it. Published in
	// diagnostics, never added to the authoritative total.
	diag.recordDerivedDiscountEstimate(selectionSubtotal.Sub(f.Gross))

	for i := range chk.Payments {
		r := resolvePaymentRefund(&chk.Payments[i])
		if r.Source == refundNone {
			continue
		}
		f.Refunds = f.Refunds.Add(r.Amount)
		diag.recordRefund(r)
	}

	for i := range chk.AppliedServiceCharges {
		sc := &chk.AppliedServiceCharges[i]
		amt := decimalFromNumber(sc.Amount)
		if sc.Gratuity {
			f.GratuityCharges = f.GratuityCharges.Add(amt)
		} else {
			f.NonGratuityCharges = f.NonGratuityCharges.Add(amt)
		}
		diag.recordServiceCharge(sc.Gratuity, amt)
	}

	f.Net = f.Gross.Sub(f.serviceCharges()).Sub(f.discounts()).Sub(f.Refunds)
	diag.recordNetSales(f.Net)
	return f
}
