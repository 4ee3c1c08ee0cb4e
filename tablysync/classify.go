package tablysync

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// orderDisposition is the terminal classification of one order. Deleted wins
// over voided when both flags are set; check- and item-level voids are handled
// inside the admitted branch, not here.
type orderDisposition int

const (
	orderAdmitted orderDisposition = iota
	orderExcludedDeleted
	orderExcludedVoided
)

// classifyOrder decides whether an order participates in aggregation at all
// and records the exclusion tier diagnostically. Excluded orders contribute
// zero everywhere; the summed check amounts they would have carried are kept
// as the excluded-amount tallies.
func classifyOrder(o *Order, diag *Diagnostics) orderDisposition {
	if o.Deleted {
		diag.recordDeletedOrder(sumCheckAmounts(o.Checks))
		return orderExcludedDeleted
	}
	if o.Voided {
		diag.recordVoidedOrder(sumCheckAmounts(o.Checks))
		return orderExcludedVoided
	}
	return orderAdmitted
}

// admitCheck applies the check tier of the exclusion ladder. Sibling checks on
// the same order are evaluated independently: one voided check never excludes
// the rest of the order.
func admitCheck(chk *Check, diag *Diagnostics) bool {
	if chk.Voided {
		diag.recordVoidedCheck(decimalFromNumber(chk.Amount))
		return false
	}
	diag.recordAdmittedCheck()
	return true
}

// admitSelection applies the item tier. A voided selection is excluded from
// category allocation and from item-discount sums, but the upstream check
// total does not always net voided line items out, so the check amount itself
// is left untouched and the void is tracked under its own counter.
func admitSelection(sel *Selection, diag *Diagnostics) bool {
	if sel.Voided {
		diag.recordVoidedItem(decimalFromNumber(sel.Price))
		return false
	}
	return true
}

func sumCheckAmounts(checks []Check) decimal.Decimal {
	total := decimal.Zero
	for i := range checks {
		total = total.Add(decimalFromNumber(checks[i].Amount))
	}
	return total
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	if num.String() == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return decimal.Zero
}
