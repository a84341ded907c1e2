// Package budget implements the collaborative budget table: aggregate
// recomputation over the line items and a history-backed batch editor whose
// totals are kept server-synchronized through projectUpdated messages.
package budget

import "github.com/collabdesk/collabdesk/internal/client/models"

// Payload fields of a budget line item.
const (
	FieldQty            = "qty"
	FieldUnitBudgetCost = "unitBudgetCost"
	FieldUnitActualCost = "unitActualCost"
	FieldFinalCost      = "finalCost" // explicit override; absent means derived
)

// Payload fields of the budget header record.
const (
	FieldMarkup          = "markup"
	FieldBudgeted        = "budgeted"
	FieldActual          = "actual"
	FieldFinal           = "final"
	FieldEffectiveMarkup = "effectiveMarkup"
)

// FieldKind tags a record's payload with its role on the wire, so a
// broadcast header is never mistaken for a line item.
const (
	FieldKind  = "kind"
	KindHeader = "budgetHeader"
)

// Summary is the derived state of a budget table.
type Summary struct {
	Budgeted        float64
	Actual          float64
	Final           float64
	EffectiveMarkup float64
}

// Totals folds the live items into a Summary. markup is the header's markup
// factor used for lines without an explicit final cost; their fallback unit
// cost is the budgeted one.
func Totals(items []*models.Record, markup float64) Summary {
	var sum Summary
	for _, item := range items {
		if item == nil || item.Tombstoned {
			continue
		}
		qty := num(item.Payload[FieldQty])
		unitBudget := num(item.Payload[FieldUnitBudgetCost])

		sum.Budgeted += qty * unitBudget
		sum.Actual += qty * num(item.Payload[FieldUnitActualCost])

		if v, ok := item.Payload[FieldFinalCost]; ok {
			sum.Final += num(v)
		} else {
			sum.Final += qty * unitBudget * (1 + markup)
		}
	}
	if sum.Budgeted > 0 {
		sum.EffectiveMarkup = (sum.Final - sum.Budgeted) / sum.Budgeted
	}
	return sum
}

// num coerces a payload value to float64. JSON decoding yields float64;
// locally constructed payloads may hold ints.
func num(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int64:
		return float64(value)
	default:
		return 0
	}
}
