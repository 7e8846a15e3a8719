package intake

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

// RiskLevel is the qualitative risk of a dossier.
type RiskLevel string

const (
	RiskUnknown RiskLevel = "unknown"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

// LTV band limits. Both bands include their upper bound.
const (
	ltvLowBand  = 0.6
	ltvHighBand = 0.8
)

// GuaranteeTotal sums guarantee amounts exactly. Non-finite amounts count as
// zero so a single corrupted entry does not void the others.
func GuaranteeTotal(gs []model.Guarantee) decimal.Decimal {
	total := decimal.Zero
	for _, g := range gs {
		if v := guard.Finite(g.Amount); v != nil {
			total = total.Add(decimal.NewFromFloat(*v))
		}
	}
	return total
}

// ComputeLTV returns requested amount / collateral value, where collateral
// is the guarantee total or, when that is not positive, the project value.
// It returns nil when the requested amount or the chosen denominator is not
// strictly positive.
func ComputeLTV(d *model.Dossier) *float64 {
	amount := guard.Positive(d.RequestedAmount)
	if amount == nil {
		return nil
	}

	denom := GuaranteeTotal(d.Guarantees)
	if !denom.IsPositive() {
		pv := guard.Positive(d.ProjectValue)
		if pv == nil {
			return nil
		}
		denom = decimal.NewFromFloat(*pv)
	}

	ltv, _ := decimal.NewFromFloat(*amount).DivRound(denom, 12).Float64()
	return guard.Finite(ltv)
}

// ClassifyRisk maps LTV and guarantee presence to a risk level. A dossier
// with no positive requested amount or no known LTV is "unknown".
func ClassifyRisk(d *model.Dossier, ltv *float64) RiskLevel {
	if guard.Positive(d.RequestedAmount) == nil || ltv == nil {
		return RiskUnknown
	}
	guaranteed := d.HasGuarantees()
	switch {
	case *ltv <= ltvLowBand:
		if guaranteed {
			return RiskLow
		}
		return RiskMedium
	case *ltv <= ltvHighBand:
		if guaranteed {
			return RiskMedium
		}
		return RiskHigh
	default:
		return RiskHigh
	}
}
