package committee

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

const maxFindings = 3

// shock perturbs rent, DSCR and asset value by multiplicative factors.
type shock struct {
	key   string
	label string
	rent  float64
	dscr  float64
	value float64
}

// Stress cases, base first. Order decides worst-case ties.
var shocks = []shock{
	{key: "base", label: "Cas de base", rent: 1, dscr: 1, value: 1},
	{key: "rent_minus_10", label: "Loyers -10 %", rent: 0.9, dscr: 0.9, value: 1},
	{key: "rent_minus_20", label: "Loyers -20 %", rent: 0.8, dscr: 0.8, value: 1},
	{key: "value_minus_10", label: "Valeur -10 %", rent: 1, dscr: 1, value: 0.9},
	{key: "rate_plus_1", label: "Taux +1 %", rent: 1, dscr: 0.9, value: 1},
}

// StressCase is one re-evaluation of the operation under a shock.
type StressCase struct {
	Key             string          `json:"key"`
	Label           string          `json:"label"`
	DSCR            *float64        `json:"dscr,omitempty"`
	LTV             *float64        `json:"ltv,omitempty"`
	Yield           *float64        `json:"yield,omitempty"`
	Acceptance      int             `json:"acceptance"`
	AcceptanceLabel AcceptanceLabel `json:"acceptance_label"`
}

// StressSummary condenses the cases for the committee.
type StressSummary struct {
	WorstCase       string   `json:"worst_case"`
	WorstCaseLabel  string   `json:"worst_case_label"`
	WorstAcceptance int      `json:"worst_acceptance"`
	WorstDSCR       *float64 `json:"worst_dscr,omitempty"`
	Findings        []string `json:"findings"`
}

// StressPack is the base case plus the four shocks, in fixed order.
type StressPack struct {
	Cases   []StressCase  `json:"cases"`
	Summary StressSummary `json:"summary"`
}

// RunStressTest re-derives DSCR, LTV and yield under each shock and
// re-estimates acceptance with everything else unchanged. Cases are
// evaluated concurrently; the returned order is fixed.
func RunStressTest(ctx context.Context, in model.ReportInput) (*StressPack, error) {
	base := metricsOf(in)
	cases := make([]StressCase, len(shocks))

	g, gctx := errgroup.WithContext(ctx)
	for i, sh := range shocks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cases[i] = runCase(base, sh)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "committee: stress test")
	}

	return &StressPack{Cases: cases, Summary: summarize(cases)}, nil
}

// shocked scales p by num/den in decimal arithmetic and rounds half away
// from zero, leaving unshocked values untouched.
func shocked(p *float64, num, den float64, decimals int32) *float64 {
	if num == den {
		return p
	}
	if p = guard.FinitePtr(p); p == nil {
		return nil
	}
	v, _ := decimal.NewFromFloat(*p).
		Mul(decimal.NewFromFloat(num)).
		Div(decimal.NewFromFloat(den)).
		Round(decimals).
		Float64()
	return guard.Finite(v)
}

func runCase(base metrics, sh shock) StressCase {
	m := base
	m.rent = shocked(base.rent, sh.rent, 1, 2)
	m.dscr = shocked(base.dscr, sh.dscr, 1, 2)
	m.ltv = shocked(base.ltv, 1, sh.value, 1)
	if sh.rent != 1 {
		m.yield = guard.RoundPtr(yieldOf(m.rent, m.cost), 2)
	}

	acc := acceptanceOf(m)
	return StressCase{
		Key:             sh.key,
		Label:           sh.label,
		DSCR:            m.dscr,
		LTV:             m.ltv,
		Yield:           m.yield,
		Acceptance:      acc.Score,
		AcceptanceLabel: acc.Label,
	}
}

func summarize(cases []StressCase) StressSummary {
	s := StressSummary{Findings: []string{}}
	if len(cases) == 0 {
		return s
	}

	worst := cases[0]
	for _, c := range cases[1:] {
		if c.Acceptance < worst.Acceptance {
			worst = c
		}
	}
	s.WorstCase, s.WorstCaseLabel, s.WorstAcceptance = worst.Key, worst.Label, worst.Acceptance

	for _, c := range cases {
		if c.DSCR != nil && (s.WorstDSCR == nil || *c.DSCR < *s.WorstDSCR) {
			v := *c.DSCR
			s.WorstDSCR = &v
		}
	}

	checks := []func() string{
		func() string {
			if worst.Key == cases[0].Key {
				return "Aucun choc ne dégrade la probabilité d'acceptation (" + fmtInt(worst.Acceptance) + "/100)."
			}
			return "Scénario le plus défavorable : " + worst.Label + ", acceptation ramenée à " +
				fmtInt(worst.Acceptance) + "/100 contre " + fmtInt(cases[0].Acceptance) + "/100 en base."
		},
		func() string {
			n := 0
			for _, c := range cases[1:] {
				if below(c.DSCR, DSCRFloor) {
					n++
				}
			}
			if n == 0 {
				return ""
			}
			return "Le DSCR passe sous 1,00 dans " + fmtInt(n) + " scénario(s) de stress."
		},
		func() string {
			var labels []string
			for _, c := range cases[1:] {
				if above(c.LTV, LTVCeiling) {
					labels = append(labels, c.Label)
				}
			}
			if len(labels) == 0 {
				return ""
			}
			return "LTV au-delà de 80 % en cas de : " + strings.Join(labels, ", ") + "."
		},
	}
	for _, check := range checks {
		if len(s.Findings) == maxFindings {
			break
		}
		if f := check(); f != "" {
			s.Findings = append(s.Findings, f)
		}
	}
	return s
}
