package model

// MarketStudy is the market block of a committee report.
type MarketStudy struct {
	Score             *float64 `json:"score,omitempty"`
	TransactionCount  *int     `json:"transaction_count,omitempty"`
	PricePerSqm       *float64 `json:"price_per_sqm,omitempty"`
	MarketPricePerSqm *float64 `json:"market_price_per_sqm,omitempty"`
	Tension           string   `json:"tension,omitempty"`
}

// PillarBrief is the report-level view of one scored pillar.
type PillarBrief struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	RawScore int    `json:"raw_score"`
	HasData  bool   `json:"has_data"`
}

// ReportScore is the smartscore block of a committee report.
type ReportScore struct {
	Score   int           `json:"score"`
	Grade   string        `json:"grade"`
	Verdict string        `json:"verdict"`
	Pillars []PillarBrief `json:"pillars,omitempty"`
}

// WeakPillars returns the pillars with data scoring below 50.
func (s *ReportScore) WeakPillars() []PillarBrief {
	if s == nil {
		return nil
	}
	var out []PillarBrief
	for _, p := range s.Pillars {
		if p.HasData && p.RawScore < 50 {
			out = append(out, p)
		}
	}
	return out
}

// ReportKPIs is the KPI bag of a committee report. LTV, margin and debt
// ratio are percentages; Rent is annual rent and Cost the total operation
// cost, both in euros.
type ReportKPIs struct {
	LTV       *float64 `json:"ltv,omitempty"`
	DSCR      *float64 `json:"dscr,omitempty"`
	Rent      *float64 `json:"rent,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
	Margin    *float64 `json:"margin,omitempty"`
	DebtRatio *float64 `json:"debt_ratio,omitempty"`
}

// ReportInput is the flattened projection of dossier, operation summary and
// smartscore used to draft the committee memo.
type ReportInput struct {
	ProgrammeName string       `json:"programme_name"`
	Market        *MarketStudy `json:"market,omitempty"`
	SmartScore    *ReportScore `json:"smartscore,omitempty"`
	KPIs          ReportKPIs   `json:"kpis"`
	Missing       []string     `json:"missing,omitempty"`
}
