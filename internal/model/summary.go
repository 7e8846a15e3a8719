package model

// Severity grades a missing-data item.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarn    Severity = "warn"
	SeverityBlocker Severity = "blocker"
)

// MissingItem is a piece of data the operation summary still lacks.
type MissingItem struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

// CompletenessSnapshot is the document completeness at summary time.
type CompletenessSnapshot struct {
	Provided   int `json:"provided"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Budget is the cost breakdown of the operation.
type Budget struct {
	PurchasePrice *float64 `json:"purchase_price,omitempty"`
	WorksCost     *float64 `json:"works_cost,omitempty"`
	Fees          *float64 `json:"fees,omitempty"`
	Contingency   *float64 `json:"contingency,omitempty"`
	TotalCost     *float64 `json:"total_cost,omitempty"`
}

// Financing describes the requested loan and the borrower's contribution.
type Financing struct {
	LoanAmount     *float64    `json:"loan_amount,omitempty"`
	Equity         *float64    `json:"equity,omitempty"`
	RatePct        *float64    `json:"rate_pct,omitempty"`
	DurationMonths *int        `json:"duration_months,omitempty"`
	Guarantees     []Guarantee `json:"guarantees,omitempty"`
}

// Revenues holds the expected income of the operation. Which fields matter
// depends on the profile: rents for investors, resale price for traders,
// pre-sales for developers.
type Revenues struct {
	MonthlyRent   *float64 `json:"monthly_rent,omitempty"`
	AnnualRent    *float64 `json:"annual_rent,omitempty"`
	ResalePrice   *float64 `json:"resale_price,omitempty"`
	PresalesPct   *float64 `json:"presales_pct,omitempty"`
	OccupancyRate *float64 `json:"occupancy_rate,omitempty"`
}

// Comparable is a single reference transaction from a market source.
type Comparable struct {
	Address     string  `json:"address,omitempty"`
	Date        string  `json:"date,omitempty"`
	Price       float64 `json:"price"`
	SurfaceSqm  float64 `json:"surface_sqm,omitempty"`
	PricePerSqm float64 `json:"price_per_sqm,omitempty"`
}

// MarketData is the normalized market study fed by enrichment sources
// (DVF transaction history, listings, in-house studies).
type MarketData struct {
	Source            string       `json:"source,omitempty"`
	Score             *float64     `json:"score,omitempty"`
	PricePerSqm       *float64     `json:"price_per_sqm,omitempty"`
	MarketPricePerSqm *float64     `json:"market_price_per_sqm,omitempty"`
	TransactionCount  *int         `json:"transaction_count,omitempty"`
	Tension           string       `json:"tension,omitempty"`
	Comparables       []Comparable `json:"comparables,omitempty"`
}

// RiskLevelTag is a qualitative hazard level reported by a risk source.
type RiskLevelTag string

const (
	HazardLow    RiskLevelTag = "low"
	HazardMedium RiskLevelTag = "medium"
	HazardHigh   RiskLevelTag = "high"
)

// Hazard is one geographic or natural risk on the site.
type Hazard struct {
	Kind  string       `json:"kind"`
	Label string       `json:"label,omitempty"`
	Level RiskLevelTag `json:"level"`
}

// RiskProfile groups geographic, urbanism and execution risks.
type RiskProfile struct {
	Hazards           []Hazard     `json:"hazards,omitempty"`
	FloodZone         bool         `json:"flood_zone,omitempty"`
	UrbanismCompliant *bool        `json:"urbanism_compliant,omitempty"`
	PermitStatus      string       `json:"permit_status,omitempty"` // none, filed, obtained, purged
	ExecutionRisk     RiskLevelTag `json:"execution_risk,omitempty"`
}

// PropertyCondition describes the asset itself.
type PropertyCondition struct {
	State       string   `json:"state,omitempty"` // new, good, average, poor, to_renovate
	SurfaceSqm  *float64 `json:"surface_sqm,omitempty"`
	EnergyClass string   `json:"energy_class,omitempty"` // DPE A..G
}

// Calendar is the operation schedule.
type Calendar struct {
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	DurationMonths *int   `json:"duration_months,omitempty"`
	DelayMonths    *int   `json:"delay_months,omitempty"`
}

// KPIs are the headline ratios. LTV, margin, yield and debt ratio are
// percentages; DSCR is a plain ratio.
type KPIs struct {
	LTV       *float64 `json:"ltv,omitempty"`
	DSCR      *float64 `json:"dscr,omitempty"`
	MarginPct *float64 `json:"margin_pct,omitempty"`
	YieldPct  *float64 `json:"yield_pct,omitempty"`
	DebtRatio *float64 `json:"debt_ratio,omitempty"`
}

// OperationSummary is the enriched, profile-tagged aggregate consumed by the
// SmartScore engine. It is built from a dossier and progressively filled in
// by enrichment; the engine never fetches data itself.
type OperationSummary struct {
	DossierID    string                `json:"dossier_id,omitempty"`
	Profile      Profile               `json:"profile"`
	Completeness *CompletenessSnapshot `json:"completeness,omitempty"`
	Budget       *Budget               `json:"budget,omitempty"`
	Financing    *Financing            `json:"financing,omitempty"`
	Revenues     *Revenues             `json:"revenues,omitempty"`
	Market       *MarketData           `json:"market,omitempty"`
	Risk         *RiskProfile          `json:"risk,omitempty"`
	Property     *PropertyCondition    `json:"property,omitempty"`
	Calendar     *Calendar             `json:"calendar,omitempty"`
	KPIs         KPIs                  `json:"kpis"`
	Missing      []MissingItem         `json:"missing,omitempty"`
}
