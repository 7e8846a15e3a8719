package model

import "time"

// Profile identifies the borrower profile a dossier is assessed under.
// It selects both the required-document catalog and the scoring weights.
type Profile string

const (
	ProfileResidential Profile = "residential" // buy-to-let / residential investor (baseline)
	ProfileTrader      Profile = "trader"      // marchand de biens: buy, renovate, resell
	ProfileDeveloper   Profile = "developer"   // promoteur: build and sell off-plan
	ProfileCorporate   Profile = "corporate"   // business owner acquiring premises
)

// Profiles lists every supported profile in display order.
var Profiles = []Profile{ProfileResidential, ProfileTrader, ProfileDeveloper, ProfileCorporate}

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool {
	for _, k := range Profiles {
		if p == k {
			return true
		}
	}
	return false
}

// DocumentStatus is the intake state of a single dossier document.
type DocumentStatus string

const (
	DocumentSupplied      DocumentStatus = "supplied"
	DocumentPending       DocumentStatus = "pending"
	DocumentNotApplicable DocumentStatus = "not_applicable"
)

// Document is one entry of the dossier's document list.
type Document struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Category string         `json:"category,omitempty"`
	Status   DocumentStatus `json:"status"`
}

// Guarantee is a security pledged against the financing.
type Guarantee struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"` // hypotheque, caution, nantissement, gage...
	Label  string  `json:"label,omitempty"`
	Amount float64 `json:"amount"`
}

// ConditionSource tells whether a condition was suggested by the engine or
// typed by an analyst.
type ConditionSource string

const (
	ConditionAuto   ConditionSource = "auto"
	ConditionManual ConditionSource = "manual"
)

// Condition is a committee condition attached to a dossier.
type Condition struct {
	ID     string          `json:"id"`
	Text   string          `json:"text"`
	Source ConditionSource `json:"source"`
	Met    bool            `json:"met"`
}

// Verdict is a committee decision outcome.
type Verdict string

const (
	VerdictGo                 Verdict = "GO"
	VerdictGoWithConditions   Verdict = "GO_SOUS_CONDITIONS"
	VerdictGoStrictConditions Verdict = "GO_SOUS_CONDITIONS_STRICTES"
	VerdictGoPatrimonial      Verdict = "GO_PATRIMONIAL"
	VerdictReserved           Verdict = "RESERVE"
	VerdictNoGo               Verdict = "NO_GO"
)

// Decision is the final, human-recorded committee decision.
type Decision struct {
	Verdict   Verdict   `json:"verdict"`
	Comment   string    `json:"comment,omitempty"`
	DecidedBy string    `json:"decided_by,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Dossier is a single financing case as entered by the analyst. Amounts are
// kept exactly as typed; the engine guards them on every computation.
type Dossier struct {
	ID              string      `json:"id"`
	Reference       string      `json:"reference,omitempty"`
	BorrowerName    string      `json:"borrower_name,omitempty"`
	ProgrammeName   string      `json:"programme_name,omitempty"`
	Profile         Profile     `json:"profile"`
	RequestedAmount float64     `json:"requested_amount"`
	ProjectValue    float64     `json:"project_value"`
	Documents       []Document  `json:"documents"`
	Guarantees      []Guarantee `json:"guarantees"`
	Conditions      []Condition `json:"conditions"`
	Decision        *Decision   `json:"decision,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Document returns the document with the given id, or nil.
func (d *Dossier) Document(id string) *Document {
	for i := range d.Documents {
		if d.Documents[i].ID == id {
			return &d.Documents[i]
		}
	}
	return nil
}

// HasSupplied reports whether the document with the given id is supplied.
func (d *Dossier) HasSupplied(id string) bool {
	doc := d.Document(id)
	return doc != nil && doc.Status == DocumentSupplied
}

// HasGuarantees reports whether any guarantee is recorded.
func (d *Dossier) HasGuarantees() bool {
	return len(d.Guarantees) > 0
}
