// Package enrich normalizes third-party enrichment payloads (geographic risk,
// DVF market data) into the operation summary consumed by the scorer.
package enrich

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/dossier-cli/internal/model"
)

// ErrUnknownShape is returned when a payload matches none of the known
// shapes.
var ErrUnknownShape = eris.New("enrich: unknown payload shape")

// Shape names the layout a risk payload arrived in.
type Shape string

const (
	ShapeUnknown    Shape = "unknown"
	ShapeCanonical  Shape = "canonical"  // {"risks": [{kind, label, level}], ...}
	ShapeGeorisques Shape = "georisques" // {"data": [...]} or {"risques": [...]}
	ShapeFlat       Shape = "flat"       // {"inondation": "fort", "seisme": 3}
	ShapeWrapped    Shape = "wrapped"    // {"result": {...}} or {"georisques": {...}}
)

var envelopeKeys = []string{"result", "georisques", "payload"}

const maxUnwrap = 3

// detect classifies a payload by its characteristic fields.
func detect(r gjson.Result) Shape {
	if !r.IsObject() {
		return ShapeUnknown
	}
	for _, k := range envelopeKeys {
		if r.Get(k).IsObject() {
			return ShapeWrapped
		}
	}
	if r.Get("risks").IsArray() {
		return ShapeCanonical
	}
	if r.Get("data").IsArray() || r.Get("risques").IsArray() {
		return ShapeGeorisques
	}

	flat := false
	r.ForEach(func(_, v gjson.Result) bool {
		switch v.Type {
		case gjson.String, gjson.Number:
			flat = true
			return true
		default:
			flat = false
			return false
		}
	})
	if flat {
		return ShapeFlat
	}
	return ShapeUnknown
}

// ParseRiskPayload detects the payload shape and parses it into a risk
// profile. Shape detection never leaks past this function.
func ParseRiskPayload(data []byte) (*model.RiskProfile, error) {
	if !gjson.ValidBytes(data) {
		return nil, eris.New("enrich: invalid risk payload")
	}
	r := gjson.ParseBytes(data)

	for depth := 0; ; depth++ {
		switch detect(r) {
		case ShapeWrapped:
			if depth == maxUnwrap {
				return nil, eris.Wrap(ErrUnknownShape, "enrich: envelope nested too deep")
			}
			r = unwrap(r)
			continue
		case ShapeCanonical:
			return parseCanonical(r), nil
		case ShapeGeorisques:
			return parseGeorisques(r), nil
		case ShapeFlat:
			return parseFlat(r), nil
		default:
			return nil, ErrUnknownShape
		}
	}
}

func unwrap(r gjson.Result) gjson.Result {
	for _, k := range envelopeKeys {
		if inner := r.Get(k); inner.IsObject() {
			return inner
		}
	}
	return r
}

func parseCanonical(r gjson.Result) *model.RiskProfile {
	rp := &model.RiskProfile{}
	r.Get("risks").ForEach(func(_, v gjson.Result) bool {
		label := v.Get("label").String()
		kind := v.Get("kind").String()
		if kind == "" {
			kind = hazardKind(label)
		}
		if lvl, ok := parseLevel(v.Get("level")); ok {
			rp.Hazards = append(rp.Hazards, model.Hazard{Kind: kind, Label: label, Level: lvl})
		}
		return true
	})

	if fz := r.Get("flood_zone"); fz.Exists() {
		rp.FloodZone = fz.Bool()
	} else {
		rp.FloodZone = floodExposed(rp.Hazards)
	}
	if uc := r.Get("urbanism_compliant"); uc.Exists() {
		v := uc.Bool()
		rp.UrbanismCompliant = &v
	}
	rp.PermitStatus = strings.ToLower(r.Get("permit_status").String())
	if lvl, ok := parseLevel(r.Get("execution_risk")); ok {
		rp.ExecutionRisk = lvl
	}
	return rp
}

var georisquesLabelFields = []string{"libelle_risque_long", "libelle", "libelle_risque", "name"}
var georisquesLevelFields = []string{"niveau", "niveau_risque", "zone_sismicite", "classe_potentiel", "level"}

func parseGeorisques(r gjson.Result) *model.RiskProfile {
	rp := &model.RiskProfile{}
	add := func(v gjson.Result) {
		var label string
		for _, f := range georisquesLabelFields {
			if s := strings.TrimSpace(v.Get(f).String()); s != "" {
				label = s
				break
			}
		}
		if label == "" {
			return
		}
		// A listed risk without a level is still an exposure of the commune.
		lvl := model.HazardMedium
		for _, f := range georisquesLevelFields {
			if l, ok := parseLevel(v.Get(f)); ok {
				lvl = l
				break
			}
		}
		rp.Hazards = append(rp.Hazards, model.Hazard{Kind: hazardKind(label), Label: label, Level: lvl})
	}

	list := r.Get("data")
	if !list.IsArray() {
		list = r.Get("risques")
	}
	list.ForEach(func(_, entry gjson.Result) bool {
		if detail := entry.Get("risques_detail"); detail.IsArray() {
			detail.ForEach(func(_, v gjson.Result) bool {
				add(v)
				return true
			})
			return true
		}
		add(entry)
		return true
	})
	rp.FloodZone = floodExposed(rp.Hazards)
	return rp
}

func parseFlat(r gjson.Result) *model.RiskProfile {
	rp := &model.RiskProfile{}
	r.ForEach(func(k, v gjson.Result) bool {
		if lvl, ok := parseLevel(v); ok {
			label := k.String()
			rp.Hazards = append(rp.Hazards, model.Hazard{Kind: hazardKind(label), Label: label, Level: lvl})
		}
		return true
	})
	rp.FloodZone = floodExposed(rp.Hazards)
	return rp
}

// parseLevel reads a qualitative (fr/en) or numeric (1-5 zoning) level.
func parseLevel(v gjson.Result) (model.RiskLevelTag, bool) {
	switch v.Type {
	case gjson.Number:
		return levelFromNumber(v.Num)
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(v.Str))
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return levelFromNumber(n)
		}
		switch {
		case s == "":
			return "", false
		case strings.Contains(s, "très faible"), strings.Contains(s, "faible"), s == "low", s == "nul":
			return model.HazardLow, true
		case strings.Contains(s, "moyen"), strings.Contains(s, "modér"), strings.Contains(s, "moder"), s == "medium", s == "moderate":
			return model.HazardMedium, true
		case strings.Contains(s, "fort"), strings.Contains(s, "élev"), strings.Contains(s, "elev"), s == "high", s == "strong":
			return model.HazardHigh, true
		}
	}
	return "", false
}

func levelFromNumber(n float64) (model.RiskLevelTag, bool) {
	switch {
	case n <= 0:
		return "", false
	case n <= 2:
		return model.HazardLow, true
	case n <= 3:
		return model.HazardMedium, true
	default:
		return model.HazardHigh, true
	}
}

var kindKeywords = []struct {
	kw   string
	kind string
}{
	{"inond", "flood"},
	{"flood", "flood"},
	{"sism", "seismic"},
	{"séism", "seismic"},
	{"seism", "seismic"},
	{"radon", "radon"},
	{"argile", "clay"},
	{"clay", "clay"},
	{"mouvement", "landslide"},
	{"cavit", "cavity"},
	{"industri", "industrial"},
	{"technolog", "industrial"},
	{"seveso", "industrial"},
	{"pollu", "pollution"},
}

func hazardKind(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, k := range kindKeywords {
		if strings.Contains(l, k.kw) {
			return k.kind
		}
	}
	return l
}

func floodExposed(hs []model.Hazard) bool {
	for _, h := range hs {
		if h.Kind == "flood" && (h.Level == model.HazardMedium || h.Level == model.HazardHigh) {
			return true
		}
	}
	return false
}
