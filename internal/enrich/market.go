package enrich

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

// MergeMarket folds partial market records in priority order: for every
// field the first present value wins, and comparables come from the first
// source with a non-empty list. It returns nil when every part is nil.
func MergeMarket(parts ...*model.MarketData) *model.MarketData {
	var out *model.MarketData
	for _, p := range parts {
		if p == nil {
			continue
		}
		if out == nil {
			out = &model.MarketData{}
		}
		mergeInto(out, p)
	}
	return out
}

func mergeInto(dst, src *model.MarketData) {
	firstString(&dst.Source, src.Source)
	firstFloat(&dst.Score, src.Score)
	firstFloat(&dst.PricePerSqm, src.PricePerSqm)
	firstFloat(&dst.MarketPricePerSqm, src.MarketPricePerSqm)
	if dst.TransactionCount == nil && src.TransactionCount != nil && *src.TransactionCount >= 0 {
		n := *src.TransactionCount
		dst.TransactionCount = &n
	}
	firstString(&dst.Tension, src.Tension)
	if len(dst.Comparables) == 0 && len(src.Comparables) > 0 {
		dst.Comparables = append([]model.Comparable(nil), src.Comparables...)
	}
}

func firstFloat(dst **float64, v *float64) {
	if *dst == nil {
		if f := guard.FinitePtr(v); f != nil {
			c := *f
			*dst = &c
		}
	}
}

func firstString(dst *string, v string) {
	if *dst == "" {
		*dst = strings.TrimSpace(v)
	}
}

// ParseDVF reads a DVF transaction listing ({"resultats": [...]}, or a bare
// array) into market data: comparables, transaction count and the median
// price per square metre. Amounts may be numbers or French-formatted
// strings.
func ParseDVF(data []byte) (*model.MarketData, error) {
	if !gjson.ValidBytes(data) {
		return nil, eris.New("enrich: invalid dvf payload")
	}
	r := gjson.ParseBytes(data)
	list := r
	if !r.IsArray() {
		list = r.Get("resultats")
		if !list.IsArray() {
			list = r.Get("transactions")
		}
	}
	if !list.IsArray() {
		return nil, eris.Wrap(ErrUnknownShape, "enrich: dvf payload has no transaction list")
	}

	md := &model.MarketData{Source: "dvf"}
	var perSqm []float64
	list.ForEach(func(_, v gjson.Result) bool {
		price := guard.PositiveAny(first(v, "valeur_fonciere", "price").Value())
		if price == nil {
			return true
		}
		c := model.Comparable{
			Address: strings.TrimSpace(first(v, "adresse", "address").String()),
			Date:    first(v, "date_mutation", "date").String(),
			Price:   *price,
		}
		if surface := guard.PositiveAny(first(v, "surface_reelle_bati", "surface").Value()); surface != nil {
			c.SurfaceSqm = *surface
			c.PricePerSqm = guard.Round(*price / *surface, 0)
			perSqm = append(perSqm, *price / *surface)
		}
		md.Comparables = append(md.Comparables, c)
		return true
	})

	n := len(md.Comparables)
	md.TransactionCount = &n
	if m := median(perSqm); m != nil {
		md.MarketPricePerSqm = guard.RoundPtr(m, 0)
	}
	return md, nil
}

func first(v gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func median(vs []float64) *float64 {
	if len(vs) == 0 {
		return nil
	}
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return guard.Of(s[mid])
	}
	return guard.Of((s[mid-1] + s[mid]) / 2)
}
