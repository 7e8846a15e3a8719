// Package guard coerces loosely-typed numeric input into finite values or an
// explicit absence marker (nil). Every engine computation goes through these
// helpers so a NaN, an infinity or a zero denominator never leaks into a score.
package guard

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Of returns a pointer to v. Handy for literals in tests and fixtures.
func Of(v float64) *float64 { return &v }

// Finite returns v when it is a finite number, nil otherwise.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Positive returns v when it is finite and strictly positive, nil otherwise.
func Positive(v float64) *float64 {
	p := Finite(v)
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}

// FinitePtr re-guards an already optional value.
func FinitePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Finite(*p)
}

// PositivePtr re-guards an already optional value, requiring it to be > 0.
func PositivePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Positive(*p)
}

// FromAny converts arbitrary decoded input (JSON numbers, numeric strings,
// Go integer and float kinds) to a finite number. Strings accept the French
// layout "1 200,50" as well as "1200.50". Anything else yields nil.
func FromAny(raw any) *float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return Finite(v)
	case float32:
		return Finite(float64(v))
	case int:
		return Finite(float64(v))
	case int32:
		return Finite(float64(v))
	case int64:
		return Finite(float64(v))
	case uint:
		return Finite(float64(v))
	case uint32:
		return Finite(float64(v))
	case uint64:
		return Finite(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return Finite(f)
	case *float64:
		return FinitePtr(v)
	case string:
		return parseString(v)
	default:
		return nil
	}
}

// PositiveAny is FromAny restricted to strictly positive values.
func PositiveAny(raw any) *float64 {
	p := FromAny(raw)
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}

func parseString(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSuffix(s, "%")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '_':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil
	}
	// "1.200,50" and "1200,5": the comma is the decimal separator.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return Finite(f)
}

// Ratio returns num/den when both are present and den > 0. A missing or
// non-positive denominator yields nil, never zero.
func Ratio(num, den *float64) *float64 {
	n := FinitePtr(num)
	d := PositivePtr(den)
	if n == nil || d == nil {
		return nil
	}
	return Finite(*n / *d)
}

// Value dereferences p, returning fallback when it is absent.
func Value(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

// Scale returns p × factor, preserving absence.
func Scale(p *float64, factor float64) *float64 {
	if p == nil {
		return nil
	}
	return Finite(*p * factor)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// RoundPtr rounds a present value, preserving absence.
func RoundPtr(p *float64, decimals int) *float64 {
	if p == nil {
		return nil
	}
	r := Round(*p, decimals)
	return &r
}
