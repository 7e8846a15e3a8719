package scorer

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

// ErrUnknownProfile is returned when a summary names a profile absent from
// the configuration table.
var ErrUnknownProfile = eris.New("scorer: unknown profile")

// Verdict is the SmartScore verdict.
type Verdict string

const (
	VerdictInsufficientData        Verdict = "insufficient_data"
	VerdictFavorable               Verdict = "favorable"
	VerdictFavorableWithConditions Verdict = "favorable_with_conditions"
	VerdictUnfavorable             Verdict = "unfavorable"
)

const (
	maxDrivers         = 3
	maxRecommendations = 10
	blockingWeight     = 10
	strongPillar       = 60
	weakPillar         = 50
)

// PillarResult is the scored view of one pillar.
type PillarResult struct {
	Key       PillarKey `json:"key"`
	Label     string    `json:"label"`
	MaxPoints int       `json:"max_points"`
	RawScore  int       `json:"raw_score"`
	Points    int       `json:"points"`
	HasData   bool      `json:"has_data"`
	Reasons   []string  `json:"reasons"`
	Actions   []string  `json:"actions"`
}

// Driver is a pillar that pulls the score up or down.
type Driver struct {
	Key      PillarKey `json:"key"`
	Label    string    `json:"label"`
	RawScore int       `json:"raw_score"`
	Positive bool      `json:"positive"`
}

// MissingPenalty records the points removed for one missing-data item.
type MissingPenalty struct {
	Key      string         `json:"key"`
	Label    string         `json:"label"`
	Severity model.Severity `json:"severity"`
	Points   int            `json:"points"`
}

// Result is an immutable SmartScore snapshot.
type Result struct {
	Profile          model.Profile    `json:"profile"`
	Score            int              `json:"score"`
	Grade            string           `json:"grade"`
	Verdict          Verdict          `json:"verdict"`
	Pillars          []PillarResult   `json:"pillars"`
	Drivers          []Driver         `json:"drivers"`
	Recommendations  []string         `json:"recommendations"`
	MissingPenalties []MissingPenalty `json:"missing_penalties"`
	Blockers         []string         `json:"blockers"`
	ConfigHash       string           `json:"config_hash"`
	ScoredAt         time.Time        `json:"scored_at"`
}

// Brief projects the result into its committee-report form.
func (r *Result) Brief() *model.ReportScore {
	if r == nil {
		return nil
	}
	rs := &model.ReportScore{Score: r.Score, Grade: r.Grade, Verdict: string(r.Verdict)}
	for _, p := range r.Pillars {
		rs.Pillars = append(rs.Pillars, model.PillarBrief{
			Key:      string(p.Key),
			Label:    p.Label,
			RawScore: p.RawScore,
			HasData:  p.HasData,
		})
	}
	return rs
}

// Engine scores operation summaries against a profile table.
type Engine struct {
	profiles Profiles
	hash     string
	now      func() time.Time
}

// NewEngine validates the profile table and returns an engine.
func NewEngine(profiles Profiles) (*Engine, error) {
	if err := ValidateProfiles(profiles); err != nil {
		return nil, err
	}
	return &Engine{
		profiles: profiles,
		hash:     ConfigHash(profiles),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithNow fixes the snapshot clock for testing.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = func() time.Time { return t }
	return e
}

// Profiles returns the engine's profile table.
func (e *Engine) Profiles() Profiles { return e.profiles }

// Score computes the SmartScore of a summary.
func (e *Engine) Score(s *model.OperationSummary) (*Result, error) {
	cfg, ok := e.profiles[s.Profile]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownProfile, "profile %q", s.Profile)
	}
	res := compute(s, cfg)
	res.ConfigHash = e.hash
	res.ScoredAt = e.now()
	return res, nil
}

func compute(s *model.OperationSummary, cfg ProfileConfig) *Result {
	res := &Result{
		Profile:          s.Profile,
		Pillars:          make([]PillarResult, 0, len(cfg.Pillars)),
		Drivers:          []Driver{},
		Recommendations:  []string{},
		MissingPenalties: []MissingPenalty{},
		Blockers:         []string{},
	}

	total := 0
	for _, pw := range cfg.Pillars {
		def := registry[pw.Key]
		ps := def.score(s)
		pr := PillarResult{
			Key:       pw.Key,
			Label:     def.label,
			MaxPoints: pw.Weight,
			RawScore:  ps.Raw,
			Points:    int(math.Round(float64(ps.Raw) / 100 * float64(pw.Weight))),
			HasData:   ps.HasData,
			Reasons:   nonNil(ps.Reasons),
			Actions:   nonNil(ps.Actions),
		}
		total += pr.Points
		res.Pillars = append(res.Pillars, pr)

		if !pr.HasData && pw.Weight >= blockingWeight {
			res.Blockers = append(res.Blockers, "Pilier « "+pr.Label+" » sans données exploitables")
		}
	}

	penalty := 0
	var blockerLabels []string
	for _, m := range s.Missing {
		var pts int
		switch m.Severity {
		case model.SeverityBlocker:
			pts = cfg.Penalties.Blocker
			blockerLabels = append(blockerLabels, m.Label)
		case model.SeverityWarn:
			pts = cfg.Penalties.Warn
		default:
			continue
		}
		penalty += pts
		res.MissingPenalties = append(res.MissingPenalties, MissingPenalty{
			Key: m.Key, Label: m.Label, Severity: m.Severity, Points: pts,
		})
	}
	// Blocker missing items go first so they lead the list.
	res.Blockers = append(append([]string{}, blockerLabels...), res.Blockers...)

	res.Score = int(guard.Clamp(float64(total-penalty), 0, 100))
	res.Grade = grade(res.Score, cfg.Grades)

	switch {
	case len(res.Blockers) > 0:
		res.Verdict = VerdictInsufficientData
	case res.Score >= cfg.Grades.B:
		res.Verdict = VerdictFavorable
	case res.Score >= cfg.Grades.D:
		res.Verdict = VerdictFavorableWithConditions
	default:
		res.Verdict = VerdictUnfavorable
	}

	res.Drivers = drivers(res.Pillars)
	res.Recommendations = recommendations(res.Pillars, blockerLabels)
	return res
}

func grade(score int, g GradeThresholds) string {
	switch {
	case score >= g.A:
		return "A"
	case score >= g.B:
		return "B"
	case score >= g.C:
		return "C"
	case score >= g.D:
		return "D"
	default:
		return "E"
	}
}

// drivers returns up to three strongest (>= 60) then up to three weakest
// (< 50) pillars among those with data.
func drivers(pillars []PillarResult) []Driver {
	var withData []PillarResult
	for _, p := range pillars {
		if p.HasData {
			withData = append(withData, p)
		}
	}

	out := []Driver{}
	high := append([]PillarResult(nil), withData...)
	sort.SliceStable(high, func(i, j int) bool { return high[i].RawScore > high[j].RawScore })
	for _, p := range high {
		if len(out) == maxDrivers || p.RawScore < strongPillar {
			break
		}
		out = append(out, Driver{Key: p.Key, Label: p.Label, RawScore: p.RawScore, Positive: true})
	}

	low := append([]PillarResult(nil), withData...)
	sort.SliceStable(low, func(i, j int) bool { return low[i].RawScore < low[j].RawScore })
	n := 0
	for _, p := range low {
		if n == maxDrivers || p.RawScore >= weakPillar {
			break
		}
		out = append(out, Driver{Key: p.Key, Label: p.Label, RawScore: p.RawScore})
		n++
	}
	return out
}

// recommendations collects pillar actions from the weakest pillar up,
// deduplicated, with blocker items combined into a leading line. The list
// never exceeds ten entries.
func recommendations(pillars []PillarResult, blockers []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	if len(blockers) > 0 {
		line := "Compléter en priorité : " + strings.Join(blockers, ", ") + "."
		out = append(out, line)
		seen[line] = true
	}

	ordered := append([]PillarResult(nil), pillars...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].RawScore < ordered[j].RawScore })
	for _, p := range ordered {
		for _, a := range p.Actions {
			if len(out) == maxRecommendations {
				return out
			}
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
