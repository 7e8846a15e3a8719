package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/committee"
	"github.com/sells-group/dossier-cli/internal/enrich"
	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/pipeline"
	"github.com/sells-group/dossier-cli/internal/scorer"
	"github.com/sells-group/dossier-cli/internal/store"
)

const defaultActor = "api"

// enrichmentPayload carries raw third-party payloads; they are normalized
// by the enrich package before scoring.
type enrichmentPayload struct {
	Risk json.RawMessage   `json:"risk,omitempty"`
	DVF  []json.RawMessage `json:"dvf,omitempty"`
}

func (e enrichmentPayload) parse() (enrich.Enrichment, error) {
	dvf := make([][]byte, len(e.DVF))
	for i, raw := range e.DVF {
		dvf[i] = raw
	}
	return enrich.FromPayloads(e.Risk, dvf...)
}

type smartScoreRequest struct {
	Dossier *model.Dossier          `json:"dossier,omitempty"`
	Summary *model.OperationSummary `json:"summary,omitempty"`
	enrichmentPayload
}

type evaluateRequest struct {
	Summary *model.OperationSummary `json:"summary,omitempty"`
	enrichmentPayload
}

type dossierView struct {
	Dossier    *model.Dossier        `json:"dossier"`
	Draft      *intake.DecisionDraft `json:"decision_draft,omitempty"`
	SmartScore *scorer.Result        `json:"smartscore,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIntakeEvaluate(w http.ResponseWriter, r *http.Request) {
	var d model.Dossier
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Intake(&d))
}

// handleSmartScore scores either a dossier (full assessment) or a bare
// summary.
func (s *Server) handleSmartScore(w http.ResponseWriter, r *http.Request) {
	var req smartScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	enr, err := req.parse()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	switch {
	case req.Dossier != nil:
		a, err := s.pipeline.Assess(pipeline.Input{Dossier: req.Dossier, Summary: req.Summary, Enrichment: enr})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	case req.Summary != nil:
		out, err := s.pipeline.Score(req.Summary, enr)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusBadRequest, "dossier or summary is required")
	}
}

func (s *Server) handleMemo(w http.ResponseWriter, r *http.Request) {
	var in model.ReportInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	memo, err := committee.BuildMemo(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memo)
}

func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	var in model.ReportInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pack, err := committee.RunStressTest(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

func (s *Server) handleCreateDossier(w http.ResponseWriter, r *http.Request) {
	var d model.Dossier
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !d.Profile.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "unknown profile: "+string(d.Profile))
		return
	}

	action, status := store.ActionCreated, http.StatusCreated
	if d.ID != "" {
		if _, err := s.store.GetDossier(r.Context(), d.ID); err == nil {
			action, status = store.ActionUpdated, http.StatusOK
		}
	}
	if err := s.store.SaveDossier(r.Context(), &d); err != nil {
		writeEngineError(w, err)
		return
	}
	s.audit(r, d.ID, action, "Dossier enregistré ("+string(d.Profile)+").")
	writeJSON(w, status, d)
}

func (s *Server) handleListDossiers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DossierFilter{Profile: model.Profile(q.Get("profile"))}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	ds, err := s.store.ListDossiers(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleGetDossier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	d, err := s.store.GetDossier(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	view := dossierView{Dossier: d}
	if view.Draft, err = s.store.LatestDecisionDraft(ctx, id); err != nil && !eris.Is(err, store.ErrNotFound) {
		writeEngineError(w, err)
		return
	}
	if view.SmartScore, err = s.store.LatestSmartScore(ctx, id); err != nil && !eris.Is(err, store.ErrNotFound) {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEvaluateDossier(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	enr, err := req.parse()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	a, err := s.pipeline.Run(r.Context(), chi.URLParam(r, "id"), req.Summary, enr, actor(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetDossier(ctx, id); err != nil {
		writeEngineError(w, err)
		return
	}
	events, err := s.store.ListAudit(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) audit(r *http.Request, dossierID, action, msg string) {
	ev := &store.AuditEvent{DossierID: dossierID, Action: action, Message: msg, Actor: actor(r)}
	if err := s.store.AppendAudit(r.Context(), ev); err != nil {
		zap.L().Warn("api: failed to append audit event", zap.String("dossier_id", dossierID), zap.Error(err))
	}
}

// writeEngineError maps domain errors to status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "dossier not found")
	case eris.Is(err, scorer.ErrUnknownProfile), eris.Is(err, enrich.ErrUnknownShape):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return defaultActor
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", v)
	}
	return n, nil
}
