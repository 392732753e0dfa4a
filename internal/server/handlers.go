package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/ledgerq/engine"
	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/model"
)

// RegisterRequest is the body of POST /v1/accounts.
type RegisterRequest struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryRequest is the body of POST /v1/accounts/query.
type QueryRequest struct {
	Filter filter.Wire `json:"filter"`
	Offset int         `json:"offset,omitempty"`
	Limit  int         `json:"limit,omitempty"`
	// Records includes the full records in the response.
	Records bool `json:"records,omitempty"`
}

// queryBody decodes a QueryRequest with the filter kept raw, so filter
// errors are reported as malformed filters rather than bad bodies.
type queryBody struct {
	Filter  gojson.RawMessage `json:"filter"`
	Offset  int               `json:"offset"`
	Limit   int               `json:"limit"`
	Records bool              `json:"records"`
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	Accounts []model.AccountID `json:"accounts"`
	Records  []model.Record    `json:"records,omitempty"`
	LSN      uint64            `json:"lsn"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	LSN    uint64 `json:"lsn"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Stats()
	if !st.Ready {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: CodeUnavailable, Message: "engine not ready"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready", LSN: st.LSN})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// CheckpointResponse is returned by POST /v1/checkpoint.
type CheckpointResponse struct {
	LSN uint64 `json:"lsn"`
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lsn, err := s.engine.Checkpoint(ctx)
	s.logger.LogCheckpoint(ctx, lsn, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckpointResponse{LSN: lsn})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := model.ParseAccountID(req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.engine.Register(ctx, id, req.Metadata)
	s.logger.LogRegister(ctx, id, rec.LSN, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) accountParam(r *http.Request) (model.AccountID, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		return model.AccountID{}, err
	}
	return model.ParseAccountID(raw)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := s.accountParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.engine.Unregister(ctx, id)
	s.logger.LogUnregister(ctx, id, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req queryBody
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	expr, err := filter.Parse(req.Filter)
	if err != nil {
		s.logger.LogQuery(ctx, string(req.Filter), 0, time.Since(start), err)
		s.writeError(w, r, err)
		return
	}

	snap, err := s.engine.Snapshot(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer snap.Release()

	recs, err := snap.QueryRecords(ctx, expr, engine.WithOffset(req.Offset), engine.WithLimit(req.Limit))
	s.logger.LogQuery(ctx, expr.String(), len(recs), time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := QueryResponse{
		Accounts: make([]model.AccountID, len(recs)),
		LSN:      snap.LSN(),
	}
	for i := range recs {
		resp.Accounts[i] = recs[i].ID
	}
	if req.Records {
		resp.Records = recs
	}
	writeJSON(w, http.StatusOK, resp)
}
