package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/finobytes/maxreward/pkg/api"
	"github.com/finobytes/maxreward/pkg/buildinfo"
	pkgerrors "github.com/finobytes/maxreward/pkg/errors"
	"github.com/finobytes/maxreward/pkg/pipeline"
	"github.com/finobytes/maxreward/pkg/store"
)

const (
	maxPayloadSize   = 16 << 20
	defaultListLimit = 20
	maxListLimit     = 100
)

type errorBody struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Error: msg, RequestID: requestIDFrom(r.Context())})
}

// writeFailure maps err to a coded error response.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code := classify(err)
	status := pkgerrors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "code", code, "err", err)
	}
	writeError(w, r, status, string(code), pkgerrors.UserMessage(err))
}

func classify(err error) pkgerrors.Code {
	if code := pkgerrors.GetCode(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, pipeline.ErrEmptyTree):
		return pkgerrors.ErrCodeEmptyTree
	case errors.Is(err, pipeline.ErrNoSource):
		return pkgerrors.ErrCodeInvalidInput
	case errors.Is(err, pipeline.ErrNoFetcher):
		return pkgerrors.ErrCodeUnsupported
	case errors.Is(err, api.ErrInvalidMemberID):
		return pkgerrors.ErrCodeInvalidMemberID
	case errors.Is(err, api.ErrNotFound):
		return pkgerrors.ErrCodeMemberNotFound
	case errors.Is(err, api.ErrUnauthorized):
		return pkgerrors.ErrCodeUnauthorized
	case errors.Is(err, store.ErrSnapshotNotFound):
		return pkgerrors.ErrCodeSnapshotNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.ErrCodeTimeout
	case errors.Is(err, api.ErrNetwork):
		return pkgerrors.ErrCodeNetwork
	}
	return pkgerrors.ErrCodeInternal
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// renderOptions reads format, depth and the boolean flags from the query string.
func renderOptions(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := pipeline.Options{
		Detailed:    queryBool(q.Get("detailed")),
		LeftToRight: queryBool(q.Get("lr")),
		Refresh:     queryBool(q.Get("refresh")),
		Snapshot:    queryBool(q.Get("snapshot")),
	}
	format := q.Get("format")
	if format == "" {
		format = pipeline.FormatJSON
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		return opts, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidFormat, err, "%s", err.Error())
	}
	opts.Formats = []string{format}
	if d := q.Get("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return opts, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "depth must be a non-negative integer, got %q", d)
		}
		opts.MaxDepth = n
	}
	return opts, nil
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *Server) handleMemberTree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := pkgerrors.ValidateMemberID(id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	opts, err := renderOptions(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	opts.MemberID = id
	s.execute(w, r, opts)
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	opts, err := renderOptions(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, string(pkgerrors.ErrCodeInvalidPayload), "payload too large")
			return
		}
		s.writeFailure(w, r, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidPayload, err, "read payload"))
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		s.writeFailure(w, r, pkgerrors.New(pkgerrors.ErrCodeInvalidPayload, "request body is empty"))
		return
	}
	opts.Payload = body
	s.execute(w, r, opts)
}

// execute runs the pipeline and writes the single requested artifact with
// the normalization report in X-Tree-* headers.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, opts pipeline.Options) {
	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyTree) {
			err = pkgerrors.Wrap(pkgerrors.ErrCodeEmptyTree, err, "payload has no root member or level list")
		}
		s.writeFailure(w, r, err)
		return
	}

	format := opts.Formats[0]
	h := w.Header()
	h.Set("Content-Type", pipeline.ContentTypes[format])
	h.Set("X-Tree-Nodes", strconv.Itoa(res.Summary.Nodes))
	h.Set("X-Tree-Depth", strconv.Itoa(res.Summary.Depth))
	h.Set("X-Tree-Rejected", strconv.Itoa(res.Report.Rejected()))
	h.Set("X-Tree-Unreachable", strconv.Itoa(res.Report.Unreachable()))
	h.Set("X-Cache", cacheStatus(res.CacheInfo))
	h.Set("ETag", strconv.Quote(res.TreeHash))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[format])
}

func cacheStatus(ci pipeline.CacheInfo) string {
	switch {
	case ci.FetchHit && ci.RenderHit:
		return "hit"
	case ci.FetchHit || ci.RenderHit:
		return "partial"
	}
	return "miss"
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	member := q.Get("member")
	if member != "" {
		if err := pkgerrors.ValidateMemberID(member); err != nil {
			s.writeFailure(w, r, err)
			return
		}
	}
	limit := defaultListLimit
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			s.writeFailure(w, r, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "limit must be a positive integer, got %q", l))
			return
		}
		limit = min(n, maxListLimit)
	}

	snaps, err := s.runner.Store.List(r.Context(), member, limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if snaps == nil {
		snaps = []*store.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "snapshotID")
	if err := pkgerrors.ValidateSnapshotID(id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	snap, err := s.runner.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			err = pkgerrors.Wrap(pkgerrors.ErrCodeSnapshotNotFound, err, "snapshot %s not found", id)
		}
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
