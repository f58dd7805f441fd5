package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapsql/internal/impact"
	"github.com/leapstack-labs/leapsql/internal/state"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"github.com/leapstack-labs/leapsql/pkg/parser"
)

// lineageRequest is the JSON body of POST /v1/lineage. A text/plain body
// is taken as the SQL itself.
type lineageRequest struct {
	SQL     string `json:"sql"`
	Dialect string `json:"dialect,omitempty"`
	// Save stores the result under Name (or the statement's view name).
	Save bool   `json:"save,omitempty"`
	Name string `json:"name,omitempty"`
	// ByTable adds the lineage grouped by base table to the response.
	ByTable bool `json:"by_table,omitempty"`
}

type lineageResponse struct {
	*lineage.Result
	ByTable map[string][]string `json:"by_table,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeLineageRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, "sql is required")
		return
	}

	eng := s.engine
	if req.Dialect != "" && !strings.EqualFold(req.Dialect, eng.Dialect().Name) {
		opts := s.opts
		opts.Dialect = req.Dialect
		if eng, err = lineage.NewEngine(opts); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	res, err := eng.Process(req.SQL)
	if err != nil {
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:  err.Error(),
				Line:   perr.Pos.Line,
				Column: perr.Pos.Column,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Save {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "no state store configured")
			return
		}
		name := req.Name
		if name == "" && res.ViewName != nil {
			name = impact.StripQuotes(*res.ViewName)
		}
		if name == "" {
			writeError(w, http.StatusBadRequest, "name is required to save a statement without a view name")
			return
		}
		if err := s.store.SaveView(r.Context(), "", name, "api", res); err != nil {
			s.logger.Error("failed to save view", slog.String("view", name), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to save view")
			return
		}
	}

	resp := lineageResponse{Result: res}
	if req.ByTable {
		resp.ByTable = res.ByTable()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeLineageRequest(w http.ResponseWriter, r *http.Request) (lineageRequest, error) {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer func() { _ = body.Close() }()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" || mediaType == "application/sql" {
		data, err := io.ReadAll(body)
		if err != nil {
			return lineageRequest{}, err
		}
		q := r.URL.Query()
		byTable, _ := strconv.ParseBool(q.Get("by_table"))
		return lineageRequest{SQL: string(data), Dialect: q.Get("dialect"), ByTable: byTable}, nil
	}

	var req lineageRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return lineageRequest{}, errors.New("invalid JSON body: " + err.Error())
	}
	return req, nil
}

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	views, err := s.store.ListViews(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if views == nil {
		views = []state.View{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"views": views})
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	name := chi.URLParam(r, "name")
	cols, err := s.store.GetViewColumns(r.Context(), name)
	if errors.Is(err, state.ErrNotFound) {
		writeError(w, http.StatusNotFound, "view not found: "+name)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	if cols == nil {
		cols = []state.ViewColumn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": name, "columns": cols})
}

// handleImpact answers GET /v1/impact?column=t.c or ?table=t, with optional
// direction (downstream|upstream) and depth.
func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	q := r.URL.Query()
	column, table := q.Get("column"), q.Get("table")
	direction := q.Get("direction")
	if direction == "" {
		direction = "downstream"
	}

	depth := 0
	if d := q.Get("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "depth must be a non-negative integer")
			return
		}
		depth = n
	}

	switch {
	case column == "" && table == "":
		writeError(w, http.StatusBadRequest, "column or table is required")
		return
	case direction != "downstream" && direction != "upstream":
		writeError(w, http.StatusBadRequest, "direction must be downstream or upstream")
		return
	case table != "" && direction == "upstream":
		writeError(w, http.StatusBadRequest, "table impact is downstream only")
		return
	}

	edges, err := s.store.LineageEdges(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	g := impact.FromEdges(edges)

	var hops []impact.Hop
	target := table
	switch {
	case table != "":
		hops = g.DownstreamOfTable(table, depth)
	case direction == "upstream":
		target = column
		hops = g.Upstream(impact.ColumnID(impact.SplitID(column)), depth)
	default:
		target = column
		hops = g.Downstream(impact.ColumnID(impact.SplitID(column)), depth)
	}
	if hops == nil {
		hops = []impact.Hop{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"target":    target,
		"direction": direction,
		"impact":    hops,
	})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no state store configured")
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
