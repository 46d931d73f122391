// Package httpapi exposes the tracing service over HTTP. It is a thin
// layer: parameter parsing, error mapping, and encoding live here; all
// trace semantics live in internal/service.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hydrologic/mainstem/internal/format"
	"github.com/hydrologic/mainstem/internal/service"
	"github.com/hydrologic/mainstem/internal/trace"
)

// Server routes trace requests to a service.
type Server struct {
	svc *service.Service
	log *slog.Logger
}

// New builds the server.
func New(svc *service.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, log: log}
}

// Router returns the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/trace", s.handleTrace)
	r.Get("/healthz", s.handleHealth)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	mime, features, err := s.svc.Execute(r.Context(), req)
	if err != nil {
		s.writeTraceError(w, err)
		return
	}

	switch strings.ToLower(r.URL.Query().Get("f")) {
	case "", "json", "geojson":
		body, err := format.GeoJSON(features)
		if err != nil {
			s.writeTraceError(w, err)
			return
		}
		w.Header().Set("Content-Type", mime)
		w.Write(body)
	case "csv":
		body, err := format.CSV(features)
		if err != nil {
			s.writeTraceError(w, err)
			return
		}
		w.Header().Set("Content-Type", format.MimeCSV)
		w.Write(body)
	default:
		writeError(w, http.StatusBadRequest, "INVALID_INPUT",
			fmt.Sprintf("unknown format %q", r.URL.Query().Get("f")))
	}
}

// parseRequest maps query parameters onto a service request.
func parseRequest(r *http.Request) (service.Request, error) {
	q := r.URL.Query()
	req := service.Request{
		FeatureID:     q.Get("featureId"),
		SortDirection: q.Get("sortdir"),
		SortProperty:  q.Get("sortby"),
		NoCache:       requiresRevalidation(r),
	}

	if v := q.Get("bbox"); v != "" {
		bbox, err := parseFloats(v, 4)
		if err != nil {
			return req, fmt.Errorf("bad bbox: %w", err)
		}
		req.BBox = bbox
	}
	if v := q.Get("point"); v != "" {
		point, err := parseFloats(v, 2)
		if err != nil {
			return req, fmt.Errorf("bad point: %w", err)
		}
		req.Point = point
	}
	if v := q.Get("lat"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("bad lat: %w", err)
		}
		req.Lat = &lat
	}
	if v := q.Get("lon"); v != "" {
		lon, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("bad lon: %w", err)
		}
		req.Lon = &lon
	}
	if v := q.Get("groupby"); v != "" {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				req.GroupBy = append(req.GroupBy, k)
			}
		}
	}
	return req, nil
}

// requiresRevalidation checks whether request headers ask to skip the
// cache lookup. Comparisons are case-insensitive.
func requiresRevalidation(r *http.Request) bool {
	for _, v := range r.Header.Values("Cache-Control") {
		for _, directive := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(directive)) {
			case "no-cache", "no-store", "must-revalidate":
				return true
			}
		}
	}
	return false
}

func parseFloats(v string, n int) ([]float64, error) {
	parts := strings.Split(v, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// writeTraceError maps engine error categories onto HTTP statuses.
func (s *Server) writeTraceError(w http.ResponseWriter, err error) {
	switch {
	case trace.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, string(trace.ErrCodeInvalidInput), err.Error())
	case trace.IsNotFound(err):
		writeError(w, http.StatusNotFound, string(trace.ErrCodeNotFound), err.Error())
	case trace.IsProviderError(err):
		s.log.Error("provider failure", "error", err)
		writeError(w, http.StatusBadGateway, string(trace.ErrCodeProvider), "upstream data source failed")
	default:
		s.log.Error("trace failure", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Code: code, Message: message})
}
