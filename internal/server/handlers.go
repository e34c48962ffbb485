package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/paramtypes"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/runerrors"
)

// errorEnvelope is the JSON body returned for any failed request. It never
// carries an offending parameter name: that detail stays in the audit log,
// per the audit-emission contract.
type errorEnvelope struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// resolveResponse is the JSON body returned for a successful resolve call.
type resolveResponse struct {
	Command string           `json:"command"`
	Policy  paramtypes.Policy `json:"policy"`
}

// NewRouter wires the six routes from the external interface spec onto svc.
// Uses the standard library's method-and-pattern ServeMux (Go 1.22+) rather
// than a third-party router: the route set is small and fixed, and every
// pattern here already expresses exactly what net/http's mux understands.
func NewRouter(svc *Service, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/templates/{name}/resolve", svc.handleResolve)
	mux.HandleFunc("GET /v1/templates", svc.handleList)
	mux.HandleFunc("GET /v1/templates/{name}", svc.handleGet)
	mux.HandleFunc("POST /v1/admin/reload", svc.handleReload)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", metricsHandler)

	return withRequestID(mux)
}

func (s *Service) handleResolve(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var params map[string]any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, runerrors.Validation(name, "", "request body is not valid JSON"))
			return
		}
	}

	command, policy, err := s.Resolve(r.Context(), name, params)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{Command: command, Policy: policy})
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	writeJSON(w, http.StatusOK, s.List(category))
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	tmpl, err := s.Get(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// statusFor maps the four error kinds onto the HTTP statuses the external
// interface spec assigns them. Configuration only ever reaches a handler
// through the reload path, which maps it directly to 500 without going
// through this function.
func statusFor(err error) int {
	switch {
	case errors.Is(err, runerrors.ErrCommandNotFound):
		return http.StatusNotFound
	case errors.Is(err, runerrors.ErrSecurityViolation):
		return http.StatusForbidden
	case errors.Is(err, runerrors.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err as a sanitized JSON envelope. A *runerrors.Error
// contributes its parameter-free ClientMessage; any other error contributes
// only a generic message, never err.Error(), since neither is guaranteed
// free of caller-supplied values.
func writeError(w http.ResponseWriter, status int, err error) {
	re, ok := err.(*runerrors.Error)
	if !ok {
		writeJSON(w, status, errorEnvelope{Error: "internal error", Kind: ""})
		return
	}
	writeJSON(w, status, errorEnvelope{Error: re.ClientMessage(), Kind: re.Kind.String()})
}
