package apicommon

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.vocdoni.io/dvote/log"
)

// Caller is the identity extracted from a verified JWT token.
type Caller struct {
	Subject string
	Role    string
}

// Privileged reports whether the caller may run mutating engine actions.
func (c *Caller) Privileged() bool {
	return c != nil && (c.Role == RoleServiceRole || c.Role == RoleAdmin)
}

// CallerFromContext retrieves the caller from the context provided, expected
// to be the context of a request handled by the authenticator middleware.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(CallerMetadataKey).(Caller)
	if ok {
		return &caller, ok
	}
	return nil, false
}

// LimitFromQuery reads the limit query parameter. A missing parameter returns
// zero so callers can apply their own default.
func LimitFromQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// HTTPWriteJSON helper function allows to write a JSON response.
func HTTPWriteJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// HTTPWriteOK helper function allows to write an OK response.
func HTTPWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}
