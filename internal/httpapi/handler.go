package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	cellite "github.com/SourceRegistry/cel-lite"
	"github.com/SourceRegistry/cel-lite/internal/policyengine"
)

// EvalHandler exposes the policy engine's decision for a single request
// at POST /evaluate.
type EvalHandler struct{ Engine *policyengine.Engine }

func (h *EvalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req policyengine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	decision, matched, reason, trace, _ := h.Engine.EvaluateAndAudit(req)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"decision": decision,
		"matched":  matched,
		"reason":   reason,
		"trace":    trace,
	})
}

// writeCelliteError surfaces a *cellite.Error's kind and source offset in
// the response body instead of a bare message string, so a caller
// writing a policy expression can jump straight to the failing
// character.
func writeCelliteError(w http.ResponseWriter, err error, status int) {
	var ce *cellite.Error
	if errors.As(err, &ce) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  ce.Message,
			"kind":   ce.Kind,
			"offset": ce.Offset,
		})
		return
	}
	http.Error(w, err.Error(), status)
}
