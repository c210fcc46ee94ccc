package refresh

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	coordinator *Coordinator
	store       AssignmentStore
}

func NewHandler(coordinator *Coordinator, store AssignmentStore) *Handler {
	return &Handler{coordinator: coordinator, store: store}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/definitions/{id}/refresh", h.handleRefreshDefinition).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/evaluate", h.handleEvaluatePatient).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/assignments", h.handleListAssignments).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}/definitions/{definition_id}/explain", h.handleExplain).Methods(http.MethodGet)
}

// handleRefreshDefinition is the manual trigger for the recompute the
// event bus normally drives. The change kind selects the scope.
func (h *Handler) handleRefreshDefinition(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Kind models.ChangeKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Kind == "" {
		http.Error(w, "kind is required", http.StatusBadRequest)
		return
	}

	summary, err := h.coordinator.RefreshDefinition(r.Context(), mux.Vars(r)["id"], payload.Kind)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			logger.Log.WithError(err).Error("refresh aborted, assignment store unavailable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"summary": summary})
			return
		}
		logger.Log.WithError(err).Error("failed to refresh definition")
		http.Error(w, "failed to refresh definition", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

func (h *Handler) handleEvaluatePatient(w http.ResponseWriter, r *http.Request) {
	results, err := h.coordinator.EvaluatePatient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		logger.Log.WithError(err).Error("failed to evaluate patient")
		http.Error(w, "failed to evaluate patient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": results})
}

// handleListAssignments returns the patient's assignments. Hidden rows
// stay out of the response unless include_hidden is set.
func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.GetForPatient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		logger.Log.WithError(err).Error("failed to list assignments")
		http.Error(w, "failed to list assignments", http.StatusInternalServerError)
		return
	}

	includeHidden := r.URL.Query().Get("include_hidden") == "true"
	items := make([]models.AssignmentResult, 0, len(all))
	for _, rec := range all {
		if rec.Visible || includeHidden {
			items = append(items, rec)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	explanation, err := h.coordinator.Explain(r.Context(), vars["id"], vars["definition_id"])
	if err != nil {
		logger.Log.WithError(err).Error("failed to explain match")
		http.Error(w, "failed to explain match", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"explanation": explanation})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
