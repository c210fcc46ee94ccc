package registry

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/definitions", h.handleCreateDefinition).Methods(http.MethodPost)
	r.HandleFunc("/definitions", h.handleListDefinitions).Methods(http.MethodGet)
	r.HandleFunc("/definitions/{id}", h.handleGetDefinition).Methods(http.MethodGet)
	r.HandleFunc("/definitions/{id}", h.handleUpdateDefinition).Methods(http.MethodPut)
	r.HandleFunc("/definitions/{id}/activation", h.handleSetActivation).Methods(http.MethodPatch)
}

func (h *Handler) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	var def models.ScreeningDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	def.ID = ""
	saved, err := h.service.Save(r.Context(), def)
	if err != nil {
		if IsConfigurationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to create definition")
		http.Error(w, "failed to create definition", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"definition": saved})
}

func (h *Handler) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	var (
		defs []models.ScreeningDefinition
		err  error
	)
	if r.URL.Query().Get("active") == "true" {
		defs, err = h.service.ListActive(r.Context())
	} else {
		defs, err = h.service.ListAll(r.Context())
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to list definitions")
		http.Error(w, "failed to list definitions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": defs})
}

func (h *Handler) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "definition not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to get definition")
		http.Error(w, "failed to get definition", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"definition": def})
}

func (h *Handler) handleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	var def models.ScreeningDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	def.ID = mux.Vars(r)["id"]
	saved, err := h.service.Save(r.Context(), def)
	if err != nil {
		if IsConfigurationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "definition not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to update definition")
		http.Error(w, "failed to update definition", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"definition": saved})
}

func (h *Handler) handleSetActivation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Active == nil {
		http.Error(w, "active is required", http.StatusBadRequest)
		return
	}
	if err := h.service.SetActive(r.Context(), mux.Vars(r)["id"], *payload.Active); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "definition not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to toggle definition activation")
		http.Error(w, "failed to toggle activation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
