package lifecycle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"strand/internal/models"

	"github.com/gorilla/mux"
)

type HTTP struct{ mgr *Manager }

func NewHTTP(m *Manager) *HTTP { return &HTTP{mgr: m} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// запись о назначении
	api.HandleFunc("/subscribers/{id}/ipv6", h.getStatus).Methods(http.MethodGet)
	api.HandleFunc("/subscribers/{id}/ipv6", h.createAssignment).Methods(http.MethodPost)

	// переходы
	for _, op := range Ops {
		api.HandleFunc("/subscribers/{id}/ipv6/"+string(op), h.transition(op)).Methods(http.MethodPost)
	}
}

type assignmentView struct {
	SubscriberID   string     `json:"subscriber_id"`
	State          State      `json:"state"`
	IPAMPrefixID   string     `json:"ipam_prefix_id,omitempty"`
	AssignedPrefix string     `json:"assigned_prefix,omitempty"`
	AllocatedAt    *time.Time `json:"allocated_at,omitempty"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	Warning        string     `json:"warning,omitempty"`
}

func viewOf(a Assignment, warning string) assignmentView {
	return assignmentView{
		SubscriberID:   a.SubscriberID,
		State:          a.State,
		IPAMPrefixID:   a.IPAMPrefixID,
		AssignedPrefix: a.AssignedPrefix,
		AllocatedAt:    a.AllocatedAt,
		ActivatedAt:    a.ActivatedAt,
		RevokedAt:      a.RevokedAt,
		LastError:      a.LastError,
		Warning:        warning,
	}
}

// GET /api/v1/subscribers/{id}/ipv6
func (h *HTTP) getStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := strings.TrimSpace(mux.Vars(r)["id"])

	a, err := h.mgr.Status(id)
	if err != nil {
		writeLifecycleError(w, id, err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(a, ""))
}

// POST /api/v1/subscribers/{id}/ipv6 — создать запись в Pending.
func (h *HTTP) createAssignment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "subscriber id required", nil)
		return
	}

	a, err := h.mgr.Create(id)
	if err != nil {
		writeLifecycleError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(viewOf(a, ""))
}

// POST /api/v1/subscribers/{id}/ipv6/{allocate|activate|suspend|resume|revoke}
func (h *HTTP) transition(op Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id := strings.TrimSpace(mux.Vars(r)["id"])

		res, err := h.mgr.Apply(r.Context(), op, id)
		if err != nil {
			writeLifecycleError(w, id, err)
			return
		}
		_ = json.NewEncoder(w).Encode(viewOf(res.Assignment, res.Warning))
	}
}

// writeLifecycleError — таксономия ошибок §7 на HTTP-статусы.
// retryable в теле, чтобы клиент отличал backoff-ошибки от постоянных.
func writeLifecycleError(w http.ResponseWriter, id string, err error) {
	extra := map[string]string{"subscriber_id": id}

	var inv *InvalidTransitionError
	var ext *ExternalError
	switch {
	case errors.Is(err, ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not found", "no ipv6 assignment for subscriber", extra)
	case errors.Is(err, ErrExists):
		extra["retryable"] = "false"
		models.WriteProblem(w, http.StatusConflict, "Already exists", "ipv6 assignment already exists", extra)
	case errors.Is(err, ErrConflict):
		extra["retryable"] = "true"
		models.WriteProblem(w, http.StatusConflict, "Conflict", err.Error(), extra)
	case errors.As(err, &inv):
		extra["retryable"] = "false"
		models.WriteProblem(w, http.StatusConflict, "Invalid transition", inv.Error(), extra)
	case errors.As(err, &ext):
		extra["retryable"] = "true"
		models.WriteProblem(w, http.StatusBadGateway, "External dependency failure", ext.Error(), extra)
	default:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), extra)
	}
}
