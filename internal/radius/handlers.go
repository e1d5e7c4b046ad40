package radius

import (
	"encoding/json"
	"net/http"
	"strings"

	"strand/internal/lifecycle"
	"strand/internal/models"

	"github.com/gorilla/mux"
)

type HTTP struct{ store SessionStore }

func NewHTTP(s SessionStore) *HTTP { return &HTTP{store: s} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/radius").Subrouter()

	// фид аккаунтинга: Start/Interim → POST, Stop → DELETE
	api.HandleFunc("/sessions", h.upsertSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.removeSession).Methods(http.MethodDelete)
}

func (h *HTTP) upsertSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		SubscriberID  string `json:"subscriber_id"`
		Username      string `json:"username"`
		AcctSessionID string `json:"acct_session_id"`
		NASAddress    string `json:"nas_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad JSON", err.Error(), nil)
		return
	}
	in.SubscriberID = strings.TrimSpace(in.SubscriberID)
	if in.SubscriberID == "" || in.Username == "" || in.NASAddress == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request",
			"subscriber_id, username and nas_address are required", nil)
		return
	}
	s := lifecycle.Session{
		SubscriberID:  in.SubscriberID,
		Username:      in.Username,
		AcctSessionID: in.AcctSessionID,
		NASAddress:    in.NASAddress,
	}
	if err := h.store.Upsert(s); err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), nil)
		return
	}
	_ = json.NewEncoder(w).Encode(in)
}

func (h *HTTP) getSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	s, ok, err := h.store.ActiveSession(id)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), nil)
		return
	}
	if !ok {
		models.WriteProblem(w, http.StatusNotFound, "Not found", "no active session", map[string]string{"subscriber_id": id})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"subscriber_id":   s.SubscriberID,
		"username":        s.Username,
		"acct_session_id": s.AcctSessionID,
		"nas_address":     s.NASAddress,
	})
}

func (h *HTTP) removeSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.Remove(id); err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
