package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/abdoulgee/skylinee/pkg/auth"
	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/transactions"
	"github.com/abdoulgee/skylinee/pkg/utils"
)

var txns transactions.Manager

// RegisterTransactions registers the agent-only record management routes.
// Bookings and campaigns are the anchors threads hang off; in a larger
// deployment these would be written by the commerce system, so the
// routes here are gated to agents.
func RegisterTransactions(r *mux.Router, m transactions.Manager) {
	txns = m
	r.HandleFunc("/bookings", createRecord(models.KindBooking)).Methods(http.MethodPost)
	r.HandleFunc("/campaigns", createRecord(models.KindCampaign)).Methods(http.MethodPost)
	r.HandleFunc("/bookings/{id}", deleteRecord(models.KindBooking)).Methods(http.MethodDelete)
	r.HandleFunc("/campaigns/{id}", deleteRecord(models.KindCampaign)).Methods(http.MethodDelete)
}

func requireAgent(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "identity required")
		return false
	}
	if actor.Role != models.RoleAgent {
		utils.JSONError(w, http.StatusForbidden, "agent role required")
		return false
	}
	return true
}

func createRecord(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireAgent(w, r) {
			return
		}
		var rec transactions.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if rec.UserID == "" {
			utils.JSONError(w, http.StatusBadRequest, "userId required")
			return
		}
		saved, err := txns.Put(kind, rec)
		if err != nil {
			logger.Error("record_create_failed", "kind", string(kind), "error", err)
			utils.JSONError(w, http.StatusInternalServerError, "record not saved")
			return
		}
		logger.Info("record_created", "kind", string(kind), "id", saved.ID, "user", saved.UserID)
		_ = utils.JSONWrite(w, http.StatusCreated, saved)
	}
}

func deleteRecord(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireAgent(w, r) {
			return
		}
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil || id <= 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid record id")
			return
		}
		if err := txns.Delete(kind, id); err != nil {
			logger.Error("record_delete_failed", "kind", string(kind), "id", id, "error", err)
			utils.JSONError(w, http.StatusInternalServerError, "record not deleted")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
