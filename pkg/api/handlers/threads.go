package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abdoulgee/skylinee/pkg/auth"
	"github.com/abdoulgee/skylinee/pkg/directory"
	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/store"
	"github.com/abdoulgee/skylinee/pkg/utils"
	"github.com/abdoulgee/skylinee/pkg/validation"
)

var dir *directory.Builder

// RegisterThreads registers the directory and thread-scoped routes.
func RegisterThreads(r *mux.Router, b *directory.Builder) {
	dir = b
	r.HandleFunc("/directory", listDirectory).Methods(http.MethodGet)
	r.HandleFunc("/threads/{threadID}/messages", listThreadMessages).Methods(http.MethodGet)
	r.HandleFunc("/threads/{threadID}/messages", createThreadMessage).Methods(http.MethodPost)
	r.HandleFunc("/threads/{threadID}/read", markThreadRead).Methods(http.MethodPost)
}

// resolveThread parses the path id and checks the actor's access. Denied
// access is reported to the client as a plain not-found so a probing
// caller cannot distinguish other users' threads from nonexistent ones.
func resolveThread(w http.ResponseWriter, r *http.Request) (auth.Identity, models.ThreadRef, bool) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "identity required")
		return auth.Identity{}, models.ThreadRef{}, false
	}
	ref, err := models.ParseThreadID(mux.Vars(r)["threadID"])
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "malformed thread id")
		return auth.Identity{}, models.ThreadRef{}, false
	}
	if err := dir.Authorize(actor, ref); err != nil {
		if errors.Is(err, models.ErrThreadAccessDenied) {
			utils.JSONError(w, http.StatusNotFound, "thread not found")
		} else {
			utils.JSONError(w, http.StatusInternalServerError, "authorization check failed")
		}
		return auth.Identity{}, models.ThreadRef{}, false
	}
	return actor, ref, true
}

func listDirectory(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "identity required")
		return
	}
	threads, err := dir.List(actor)
	if err != nil {
		logger.Error("directory_list_failed", "actor", actor.ActorID, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Threads []models.ThreadSummary `json:"threads"`
	}{Threads: threads})
}

func listThreadMessages(w http.ResponseWriter, r *http.Request) {
	_, ref, ok := resolveThread(w, r)
	if !ok {
		return
	}
	msgs, err := store.ListMessages(ref.ThreadID())
	if err != nil {
		logger.Error("messages_list_failed", "thread", ref.ThreadID(), "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "messages unavailable")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		ThreadID string           `json:"threadId"`
		Messages []models.Message `json:"messages"`
	}{ThreadID: ref.ThreadID(), Messages: msgs})
}

func createThreadMessage(w http.ResponseWriter, r *http.Request) {
	actor, ref, ok := resolveThread(w, r)
	if !ok {
		return
	}
	var in struct {
		Text     string `json:"text"`
		ImageURL string `json:"imageUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateMessage(models.Message{Text: in.Text, ImageURL: in.ImageURL}); err != nil {
		if errors.Is(err, models.ErrEmptyMessage) {
			utils.JSONError(w, http.StatusBadRequest, "message is empty")
		} else {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	msg, err := store.AppendMessage(ref.ThreadID(), actor.Role, in.Text, in.ImageURL)
	if err != nil {
		logger.Error("message_create_failed", "thread", ref.ThreadID(), "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "message not saved")
		return
	}
	logger.Info("message_created", "thread", ref.ThreadID(), "id", msg.ID, "role", string(actor.Role))
	_ = utils.JSONWrite(w, http.StatusCreated, msg)
}

func markThreadRead(w http.ResponseWriter, r *http.Request) {
	actor, ref, ok := resolveThread(w, r)
	if !ok {
		return
	}
	if err := store.MarkRead(ref.ThreadID(), actor.ActorID); err != nil {
		logger.Error("mark_read_failed", "thread", ref.ThreadID(), "actor", actor.ActorID, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "watermark not saved")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
