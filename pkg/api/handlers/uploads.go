package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abdoulgee/skylinee/pkg/auth"
	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/uploads"
	"github.com/abdoulgee/skylinee/pkg/utils"
)

var uploadStore *uploads.LocalStore

// RegisterUploads registers the attachment upload route.
func RegisterUploads(r *mux.Router, s *uploads.LocalStore) {
	uploadStore = s
	r.HandleFunc("/uploads", createUpload).Methods(http.MethodPost)
}

// createUpload accepts a multipart form with a single "file" part and
// responds with the URL the stored attachment is served under. The URL
// is only a claim check; it becomes part of a thread when a message
// referencing it is created.
func createUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		utils.JSONError(w, http.StatusUnauthorized, "identity required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, uploadStore.MaxBytes()+1<<20)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "multipart field \"file\" required")
		return
	}
	defer f.Close()

	url, err := uploadStore.Save(hdr.Filename, f)
	if err != nil {
		if errors.Is(err, models.ErrUploadFailed) {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
		} else {
			logger.Error("upload_failed", "name", hdr.Filename, "error", err)
			utils.JSONError(w, http.StatusInternalServerError, "upload not saved")
		}
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]string{"url": url})
}
