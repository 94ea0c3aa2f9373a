package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vedran77/blink/internal/service"
	"github.com/vedran77/blink/internal/transport/http/middleware"
)

type ProfileHandler struct {
	profileService *service.ProfileService
	log            *slog.Logger
}

func NewProfileHandler(profileService *service.ProfileService, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, log: log}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	profile, err := h.profileService.Get(r.Context(), userID.String())
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Profile not found")
			return
		}
		h.log.Error("Getting profile failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	profile, errs, err := h.profileService.Save(r.Context(), userID.String(), input)
	if errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}
	if err != nil {
		if errors.Is(err, service.ErrNicknameTaken) {
			writeError(w, http.StatusConflict, "NICKNAME_TAKEN", "Nickname is already taken")
			return
		}
		h.log.Error("Saving profile failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
