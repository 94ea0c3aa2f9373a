package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vedran77/blink/internal/service"
)

type NicknameHandler struct {
	nicknameService *service.NicknameService
	log             *slog.Logger
}

func NewNicknameHandler(nicknameService *service.NicknameService, log *slog.Logger) *NicknameHandler {
	return &NicknameHandler{nicknameService: nicknameService, log: log}
}

type nicknameAvailability struct {
	Nickname  string `json:"nickname"`
	Available bool   `json:"available"`
}

func (h *NicknameHandler) Check(w http.ResponseWriter, r *http.Request) {
	nickname := r.URL.Query().Get("nickname")

	errs, err := h.nicknameService.Check(r.Context(), nickname)
	switch {
	case errs.HasErrors():
		writeValidationErrors(w, errs)
	case errors.Is(err, service.ErrNicknameTaken):
		writeJSON(w, http.StatusOK, nicknameAvailability{Nickname: nickname, Available: false})
	case err != nil:
		h.log.Error("Checking nickname failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	default:
		writeJSON(w, http.StatusOK, nicknameAvailability{Nickname: nickname, Available: true})
	}
}
