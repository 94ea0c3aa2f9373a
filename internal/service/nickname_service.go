package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/vedran77/blink/internal/repository"
	"github.com/vedran77/blink/pkg/validator"
)

var ErrNicknameTaken = errors.New("nickname already taken")

type NicknameService struct {
	profileRepo repository.ProfileRepository
	log         *slog.Logger
}

func NewNicknameService(profileRepo repository.ProfileRepository, log *slog.Logger) *NicknameService {
	return &NicknameService{profileRepo: profileRepo, log: log}
}

// Check validates nickname and reports whether it can be claimed. Format
// problems come back as ValidationErrors; a nickname in use as ErrNicknameTaken.
func (s *NicknameService) Check(ctx context.Context, nickname string) (validator.ValidationErrors, error) {
	nickname = strings.TrimSpace(nickname)
	if errs := validator.ValidateNickname(nickname); errs.HasErrors() {
		return errs, nil
	}

	if s.IsTaken(ctx, nickname) {
		return nil, ErrNicknameTaken
	}
	return nil, nil
}

// IsTaken reports whether another profile already uses nickname. Lookup
// failures count as not taken.
func (s *NicknameService) IsTaken(ctx context.Context, nickname string) bool {
	taken, err := s.profileRepo.NicknameTaken(ctx, nickname)
	if err != nil {
		s.log.Warn("Nickname lookup failed", "nickname", nickname, "error", err)
		return false
	}
	return taken
}
