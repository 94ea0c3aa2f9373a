package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/repository"
	"github.com/vedran77/blink/pkg/validator"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileService struct {
	profileRepo repository.ProfileRepository
	nicknames   *NicknameService
}

func NewProfileService(profileRepo repository.ProfileRepository, nicknames *NicknameService) *ProfileService {
	return &ProfileService{profileRepo: profileRepo, nicknames: nicknames}
}

type ProfileInput struct {
	Nickname    string   `json:"nickname"`
	Gender      string   `json:"gender,omitempty"`
	Age         int      `json:"age,omitempty"`
	CountryCode string   `json:"country_code,omitempty"`
	Interests   []string `json:"interests,omitempty"`
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// Save creates or updates the profile of userID. Keeping your own nickname is
// always allowed; claiming one in use by someone else is not.
func (s *ProfileService) Save(ctx context.Context, userID string, input ProfileInput) (*domain.Profile, validator.ValidationErrors, error) {
	input.Nickname = strings.TrimSpace(input.Nickname)
	if errs := validateProfile(input); errs.HasErrors() {
		return nil, errs, nil
	}

	existing, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("getting profile: %w", err)
	}
	keepsNickname := existing != nil && existing.Nickname != nil && *existing.Nickname == input.Nickname
	if !keepsNickname && s.nicknames.IsTaken(ctx, input.Nickname) {
		return nil, nil, ErrNicknameTaken
	}

	profile := &domain.Profile{ID: userID, Role: domain.RoleStandard}
	if existing != nil {
		profile = existing
	}
	profile.Nickname = &input.Nickname
	if input.Gender != "" {
		profile.Gender = &input.Gender
	}
	if input.Age > 0 {
		profile.Age = &input.Age
	}
	if cc := strings.ToUpper(strings.TrimSpace(input.CountryCode)); cc != "" {
		profile.CountryCode = &cc
	}
	if input.Interests != nil {
		profile.Interests = input.Interests
	}

	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, nil, fmt.Errorf("saving profile: %w", err)
	}
	return profile, nil, nil
}

func validateProfile(input ProfileInput) validator.ValidationErrors {
	errs := validator.ValidateNickname(input.Nickname)
	if input.Age < 0 || input.Age > 120 {
		errs.Add("age", "Age must be between 0 and 120")
	}
	if cc := strings.TrimSpace(input.CountryCode); cc != "" && len(cc) != 2 {
		errs.Add("country_code", "Use a two-letter country code")
	}
	return errs
}
