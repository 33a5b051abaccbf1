package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

// ProfileService stores the display profile shown next to a point owner's listings.
type ProfileService struct {
	profiles persistence.ProfileRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewProfileService constructs a profile service.
func NewProfileService(profiles persistence.ProfileRepository, now func() time.Time, logger *slog.Logger) *ProfileService {
	if now == nil {
		now = time.Now
	}
	return &ProfileService{profiles: profiles, now: now, logger: defaultLogger(logger)}
}

// UpsertProfile creates or replaces the principal's profile.
func (s *ProfileService) UpsertProfile(ctx context.Context, principal Principal, input ProfileInput) (profile OwnerProfile, err error) {
	if s == nil {
		err = fmt.Errorf("ProfileService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "ProfileService", "UpsertProfile", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save profile", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile saved")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(principal.UserID) == "" {
		vErr.add("id", "actor is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	email := strings.TrimSpace(input.Email)
	if email != "" {
		if _, parseErr := mail.ParseAddress(email); parseErr != nil {
			vErr.add("email", "email is invalid")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	role := principal.Role
	if role == "" {
		role = RoleResident
	}
	model := persistence.Profile{
		ID:        principal.UserID,
		Name:      strings.TrimSpace(input.Name),
		Email:     email,
		Phone:     strings.TrimSpace(input.Phone),
		AvatarURL: strings.TrimSpace(input.AvatarURL),
		Role:      role,
		UpdatedAt: s.now().UTC(),
	}
	if err = s.profiles.UpsertProfile(ctx, model); err != nil {
		err = mapRepoError(err)
		return
	}

	profile = OwnerProfile{ID: model.ID, Name: model.Name, Email: model.Email, Phone: model.Phone, AvatarURL: model.AvatarURL}
	return
}
