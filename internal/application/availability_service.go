package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/availability"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

// AvailabilityService loads catalog and ledger state and runs the
// availability filter for a recycler.
type AvailabilityService struct {
	points        persistence.PointRepository
	claims        persistence.ClaimRepository
	profiles      persistence.ProfileRepository
	now           func() time.Time
	penaltyWindow time.Duration
	defaultMaxKm  float64
	addresses     *addressCache
	logger        *slog.Logger
}

// AvailabilityOptions tunes the availability listing.
type AvailabilityOptions struct {
	PenaltyWindow time.Duration
	// DefaultMaxDistanceKm applies when the query carries no limit. Zero disables it.
	DefaultMaxDistanceKm float64
	// InstitutionalCacheTTL keeps the institutional address set between
	// listings. Zero reads it on every listing.
	InstitutionalCacheTTL time.Duration
	Logger                *slog.Logger
}

// NewAvailabilityService constructs an availability service.
func NewAvailabilityService(points persistence.PointRepository, claims persistence.ClaimRepository, profiles persistence.ProfileRepository, now func() time.Time, opts AvailabilityOptions) *AvailabilityService {
	if now == nil {
		now = time.Now
	}
	window := opts.PenaltyWindow
	if window <= 0 {
		window = availability.DefaultPenaltyWindow
	}
	return &AvailabilityService{
		points:        points,
		claims:        claims,
		profiles:      profiles,
		now:           now,
		penaltyWindow: window,
		defaultMaxKm:  opts.DefaultMaxDistanceKm,
		addresses:     newAddressCache(opts.InstitutionalCacheTTL, now),
		logger:        defaultLogger(opts.Logger),
	}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// ListAvailable returns the points the principal may claim right now,
// nearest first, with owner profiles attached. Failures of the institutional
// address lookup and the profile lookup are logged and skipped.
func (s *AvailabilityService) ListAvailable(ctx context.Context, query AvailabilityQuery) (result []AvailablePoint, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListAvailable",
		"principal_id", query.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list available points", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(result)).InfoContext(ctx, "available points listed")
	}()

	if vErr := validateAvailabilityQuery(query); vErr.HasErrors() {
		err = vErr
		return
	}

	var models []persistence.CollectionPoint
	models, err = s.points.ListPoints(ctx)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if len(models) == 0 {
		return nil, nil
	}

	var latest map[string]persistence.Claim
	latest, err = s.claims.LatestClaimsForPoints(ctx, pointIDs(models))
	if err != nil {
		err = mapRepoError(err)
		return
	}

	now := s.now().UTC()
	since := now.Add(-s.penaltyWindow)
	var cancelled []persistence.Claim
	cancelled, err = s.claims.ListClaims(ctx, persistence.ClaimFilter{
		RecyclerID:     query.Principal.UserID,
		Status:         persistence.ClaimStatusCancelled,
		CancelledAfter: &since,
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	input := availability.Input{
		Candidates:             make([]availability.Candidate, 0, len(models)),
		Latest:                 make(map[string]availability.ClaimRecord, len(latest)),
		Cancellations:          make([]availability.ClaimRecord, 0, len(cancelled)),
		InstitutionalAddresses: s.institutionalAddresses(ctx, logger),
	}
	byID := make(map[string]persistence.CollectionPoint, len(models))
	for _, model := range models {
		byID[model.ID] = model
		input.Candidates = append(input.Candidates, availability.Candidate{
			PointID:  model.ID,
			Address:  model.Address,
			Type:     model.Type,
			Location: toPoint(model, nil).Location,
		})
	}
	for pointID, claim := range latest {
		input.Latest[pointID] = claimRecord(claim)
	}
	for _, claim := range cancelled {
		input.Cancellations = append(input.Cancellations, claimRecord(claim))
	}

	maxKm := query.MaxDistanceKm
	if maxKm == nil && s.defaultMaxKm > 0 {
		limit := s.defaultMaxKm
		maxKm = &limit
	}

	ranked := availability.Filter(availability.Query{
		RecyclerID:    query.Principal.UserID,
		Origin:        query.Origin,
		MaxDistanceKm: maxKm,
		Now:           now,
		PenaltyWindow: s.penaltyWindow,
	}, input)
	if len(ranked) == 0 {
		return nil, nil
	}

	owners := s.ownerProfiles(ctx, logger, ranked, byID)

	result = make([]AvailablePoint, 0, len(ranked))
	for _, r := range ranked {
		model := byID[r.PointID]
		entry := AvailablePoint{
			Point:      toPoint(model, latestOf(latest, model.ID)),
			DistanceKm: r.DistanceKm,
		}
		if owner, ok := owners[model.OwnerID]; ok {
			profile := owner
			entry.Owner = &profile
		}
		result = append(result, entry)
	}
	return
}

func (s *AvailabilityService) institutionalAddresses(ctx context.Context, logger *slog.Logger) map[string]struct{} {
	if cached, ok := s.addresses.Get(); ok {
		return cached
	}
	institutional, err := s.points.ListPointsByType(ctx, string(PointTypeCollective))
	if err != nil {
		logger.WarnContext(ctx, "institutional address lookup failed; skipping suppression", "error", err)
		return nil
	}
	addresses := make(map[string]struct{}, len(institutional))
	for _, point := range institutional {
		addresses[point.Address] = struct{}{}
	}
	s.addresses.Store(addresses)
	return addresses
}

func (s *AvailabilityService) ownerProfiles(ctx context.Context, logger *slog.Logger, ranked []availability.Ranked, byID map[string]persistence.CollectionPoint) map[string]OwnerProfile {
	if s.profiles == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(ranked))
	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		owner := byID[r.PointID].OwnerID
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		ids = append(ids, owner)
	}

	stored, err := s.profiles.GetProfiles(ctx, ids)
	if err != nil {
		logger.WarnContext(ctx, "owner profile lookup failed; returning points without owners", "error", err)
		return nil
	}

	profiles := make(map[string]OwnerProfile, len(stored))
	for id, p := range stored {
		profiles[id] = OwnerProfile{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, AvatarURL: p.AvatarURL}
	}
	return profiles
}

func validateAvailabilityQuery(query AvailabilityQuery) *ValidationError {
	vErr := &ValidationError{}
	if query.Principal.UserID == "" {
		vErr.add("recycler", "recycler is required")
	}
	if query.Origin != nil {
		vErr.merge(validateCoordinate(*query.Origin))
	}
	if query.MaxDistanceKm != nil && *query.MaxDistanceKm < 0 {
		vErr.add("max_km", "max distance must not be negative")
	}
	return vErr
}

