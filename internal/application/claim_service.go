package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/availability"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

// EventPublisher forwards claim transitions to subscribers.
type EventPublisher interface {
	PublishClaimEvent(ctx context.Context, event ClaimEvent) error
}

// ClaimService runs the claim state machine: claimed moves to completed or
// cancelled and never back. A new claim on the same point is a new row.
type ClaimService struct {
	points        persistence.PointRepository
	claims        persistence.ClaimRepository
	publisher     EventPublisher
	idGenerator   func() string
	now           func() time.Time
	penaltyWindow time.Duration
	logger        *slog.Logger
}

// NewClaimService constructs a claim service with the default penalty window.
func NewClaimService(points persistence.PointRepository, claims persistence.ClaimRepository, publisher EventPublisher, idGenerator func() string, now func() time.Time) *ClaimService {
	return NewClaimServiceWithLogger(points, claims, publisher, idGenerator, now, 0, nil)
}

// NewClaimServiceWithLogger constructs a claim service with a specified
// penalty window and logger. A non-positive window selects the default.
func NewClaimServiceWithLogger(points persistence.PointRepository, claims persistence.ClaimRepository, publisher EventPublisher, idGenerator func() string, now func() time.Time, penaltyWindow time.Duration, logger *slog.Logger) *ClaimService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if penaltyWindow <= 0 {
		penaltyWindow = availability.DefaultPenaltyWindow
	}
	return &ClaimService{
		points:        points,
		claims:        claims,
		publisher:     publisher,
		idGenerator:   idGenerator,
		now:           now,
		penaltyWindow: penaltyWindow,
		logger:        defaultLogger(logger),
	}
}

func (s *ClaimService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ClaimService", operation, attrs...)
}

// CreateClaim records the principal's claim on a point. A concurrent claim
// that wins the race surfaces as ErrConflict; callers should refresh the
// availability list rather than retry.
func (s *ClaimService) CreateClaim(ctx context.Context, params CreateClaimParams) (claim Claim, err error) {
	if s == nil {
		err = fmt.Errorf("ClaimService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateClaim",
		"principal_id", params.Principal.UserID,
		"point_id", params.PointID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create claim", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("claim_id", claim.ID).InfoContext(ctx, "claim created")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.Principal.UserID) == "" {
		vErr.add("recycler", "recycler is required")
	}
	if strings.TrimSpace(params.PointID) == "" {
		vErr.add("point_id", "point is required")
	}
	if params.PickupTime.IsZero() {
		vErr.add("pickup_time", "pickup time is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if params.Principal.Role != RoleRecycler {
		err = ErrForbidden
		return
	}

	var point persistence.CollectionPoint
	point, err = s.points.GetPoint(ctx, params.PointID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	ownerID := strings.TrimSpace(params.OwnerID)
	switch {
	case ownerID == "":
		ownerID = point.OwnerID
	case ownerID != point.OwnerID:
		vErr.add("owner_id", "owner does not match the point")
	}
	if point.OwnerID == params.Principal.UserID {
		vErr.add("recycler", "owners cannot claim their own point")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	if err = s.checkClaimable(ctx, params.Principal.UserID, params.PointID, now); err != nil {
		return
	}

	model := persistence.Claim{
		ID:         s.idGenerator(),
		PointID:    params.PointID,
		RecyclerID: params.Principal.UserID,
		OwnerID:    ownerID,
		Status:     persistence.ClaimStatusClaimed,
		PickupTime: params.PickupTime.UTC(),
		CreatedAt:  now,
	}
	if err = s.claims.CreateClaim(ctx, model); err != nil {
		err = mapRepoError(err)
		return
	}

	claim = toClaim(model)
	s.publish(ctx, logger, ClaimEventCreated, claim, now)
	return
}

// checkClaimable rejects points held by a live or completed claim and points
// the recycler is still penalized on.
func (s *ClaimService) checkClaimable(ctx context.Context, recyclerID, pointID string, now time.Time) error {
	latest, err := s.claims.LatestClaimsForPoints(ctx, []string{pointID})
	if err != nil {
		return mapRepoError(err)
	}
	if current, ok := latest[pointID]; ok && !availability.Claimable(current.Status) {
		return fmt.Errorf("%w: point is %s", ErrConflict, current.Status)
	}

	since := now.Add(-s.penaltyWindow)
	cancelled, err := s.claims.ListClaims(ctx, persistence.ClaimFilter{
		RecyclerID:     recyclerID,
		Status:         persistence.ClaimStatusCancelled,
		CancelledAfter: &since,
	})
	if err != nil {
		return mapRepoError(err)
	}

	var penalty *PenaltyError
	for _, c := range cancelled {
		if c.PointID != pointID {
			continue
		}
		expiry, active := availability.PenaltyExpiry(recyclerID, claimRecord(c), now, s.penaltyWindow)
		if active && (penalty == nil || expiry.After(penalty.AvailableAt)) {
			penalty = &PenaltyError{PointID: pointID, AvailableAt: expiry}
		}
	}
	if penalty != nil {
		return penalty
	}
	return nil
}

// CancelClaim moves the principal's live claim to cancelled. The reason may
// be empty.
func (s *ClaimService) CancelClaim(ctx context.Context, principal Principal, claimID, reason string) (claim Claim, err error) {
	if s == nil {
		err = fmt.Errorf("ClaimService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelClaim",
		"principal_id", principal.UserID,
		"claim_id", claimID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel claim", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("point_id", claim.PointID).InfoContext(ctx, "claim cancelled")
	}()

	var current persistence.Claim
	current, err = s.claims.GetClaim(ctx, claimID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if current.RecyclerID != principal.UserID {
		err = ErrForbidden
		return
	}

	now := s.now().UTC()
	claim, err = s.transition(ctx, current, func() error {
		return s.claims.CancelClaim(ctx, claimID, strings.TrimSpace(reason), now)
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, ClaimEventCancelled, claim, now)
	return
}

// CompleteClaim marks a live claim as collected. Either the claiming
// recycler or the point owner may complete it.
func (s *ClaimService) CompleteClaim(ctx context.Context, principal Principal, claimID string) (claim Claim, err error) {
	if s == nil {
		err = fmt.Errorf("ClaimService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CompleteClaim",
		"principal_id", principal.UserID,
		"claim_id", claimID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete claim", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("point_id", claim.PointID).InfoContext(ctx, "claim completed")
	}()

	var current persistence.Claim
	current, err = s.claims.GetClaim(ctx, claimID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if current.RecyclerID != principal.UserID && current.OwnerID != principal.UserID {
		err = ErrForbidden
		return
	}

	now := s.now().UTC()
	claim, err = s.transition(ctx, current, func() error {
		return s.claims.CompleteClaim(ctx, claimID, now)
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, ClaimEventCompleted, claim, now)
	return
}

// transition runs a conditional update and re-reads the claim. When no
// claimed row matched, the re-read tells a vanished claim from one that
// already reached a terminal state.
func (s *ClaimService) transition(ctx context.Context, current persistence.Claim, update func() error) (Claim, error) {
	if ClaimStatus(current.Status).Terminal() {
		return Claim{}, fmt.Errorf("%w: claim is %s", ErrAlreadyTerminal, current.Status)
	}

	if err := update(); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return Claim{}, mapRepoError(err)
		}
		latest, getErr := s.claims.GetClaim(ctx, current.ID)
		if getErr != nil {
			return Claim{}, mapRepoError(getErr)
		}
		return Claim{}, fmt.Errorf("%w: claim is %s", ErrAlreadyTerminal, latest.Status)
	}

	updated, err := s.claims.GetClaim(ctx, current.ID)
	if err != nil {
		return Claim{}, mapRepoError(err)
	}
	return toClaim(updated), nil
}

// GetClaim returns a claim visible to its recycler or the point owner.
func (s *ClaimService) GetClaim(ctx context.Context, principal Principal, claimID string) (Claim, error) {
	if s == nil {
		return Claim{}, fmt.Errorf("ClaimService is nil")
	}
	model, err := s.claims.GetClaim(ctx, claimID)
	if err != nil {
		return Claim{}, mapRepoError(err)
	}
	if model.RecyclerID != principal.UserID && model.OwnerID != principal.UserID {
		return Claim{}, ErrForbidden
	}
	return toClaim(model), nil
}

// LatestClaimForPoint returns the point's most recently created claim.
func (s *ClaimService) LatestClaimForPoint(ctx context.Context, pointID string) (Claim, error) {
	if s == nil {
		return Claim{}, fmt.Errorf("ClaimService is nil")
	}
	latest, err := s.claims.LatestClaimsForPoints(ctx, []string{pointID})
	if err != nil {
		return Claim{}, mapRepoError(err)
	}
	model, ok := latest[pointID]
	if !ok {
		return Claim{}, ErrNotFound
	}
	return toClaim(model), nil
}

// ListClaimsByRecycler returns the principal's claims, newest first.
func (s *ClaimService) ListClaimsByRecycler(ctx context.Context, principal Principal) ([]Claim, error) {
	return s.list(ctx, "ListClaimsByRecycler", principal, persistence.ClaimFilter{RecyclerID: principal.UserID})
}

// ListClaimsByOwner returns claims on the principal's points, newest first.
func (s *ClaimService) ListClaimsByOwner(ctx context.Context, principal Principal) ([]Claim, error) {
	return s.list(ctx, "ListClaimsByOwner", principal, persistence.ClaimFilter{OwnerID: principal.UserID})
}

func (s *ClaimService) list(ctx context.Context, operation string, principal Principal, filter persistence.ClaimFilter) (claims []Claim, err error) {
	if s == nil {
		err = fmt.Errorf("ClaimService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list claims", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(claims)).DebugContext(ctx, "claims listed")
	}()

	var models []persistence.Claim
	models, err = s.claims.ListClaims(ctx, filter)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	claims = toClaims(models)
	return
}

// ArchiveTerminalClaims moves the principal's completed claims and the
// cancelled claims whose penalty has lapsed into the archive. Cancellations
// still inside the penalty window stay so the penalty keeps applying.
func (s *ClaimService) ArchiveTerminalClaims(ctx context.Context, principal Principal) (moved int, err error) {
	if s == nil {
		err = fmt.Errorf("ClaimService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ArchiveTerminalClaims", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to archive claims", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("archived_count", moved).InfoContext(ctx, "claims archived")
	}()

	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrForbidden
		return
	}

	now := s.now().UTC()
	moved, err = s.claims.ArchiveTerminalClaims(ctx, principal.UserID, now.Add(-s.penaltyWindow), now)
	err = mapRepoError(err)
	return
}

func (s *ClaimService) publish(ctx context.Context, logger *slog.Logger, eventType ClaimEventType, claim Claim, at time.Time) {
	if s.publisher == nil {
		return
	}
	event := ClaimEvent{
		Type:       eventType,
		ClaimID:    claim.ID,
		PointID:    claim.PointID,
		RecyclerID: claim.RecyclerID,
		OwnerID:    claim.OwnerID,
		Status:     claim.Status,
		OccurredAt: at,
	}
	if claim.CancellationReason != nil {
		event.Reason = *claim.CancellationReason
	}
	if err := s.publisher.PublishClaimEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish claim event", "event_type", string(eventType), "error", err)
	}
}

func claimRecord(model persistence.Claim) availability.ClaimRecord {
	return availability.ClaimRecord{
		PointID:     model.PointID,
		RecyclerID:  model.RecyclerID,
		Status:      model.Status,
		CancelledAt: model.CancelledAt,
	}
}
