package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

// StatsService aggregates claim history. Cancelled claims are kept in the
// ledger so they count here.
type StatsService struct {
	claims persistence.ClaimRepository
	logger *slog.Logger
}

// NewStatsService constructs a stats service.
func NewStatsService(claims persistence.ClaimRepository, logger *slog.Logger) *StatsService {
	return &StatsService{claims: claims, logger: defaultLogger(logger)}
}

// RecyclerStats counts the principal's claims by status and by creation month (UTC).
func (s *StatsService) RecyclerStats(ctx context.Context, principal Principal) (stats RecyclerStats, err error) {
	if s == nil {
		err = fmt.Errorf("StatsService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "StatsService", "RecyclerStats", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute stats", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var models []persistence.Claim
	models, err = s.claims.ListClaims(ctx, persistence.ClaimFilter{RecyclerID: principal.UserID})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	stats = aggregateClaims(toClaims(models))
	return
}

func aggregateClaims(claims []Claim) RecyclerStats {
	stats := RecyclerStats{
		Total: len(claims),
		ByStatus: map[ClaimStatus]int{
			ClaimStatusClaimed:   0,
			ClaimStatusCompleted: 0,
			ClaimStatusCancelled: 0,
		},
	}

	months := make(map[string]*MonthlyClaimStats)
	for _, claim := range claims {
		stats.ByStatus[claim.Status]++

		key := claim.CreatedAt.UTC().Format("2006-01")
		month, ok := months[key]
		if !ok {
			month = &MonthlyClaimStats{Month: key}
			months[key] = month
		}
		switch claim.Status {
		case ClaimStatusClaimed:
			month.Claimed++
		case ClaimStatusCompleted:
			month.Completed++
		case ClaimStatusCancelled:
			month.Cancelled++
		}
	}

	stats.ByMonth = make([]MonthlyClaimStats, 0, len(months))
	for _, month := range months {
		stats.ByMonth = append(stats.ByMonth, *month)
	}
	sort.Slice(stats.ByMonth, func(i, j int) bool {
		return stats.ByMonth[i].Month < stats.ByMonth[j].Month
	})
	return stats
}
