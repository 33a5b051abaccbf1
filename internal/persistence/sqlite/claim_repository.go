package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

const claimColumns = `id, collection_point_id, recycler_id, user_id, status, pickup_time, created_at, cancelled_at, cancellation_reason, completed_at`

// ClaimRepository implements persistence.ClaimRepository using SQLite.
type ClaimRepository struct {
	pool *ConnectionPool
}

// NewClaimRepository creates a new SQLite claim repository.
func NewClaimRepository(pool *ConnectionPool) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// CreateClaim inserts a claim only while the referenced point still exists.
// The partial unique index on live claims rejects a second claimed row for
// the same point with persistence.ErrDuplicate.
func (r *ClaimRepository) CreateClaim(ctx context.Context, claim persistence.Claim) error {
	if claim.ID == "" || claim.PointID == "" || claim.RecyclerID == "" {
		return persistence.ErrConstraintViolation
	}
	if claim.Status == "" {
		claim.Status = persistence.ClaimStatusClaimed
	}

	query := `INSERT INTO collection_claims (` + claimColumns + `)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM collection_points WHERE id = ?)`

	result, err := r.pool.db.ExecContext(ctx, query,
		claim.ID,
		claim.PointID,
		claim.RecyclerID,
		claim.OwnerID,
		claim.Status,
		formatTime(claim.PickupTime),
		formatTime(claim.CreatedAt),
		formatOptionalTime(claim.CancelledAt),
		claim.CancellationReason,
		formatOptionalTime(claim.CompletedAt),
		claim.PointID,
	)
	if err != nil {
		return mapError(err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetClaim retrieves a claim by ID.
func (r *ClaimRepository) GetClaim(ctx context.Context, id string) (persistence.Claim, error) {
	if id == "" {
		return persistence.Claim{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM collection_claims WHERE id = ?`, id)
	claim, err := scanClaim(row)
	if err != nil {
		return persistence.Claim{}, mapError(err)
	}
	return claim, nil
}

// LatestClaimsForPoints returns the newest claim of each point. Equal
// created_at values fall back to insertion order.
func (r *ClaimRepository) LatestClaimsForPoints(ctx context.Context, pointIDs []string) (map[string]persistence.Claim, error) {
	latest := make(map[string]persistence.Claim, len(pointIDs))
	if len(pointIDs) == 0 {
		return latest, nil
	}

	query := `SELECT ` + claimColumns + ` FROM (
		SELECT c.*, ROW_NUMBER() OVER (
			PARTITION BY c.collection_point_id
			ORDER BY c.created_at DESC, c.rowid DESC
		) AS rn
		FROM collection_claims c
		WHERE c.collection_point_id IN (` + placeholders(len(pointIDs)) + `)
	) WHERE rn = 1`

	args := make([]any, 0, len(pointIDs))
	for _, id := range pointIDs {
		args = append(args, id)
	}

	claims, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, claim := range claims {
		latest[claim.PointID] = claim
	}
	return latest, nil
}

// ListClaims returns claims matching the filter, newest first.
func (r *ClaimRepository) ListClaims(ctx context.Context, filter persistence.ClaimFilter) ([]persistence.Claim, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RecyclerID != "" {
		clauses = append(clauses, "recycler_id = ?")
		args = append(args, filter.RecyclerID)
	}
	if filter.OwnerID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.CancelledAfter != nil {
		clauses = append(clauses, "cancelled_at IS NOT NULL AND cancelled_at > ?")
		args = append(args, formatTime(*filter.CancelledAfter))
	}

	query := `SELECT ` + claimColumns + ` FROM collection_claims`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	return r.query(ctx, query, args...)
}

// CancelClaim moves a claimed row to cancelled.
func (r *ClaimRepository) CancelClaim(ctx context.Context, id string, reason string, at time.Time) error {
	return r.transition(ctx,
		`UPDATE collection_claims
		SET status = 'cancelled', cancelled_at = ?, cancellation_reason = ?
		WHERE id = ? AND status = 'claimed'`,
		formatTime(at), reason, id)
}

// CompleteClaim moves a claimed row to completed.
func (r *ClaimRepository) CompleteClaim(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx,
		`UPDATE collection_claims
		SET status = 'completed', completed_at = ?
		WHERE id = ? AND status = 'claimed'`,
		formatTime(at), id)
}

// ArchiveTerminalClaims moves finished claims of a recycler into the archive table.
func (r *ClaimRepository) ArchiveTerminalClaims(ctx context.Context, recyclerID string, cancelledBefore, archivedAt time.Time) (int, error) {
	const match = `recycler_id = ? AND (status = 'completed' OR (status = 'cancelled' AND cancelled_at <= ?))`

	var moved int64
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collection_claims_archive (`+claimColumns+`, archived_at)
			SELECT `+claimColumns+`, ? FROM collection_claims WHERE `+match,
			formatTime(archivedAt), recyclerID, formatTime(cancelledBefore)); err != nil {
			return mapError(err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM collection_claims WHERE `+match, recyclerID, formatTime(cancelledBefore))
		if err != nil {
			return mapError(err)
		}
		moved, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(moved), nil
}

func (r *ClaimRepository) transition(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *ClaimRepository) query(ctx context.Context, query string, args ...any) ([]persistence.Claim, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var claims []persistence.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, mapError(err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return claims, nil
}

func scanClaim(row rowScanner) (persistence.Claim, error) {
	var (
		claim                    persistence.Claim
		pickupTime, createdAt    string
		cancelledAt, completedAt sql.NullString
		cancellationReason       sql.NullString
	)

	if err := row.Scan(
		&claim.ID,
		&claim.PointID,
		&claim.RecyclerID,
		&claim.OwnerID,
		&claim.Status,
		&pickupTime,
		&createdAt,
		&cancelledAt,
		&cancellationReason,
		&completedAt,
	); err != nil {
		return persistence.Claim{}, err
	}

	var err error
	if claim.PickupTime, err = parseTime(pickupTime); err != nil {
		return persistence.Claim{}, err
	}
	if claim.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Claim{}, err
	}
	if claim.CancelledAt, err = parseOptionalTime(cancelledAt); err != nil {
		return persistence.Claim{}, err
	}
	if claim.CompletedAt, err = parseOptionalTime(completedAt); err != nil {
		return persistence.Claim{}, err
	}
	if cancellationReason.Valid {
		reason := cancellationReason.String
		claim.CancellationReason = &reason
	}
	return claim, nil
}
