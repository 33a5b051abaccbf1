package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

const claimColumns = `id, collection_point_id, recycler_id, user_id, status, pickup_time, created_at, cancelled_at, cancellation_reason, completed_at`

// ClaimRepository implements persistence.ClaimRepository on PostgreSQL.
type ClaimRepository struct {
	db *sql.DB
}

// NewClaimRepository creates a PostgreSQL claim repository.
func NewClaimRepository(db *sql.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// CreateClaim inserts the claim only while its point exists, holding a share
// lock on the point row until commit. A concurrent live claim on the same
// point trips uq_collection_claims_live_point.
func (r *ClaimRepository) CreateClaim(ctx context.Context, claim persistence.Claim) error {
	if claim.ID == "" || claim.PointID == "" || claim.RecyclerID == "" {
		return persistence.ErrConstraintViolation
	}
	if claim.Status == "" {
		claim.Status = persistence.ClaimStatusClaimed
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO collection_claims (`+claimColumns+`)
		SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::timestamptz, $7::timestamptz, $8::timestamptz, $9::text, $10::timestamptz
		WHERE EXISTS (SELECT 1 FROM collection_points WHERE id = $2 FOR SHARE)`,
		claim.ID,
		claim.PointID,
		claim.RecyclerID,
		claim.OwnerID,
		claim.Status,
		claim.PickupTime.UTC(),
		claim.CreatedAt.UTC(),
		optionalTime(claim.CancelledAt),
		claim.CancellationReason,
		optionalTime(claim.CompletedAt),
	)
	if err != nil {
		return mapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *ClaimRepository) GetClaim(ctx context.Context, id string) (persistence.Claim, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM collection_claims WHERE id = $1`, id)
	claim, err := scanClaim(row)
	if err != nil {
		return persistence.Claim{}, mapError(err)
	}
	return claim, nil
}

// LatestClaimsForPoints picks the newest claim per point with DISTINCT ON.
func (r *ClaimRepository) LatestClaimsForPoints(ctx context.Context, pointIDs []string) (map[string]persistence.Claim, error) {
	latest := make(map[string]persistence.Claim, len(pointIDs))
	if len(pointIDs) == 0 {
		return latest, nil
	}

	claims, err := r.query(ctx,
		`SELECT DISTINCT ON (collection_point_id) `+claimColumns+`
		FROM collection_claims
		WHERE collection_point_id::text = ANY($1)
		ORDER BY collection_point_id, created_at DESC, seq DESC`,
		pq.Array(pointIDs))
	if err != nil {
		return nil, err
	}
	for _, claim := range claims {
		latest[claim.PointID] = claim
	}
	return latest, nil
}

func (r *ClaimRepository) ListClaims(ctx context.Context, filter persistence.ClaimFilter) ([]persistence.Claim, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.RecyclerID != "" {
		add("recycler_id = $%d", filter.RecyclerID)
	}
	if filter.OwnerID != "" {
		add("user_id = $%d", filter.OwnerID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.CancelledAfter != nil {
		add("cancelled_at > $%d", filter.CancelledAfter.UTC())
	}

	query := `SELECT ` + claimColumns + ` FROM collection_claims`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	return r.query(ctx, query, args...)
}

func (r *ClaimRepository) CancelClaim(ctx context.Context, id string, reason string, at time.Time) error {
	return r.transition(ctx,
		`UPDATE collection_claims
		SET status = 'cancelled', cancelled_at = $1, cancellation_reason = $2
		WHERE id = $3 AND status = 'claimed'`,
		at.UTC(), reason, id)
}

func (r *ClaimRepository) CompleteClaim(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx,
		`UPDATE collection_claims
		SET status = 'completed', completed_at = $1
		WHERE id = $2 AND status = 'claimed'`,
		at.UTC(), id)
}

func (r *ClaimRepository) ArchiveTerminalClaims(ctx context.Context, recyclerID string, cancelledBefore, archivedAt time.Time) (int, error) {
	var moved int64
	err := withTransaction(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`WITH moved AS (
				DELETE FROM collection_claims
				WHERE recycler_id = $1
				  AND (status = 'completed' OR (status = 'cancelled' AND cancelled_at <= $2))
				RETURNING *
			)
			INSERT INTO collection_claims_archive (`+claimColumns+`, seq, archived_at)
			SELECT `+claimColumns+`, seq, $3::timestamptz FROM moved`,
			recyclerID, cancelledBefore.UTC(), archivedAt.UTC())
		if err != nil {
			return mapError(err)
		}
		moved, err = rowsAffected(result)
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(moved), nil
}

func (r *ClaimRepository) transition(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *ClaimRepository) query(ctx context.Context, query string, args ...any) ([]persistence.Claim, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
		cancelledAt, completedAt sql.NullTime
		reason                   sql.NullString
	)
	if err := row.Scan(
		&claim.ID,
		&claim.PointID,
		&claim.RecyclerID,
		&claim.OwnerID,
		&claim.Status,
		&claim.PickupTime,
		&claim.CreatedAt,
		&cancelledAt,
		&reason,
		&completedAt,
	); err != nil {
		return persistence.Claim{}, err
	}
	claim.PickupTime = claim.PickupTime.UTC()
	claim.CreatedAt = claim.CreatedAt.UTC()
	claim.CancelledAt = nullTimePtr(cancelledAt)
	claim.CompletedAt = nullTimePtr(completedAt)
	if reason.Valid {
		v := reason.String
		claim.CancellationReason = &v
	}
	return claim, nil
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
