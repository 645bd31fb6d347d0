package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"earlyadopters/internal/domain"
)

const completionColumns = `id,project_id,activity_index,activity_type,author,submitted_at,content`

func scanCompletion(row scanner) (domain.CompletedActivity, error) {
	var c domain.CompletedActivity
	err := row.Scan(&c.ID, &c.ProjectID, &c.ActivityIndex, &c.ActivityType, &c.Author, &c.SubmittedAt, &c.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertCompletedActivity(ctx context.Context, tx *sql.Tx, c domain.CompletedActivity) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO completed_activities(`+completionColumns+`) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.ProjectID, c.ActivityIndex, c.ActivityType, c.Author, c.SubmittedAt, c.Content)
	if err != nil {
		return fmt.Errorf("insert completed activity: %w", err)
	}
	return nil
}

func (r Repo) GetCompletedActivity(ctx context.Context, tx *sql.Tx, id string) (domain.CompletedActivity, error) {
	return scanCompletion(r.q(tx).QueryRowContext(ctx, `SELECT `+completionColumns+` FROM completed_activities WHERE id=?`, id))
}

// CompletionFilters narrows ListCompletedActivities.
type CompletionFilters struct {
	ProjectID     int64
	ActivityIndex *int
	Author        string
	Limit         int
}

// ListCompletedActivities returns records most recent first.
func (r Repo) ListCompletedActivities(ctx context.Context, f CompletionFilters) ([]domain.CompletedActivity, error) {
	query := `SELECT ` + completionColumns + ` FROM completed_activities WHERE project_id=?`
	args := []any{f.ProjectID}
	if f.ActivityIndex != nil {
		query += ` AND activity_index=?`
		args = append(args, *f.ActivityIndex)
	}
	if f.Author != "" {
		query += ` AND author=?`
		args = append(args, f.Author)
	}
	query += ` ORDER BY submitted_at DESC, seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.CompletedActivity{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) GetVerification(ctx context.Context, tx *sql.Tx, projectID int64, index int, completionID string) (domain.Verification, error) {
	var v domain.Verification
	var verifiedAt sql.NullString
	err := r.q(tx).QueryRowContext(ctx, `SELECT project_id,activity_index,completed_activity_id,status,claim_id,statement,started_by,started_at,verified_at
FROM verifications WHERE project_id=? AND activity_index=? AND completed_activity_id=?`, projectID, index, completionID).
		Scan(&v.ProjectID, &v.ActivityIndex, &v.CompletedActivityID, &v.Status, &v.ClaimID, &v.Statement, &v.StartedBy, &v.StartedAt, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	if verifiedAt.Valid {
		v.VerifiedAt = &verifiedAt.String
	}
	return v, err
}

func (r Repo) InsertVerification(ctx context.Context, tx *sql.Tx, v domain.Verification) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO verifications(project_id,activity_index,completed_activity_id,status,claim_id,statement,started_by,started_at)
VALUES (?,?,?,?,?,?,?,?)`, v.ProjectID, v.ActivityIndex, v.CompletedActivityID, v.Status, v.ClaimID, v.Statement, v.StartedBy, v.StartedAt)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

// MarkVerified moves a started verification to verified.
func (r Repo) MarkVerified(ctx context.Context, tx *sql.Tx, projectID int64, index int, completionID, at string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE verifications SET status='verified', verified_at=?
WHERE project_id=? AND activity_index=? AND completed_activity_id=? AND status='started'`, at, projectID, index, completionID)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ErrReserved means another caller is submitting the claim for the same
// completion.
var ErrReserved = errors.New("verification start in progress")

// ReserveVerification claims the right to submit a verification claim.
// Reservations taken before staleBefore are abandoned and replaced.
func (r Repo) ReserveVerification(ctx context.Context, tx *sql.Tx, projectID int64, index int, completionID, by, at, staleBefore string) error {
	q := r.q(tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM verification_reservations
WHERE project_id=? AND activity_index=? AND completed_activity_id=? AND reserved_at < ?`, projectID, index, completionID, staleBefore); err != nil {
		return fmt.Errorf("expire reservation: %w", err)
	}
	res, err := q.ExecContext(ctx, `INSERT INTO verification_reservations(project_id,activity_index,completed_activity_id,reserved_by,reserved_at)
VALUES (?,?,?,?,?) ON CONFLICT DO NOTHING`, projectID, index, completionID, by, at)
	if err != nil {
		return fmt.Errorf("reserve verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReserved
	}
	return nil
}

func (r Repo) ReleaseVerification(ctx context.Context, tx *sql.Tx, projectID int64, index int, completionID string) error {
	_, err := r.q(tx).ExecContext(ctx, `DELETE FROM verification_reservations
WHERE project_id=? AND activity_index=? AND completed_activity_id=?`, projectID, index, completionID)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}
