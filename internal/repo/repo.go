package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"earlyadopters/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns tx when the caller is inside a transaction, the pool otherwise.
func (r Repo) q(tx *sql.Tx) Queryer {
	if tx != nil {
		return tx
	}
	return r.DB
}

const projectColumns = `p.id,p.owner,p.metadata_uri,p.created_at,EXISTS(SELECT 1 FROM rewards rw WHERE rw.project_id=p.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Owner, &p.MetadataURI, &p.CreatedAt, &p.Distributed)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// InsertProject stores a project and returns its sequential id.
func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(owner,metadata_uri,created_at) VALUES (?,?,?)`,
		p.Owner, p.MetadataURI, p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	return res.LastInsertId()
}

func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, id int64) (domain.Project, error) {
	return scanProject(r.q(tx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id=?`, id))
}

// ListProjects returns projects newest first, optionally filtered by owner.
func (r Repo) ListProjects(ctx context.Context, owner string, limit int, beforeID int64) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE 1=1`
	var args []any
	if owner != "" {
		query += ` AND p.owner=?`
		args = append(args, owner)
	}
	if beforeID > 0 {
		query += ` AND p.id<?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY p.id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// NextActivityIndex returns the index the next appended activity receives.
func (r Repo) NextActivityIndex(ctx context.Context, tx *sql.Tx, projectID int64) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(idx)+1,0) FROM activities WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}

func (r Repo) InsertActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO activities(project_id,idx,type,detail_uri,created_at) VALUES (?,?,?,?,?)`,
		a.ProjectID, a.Index, a.Type, a.DetailURI, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r Repo) GetActivity(ctx context.Context, tx *sql.Tx, projectID int64, index int) (domain.Activity, error) {
	var a domain.Activity
	err := r.q(tx).QueryRowContext(ctx, `SELECT project_id,idx,type,detail_uri,created_at FROM activities WHERE project_id=? AND idx=?`, projectID, index).
		Scan(&a.ProjectID, &a.Index, &a.Type, &a.DetailURI, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListActivities(ctx context.Context, tx *sql.Tx, projectID int64) ([]domain.Activity, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT project_id,idx,type,detail_uri,created_at FROM activities WHERE project_id=? ORDER BY idx ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Activity{}
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ProjectID, &a.Index, &a.Type, &a.DetailURI, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
