package engine

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/events"
	"earlyadopters/internal/repo"
)

// CreateProject registers a project owned by caller.
func (e Engine) CreateProject(ctx context.Context, caller, metadataURI string) (p domain.Project, err error) {
	const op = "create project"
	defer e.track(op, &err)()
	owner, err := account(op, "caller", caller)
	if err != nil {
		return domain.Project{}, err
	}
	metadataURI = strings.TrimSpace(metadataURI)
	if metadataURI == "" {
		return domain.Project{}, newError(KindInvalidArgument, op, map[string]any{"metadata_uri": metadataURI}, errors.New("metadata uri is required"))
	}
	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p = domain.Project{Owner: owner, MetadataURI: metadataURI, CreatedAt: e.timestamp()}
	p.ID, err = e.Repo.InsertProject(ctx, tx, p)
	if err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectCreated, p.ID, "project", strconv.FormatInt(p.ID, 10), owner, events.EventPayload{
		"metadata_uri": p.MetadataURI,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	e.logger().WithFields(log.Fields{"project_id": p.ID, "owner": owner}).Info("project created")
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, projectID int64) (domain.Project, error) {
	return e.loadProject(ctx, nil, "get project", projectID)
}

// ListProjects pages projects newest first.
func (e Engine) ListProjects(ctx context.Context, owner string, limit int, beforeID int64) ([]domain.Project, error) {
	if owner != "" {
		addr, err := account("list projects", "owner", owner)
		if err != nil {
			return nil, err
		}
		owner = addr
	}
	projects, err := e.Repo.ListProjects(ctx, owner, limit, beforeID)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

// AddActivity appends an activity to the project's registry. The type must
// have a registered verifier.
func (e Engine) AddActivity(ctx context.Context, caller string, projectID int64, activityType, detailURI string) (a domain.Activity, err error) {
	const op = "add activity"
	defer e.track(op, &err)()
	activityType = strings.TrimSpace(activityType)
	detailURI = strings.TrimSpace(detailURI)

	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()

	p, err := e.loadProject(ctx, tx, op, projectID)
	if err != nil {
		return domain.Activity{}, err
	}
	if !sameAccount(p.Owner, caller) {
		return domain.Activity{}, newError(KindUnauthorized, op, map[string]any{"project_id": projectID, "caller": caller}, nil)
	}
	if _, ok := e.Verifiers.Lookup(activityType); !ok {
		return domain.Activity{}, newError(KindInvalidType, op, map[string]any{"type": activityType}, nil)
	}
	if detailURI == "" {
		return domain.Activity{}, newError(KindInvalidArgument, op, map[string]any{"detail_uri": detailURI}, errors.New("detail uri is required"))
	}
	idx, err := e.Repo.NextActivityIndex(ctx, tx, projectID)
	if err != nil {
		return domain.Activity{}, err
	}
	a = domain.Activity{ProjectID: projectID, Index: idx, Type: activityType, DetailURI: detailURI, CreatedAt: e.timestamp()}
	if err := e.Repo.InsertActivity(ctx, tx, a); err != nil {
		return domain.Activity{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ActivityAdded, projectID, "activity", activityEntityID(projectID, idx), p.Owner, events.EventPayload{
		"index":      idx,
		"type":       activityType,
		"detail_uri": detailURI,
	}); err != nil {
		return domain.Activity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Activity{}, err
	}
	e.logger().WithFields(log.Fields{"project_id": projectID, "index": idx, "type": activityType}).Info("activity added")
	return a, nil
}

// GetActivities returns the registry in index order.
func (e Engine) GetActivities(ctx context.Context, projectID int64) ([]domain.Activity, error) {
	if _, err := e.loadProject(ctx, nil, "get activities", projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListActivities(ctx, nil, projectID)
}

func (e Engine) GetActivity(ctx context.Context, projectID int64, index int) (domain.Activity, error) {
	const op = "get activity"
	if _, err := e.loadProject(ctx, nil, op, projectID); err != nil {
		return domain.Activity{}, err
	}
	return e.loadActivity(ctx, nil, op, projectID, index)
}

func (e Engine) loadProject(ctx context.Context, tx *sql.Tx, op string, projectID int64) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, tx, projectID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Project{}, newError(KindInvalidProject, op, map[string]any{"project_id": projectID}, nil)
	}
	return p, err
}

func (e Engine) loadActivity(ctx context.Context, tx *sql.Tx, op string, projectID int64, index int) (domain.Activity, error) {
	a, err := e.Repo.GetActivity(ctx, tx, projectID, index)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Activity{}, newError(KindInvalidActivity, op, map[string]any{"project_id": projectID, "activity_index": index}, nil)
	}
	return a, err
}

func activityEntityID(projectID int64, index int) string {
	return strconv.FormatInt(projectID, 10) + "/" + strconv.Itoa(index)
}
