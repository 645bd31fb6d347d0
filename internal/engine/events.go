package engine

import (
	"context"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/repo"
)

// ProjectEvents pages a project's event log newest first.
func (e Engine) ProjectEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	if _, err := e.loadProject(ctx, nil, "project events", f.ProjectID); err != nil {
		return nil, err
	}
	items, err := e.Repo.LatestEventsFrom(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Event{}
	}
	return items, nil
}
