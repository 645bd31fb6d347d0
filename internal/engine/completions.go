package engine

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/events"
	"earlyadopters/internal/repo"
)

var contentPolicy = bluemonday.StrictPolicy()

// sanitizeContent strips markup from submitted text.
func sanitizeContent(s string) string {
	return strings.TrimSpace(html.UnescapeString(contentPolicy.Sanitize(s)))
}

// SubmitCompletedActivity records author's claim of having completed the
// activity. Repeated submissions for the same activity are kept.
func (e Engine) SubmitCompletedActivity(ctx context.Context, author string, projectID int64, activityIndex int, content string) (c domain.CompletedActivity, err error) {
	const op = "submit completed activity"
	defer e.track(op, &err)()
	addr, err := account(op, "author", author)
	if err != nil {
		return domain.CompletedActivity{}, err
	}

	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.CompletedActivity{}, err
	}
	defer tx.Rollback()

	if _, err := e.loadProject(ctx, tx, op, projectID); err != nil {
		return domain.CompletedActivity{}, err
	}
	a, err := e.loadActivity(ctx, tx, op, projectID, activityIndex)
	if err != nil {
		return domain.CompletedActivity{}, err
	}
	c = domain.CompletedActivity{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		ActivityIndex: activityIndex,
		ActivityType:  a.Type,
		Author:        addr,
		SubmittedAt:   e.timestamp(),
		Content:       sanitizeContent(content),
	}
	if err := e.Repo.InsertCompletedActivity(ctx, tx, c); err != nil {
		return domain.CompletedActivity{}, err
	}
	if err := e.Events.Append(ctx, tx, events.CompletionSubmitted, projectID, "completed_activity", c.ID, addr, events.EventPayload{
		"activity_index": activityIndex,
		"activity_type":  a.Type,
	}); err != nil {
		return domain.CompletedActivity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CompletedActivity{}, err
	}
	e.logger().WithFields(log.Fields{"project_id": projectID, "index": activityIndex, "completed_activity_id": c.ID}).Info("completed activity submitted")
	return c, nil
}

// GetCompletedActivities returns the project's completion records, most
// recent first.
func (e Engine) GetCompletedActivities(ctx context.Context, projectID int64) ([]domain.CompletedActivity, error) {
	return e.ListCompletedActivities(ctx, repo.CompletionFilters{ProjectID: projectID})
}

// ListCompletedActivities is GetCompletedActivities with optional activity
// and author filters.
func (e Engine) ListCompletedActivities(ctx context.Context, f repo.CompletionFilters) ([]domain.CompletedActivity, error) {
	const op = "list completed activities"
	if _, err := e.loadProject(ctx, nil, op, f.ProjectID); err != nil {
		return nil, err
	}
	if f.Author != "" {
		addr, err := account(op, "author", f.Author)
		if err != nil {
			return nil, err
		}
		f.Author = addr
	}
	items, err := e.Repo.ListCompletedActivities(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.CompletedActivity{}
	}
	return items, nil
}

func (e Engine) GetCompletedActivity(ctx context.Context, id string) (domain.CompletedActivity, error) {
	c, err := e.Repo.GetCompletedActivity(ctx, nil, id)
	if err != nil {
		return c, fmt.Errorf("completed activity %s: %w", id, err)
	}
	return c, nil
}
