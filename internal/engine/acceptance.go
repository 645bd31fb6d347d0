package engine

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/events"
	"earlyadopters/internal/repo"
)

// AcceptCompletedActivity records the owner's acceptance of a verified
// completion, making author reward eligible. completionID and author are
// taken as given; when a completion record with that id exists it has to
// agree with them.
//
// Checks run in this order: project, activity, verification (for any caller),
// ownership, distribution, prior acceptance.
func (e Engine) AcceptCompletedActivity(ctx context.Context, caller string, projectID int64, activityIndex int, completionID, author string) (acc domain.Acceptance, err error) {
	const op = "accept completed activity"
	defer e.track(op, &err)()
	if _, err := e.loadProject(ctx, nil, op, projectID); err != nil {
		return domain.Acceptance{}, err
	}
	a, err := e.loadActivity(ctx, nil, op, projectID, activityIndex)
	if err != nil {
		return domain.Acceptance{}, err
	}
	// Verification only moves forward, so a positive answer read before the
	// transaction still holds inside it.
	v, err := e.verification(ctx, nil, op, a, completionID)
	if err != nil {
		return domain.Acceptance{}, err
	}
	details := verificationDetails(a, completionID)
	if v.Status != domain.VerificationVerified {
		details["status"] = v.Status
		return domain.Acceptance{}, newError(KindNotVerified, op, details, nil)
	}

	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.Acceptance{}, err
	}
	defer tx.Rollback()

	p, err := e.loadProject(ctx, tx, op, projectID)
	if err != nil {
		return domain.Acceptance{}, err
	}
	if !sameAccount(p.Owner, caller) {
		details["caller"] = caller
		return domain.Acceptance{}, newError(KindUnauthorized, op, details, nil)
	}
	distributed, err := e.Repo.HasReward(ctx, tx, projectID)
	if err != nil {
		return domain.Acceptance{}, err
	}
	if distributed {
		return domain.Acceptance{}, newError(KindRewardAlreadyDistributed, op, details, nil)
	}
	accepted, err := e.Repo.IsCompletionAccepted(ctx, tx, projectID, completionID)
	if err != nil {
		return domain.Acceptance{}, err
	}
	if accepted {
		return domain.Acceptance{}, newError(KindAlreadyAccepted, op, details, nil)
	}
	addr, err := account(op, "author", author)
	if err != nil {
		return domain.Acceptance{}, err
	}
	details["author"] = addr
	c, err := e.Repo.GetCompletedActivity(ctx, tx, completionID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return domain.Acceptance{}, err
	case c.ProjectID != projectID || c.ActivityIndex != activityIndex:
		return domain.Acceptance{}, newError(KindInvalidArgument, op, details, fmt.Errorf("completed activity belongs to project %d activity %d", c.ProjectID, c.ActivityIndex))
	case !sameAccount(c.Author, addr):
		return domain.Acceptance{}, newError(KindInvalidArgument, op, details, fmt.Errorf("completed activity was submitted by %s", c.Author))
	}

	acc = domain.Acceptance{
		ProjectID:           projectID,
		ActivityIndex:       activityIndex,
		CompletedActivityID: completionID,
		Author:              addr,
		AcceptedAt:          e.timestamp(),
	}
	acc.Seq, err = e.Repo.InsertAcceptance(ctx, tx, acc)
	if err != nil {
		return domain.Acceptance{}, err
	}
	if err := e.Events.Append(ctx, tx, events.CompletionAccepted, projectID, "completed_activity", completionID, p.Owner, events.EventPayload{
		"activity_index": activityIndex,
		"author":         addr,
	}); err != nil {
		return domain.Acceptance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Acceptance{}, err
	}
	e.logger().WithFields(log.Fields{"project_id": projectID, "completed_activity_id": completionID, "author": addr}).Info("completed activity accepted")
	return acc, nil
}

func (e Engine) IsCompletedActivityAccepted(ctx context.Context, projectID int64, activityIndex int, completionID string) (bool, error) {
	const op = "is completed activity accepted"
	if _, err := e.loadProject(ctx, nil, op, projectID); err != nil {
		return false, err
	}
	return e.Repo.IsAccepted(ctx, nil, projectID, activityIndex, completionID)
}

// IsAuthorOfAcceptedCompletedActivity reports whether author holds any
// accepted completion in the project. Once true it stays true.
func (e Engine) IsAuthorOfAcceptedCompletedActivity(ctx context.Context, projectID int64, author string) (bool, error) {
	const op = "is author of accepted completed activity"
	if _, err := e.loadProject(ctx, nil, op, projectID); err != nil {
		return false, err
	}
	addr, err := account(op, "author", author)
	if err != nil {
		return false, err
	}
	return e.Repo.IsAuthorAccepted(ctx, nil, projectID, addr)
}

// GetAcceptedCompletedActivities lists acceptances for one activity in
// acceptance order.
func (e Engine) GetAcceptedCompletedActivities(ctx context.Context, projectID int64, activityIndex int) ([]domain.Acceptance, error) {
	const op = "get accepted completed activities"
	if _, err := e.loadProject(ctx, nil, op, projectID); err != nil {
		return nil, err
	}
	if _, err := e.loadActivity(ctx, nil, op, projectID, activityIndex); err != nil {
		return nil, err
	}
	items, err := e.Repo.ListAcceptances(ctx, nil, projectID, &activityIndex)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Acceptance{}
	}
	return items, nil
}
