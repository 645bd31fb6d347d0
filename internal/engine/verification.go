package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/events"
	"earlyadopters/internal/repo"
	"earlyadopters/internal/verifier"
)

// A start reservation older than this is treated as abandoned, for example
// after a crash between submitting a claim and recording it.
const reservationTTL = 10 * time.Minute

// Verification reports the verification state of a completed activity.
// Synchronous verifiers are evaluated on every call; two-phase state is read
// from the store.
func (e Engine) Verification(ctx context.Context, projectID int64, activityIndex int, completionID string) (domain.Verification, error) {
	const op = "verification status"
	if _, err := e.loadProject(ctx, nil, op, projectID); err != nil {
		return domain.Verification{}, err
	}
	a, err := e.loadActivity(ctx, nil, op, projectID, activityIndex)
	if err != nil {
		return domain.Verification{}, err
	}
	return e.verification(ctx, nil, op, a, completionID)
}

// VerificationStatus is Verification reduced to its state.
func (e Engine) VerificationStatus(ctx context.Context, projectID int64, activityIndex int, completionID string) (string, error) {
	v, err := e.Verification(ctx, projectID, activityIndex, completionID)
	if err != nil {
		return "", err
	}
	return v.Status, nil
}

func (e Engine) IsVerified(ctx context.Context, projectID int64, activityIndex int, completionID string) (bool, error) {
	status, err := e.VerificationStatus(ctx, projectID, activityIndex, completionID)
	return status == domain.VerificationVerified, err
}

func (e Engine) verification(ctx context.Context, tx *sql.Tx, op string, a domain.Activity, completionID string) (domain.Verification, error) {
	out := domain.Verification{
		ProjectID:           a.ProjectID,
		ActivityIndex:       a.Index,
		CompletedActivityID: completionID,
		Status:              domain.VerificationNotStarted,
	}
	v, err := e.verifierFor(op, a)
	if err != nil {
		return out, err
	}
	switch impl := v.(type) {
	case verifier.Synchronous:
		subject, err := e.subject(ctx, tx, a, completionID)
		if err != nil {
			return out, err
		}
		ok, err := impl.Verify(ctx, subject)
		if err != nil {
			return out, newError(KindVerificationFailed, op, verificationDetails(a, completionID), err)
		}
		if ok {
			out.Status = domain.VerificationVerified
		}
		return out, nil
	default:
		stored, err := e.Repo.GetVerification(ctx, tx, a.ProjectID, a.Index, completionID)
		if errors.Is(err, repo.ErrNotFound) {
			return out, nil
		}
		return stored, err
	}
}

// StartVerification submits the claim of a two-phase verifier and moves the
// completion from not_started to started. An oracle failure leaves it
// not_started.
func (e Engine) StartVerification(ctx context.Context, caller string, projectID int64, activityIndex int, completionID string) (v domain.Verification, err error) {
	const op = "start verification"
	defer e.track(op, &err)()
	starter, err := account(op, "caller", caller)
	if err != nil {
		return domain.Verification{}, err
	}
	if _, err := e.loadProject(ctx, nil, op, projectID); err != nil {
		return domain.Verification{}, err
	}
	a, err := e.loadActivity(ctx, nil, op, projectID, activityIndex)
	if err != nil {
		return domain.Verification{}, err
	}
	tp, err := e.twoPhase(op, a)
	if err != nil {
		return domain.Verification{}, err
	}
	c, err := e.Repo.GetCompletedActivity(ctx, nil, completionID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && (c.ProjectID != projectID || c.ActivityIndex != activityIndex)) {
		return domain.Verification{}, newError(KindInvalidArgument, op, verificationDetails(a, completionID), errors.New("no such completed activity for this activity"))
	}
	if err != nil {
		return domain.Verification{}, err
	}
	if err := e.reserveStart(ctx, op, a, completionID, starter); err != nil {
		return domain.Verification{}, err
	}
	reserved := true
	defer func() {
		if !reserved {
			return
		}
		if rerr := e.Repo.ReleaseVerification(context.WithoutCancel(ctx), nil, projectID, activityIndex, completionID); rerr != nil {
			e.logger().WithError(rerr).WithField("completed_activity_id", completionID).Warn("release verification reservation failed")
		}
	}()

	claim, err := tp.Start(ctx, subjectOf(a, c))
	if err != nil {
		e.logger().WithError(err).WithFields(log.Fields{"project_id": projectID, "completed_activity_id": completionID}).Warn("verification start failed")
		return domain.Verification{}, newError(KindVerificationFailed, op, verificationDetails(a, completionID), err)
	}

	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.Verification{}, err
	}
	defer tx.Rollback()
	if err := e.ensureNotStarted(ctx, tx, op, a, completionID); err != nil {
		return domain.Verification{}, err
	}
	if err := e.Repo.ReleaseVerification(ctx, tx, projectID, activityIndex, completionID); err != nil {
		return domain.Verification{}, err
	}
	v = domain.Verification{
		ProjectID:           projectID,
		ActivityIndex:       activityIndex,
		CompletedActivityID: completionID,
		Status:              domain.VerificationStarted,
		ClaimID:             claim.ID,
		Statement:           claim.Statement,
		StartedBy:           starter,
		StartedAt:           e.timestamp(),
	}
	if err := e.Repo.InsertVerification(ctx, tx, v); err != nil {
		return domain.Verification{}, err
	}
	if err := e.Events.Append(ctx, tx, events.VerificationStarted, projectID, "completed_activity", completionID, starter, events.EventPayload{
		"activity_index": activityIndex,
		"claim_id":       claim.ID,
	}); err != nil {
		return domain.Verification{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Verification{}, err
	}
	reserved = false
	e.Metrics.VerificationTransition(a.Type, domain.VerificationStarted)
	e.logger().WithFields(log.Fields{"project_id": projectID, "completed_activity_id": completionID, "claim_id": claim.ID}).Info("verification started")
	return v, nil
}

// FinishVerification collects the outcome of a started verification. Until
// the claim has settled as true the completion stays started and the call
// may be retried.
func (e Engine) FinishVerification(ctx context.Context, caller string, projectID int64, activityIndex int, completionID string) (v domain.Verification, err error) {
	const op = "finish verification"
	defer e.track(op, &err)()
	finisher, err := account(op, "caller", caller)
	if err != nil {
		return domain.Verification{}, err
	}
	if _, err := e.loadProject(ctx, nil, op, projectID); err != nil {
		return domain.Verification{}, err
	}
	a, err := e.loadActivity(ctx, nil, op, projectID, activityIndex)
	if err != nil {
		return domain.Verification{}, err
	}
	tp, err := e.twoPhase(op, a)
	if err != nil {
		return domain.Verification{}, err
	}
	details := verificationDetails(a, completionID)
	current, err := e.Repo.GetVerification(ctx, nil, projectID, activityIndex, completionID)
	if errors.Is(err, repo.ErrNotFound) {
		details["status"] = domain.VerificationNotStarted
		return domain.Verification{}, newError(KindVerificationNotReady, op, details, nil)
	}
	if err != nil {
		return domain.Verification{}, err
	}
	if current.Status == domain.VerificationVerified {
		return current, newError(KindAlreadyVerified, op, details, nil)
	}

	res, err := tp.Finish(ctx, verifier.Claim{ID: current.ClaimID, Statement: current.Statement})
	if err != nil {
		return current, newError(KindVerificationNotReady, op, details, err)
	}
	if !res.Settled || !res.Accepted {
		details["settled"] = res.Settled
		details["result"] = res.Accepted
		return current, newError(KindVerificationNotReady, op, details, nil)
	}

	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.Verification{}, err
	}
	defer tx.Rollback()
	now := e.timestamp()
	if err := e.Repo.MarkVerified(ctx, tx, projectID, activityIndex, completionID, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Verification{}, newError(KindAlreadyVerified, op, details, nil)
		}
		return domain.Verification{}, err
	}
	if err := e.Events.Append(ctx, tx, events.VerificationFinished, projectID, "completed_activity", completionID, finisher, events.EventPayload{
		"activity_index": activityIndex,
		"claim_id":       current.ClaimID,
	}); err != nil {
		return domain.Verification{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Verification{}, err
	}
	current.Status = domain.VerificationVerified
	current.VerifiedAt = &now
	e.Metrics.VerificationTransition(a.Type, domain.VerificationVerified)
	e.logger().WithFields(log.Fields{"project_id": projectID, "completed_activity_id": completionID}).Info("verification finished")
	return current, nil
}

func (e Engine) verifierFor(op string, a domain.Activity) (verifier.Verifier, error) {
	v, ok := e.Verifiers.Lookup(a.Type)
	if !ok {
		return nil, newError(KindInvalidType, op, map[string]any{"type": a.Type}, nil)
	}
	return v, nil
}

func (e Engine) twoPhase(op string, a domain.Activity) (verifier.TwoPhase, error) {
	v, err := e.verifierFor(op, a)
	if err != nil {
		return nil, err
	}
	tp, ok := v.(verifier.TwoPhase)
	if !ok {
		return nil, newError(KindInvalidType, op, map[string]any{"type": a.Type, "verifier": v.Name()}, errors.New("activity type verifies synchronously"))
	}
	return tp, nil
}

// reserveStart records, in its own transaction, that caller is about to
// submit a claim, so concurrent starts fail before reaching the oracle.
func (e Engine) reserveStart(ctx context.Context, op string, a domain.Activity, completionID, caller string) error {
	tx, err := e.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.ensureNotStarted(ctx, tx, op, a, completionID); err != nil {
		return err
	}
	now := e.now()
	staleBefore := now.Add(-reservationTTL).UTC().Format(time.RFC3339)
	err = e.Repo.ReserveVerification(ctx, tx, a.ProjectID, a.Index, completionID, caller, now.UTC().Format(time.RFC3339), staleBefore)
	if errors.Is(err, repo.ErrReserved) {
		details := verificationDetails(a, completionID)
		details["status"] = "starting"
		return newError(KindAlreadyStarted, op, details, err)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ensureNotStarted(ctx context.Context, tx *sql.Tx, op string, a domain.Activity, completionID string) error {
	cur, err := e.Repo.GetVerification(ctx, tx, a.ProjectID, a.Index, completionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	details := verificationDetails(a, completionID)
	details["status"] = cur.Status
	return newError(KindAlreadyStarted, op, details, nil)
}

// subject builds the verifier input. The completion id is caller supplied;
// a record held for a different activity is ignored.
func (e Engine) subject(ctx context.Context, tx *sql.Tx, a domain.Activity, completionID string) (verifier.Subject, error) {
	c, err := e.Repo.GetCompletedActivity(ctx, tx, completionID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && (c.ProjectID != a.ProjectID || c.ActivityIndex != a.Index)) {
		return subjectOf(a, domain.CompletedActivity{ID: completionID}), nil
	}
	if err != nil {
		return verifier.Subject{}, err
	}
	return subjectOf(a, c), nil
}

func subjectOf(a domain.Activity, c domain.CompletedActivity) verifier.Subject {
	return verifier.Subject{
		ProjectID:     a.ProjectID,
		ActivityIndex: a.Index,
		ActivityType:  a.Type,
		DetailURI:     a.DetailURI,
		CompletionID:  c.ID,
		Author:        c.Author,
		Content:       c.Content,
	}
}

func verificationDetails(a domain.Activity, completionID string) map[string]any {
	return map[string]any{
		"project_id":            a.ProjectID,
		"activity_index":        a.Index,
		"completed_activity_id": completionID,
	}
}
