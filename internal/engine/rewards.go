package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/events"
)

// DistributeReward splits value (wei) evenly between the distinct accepted
// authors of the project and pays each share from the owner's balance. The
// division truncates and the remainder stays with the owner. Either every
// transfer and the reward record commit, or nothing does; a project is
// distributed at most once.
func (e Engine) DistributeReward(ctx context.Context, caller string, projectID int64, detailURI string, value *big.Int) (rw domain.Reward, err error) {
	const op = "distribute reward"
	defer e.track(op, &err)()
	details := map[string]any{"project_id": projectID}

	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.Reward{}, err
	}
	defer tx.Rollback()

	p, err := e.loadProject(ctx, tx, op, projectID)
	if err != nil {
		return domain.Reward{}, err
	}
	if !sameAccount(p.Owner, caller) {
		details["caller"] = caller
		return domain.Reward{}, newError(KindUnauthorized, op, details, nil)
	}
	distributed, err := e.Repo.HasReward(ctx, tx, projectID)
	if err != nil {
		return domain.Reward{}, err
	}
	if distributed {
		return domain.Reward{}, newError(KindAlreadyDistributed, op, details, nil)
	}
	if value == nil || value.Sign() <= 0 {
		details["value"] = fmt.Sprint(value)
		return domain.Reward{}, newError(KindInvalidArgument, op, details, errors.New("value must be positive"))
	}
	authors, err := e.Repo.AcceptedAuthors(ctx, tx, projectID)
	if err != nil {
		return domain.Reward{}, err
	}
	if len(authors) == 0 {
		return domain.Reward{}, newError(KindNoAcceptedAuthors, op, details, nil)
	}

	n := big.NewInt(int64(len(authors)))
	share := new(big.Int).Quo(value, n)
	remainder := new(big.Int).Sub(value, new(big.Int).Mul(share, n))
	memo := "reward project " + strconv.FormatInt(projectID, 10)
	payouts := make([]domain.Payout, 0, len(authors))
	for _, author := range authors {
		if err := e.Ledger.Transfer(ctx, tx, p.Owner, author, share, memo); err != nil {
			details["recipient"] = author
			details["amount"] = share.String()
			e.logger().WithError(err).WithFields(log.Fields{"project_id": projectID, "recipient": author}).Warn("reward transfer failed; rolling back")
			return domain.Reward{}, newError(KindTransferFailed, op, details, err)
		}
		payouts = append(payouts, domain.Payout{Recipient: author, Amount: share.String()})
	}

	rw = domain.Reward{
		ProjectID:     projectID,
		DetailURI:     strings.TrimSpace(detailURI),
		Value:         value.String(),
		Share:         share.String(),
		Remainder:     remainder.String(),
		Recipients:    len(authors),
		DistributedBy: p.Owner,
		DistributedAt: e.timestamp(),
		Payouts:       payouts,
	}
	if err := e.Repo.InsertReward(ctx, tx, rw); err != nil {
		return domain.Reward{}, err
	}
	if err := e.Events.Append(ctx, tx, events.RewardDistributed, projectID, "project", strconv.FormatInt(projectID, 10), p.Owner, events.EventPayload{
		"value":      rw.Value,
		"share":      rw.Share,
		"remainder":  rw.Remainder,
		"recipients": authors,
		"detail_uri": rw.DetailURI,
	}); err != nil {
		return domain.Reward{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Reward{}, err
	}
	e.Metrics.RewardDistributed(len(authors))
	e.logger().WithFields(log.Fields{"project_id": projectID, "value": rw.Value, "share": rw.Share, "recipients": len(authors)}).Info("reward distributed")
	return rw, nil
}

// GetReward returns the distribution record; repo.ErrNotFound until the
// project is distributed.
func (e Engine) GetReward(ctx context.Context, projectID int64) (domain.Reward, error) {
	if _, err := e.loadProject(ctx, nil, "get reward", projectID); err != nil {
		return domain.Reward{}, err
	}
	rw, err := e.Repo.GetReward(ctx, nil, projectID)
	if err != nil {
		return domain.Reward{}, fmt.Errorf("reward for project %d: %w", projectID, err)
	}
	return rw, nil
}

// Deposit credits the caller's own account. It is only available when the
// ledger is configured to accept deposits.
func (e Engine) Deposit(ctx context.Context, caller, accountAddr string, value *big.Int) (b domain.Balance, err error) {
	const op = "deposit"
	defer e.track(op, &err)()
	if e.Config == nil || !e.Config.Ledger.AllowDeposits {
		return domain.Balance{}, newError(KindUnauthorized, op, map[string]any{"account": accountAddr}, errors.New("deposits are disabled"))
	}
	addr, err := account(op, "account", accountAddr)
	if err != nil {
		return domain.Balance{}, err
	}
	if !sameAccount(addr, caller) {
		return domain.Balance{}, newError(KindUnauthorized, op, map[string]any{"account": addr, "caller": caller}, nil)
	}
	if value == nil || value.Sign() <= 0 {
		return domain.Balance{}, newError(KindInvalidArgument, op, map[string]any{"value": fmt.Sprint(value)}, errors.New("value must be positive"))
	}

	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	defer tx.Rollback()
	if err := e.Ledger.Credit(ctx, tx, addr, value, "deposit"); err != nil {
		return domain.Balance{}, err
	}
	if err := e.Events.Append(ctx, tx, events.LedgerDeposit, 0, "account", addr, addr, events.EventPayload{"amount": value.String()}); err != nil {
		return domain.Balance{}, err
	}
	bal, err := e.Ledger.Balance(ctx, tx, addr)
	if err != nil {
		return domain.Balance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Balance{}, err
	}
	return domain.Balance{Account: addr, Amount: bal.String(), UpdatedAt: e.timestamp()}, nil
}

func (e Engine) Balance(ctx context.Context, accountAddr string) (domain.Balance, error) {
	addr, err := account("balance", "account", accountAddr)
	if err != nil {
		return domain.Balance{}, err
	}
	return e.Repo.GetBalance(ctx, nil, addr)
}

// LedgerEntries lists transfers touching the account, newest first.
func (e Engine) LedgerEntries(ctx context.Context, accountAddr string, limit int) ([]domain.LedgerEntry, error) {
	addr, err := account("ledger entries", "account", accountAddr)
	if err != nil {
		return nil, err
	}
	items, err := e.Repo.ListLedgerEntries(ctx, addr, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.LedgerEntry{}
	}
	return items, nil
}

// IsDistributed reports whether the project's reward has been paid.
func (e Engine) IsDistributed(ctx context.Context, projectID int64) (bool, error) {
	if _, err := e.loadProject(ctx, nil, "is distributed", projectID); err != nil {
		return false, err
	}
	return e.Repo.HasReward(ctx, nil, projectID)
}

