package engine

import (
	"context"
	"errors"
	"strings"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/events"
)

// SetProfile points the caller's profile at uri, replacing any previous one.
func (e Engine) SetProfile(ctx context.Context, caller, uri string) (p domain.Profile, err error) {
	const op = "set profile"
	defer e.track(op, &err)()
	addr, err := account(op, "caller", caller)
	if err != nil {
		return domain.Profile{}, err
	}
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return domain.Profile{}, newError(KindInvalidArgument, op, map[string]any{"uri": uri}, errors.New("profile uri is required"))
	}
	tx, err := e.beginTx(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	defer tx.Rollback()
	p = domain.Profile{Account: addr, URI: uri, UpdatedAt: e.timestamp()}
	if err := e.Repo.UpsertProfile(ctx, tx, p); err != nil {
		return domain.Profile{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ProfileUpdated, 0, "profile", addr, addr, events.EventPayload{"uri": uri}); err != nil {
		return domain.Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// GetProfile returns repo.ErrNotFound for accounts without a profile.
func (e Engine) GetProfile(ctx context.Context, accountAddr string) (domain.Profile, error) {
	addr, err := account("get profile", "account", accountAddr)
	if err != nil {
		return domain.Profile{}, err
	}
	return e.Repo.GetProfile(ctx, addr)
}
