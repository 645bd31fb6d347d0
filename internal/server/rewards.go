package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"earlyadopters/internal/chain"
	"earlyadopters/internal/domain"
	"earlyadopters/internal/engine"
)

func registerRewards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "distribute-reward",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/reward",
		Summary:       "Split a reward equally among accepted authors",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID int64             `path:"project_id"`
		Body      DistributeRequest `json:"body"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		value, err := parseAmount(input.Body.AmountRequest, e.Chain())
		if err != nil {
			return nil, handleError(err)
		}
		rw, err := e.DistributeReward(ctx, actorID, input.ProjectID, input.Body.DetailURI, value)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw, e.Chain())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-reward",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/reward",
		Summary:     "Reward distribution record",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		rw, err := e.GetReward(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw, e.Chain())}, nil
	})
}

func registerAccounts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-balance",
		Method:      http.MethodGet,
		Path:        "/accounts/{address}/balance",
		Summary:     "Account balance",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Address string `path:"address"`
	}) (*struct {
		Body BalanceResponse `json:"body"`
	}, error) {
		b, err := e.Balance(ctx, input.Address)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BalanceResponse `json:"body"`
		}{Body: balanceResponse(b, e.Chain())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ledger-entries",
		Method:      http.MethodGet,
		Path:        "/accounts/{address}/ledger",
		Summary:     "Transfers touching the account, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Address string `path:"address"`
		Limit   int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.LedgerEntry `json:"body"`
	}, error) {
		items, err := e.LedgerEntries(ctx, input.Address, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.LedgerEntry `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "deposit",
		Method:        http.MethodPost,
		Path:          "/accounts/{address}/deposits",
		Summary:       "Fund the caller's own account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Address string        `path:"address"`
		Body    AmountRequest `json:"body"`
	}) (*struct {
		Body BalanceResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		value, err := parseAmount(input.Body, e.Chain())
		if err != nil {
			return nil, handleError(err)
		}
		b, err := e.Deposit(ctx, actorID, input.Address, value)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BalanceResponse `json:"body"`
		}{Body: balanceResponse(b, e.Chain())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-profile",
		Method:      http.MethodPut,
		Path:        "/profiles/{address}",
		Summary:     "Set the caller's profile URI",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Address string         `path:"address"`
		Body    ProfileRequest `json:"body"`
	}) (*struct {
		Body domain.Profile `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		target, err := chain.NormalizeAddress(input.Address)
		if err != nil {
			return nil, handleError(err)
		}
		if target != actorID {
			return nil, newAPIError(http.StatusForbidden, string(engine.KindUnauthorized), "profiles can only be set by their account", map[string]any{"account": input.Address})
		}
		p, err := e.SetProfile(ctx, actorID, input.Body.URI)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Profile `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profiles/{address}",
		Summary:     "Get an account profile",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Address string `path:"address"`
	}) (*struct {
		Body domain.Profile `json:"body"`
	}, error) {
		p, err := e.GetProfile(ctx, input.Address)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Profile `json:"body"`
		}{Body: p}, nil
	})
}
