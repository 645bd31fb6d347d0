package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/engine"
	"earlyadopters/internal/repo"
)

type completionPath struct {
	ProjectID    int64  `path:"project_id"`
	Index        int    `path:"index" minimum:"0"`
	CompletionID string `path:"completion_id"`
}

func registerCompletions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-completion",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/activities/{index}/completions",
		Summary:       "Submit a completed activity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64                   `path:"project_id"`
		Index     int                     `path:"index" minimum:"0"`
		Body      SubmitCompletionRequest `json:"body"`
	}) (*struct {
		Body domain.CompletedActivity `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.SubmitCompletedActivity(ctx, actorID, input.ProjectID, input.Index, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CompletedActivity `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-completions",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/completions",
		Summary:     "List completed activities, most recent first",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID     int64  `path:"project_id"`
		ActivityIndex int    `query:"activity_index" default:"-1"`
		Author        string `query:"author"`
		Limit         int    `query:"limit"`
	}) (*struct {
		Body []domain.CompletedActivity `json:"body"`
	}, error) {
		f := repo.CompletionFilters{
			ProjectID: input.ProjectID,
			Author:    input.Author,
			Limit:     input.Limit,
		}
		if input.ActivityIndex >= 0 {
			idx := input.ActivityIndex
			f.ActivityIndex = &idx
		}
		items, err := e.ListCompletedActivities(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.CompletedActivity `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-completion",
		Method:      http.MethodGet,
		Path:        "/completions/{id}",
		Summary:     "Get a completed activity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.CompletedActivity `json:"body"`
	}, error) {
		c, err := e.GetCompletedActivity(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CompletedActivity `json:"body"`
		}{Body: c}, nil
	})
}

func registerVerification(api huma.API, e engine.Engine) {
	const base = "/projects/{project_id}/activities/{index}/completions/{completion_id}/verification"

	huma.Register(api, huma.Operation{
		OperationID: "get-verification",
		Method:      http.MethodGet,
		Path:        base,
		Summary:     "Verification state of a completed activity",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *completionPath) (*struct {
		Body domain.Verification `json:"body"`
	}, error) {
		v, err := e.Verification(ctx, input.ProjectID, input.Index, input.CompletionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Verification `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-verification",
		Method:      http.MethodPost,
		Path:        base + "/start",
		Summary:     "Start a two-phase verification",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, input *completionPath) (*struct {
		Body domain.Verification `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.StartVerification(ctx, actorID, input.ProjectID, input.Index, input.CompletionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Verification `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "finish-verification",
		Method:      http.MethodPost,
		Path:        base + "/finish",
		Summary:     "Finish a two-phase verification",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *completionPath) (*struct {
		Body domain.Verification `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.FinishVerification(ctx, actorID, input.ProjectID, input.Index, input.CompletionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Verification `json:"body"`
		}{Body: v}, nil
	})
}

func registerAcceptances(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "accept-completion",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/activities/{index}/acceptances",
		Summary:       "Accept a verified completed activity",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID int64         `path:"project_id"`
		Index     int           `path:"index" minimum:"0"`
		Body      AcceptRequest `json:"body"`
	}) (*struct {
		Body domain.Acceptance `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		acc, err := e.AcceptCompletedActivity(ctx, actorID, input.ProjectID, input.Index, input.Body.CompletedActivityID, input.Body.Author)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Acceptance `json:"body"`
		}{Body: acc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-acceptances",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/activities/{index}/acceptances",
		Summary:     "Accepted completions in acceptance order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		Index     int   `path:"index" minimum:"0"`
	}) (*struct {
		Body []domain.Acceptance `json:"body"`
	}, error) {
		items, err := e.GetAcceptedCompletedActivities(ctx, input.ProjectID, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Acceptance `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "is-completion-accepted",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/activities/{index}/acceptances/{completion_id}",
		Summary:     "Whether a completed activity was accepted",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *completionPath) (*struct {
		Body AcceptedResponse `json:"body"`
	}, error) {
		ok, err := e.IsCompletedActivityAccepted(ctx, input.ProjectID, input.Index, input.CompletionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AcceptedResponse `json:"body"`
		}{Body: AcceptedResponse{Accepted: ok}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "is-author-accepted",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/authors/{address}/accepted",
		Summary:     "Whether the account authored an accepted completion in the project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64  `path:"project_id"`
		Address   string `path:"address"`
	}) (*struct {
		Body AcceptedResponse `json:"body"`
	}, error) {
		ok, err := e.IsAuthorOfAcceptedCompletedActivity(ctx, input.ProjectID, input.Address)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AcceptedResponse `json:"body"`
		}{Body: AcceptedResponse{Accepted: ok}}, nil
	})
}
