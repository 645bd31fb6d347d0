package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"earlyadopters/internal/access"
	"earlyadopters/internal/content"
)

func registerChatAccess(api huma.API, gate *access.Gate) {
	huma.Register(api, huma.Operation{
		OperationID: "chat-access",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/chat-access",
		Summary:     "Whether a user may join the project chat",
		Description: "Allowed once the user authored an accepted completed activity in the project.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID int64  `path:"project_id"`
		UserDID   string `query:"user_did" required:"true" example:"eip155:0x2222222222222222222222222222222222222222"`
	}) (*struct {
		Body ChatAccessResponse `json:"body"`
	}, error) {
		ok, err := gate.Check(ctx, input.ProjectID, input.UserDID)
		if err != nil {
			return nil, handleError(err)
		}
		if !ok {
			return nil, newAPIError(http.StatusForbidden, "access_denied", "Access denied", nil)
		}
		return &struct {
			Body ChatAccessResponse `json:"body"`
		}{Body: ChatAccessResponse{Status: "Access allowed"}}, nil
	})
}

func registerContent(api huma.API, store content.Store) {
	huma.Register(api, huma.Operation{
		OperationID:   "put-content",
		Method:        http.MethodPost,
		Path:          "/content",
		Summary:       "Store a JSON document and return its ipfs:// URI",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body map[string]any `json:"body"`
	}) (*struct {
		Body ContentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		uri, err := content.PutJSON(ctx, store, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContentResponse `json:"body"`
		}{Body: ContentResponse{URI: uri}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-content",
		Method:      http.MethodGet,
		Path:        "/content",
		Summary:     "Fetch a stored document",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		URI string `query:"uri" required:"true"`
	}) (*huma.StreamResponse, error) {
		data, err := store.Get(ctx, input.URI)
		if err != nil {
			return nil, handleError(err)
		}
		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				ct := "application/octet-stream"
				if json.Valid(data) {
					ct = "application/json"
				}
				hctx.SetHeader("Content-Type", ct)
				hctx.BodyWriter().Write(data)
			},
		}, nil
	})
}
