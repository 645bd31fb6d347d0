package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"earlyadopters/internal/access"
	"earlyadopters/internal/chain"
	"earlyadopters/internal/content"
	"earlyadopters/internal/engine"
	"earlyadopters/internal/metrics"
	"earlyadopters/internal/repo"
)

const devTokenTTL = 12 * time.Hour

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Gate     *access.Gate
	Store    content.Store
	Metrics  *metrics.Metrics
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_verified"`
	Message string         `json:"message" example:"completed activity is not verified"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"project_id\":1}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the early adopters API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine.DB == nil {
		return nil, errors.New("engine database required")
	}
	if cfg.Gate == nil {
		return nil, errors.New("access gate required")
	}
	if cfg.Store == nil {
		return nil, errors.New("content store required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = cfg.Engine.Log
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "route not found", map[string]any{"path": r.URL.Path}))
	})
	hcfg := huma.DefaultConfig("Early Adopters API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerMetrics(router, cfg.Metrics)
	registerHealth(group)
	registerMe(group)
	if cfg.Auth.DevLogin {
		cfg.Auth.logger().Warn("dev login enabled: POST /auth/dev/login mints tokens for any address")
		registerDevAuth(group, cfg.Auth)
	}
	registerAPIKeys(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerCompletions(group, cfg.Engine)
	registerVerification(group, cfg.Engine)
	registerAcceptances(group, cfg.Engine)
	registerRewards(group, cfg.Engine)
	registerAccounts(group, cfg.Engine)
	registerChatAccess(group, cfg.Gate)
	registerContent(group, cfg.Store)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// statusForKind maps engine failure kinds onto HTTP statuses.
func statusForKind(k engine.Kind) int {
	switch k {
	case engine.KindUnauthorized:
		return http.StatusForbidden
	case engine.KindInvalidProject, engine.KindInvalidActivity:
		return http.StatusNotFound
	case engine.KindInvalidType, engine.KindInvalidArgument:
		return http.StatusBadRequest
	case engine.KindNotVerified, engine.KindNoAcceptedAuthors, engine.KindTransferFailed:
		return http.StatusUnprocessableEntity
	case engine.KindAlreadyAccepted, engine.KindAlreadyDistributed, engine.KindRewardAlreadyDistributed,
		engine.KindAlreadyStarted, engine.KindAlreadyVerified, engine.KindVerificationNotReady:
		return http.StatusConflict
	case engine.KindVerificationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ee *engine.Error
	if errors.As(err, &ee) {
		return newAPIError(statusForKind(ee.Kind), string(ee.Kind), ee.Message(), ee.Details)
	}
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, content.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, chain.ErrInvalidAddress), errors.Is(err, chain.ErrInvalidAmount), errors.Is(err, content.ErrInvalidURI):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{
			ActorID: principal.ActorID,
			DID:     chain.DID(principal.ActorID),
			Source:  principal.Source,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, err := chain.AddressFromDID(input.Body.ActorID)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id must be an account address", map[string]any{"actor_id": input.Body.ActorID})
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, devTokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

// parseAmount reads a request amount. Native-unit values are scaled by the
// chain decimals; wei values are taken as is.
func parseAmount(in AmountRequest, c chain.Chain) (*big.Int, error) {
	value := strings.TrimSpace(in.Value)
	wei := strings.TrimSpace(in.ValueWei)
	switch {
	case value != "" && wei != "":
		return nil, newAPIError(http.StatusBadRequest, "bad_request", "set either value or value_wei", nil)
	case value != "":
		return chain.ParseAmount(value, c.Decimals)
	case wei != "":
		return chain.ParseWei(wei)
	default:
		return nil, newAPIError(http.StatusBadRequest, "bad_request", "value or value_wei required", nil)
	}
}
