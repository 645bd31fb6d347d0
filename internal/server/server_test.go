package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"earlyadopters/internal/app"
	"earlyadopters/internal/chain"
	"earlyadopters/internal/config"
	"earlyadopters/internal/domain"
	"earlyadopters/internal/logging"
)

const (
	testSecret = "test-secret"
	owner      = "0x1111111111111111111111111111111111111111"
	u1         = "0x2222222222222222222222222222222222222222"
	u2         = "0x3333333333333333333333333333333333333333"
	stranger   = "0x5555555555555555555555555555555555555555"
)

// fakeOracle settles every assertion once settled is set.
type fakeOracle struct {
	mu      sync.Mutex
	settled bool
	claims  []string
}

func (f *fakeOracle) settle() {
	f.mu.Lock()
	f.settled = true
	f.mu.Unlock()
}

func (f *fakeOracle) claimed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.claims...)
}

func (f *fakeOracle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/assertions":
		var body struct {
			Claim string `json:"claim"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.claims = append(f.claims, body.Claim)
		_ = json.NewEncoder(w).Encode(map[string]any{"assertion_id": "a1"})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/assertions/"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"assertion_id": strings.TrimPrefix(r.URL.Path, "/assertions/"),
			"settled":      f.settled,
			"result":       f.settled,
		})
	default:
		http.NotFound(w, r)
	}
}

type testServer struct {
	URL     string
	client  *http.Client
	Runtime *app.Runtime
	Oracle  *fakeOracle
}

func (s *testServer) Client() *http.Client { return s.client }

// newTestServer runs the API with dev login and deposits enabled so tests can
// act as any account and fund it.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, func(cfg *config.Config, auth *AuthConfig) {
		cfg.Ledger.AllowDeposits = true
		auth.DevLogin = true
	})
}

func newTestServerWith(t *testing.T, configure func(*config.Config, *AuthConfig)) *testServer {
	t.Helper()
	fo := &fakeOracle{}
	oracleSrv := httptest.NewServer(fo)
	t.Cleanup(oracleSrv.Close)

	cfg := config.Default()
	cfg.Oracle.URL = oracleSrv.URL
	auth := AuthConfig{JWTSecret: testSecret, Logger: logging.Discard()}
	if configure != nil {
		configure(cfg, &auth)
	}
	rt, err := app.Open(context.Background(), t.TempDir(), app.Options{Config: cfg, Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	handler, err := New(Config{
		Engine:   rt.Engine,
		Gate:     rt.Gate,
		Store:    rt.Store,
		Metrics:  rt.Metrics,
		BasePath: "/v0",
		Auth:     auth,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{URL: srv.URL, client: srv.Client(), Runtime: rt, Oracle: fo}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

// call performs a request as actor (empty for anonymous) and decodes the
// response into out when the status matches.
func (s *testServer) call(t *testing.T, actor, method, route string, body any, wantStatus int, out any) []byte {
	t.Helper()
	headers := map[string]string{}
	if actor != "" {
		headers["Authorization"] = "Bearer " + s.login(t, actor)
	}
	res, data := doJSON(t, s.Client(), method, s.URL+"/v0"+route, body, headers)
	require.Equal(t, wantStatus, res.StatusCode, string(data))
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out))
	}
	return data
}

func (s *testServer) login(t *testing.T, actor string) string {
	t.Helper()
	res, data := doJSON(t, s.Client(), http.MethodPost, s.URL+"/v0/auth/dev/login", map[string]any{"actor_id": actor}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var out DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out.Token
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env.Error.Code
}

func projectRoute(id int64, rest string) string {
	return "/projects/" + itoa(id) + rest
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func (s *testServer) setupActivity(t *testing.T, typ, detail string) (domain.Project, domain.Activity) {
	t.Helper()
	var uri ContentResponse
	s.call(t, owner, http.MethodPost, "/content", map[string]any{"content": detail}, http.StatusCreated, &uri)
	require.True(t, strings.HasPrefix(uri.URI, "ipfs://"))

	var p domain.Project
	s.call(t, owner, http.MethodPost, "/projects", CreateProjectRequest{MetadataURI: "ipfs://meta"}, http.StatusCreated, &p)
	var a domain.Activity
	s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/activities"), AddActivityRequest{Type: typ, DetailURI: uri.URI}, http.StatusCreated, &a)
	return p, a
}

func TestRewardLifecycle(t *testing.T) {
	s := newTestServer(t)
	p, a := s.setupActivity(t, "SEND_FEEDBACK", "tell us anything")
	require.Equal(t, 0, a.Index)

	var c1, c2 domain.CompletedActivity
	s.call(t, u1, http.MethodPost, projectRoute(p.ID, "/activities/0/completions"), SubmitCompletionRequest{Content: "love it"}, http.StatusCreated, &c1)
	s.call(t, u2, http.MethodPost, projectRoute(p.ID, "/activities/0/completions"), SubmitCompletionRequest{Content: "more colours"}, http.StatusCreated, &c2)

	var listed []domain.CompletedActivity
	s.call(t, "", http.MethodGet, projectRoute(p.ID, "/completions"), nil, http.StatusOK, &listed)
	require.Len(t, listed, 2)

	var v domain.Verification
	s.call(t, "", http.MethodGet, projectRoute(p.ID, "/activities/0/completions/"+c1.ID+"/verification"), nil, http.StatusOK, &v)
	require.Equal(t, domain.VerificationVerified, v.Status)

	s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/activities/0/acceptances"), AcceptRequest{CompletedActivityID: c1.ID, Author: u1}, http.StatusCreated, nil)
	s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/activities/0/acceptances"), AcceptRequest{CompletedActivityID: c2.ID, Author: u2}, http.StatusCreated, nil)
	data := s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/activities/0/acceptances"), AcceptRequest{CompletedActivityID: c2.ID, Author: u2}, http.StatusConflict, nil)
	require.Equal(t, "already_accepted", errorCode(t, data))

	var accepted AcceptedResponse
	s.call(t, "", http.MethodGet, projectRoute(p.ID, "/authors/"+u1+"/accepted"), nil, http.StatusOK, &accepted)
	require.True(t, accepted.Accepted)

	s.call(t, owner, http.MethodPost, "/accounts/"+owner+"/deposits", AmountRequest{Value: "1"}, http.StatusCreated, nil)

	var rw RewardResponse
	s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/reward"), DistributeRequest{DetailURI: "ipfs://reward", AmountRequest: AmountRequest{Value: "0.5"}}, http.StatusCreated, &rw)
	require.Equal(t, "500000000000000000", rw.Value)
	require.Equal(t, "250000000000000000", rw.Share)
	require.Equal(t, 2, rw.Recipients)
	require.Equal(t, "0.5", rw.ValueFormatted)

	var bal BalanceResponse
	s.call(t, "", http.MethodGet, "/accounts/"+u1+"/balance", nil, http.StatusOK, &bal)
	require.Equal(t, "250000000000000000", bal.Wei)
	require.Equal(t, "0.25", bal.Amount)
	s.call(t, "", http.MethodGet, "/accounts/"+owner+"/balance", nil, http.StatusOK, &bal)
	require.Equal(t, "0.5", bal.Amount)

	data = s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/reward"), DistributeRequest{DetailURI: "ipfs://again", AmountRequest: AmountRequest{ValueWei: "1"}}, http.StatusConflict, nil)
	require.Equal(t, "already_distributed", errorCode(t, data))

	s.call(t, "", http.MethodGet, projectRoute(p.ID, "/reward"), nil, http.StatusOK, &rw)
	require.Len(t, rw.Payouts, 2)

	var evts paginatedEvents
	s.call(t, "", http.MethodGet, projectRoute(p.ID, "/events?limit=2"), nil, http.StatusOK, &evts)
	require.Len(t, evts.Items, 2)
	require.Equal(t, "reward.distributed", evts.Items[0].Type)
	require.NotEmpty(t, evts.NextCursor)
}

func TestChatAccessGate(t *testing.T) {
	s := newTestServer(t)
	p, _ := s.setupActivity(t, "SEND_FEEDBACK", "tell us anything")
	var c domain.CompletedActivity
	s.call(t, u1, http.MethodPost, projectRoute(p.ID, "/activities/0/completions"), SubmitCompletionRequest{Content: "hi"}, http.StatusCreated, &c)

	route := projectRoute(p.ID, "/chat-access?user_did="+chain.DID(u1))
	data := s.call(t, "", http.MethodGet, route, nil, http.StatusForbidden, nil)
	require.Equal(t, "access_denied", errorCode(t, data))

	s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/activities/0/acceptances"), AcceptRequest{CompletedActivityID: c.ID, Author: u1}, http.StatusCreated, nil)

	var ok ChatAccessResponse
	s.call(t, "", http.MethodGet, route, nil, http.StatusOK, &ok)
	require.Equal(t, "Access allowed", ok.Status)

	s.call(t, "", http.MethodGet, projectRoute(p.ID, "/chat-access?user_did="+chain.DID(stranger)), nil, http.StatusForbidden, nil)
	data = s.call(t, "", http.MethodGet, projectRoute(p.ID, "/chat-access?user_did=eip155:nope"), nil, http.StatusBadRequest, nil)
	require.Equal(t, "bad_request", errorCode(t, data))
}

func TestTwoPhaseVerification(t *testing.T) {
	s := newTestServer(t)
	p, a := s.setupActivity(t, "FOLLOW_TWITTER", "@project")
	var c domain.CompletedActivity
	s.call(t, u1, http.MethodPost, projectRoute(p.ID, "/activities/0/completions"), SubmitCompletionRequest{Content: "@alice"}, http.StatusCreated, &c)
	base := projectRoute(p.ID, "/activities/0/completions/"+c.ID+"/verification")

	data := s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/activities/0/acceptances"), AcceptRequest{CompletedActivityID: c.ID, Author: u1}, http.StatusUnprocessableEntity, nil)
	require.Equal(t, "not_verified", errorCode(t, data))

	var v domain.Verification
	s.call(t, u1, http.MethodPost, base+"/start", nil, http.StatusOK, &v)
	require.Equal(t, domain.VerificationStarted, v.Status)
	require.Equal(t, "a1", v.ClaimID)
	require.Equal(t, []string{"Twitter user with the handle @alice follows twitter user with the handle @project"}, s.Oracle.claimed())

	data = s.call(t, u1, http.MethodPost, base+"/start", nil, http.StatusConflict, nil)
	require.Equal(t, "already_started", errorCode(t, data))
	data = s.call(t, u1, http.MethodPost, base+"/finish", nil, http.StatusConflict, nil)
	require.Equal(t, "verification_not_ready", errorCode(t, data))

	s.Oracle.settle()
	s.call(t, stranger, http.MethodPost, base+"/finish", nil, http.StatusOK, &v)
	require.Equal(t, domain.VerificationVerified, v.Status)

	s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/activities/"+itoa(int64(a.Index))+"/acceptances"), AcceptRequest{CompletedActivityID: c.ID, Author: u1}, http.StatusCreated, nil)
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	data := s.call(t, "", http.MethodGet, "/projects/99", nil, http.StatusNotFound, nil)
	require.Equal(t, "invalid_project", errorCode(t, data))

	data = s.call(t, "", http.MethodPost, "/projects", CreateProjectRequest{MetadataURI: "ipfs://meta"}, http.StatusUnauthorized, nil)
	require.Equal(t, "unauthorized", errorCode(t, data))

	p, _ := s.setupActivity(t, "SEND_FEEDBACK", "x")
	data = s.call(t, stranger, http.MethodPost, projectRoute(p.ID, "/activities"), AddActivityRequest{Type: "SEND_FEEDBACK", DetailURI: "ipfs://x"}, http.StatusForbidden, nil)
	require.Equal(t, "unauthorized", errorCode(t, data))

	data = s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/activities"), AddActivityRequest{Type: "DANCE", DetailURI: "ipfs://x"}, http.StatusBadRequest, nil)
	require.Equal(t, "invalid_type", errorCode(t, data))

	data = s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/reward"), DistributeRequest{DetailURI: "ipfs://r", AmountRequest: AmountRequest{Value: "0.1"}}, http.StatusUnprocessableEntity, nil)
	require.Equal(t, "no_accepted_authors", errorCode(t, data))

	data = s.call(t, owner, http.MethodPost, projectRoute(p.ID, "/reward"), DistributeRequest{DetailURI: "ipfs://r", AmountRequest: AmountRequest{Value: "abc"}}, http.StatusBadRequest, nil)
	require.Equal(t, "bad_request", errorCode(t, data))

	data = s.call(t, owner, http.MethodPost, "/accounts/"+u1+"/deposits", AmountRequest{Value: "1"}, http.StatusForbidden, nil)
	require.Equal(t, "unauthorized", errorCode(t, data))

	res, body := doJSON(t, s.Client(), http.MethodGet, s.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "invalid_credentials", errorCode(t, body))
}

func TestAPIKeyAndProfile(t *testing.T) {
	s := newTestServer(t)
	var key APIKeyResponse
	s.call(t, u1, http.MethodPost, "/apikeys", CreateAPIKeyRequest{Name: "bot"}, http.StatusCreated, &key)
	require.True(t, strings.HasPrefix(key.Key, "ea_"))

	res, data := doJSON(t, s.Client(), http.MethodGet, s.URL+"/v0/me", nil, map[string]string{"X-Api-Key": key.Key})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me MeResponse
	require.NoError(t, json.Unmarshal(data, &me))
	require.Equal(t, u1, me.ActorID)
	require.Equal(t, "api_key", me.Source)

	res, data = doJSON(t, s.Client(), http.MethodPut, s.URL+"/v0/profiles/"+u1, ProfileRequest{URI: "ipfs://me"}, map[string]string{"X-Api-Key": key.Key})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	s.call(t, u2, http.MethodPut, "/profiles/"+u1, ProfileRequest{URI: "ipfs://evil"}, http.StatusForbidden, nil)

	var prof domain.Profile
	s.call(t, "", http.MethodGet, "/profiles/"+u1, nil, http.StatusOK, &prof)
	require.Equal(t, "ipfs://me", prof.URI)
	s.call(t, "", http.MethodGet, "/profiles/"+u2, nil, http.StatusNotFound, nil)

	s.call(t, u1, http.MethodDelete, "/apikeys/"+key.ID, nil, http.StatusNoContent, nil)
	res, _ = doJSON(t, s.Client(), http.MethodGet, s.URL+"/v0/me", nil, map[string]string{"X-Api-Key": key.Key})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestMetricsAndOpenAPI(t *testing.T) {
	s := newTestServer(t)
	s.call(t, owner, http.MethodPost, "/projects", CreateProjectRequest{MetadataURI: "ipfs://meta"}, http.StatusCreated, nil)

	res, data := doJSON(t, s.Client(), http.MethodGet, s.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(data), `earlyadopters_operations_total{operation="create project",result="ok"} 1`)

	res, data = doJSON(t, s.Client(), http.MethodGet, s.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(data), "/v0/projects/{project_id}/chat-access")
}

func TestWebhookDispatcherDelivers(t *testing.T) {
	var mu sync.Mutex
	var got []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("X-EarlyAdopters-Event")+"|"+r.Header.Get("X-EarlyAdopters-Secret"))
		mu.Unlock()
	}))
	defer hook.Close()

	s := newTestServer(t)
	e := s.Runtime.Engine
	e.Config.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"project.created"}, Secret: "shh"}}
	d := newWebhookDispatcher(e)
	require.NotNil(t, d)
	ctx := context.Background()
	d.dispatchAll(ctx)

	_, err := e.CreateProject(ctx, owner, "ipfs://meta")
	require.NoError(t, err)
	_, err = e.SetProfile(ctx, owner, "ipfs://me")
	require.NoError(t, err)
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"project.created|shh"}, got)
}

func TestDefaultsKeepDevLoginAndDepositsOff(t *testing.T) {
	s := newTestServerWith(t, nil)

	res, data := doJSON(t, s.Client(), http.MethodPost, s.URL+"/v0/auth/dev/login", map[string]any{"actor_id": owner}, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	require.Equal(t, "not_found", errorCode(t, data))

	res, data = doJSON(t, s.Client(), http.MethodGet, s.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotContains(t, string(data), "/v0/auth/dev/login")

	_, key, err := s.Runtime.Engine.CreateAPIKey(context.Background(), owner, "ci")
	require.NoError(t, err)
	headers := map[string]string{"X-Api-Key": key}

	res, data = doJSON(t, s.Client(), http.MethodPost, s.URL+"/v0/projects", CreateProjectRequest{MetadataURI: "ipfs://meta"}, headers)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, s.Client(), http.MethodPost, s.URL+"/v0/accounts/"+owner+"/deposits", AmountRequest{Value: "1"}, headers)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	require.Equal(t, "unauthorized", errorCode(t, data))
}
