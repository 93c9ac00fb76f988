package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voiceswap/internal/model"
	"voiceswap/internal/repository"
	"voiceswap/internal/service"
	"voiceswap/internal/transport/rest"
	"voiceswap/internal/transport/ws"
)

type env struct {
	srv  *httptest.Server
	auth *service.AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	auth := service.NewAuthService("test-secret", "voiceswap", true)
	coord := service.NewCoordinator(
		repository.NewMemorySessionRepo(),
		repository.NewMemoryEventRepo(),
		nil,
		nil,
		service.Timing{PersonaBudget: time.Minute},
	)
	hub := ws.NewHub(nil)
	t.Cleanup(hub.Close)

	srv := httptest.NewServer(rest.NewRouter(&rest.Container{
		AuthService: auth,
		Coordinator: coord,
		WSHub:       hub,
	}))
	t.Cleanup(srv.Close)
	return &env{srv: srv, auth: auth}
}

func (e *env) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.auth.Issue(userID, "", "", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

// do sends a request and decodes the JSON body into out when out is non-nil.
func (e *env) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	var body map[string]string
	if status := e.do(t, "GET", "/health", "", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("got %d %v", status, body)
	}
}

func TestRequiresBearerToken(t *testing.T) {
	e := newEnv(t)

	var body errorBody
	if status := e.do(t, "GET", "/v1/sessions/ROOM01", "", nil, &body); status != http.StatusUnauthorized {
		t.Fatalf("got status %d want 401", status)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Fatalf("got code %q", body.Code)
	}
	if status := e.do(t, "GET", "/v1/sessions/ROOM01", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("got status %d want 401 for a bad token", status)
	}
}

func TestFullSessionFlow(t *testing.T) {
	e := newEnv(t)
	alice := e.token(t, "alice")

	var guest model.GuestResponse
	if status := e.do(t, "POST", "/v1/auth/guest", "", model.GuestRequest{Name: "Bob"}, &guest); status != http.StatusCreated {
		t.Fatalf("guest: got %d", status)
	}
	bob := guest.Token

	var created model.SessionIDResponse
	status := e.do(t, "POST", "/v1/sessions", alice, model.CreateSessionRequest{SessionID: "ROOM01", DisplayName: "Alice"}, &created)
	if status != http.StatusCreated || created.SessionID != "ROOM01" {
		t.Fatalf("create: got %d %+v", status, created)
	}

	var body errorBody
	if status := e.do(t, "POST", "/v1/sessions/ROOM01/roles", alice, nil, &body); status != http.StatusConflict || body.Code != "NOT_ENOUGH_PLAYERS" {
		t.Fatalf("early roles: got %d %+v", status, body)
	}

	if status := e.do(t, "POST", "/v1/sessions/ROOM01/join", bob, nil, nil); status != http.StatusOK {
		t.Fatalf("join: got %d", status)
	}

	var roles model.RoleAssignment
	if status := e.do(t, "POST", "/v1/sessions/ROOM01/roles", bob, nil, &roles); status != http.StatusOK {
		t.Fatalf("roles: got %d", status)
	}
	if roles.TargetID != "alice" || roles.DetectorID != guest.UserID {
		t.Fatalf("unexpected roles %+v", roles)
	}

	if status := e.do(t, "POST", "/v1/sessions/ROOM01/persona/activate", bob, nil, &body); status != http.StatusForbidden || body.Code != "NOT_TARGET" {
		t.Fatalf("detector activate: got %d %+v", status, body)
	}
	if status := e.do(t, "POST", "/v1/sessions/ROOM01/persona/activate", alice, nil, nil); status != http.StatusOK {
		t.Fatalf("activate: got %d", status)
	}

	var view model.SessionView
	if status := e.do(t, "GET", "/v1/sessions/ROOM01", bob, nil, &view); status != http.StatusOK {
		t.Fatalf("get: got %d", status)
	}
	if view.Session.Status != model.SessionTalk || view.Session.PersonaActivatedAt == nil {
		t.Fatalf("unexpected view %+v", view.Session)
	}
	if view.PersonaRemainingMs == nil {
		t.Fatal("remaining budget missing")
	}

	var guess model.GuessResult
	if status := e.do(t, "POST", "/v1/sessions/ROOM01/guess", bob, nil, &guess); status != http.StatusOK || !guess.Correct {
		t.Fatalf("guess: got %d %+v", status, guess)
	}
	if status := e.do(t, "POST", "/v1/sessions/ROOM01/guess", bob, nil, &body); status != http.StatusConflict {
		t.Fatalf("second guess: got %d", status)
	}

	var ended model.EndResult
	if status := e.do(t, "POST", "/v1/sessions/ROOM01/end", alice, nil, &ended); status != http.StatusOK || !ended.Ended {
		t.Fatalf("end: got %d %+v", status, ended)
	}
	if ended.Result != model.ResultDetectorWin {
		t.Fatalf("end must keep the guess result, got %s", ended.Result)
	}
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)
	alice := e.token(t, "alice")
	carol := e.token(t, "carol")

	var body errorBody
	if status := e.do(t, "GET", "/v1/sessions/NOPE", alice, nil, &body); status != http.StatusNotFound || body.Code != "SESSION_NOT_FOUND" {
		t.Fatalf("missing: got %d %+v", status, body)
	}

	e.do(t, "POST", "/v1/sessions", alice, model.CreateSessionRequest{SessionID: "ROOM02"}, nil)
	if status := e.do(t, "POST", "/v1/sessions", carol, model.CreateSessionRequest{SessionID: "ROOM02"}, &body); status != http.StatusConflict || body.Code != "SESSION_EXISTS" {
		t.Fatalf("taken id: got %d %+v", status, body)
	}
	if status := e.do(t, "GET", "/v1/sessions/ROOM02/events", carol, nil, &body); status != http.StatusForbidden || body.Code != "NOT_PARTICIPANT" {
		t.Fatalf("outsider events: got %d %+v", status, body)
	}
	if status := e.do(t, "POST", "/v1/sessions", alice, model.CreateSessionRequest{}, &body); status != http.StatusBadRequest {
		t.Fatalf("empty id: got %d %+v", status, body)
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	e := newEnv(t)
	req, _ := http.NewRequest("POST", e.srv.URL+"/v1/sessions", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+e.token(t, "alice"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %d want 400", resp.StatusCode)
	}
}

func TestNewCode(t *testing.T) {
	e := newEnv(t)
	var code model.JoinCodeResponse
	if status := e.do(t, "GET", "/v1/codes", e.token(t, "alice"), nil, &code); status != http.StatusOK {
		t.Fatalf("got %d", status)
	}
	if len(code.Code) != 6 {
		t.Fatalf("unexpected code %q", code.Code)
	}
}

func TestServesDocs(t *testing.T) {
	e := newEnv(t)
	var doc map[string]any
	if status := e.do(t, "GET", "/v1/docs/doc.json", "", nil, &doc); status != http.StatusOK {
		t.Fatalf("got %d", status)
	}
	if doc["basePath"] != "/v1" {
		t.Fatalf("unexpected doc %v", doc["basePath"])
	}
}
