package stubservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"enginesis-client/internal/client"
	"enginesis-client/internal/config"
	"enginesis-client/internal/crypto"
	"enginesis-client/internal/wire"
)

func testConfig() config.StubConfig {
	return config.StubConfig{
		SiteID:       106,
		DeveloperKey: "deadbeef",
		SiteKey:      "stub-site-key",
	}
}

func postForm(t *testing.T, ts *httptest.Server, params url.Values) wire.Response {
	t.Helper()
	if params.Get("apikey") == "" {
		params.Set("apikey", "deadbeef")
	}
	if params.Get("site_id") == "" {
		params.Set("site_id", "106")
	}
	resp, err := http.Post(ts.URL+"/index.php", "application/x-www-form-urlencoded",
		strings.NewReader(params.Encode()))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var parsed wire.Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return parsed
}

func resultMap(t *testing.T, resp wire.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(resp.Results.Result, &m); err != nil {
		t.Fatalf("result: %v", err)
	}
	return m
}

func login(t *testing.T, ts *httptest.Server) map[string]any {
	t.Helper()
	resp := postForm(t, ts, url.Values{
		"fn":           {"UserLoginCoreg"},
		"site_user_id": {"fb-123"},
		"user_name":    {"Tester"},
		"network_id":   {"2"},
	})
	if !resp.Succeeded() {
		t.Fatalf("login failed: %v", resp.Results.Status.Message)
	}
	return resultMap(t, resp)
}

func TestSessionBegin(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	resp := postForm(t, ts, url.Values{"fn": {"SessionBegin"}, "game_id": {"100"}})
	if !resp.Succeeded() {
		t.Fatalf("status: %v", resp.Results.Status.Message)
	}
	result := resultMap(t, resp)
	if result["session_id"] == "" || result["session_id"] == nil {
		t.Fatal("no session_id in result")
	}
}

func TestSessionBeginRejectsMissingGame(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	resp := postForm(t, ts, url.Values{"fn": {"SessionBegin"}})
	if resp.Succeeded() || resp.Results.Status.Message != wire.MsgInvalidGameID {
		t.Fatalf("message = %q, want INVALID_GAME_ID", resp.Results.Status.Message)
	}
}

func TestBadDeveloperKeyRejected(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	resp := postForm(t, ts, url.Values{"fn": {"GameDataGet"}, "game_id": {"1"}, "apikey": {"wrong"}})
	if resp.Succeeded() || resp.Results.Status.Message != wire.MsgValidationFailed {
		t.Fatalf("message = %q, want VALIDATION_FAILED", resp.Results.Status.Message)
	}
}

func TestUnknownOperation(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	resp := postForm(t, ts, url.Values{"fn": {"NoSuchThing"}})
	if resp.Succeeded() || resp.Results.Status.Message != wire.MsgInvalidParam {
		t.Fatalf("message = %q, want INVALID_PARAM", resp.Results.Status.Message)
	}
}

func TestLoginIssuesVerifiableHash(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	result := login(t, ts)
	want := crypto.SessionHash("stub-site-key", 106,
		int(result["user_id"].(float64)), result["user_name"].(string),
		result["site_user_id"].(string), int(result["access_level"].(float64)), time.Now())
	if result["cr"] != want {
		t.Fatalf("cr = %v, want %v", result["cr"], want)
	}
	if result["authtok"] == "" || result["refresh_token"] == "" {
		t.Fatal("login result missing tokens")
	}
}

func TestLoginIsIdempotentPerSiteUser(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	first := login(t, ts)
	second := login(t, ts)
	if first["user_id"] != second["user_id"] {
		t.Fatalf("same site user mapped to %v then %v", first["user_id"], second["user_id"])
	}
}

func TestScoreSubmitRequiresLogin(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	resp := postForm(t, ts, url.Values{"fn": {"ScoreSubmit"}, "game_id": {"99"}, "score": {"x"}})
	if resp.Succeeded() || resp.Results.Status.Message != wire.MsgNotLoggedIn {
		t.Fatalf("message = %q, want NOT_LOGGED_IN", resp.Results.Status.Message)
	}
}

func TestScoreSubmitAcceptsSealedPayload(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	user := login(t, ts)
	token := user["authtok"].(string)

	begin := postForm(t, ts, url.Values{"fn": {"SessionBegin"}, "game_id": {"99"}, "authtok": {token}})
	sessionID := resultMap(t, begin)["session_id"].(string)

	payload, err := json.Marshal(map[string]any{
		"game_id": 99, "score": 4200, "game_data": "level=3", "time_played": 61,
	})
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := crypto.EncryptSessionPayload(sessionID, payload)
	if err != nil {
		t.Fatal(err)
	}

	resp := postForm(t, ts, url.Values{
		"fn": {"ScoreSubmit"}, "game_id": {"99"}, "authtok": {token}, "score": {sealed},
	})
	if !resp.Succeeded() {
		t.Fatalf("score rejected: %v", resp.Results.Status.Message)
	}
	if svc.ScoreCount() != 1 {
		t.Fatalf("score count = %d, want 1", svc.ScoreCount())
	}
}

func TestScoreSubmitRejectsTamperedPayload(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	user := login(t, ts)
	token := user["authtok"].(string)
	postForm(t, ts, url.Values{"fn": {"SessionBegin"}, "game_id": {"99"}, "authtok": {token}})

	resp := postForm(t, ts, url.Values{
		"fn": {"ScoreSubmit"}, "game_id": {"99"}, "authtok": {token}, "score": {"bm90LXNlYWxlZA"},
	})
	if resp.Succeeded() || resp.Results.Status.Message != wire.MsgInvalidSession {
		t.Fatalf("message = %q, want INVALID_SESSION", resp.Results.Status.Message)
	}
	if svc.ScoreCount() != 0 {
		t.Fatal("tampered score was recorded")
	}
}

func TestSessionRefresh(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	user := login(t, ts)
	resp := postForm(t, ts, url.Values{
		"fn": {"SessionRefresh"}, "refresh_token": {user["refresh_token"].(string)},
	})
	if !resp.Succeeded() {
		t.Fatalf("refresh failed: %v", resp.Results.Status.Message)
	}
	if resultMap(t, resp)["authtok"] == "" {
		t.Fatal("refresh issued no token")
	}

	bad := postForm(t, ts, url.Values{"fn": {"SessionRefresh"}, "refresh_token": {"nope"}})
	if bad.Succeeded() || bad.Results.Status.Message != wire.MsgInvalidToken {
		t.Fatalf("message = %q, want INVALID_TOKEN", bad.Results.Status.Message)
	}
}

func TestFailEveryDropsConnection(t *testing.T) {
	cfg := testConfig()
	cfg.FailEvery = 1
	svc := New(cfg)
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	_, err := http.Post(ts.URL+"/index.php", "application/x-www-form-urlencoded",
		strings.NewReader("fn=GameDataGet"))
	if err == nil {
		t.Fatal("expected a transport failure")
	}
}

// TestClientEndToEnd drives the real client against the stub: begin a
// session, watch the queue drain, and confirm the captured session id.
func TestClientEndToEnd(t *testing.T) {
	svc := New(testConfig())
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	c, err := client.New(client.Config{
		SiteID:       106,
		DeveloperKey: "deadbeef",
		SiteKey:      "stub-site-key",
		ServiceURL:   ts.URL + "/index.php",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	resp := <-c.SessionBegin("game-key", 99)
	if !resp.Succeeded() {
		t.Fatalf("session begin failed: %v", resp.Results.Status.Message)
	}
	if c.Session().SessionID() == "" {
		t.Fatal("session id not captured from service response")
	}

	score := <-c.ScoreSubmit(99, 1234, "level=1", 30)
	if score.Succeeded() {
		t.Fatal("score without a login should be rejected locally")
	}
	if score.Results.Status.Message != wire.MsgNotLoggedIn {
		t.Fatalf("message = %q, want NOT_LOGGED_IN", score.Results.Status.Message)
	}
	if c.QueueLen() != 0 {
		t.Fatalf("queue len = %d, want 0", c.QueueLen())
	}

	data := <-c.GameDataGet(99)
	if !data.Succeeded() {
		t.Fatalf("game data failed: %v", data.Results.Status.Message)
	}
	var game struct {
		GameID int `json:"game_id"`
	}
	if err := json.Unmarshal(data.Results.Result, &game); err != nil {
		t.Fatal(err)
	}
	if game.GameID != 99 {
		t.Fatalf("game_id = %d, want 99", game.GameID)
	}
}
