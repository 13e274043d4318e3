// Package stubservice is a local stand-in for the remote Enginesis API.
// It implements the wire contract for the operations the client exercises
// so the CLI and end-to-end tests run without the real service.
package stubservice

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"enginesis-client/internal/config"
	"enginesis-client/internal/crypto"
	"enginesis-client/internal/wire"
)

type userRecord struct {
	UserID      int    `json:"user_id"`
	UserName    string `json:"user_name"`
	RealName    string `json:"real_name"`
	SiteUserID  string `json:"site_user_id"`
	AccessLevel int    `json:"access_level"`
	NetworkID   int    `json:"network_id"`
}

type gameSession struct {
	sessionID string
	userID    int
	gameID    int
}

type scoreRow struct {
	UserID     int   `json:"user_id"`
	GameID     int   `json:"game_id"`
	Score      int64 `json:"score"`
	TimePlayed int   `json:"time_played"`
}

type Service struct {
	cfg config.StubConfig

	mu         sync.Mutex
	users      map[string]*userRecord // keyed by network|site_user_id
	tokens     map[string]int         // auth token -> user id
	refresh    map[string]int         // refresh token -> user id
	sessions   map[string]*gameSession
	scores     []scoreRow
	nextUserID int
	requests   int

	entropy   *ulid.MonotonicEntropy
	entropyMu sync.Mutex
}

func New(cfg config.StubConfig) *Service {
	return &Service{
		cfg:        cfg,
		users:      map[string]*userRecord{},
		tokens:     map[string]int{},
		refresh:    map[string]int{},
		sessions:   map[string]*gameSession{},
		nextUserID: 1000,
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (s *Service) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Service) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apiLogMiddleware())
	if s.cfg.FailEvery > 0 {
		r.Use(s.failEveryMiddleware)
	}
	r.Post("/index.php", s.handle)
	r.Get("/index.php", s.handle)
	return r
}

// failEveryMiddleware drops every Nth connection without a response so a
// client under development sees a genuine transport failure.
func (s *Service) failEveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		drop := s.requests%s.cfg.FailEvery == 0
		s.mu.Unlock()
		if drop {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeResponse(w, wire.SyntheticError("", 0, wire.MsgValidationFailed, "unreadable request"))
		return
	}
	fn := r.FormValue("fn")
	seq, _ := strconv.ParseInt(r.FormValue("state_seq"), 10, 64)

	if siteID, _ := strconv.Atoi(r.FormValue("site_id")); siteID != s.cfg.SiteID {
		writeResponse(w, wire.SyntheticError(fn, seq, wire.MsgValidationFailed, "unknown site id"))
		return
	}
	if r.FormValue("apikey") != s.cfg.DeveloperKey {
		writeResponse(w, wire.SyntheticError(fn, seq, wire.MsgValidationFailed, "bad developer key"))
		return
	}

	var resp wire.Response
	switch fn {
	case "SessionBegin":
		resp = s.sessionBegin(r, fn, seq)
	case "SessionRefresh":
		resp = s.sessionRefresh(r, fn, seq)
	case "GameDataGet":
		resp = s.gameDataGet(r, fn, seq)
	case "ScoreSubmit":
		resp = s.scoreSubmit(r, fn, seq)
	case "UserLoginCoreg":
		resp = s.loginCoreg(r, fn, seq)
	case "UserLogout":
		resp = s.logout(r, fn)
	default:
		resp = wire.SyntheticError(fn, seq, wire.MsgInvalidParam, "unknown operation")
	}
	writeResponse(w, resp)
}

func (s *Service) sessionBegin(r *http.Request, fn string, seq int64) wire.Response {
	gameID, _ := strconv.Atoi(r.FormValue("game_id"))
	if gameID <= 0 {
		return wire.SyntheticError(fn, seq, wire.MsgInvalidGameID, "game id required")
	}
	sess := &gameSession{
		sessionID: s.newID(),
		userID:    s.userForToken(r.FormValue("authtok")),
		gameID:    gameID,
	}
	s.mu.Lock()
	s.sessions[sess.sessionID] = sess
	s.mu.Unlock()

	resp, err := wire.SyntheticSuccess(fn, map[string]any{"session_id": sess.sessionID, "game_id": gameID})
	if err != nil {
		return wire.SyntheticError(fn, seq, wire.MsgServiceError, "encode failed")
	}
	return resp
}

func (s *Service) sessionRefresh(r *http.Request, fn string, seq int64) wire.Response {
	s.mu.Lock()
	userID, ok := s.refresh[r.FormValue("refresh_token")]
	s.mu.Unlock()
	if !ok {
		return wire.SyntheticError(fn, seq, wire.MsgInvalidToken, "unknown refresh token")
	}
	token := "tok-" + s.newID()
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	resp, err := wire.SyntheticSuccess(fn, map[string]any{
		"authtok": token,
		"expires": time.Now().Add(24 * time.Hour).UTC(),
	})
	if err != nil {
		return wire.SyntheticError(fn, seq, wire.MsgServiceError, "encode failed")
	}
	return resp
}

func (s *Service) gameDataGet(r *http.Request, fn string, seq int64) wire.Response {
	gameID, _ := strconv.Atoi(r.FormValue("game_id"))
	if gameID <= 0 {
		return wire.SyntheticError(fn, seq, wire.MsgInvalidGameID, "game id required")
	}
	resp, err := wire.SyntheticSuccess(fn, map[string]any{
		"game_id":    gameID,
		"game_name":  "Stub Game " + strconv.Itoa(gameID),
		"short_desc": "a game served by the stub",
	})
	if err != nil {
		return wire.SyntheticError(fn, seq, wire.MsgServiceError, "encode failed")
	}
	return resp
}

func (s *Service) scoreSubmit(r *http.Request, fn string, seq int64) wire.Response {
	userID := s.userForToken(r.FormValue("authtok"))
	if userID == 0 {
		return wire.SyntheticError(fn, seq, wire.MsgNotLoggedIn, "score requires a login")
	}
	gameID, _ := strconv.Atoi(r.FormValue("game_id"))

	// The score travels sealed; any session whose id decrypts it to a
	// sane payload for this game is accepted.
	var payload struct {
		GameID     int    `json:"game_id"`
		Score      int64  `json:"score"`
		GameData   string `json:"game_data"`
		TimePlayed int    `json:"time_played"`
	}
	sealed := r.FormValue("score")
	found := false
	s.mu.Lock()
	for _, sess := range s.sessions {
		raw, err := crypto.DecryptSessionPayload(sess.sessionID, sealed)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(raw, &payload); err == nil && payload.GameID == gameID {
			found = true
			break
		}
	}
	if found {
		s.scores = append(s.scores, scoreRow{UserID: userID, GameID: gameID, Score: payload.Score, TimePlayed: payload.TimePlayed})
	}
	s.mu.Unlock()
	if !found {
		return wire.SyntheticError(fn, seq, wire.MsgInvalidSession, "score payload did not match an open session")
	}
	resp, err := wire.SyntheticSuccess(fn, map[string]any{"score": payload.Score, "game_id": gameID})
	if err != nil {
		return wire.SyntheticError(fn, seq, wire.MsgServiceError, "encode failed")
	}
	return resp
}

func (s *Service) loginCoreg(r *http.Request, fn string, seq int64) wire.Response {
	siteUserID := r.FormValue("site_user_id")
	userName := r.FormValue("user_name")
	realName := r.FormValue("real_name")
	networkID, _ := strconv.Atoi(r.FormValue("network_id"))
	if siteUserID == "" || (userName == "" && realName == "") {
		return wire.SyntheticError(fn, seq, wire.MsgValidationFailed, "site user id and a name are required")
	}
	if userName == "" {
		userName = realName
	}

	key := strconv.Itoa(networkID) + "|" + siteUserID
	s.mu.Lock()
	user, ok := s.users[key]
	if !ok {
		s.nextUserID++
		user = &userRecord{
			UserID:      s.nextUserID,
			UserName:    userName,
			RealName:    realName,
			SiteUserID:  siteUserID,
			AccessLevel: 10,
			NetworkID:   networkID,
		}
		s.users[key] = user
	}
	s.mu.Unlock()

	token := "tok-" + s.newID()
	refreshToken := "refresh-" + s.newID()
	sessionID := s.newID()
	s.mu.Lock()
	s.tokens[token] = user.UserID
	s.refresh[refreshToken] = user.UserID
	s.sessions[sessionID] = &gameSession{sessionID: sessionID, userID: user.UserID}
	s.mu.Unlock()

	hash := crypto.SessionHash(s.cfg.SiteKey, s.cfg.SiteID, user.UserID, user.UserName, user.SiteUserID, user.AccessLevel, time.Now())
	resp, err := wire.SyntheticSuccess(fn, map[string]any{
		"user_id":       user.UserID,
		"user_name":     user.UserName,
		"real_name":     user.RealName,
		"site_user_id":  user.SiteUserID,
		"access_level":  user.AccessLevel,
		"network_id":    user.NetworkID,
		"authtok":       token,
		"session_id":    sessionID,
		"refresh_token": refreshToken,
		"expires":       time.Now().Add(24 * time.Hour).UTC(),
		"cr":            hash,
	})
	if err != nil {
		return wire.SyntheticError(fn, seq, wire.MsgServiceError, "encode failed")
	}
	return resp
}

func (s *Service) logout(r *http.Request, fn string) wire.Response {
	token := r.FormValue("authtok")
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	resp, err := wire.SyntheticSuccess(fn, map[string]any{"logged_out": true})
	if err != nil {
		return wire.SyntheticError(fn, 0, wire.MsgServiceError, "encode failed")
	}
	return resp
}

func (s *Service) userForToken(token string) int {
	if token == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[token]
}

// ScoreCount reports accepted scores, used by tests and the CLI demo.
func (s *Service) ScoreCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scores)
}

func writeResponse(w http.ResponseWriter, resp wire.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}
