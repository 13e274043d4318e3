// Package session holds the process-wide client state: configuration
// fixed at init, connectivity, the authenticated identity, and the
// anonymous identity that exists with or without a login.
//
// The origin of this design is a single-threaded environment where state
// was only touched between suspension points. Under Go's scheduler that
// guarantee is gone, so every accessor goes through one mutex.
package session

import (
	"errors"
	"sync"
	"time"
)

var ErrInvalidAuth = errors.New("invalid_auth")

type UserInfo struct {
	UserID           int    `json:"user_id"`
	UserName         string `json:"user_name"`
	FullName         string `json:"real_name"`
	Gender           string `json:"gender"`
	DateOfBirth      string `json:"dob"`
	AccessLevel      int    `json:"access_level"`
	SiteUserID       string `json:"site_user_id"`
	Rank             int    `json:"user_rank"`
	ExperiencePoints int    `json:"experience_points"`
	LoginDate        string `json:"last_login"`
	Email            string `json:"email_address"`
	Location         string `json:"location"`
	Country          string `json:"country"`
	NetworkID        int    `json:"network_id"`
}

type AnonymousUser struct {
	DateCreated     time.Time `json:"date_created"`
	DateLastVisit   time.Time `json:"date_last_visit"`
	SubscriberEmail string    `json:"subscriber_email"`
	UserID          int64     `json:"user_id"`
	UserName        string    `json:"user_name"`
	FavoriteGames   []int64   `json:"favorite_games"`
	GamesPlayed     []int64   `json:"games_played"`
	Hash            string    `json:"hash"`
}

type Config struct {
	SiteID       int
	DeveloperKey string
	GameID       int
	GameGroupID  int
	LanguageCode string
	ServerStage  string
}

type Session struct {
	mu sync.Mutex

	// immutable after New
	siteID       int
	developerKey string
	gameID       int
	gameGroupID  int
	languageCode string
	serverStage  string

	online bool

	authToken          string
	authTokenValidated bool
	authTokenExpires   time.Time
	sessionID          string
	refreshToken       string
	user               UserInfo

	anon AnonymousUser
}

func New(cfg Config) *Session {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en"
	}
	return &Session{
		siteID:       cfg.SiteID,
		developerKey: cfg.DeveloperKey,
		gameID:       cfg.GameID,
		gameGroupID:  cfg.GameGroupID,
		languageCode: cfg.LanguageCode,
		serverStage:  cfg.ServerStage,
		online:       true,
	}
}

func (s *Session) SiteID() int          { return s.siteID }
func (s *Session) DeveloperKey() string { return s.developerKey }
func (s *Session) GameID() int          { return s.gameID }
func (s *Session) GameGroupID() int     { return s.gameGroupID }
func (s *Session) LanguageCode() string { return s.languageCode }
func (s *Session) ServerStage() string  { return s.serverStage }

func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

// BeginUserSession installs an authenticated user. The three login fields
// (user id, auth token, validated flag) always move together; a record
// that cannot satisfy that is rejected here rather than left half-set.
func (s *Session) BeginUserSession(user UserInfo, authToken, sessionID, refreshToken string, expires time.Time) error {
	if user.UserID == 0 || authToken == "" {
		return ErrInvalidAuth
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.authToken = authToken
	s.authTokenValidated = true
	s.authTokenExpires = expires
	s.sessionID = sessionID
	s.refreshToken = refreshToken
	return nil
}

// ClearUserSession drops all auth state. The anonymous identity is
// untouched; it exists independently of login state.
func (s *Session) ClearUserSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = UserInfo{}
	s.authToken = ""
	s.authTokenValidated = false
	s.authTokenExpires = time.Time{}
	s.sessionID = ""
	s.refreshToken = ""
}

func (s *Session) IsUserLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.UserID != 0 && s.authToken != "" && s.authTokenValidated
}

func (s *Session) LoggedInUser() UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// LoggedInUserID returns 0 when no user is authenticated.
func (s *Session) LoggedInUserID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authTokenValidated {
		return 0
	}
	return s.user.UserID
}

func (s *Session) AuthToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authToken
}

func (s *Session) AuthTokenExpires() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authTokenExpires
}

func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) SetSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
}

func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

func (s *Session) AnonymousUser() AnonymousUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAnonymous(s.anon)
}

func (s *Session) SetAnonymousUser(anon AnonymousUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anon = cloneAnonymous(anon)
}

// AddFavoriteGame records a favorite, most recent first, without
// duplicates.
func (s *Session) AddFavoriteGame(gameID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anon.FavoriteGames = frontInsert(s.anon.FavoriteGames, gameID)
}

// MarkGamePlayed records a play, most recent first, without duplicates.
func (s *Session) MarkGamePlayed(gameID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anon.GamesPlayed = frontInsert(s.anon.GamesPlayed, gameID)
}

func frontInsert(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids)+1)
	out = append(out, id)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneAnonymous(a AnonymousUser) AnonymousUser {
	out := a
	out.FavoriteGames = append([]int64(nil), a.FavoriteGames...)
	out.GamesPlayed = append([]int64(nil), a.GamesPlayed...)
	return out
}
