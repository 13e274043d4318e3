package client

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"enginesis-client/internal/crypto"
	"enginesis-client/internal/dispatch"
	"enginesis-client/internal/identity"
	"enginesis-client/internal/session"
	"enginesis-client/internal/wire"
)

const (
	fnSessionBegin   = "SessionBegin"
	fnSessionRefresh = "SessionRefresh"
	fnGameDataGet    = "GameDataGet"
	fnScoreSubmit    = "ScoreSubmit"
	fnUserLoginCoreg = "UserLoginCoreg"
	fnUserLogout     = "UserLogout"
)

// resolveLocal answers a call that never reaches the queue. The channel
// shape matches Enqueue so callers have one result branch either way.
func (c *Client) resolveLocal(fn, message, info string) <-chan wire.Response {
	resp := wire.SyntheticError(fn, 0, message, info)
	if c.onResponse != nil {
		c.onResponse(resp)
	}
	ch := make(chan wire.Response, 1)
	ch <- resp
	return ch
}

// chain builds a per-call callback that captures service state before
// forwarding to the default subscriber.
func (c *Client) chain(capture func(wire.Response)) dispatch.Callback {
	return func(resp wire.Response) {
		capture(resp)
		if c.onResponse != nil {
			c.onResponse(resp)
		}
	}
}

// SessionBegin starts a gameplay session. It must precede any
// gameplay-scoped operation. Without a login the anonymous identity is
// attached as a correlation mark.
func (c *Client) SessionBegin(gameKey string, gameID int) <-chan wire.Response {
	id := gameID
	if id == 0 {
		id = c.sess.GameID()
	}
	params := map[string]string{
		"game_id": strconv.Itoa(id),
		"gamekey": gameKey,
	}
	if !c.sess.IsUserLoggedIn() {
		anon := c.sess.AnonymousUser()
		params["anonymous_user_id"] = strconv.FormatInt(anon.UserID, 10)
		params["anonymous_user_name"] = anon.UserName
	}
	return c.disp.Enqueue(fnSessionBegin, params, c.chain(func(resp wire.Response) {
		if !resp.Succeeded() {
			return
		}
		var result struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(resp.Results.Result, &result); err != nil || result.SessionID == "" {
			return
		}
		c.sess.SetSessionID(result.SessionID)
		if !c.sess.IsUserLoggedIn() {
			c.sess.MarkGamePlayed(int64(id))
			c.saveAnonymousUser()
		}
	}))
}

// SessionRefresh exchanges the refresh token for a fresh auth token.
func (c *Client) SessionRefresh() <-chan wire.Response {
	refreshToken := c.sess.RefreshToken()
	if refreshToken == "" {
		return c.resolveLocal(fnSessionRefresh, wire.MsgInvalidToken, "no refresh token held")
	}
	return c.disp.Enqueue(fnSessionRefresh, map[string]string{"refresh_token": refreshToken}, c.chain(func(resp wire.Response) {
		if !resp.Succeeded() {
			return
		}
		var result struct {
			AuthToken string    `json:"authtok"`
			Expires   time.Time `json:"expires"`
		}
		if err := json.Unmarshal(resp.Results.Result, &result); err != nil || result.AuthToken == "" {
			return
		}
		user := c.sess.LoggedInUser()
		if err := c.sess.BeginUserSession(user, result.AuthToken, c.sess.SessionID(), refreshToken, result.Expires); err != nil {
			log.Warn().Err(err).Msg("refresh produced unusable session")
		}
	}))
}

// GameDataGet fetches the metadata record for one game.
func (c *Client) GameDataGet(gameID int) <-chan wire.Response {
	id := gameID
	if id == 0 {
		id = c.sess.GameID()
	}
	if id <= 0 {
		return c.resolveLocal(fnGameDataGet, wire.MsgInvalidGameID, "no game id to query")
	}
	return c.disp.Enqueue(fnGameDataGet, map[string]string{"game_id": strconv.Itoa(id)}, nil)
}

// ScoreSubmit posts a score for the current gameplay session. The
// preconditions are checked locally so no request guaranteed to fail on
// the server is ever queued; the payload travels encrypted, keyed by the
// session id.
func (c *Client) ScoreSubmit(gameID int, score int64, gameData string, timePlayed int) <-chan wire.Response {
	if !c.sess.IsUserLoggedIn() {
		return c.resolveLocal(fnScoreSubmit, wire.MsgNotLoggedIn, "score submission requires a logged in user")
	}
	sessionID := c.sess.SessionID()
	if sessionID == "" {
		return c.resolveLocal(fnScoreSubmit, wire.MsgInvalidSession, "no gameplay session; call SessionBegin first")
	}
	id := gameID
	if id == 0 {
		id = c.sess.GameID()
	}
	if id <= 0 {
		return c.resolveLocal(fnScoreSubmit, wire.MsgInvalidGameID, "score requires a game id")
	}
	if score < 0 || timePlayed < 0 {
		return c.resolveLocal(fnScoreSubmit, wire.MsgInvalidParam, "score and time played must be non-negative")
	}

	payload, err := json.Marshal(map[string]any{
		"game_id":     id,
		"score":       score,
		"game_data":   gameData,
		"time_played": timePlayed,
	})
	if err != nil {
		return c.resolveLocal(fnScoreSubmit, wire.MsgInvalidParam, "score payload cannot be encoded")
	}
	encrypted, err := crypto.EncryptSessionPayload(sessionID, payload)
	if err != nil {
		return c.resolveLocal(fnScoreSubmit, wire.MsgInvalidSession, "score payload cannot be sealed")
	}
	return c.disp.Enqueue(fnScoreSubmit, map[string]string{
		"game_id": strconv.Itoa(id),
		"score":   encrypted,
	}, nil)
}

// RegistrationParams is the common registration shape a third-party login
// result is normalized into.
type RegistrationParams struct {
	SiteUserID    string
	UserName      string
	RealName      string
	Email         string
	Gender        string
	DOB           string
	AvatarURL     string
	Scope         string
	SiteUserToken string
}

func (p *RegistrationParams) normalize() {
	p.SiteUserID = strings.TrimSpace(p.SiteUserID)
	p.UserName = strings.TrimSpace(p.UserName)
	p.RealName = strings.TrimSpace(p.RealName)
	p.Email = strings.TrimSpace(p.Email)
	if p.UserName == "" {
		p.UserName = p.RealName
	}
	if p.RealName == "" {
		p.RealName = p.UserName
	}
	if p.Gender == "" {
		p.Gender = "U"
	}
}

// LoginCoreg performs the federated login: a third-party network already
// authenticated this user, the service creates or matches the account.
func (c *Client) LoginCoreg(params RegistrationParams, networkID identity.NetworkID) <-chan wire.Response {
	params.normalize()
	if params.SiteUserID == "" || (params.UserName == "" && params.RealName == "") {
		return c.resolveLocal(fnUserLoginCoreg, wire.MsgValidationFailed, "site user id and a user or real name are required")
	}
	return c.disp.Enqueue(fnUserLoginCoreg, map[string]string{
		"network_id":      strconv.Itoa(int(networkID)),
		"site_user_id":    params.SiteUserID,
		"user_name":       params.UserName,
		"real_name":       params.RealName,
		"email_address":   params.Email,
		"gender":          params.Gender,
		"dob":             params.DOB,
		"avatar_url":      params.AvatarURL,
		"scope":           params.Scope,
		"site_user_token": params.SiteUserToken,
	}, c.chain(func(resp wire.Response) {
		if !resp.Succeeded() {
			return
		}
		c.captureLogin(resp, int(networkID))
	}))
}

// captureLogin installs the authenticated identity a login operation
// returned and persists it with the server-supplied integrity hash.
func (c *Client) captureLogin(resp wire.Response, networkID int) {
	var result struct {
		session.UserInfo
		AuthToken    string    `json:"authtok"`
		SessionID    string    `json:"session_id"`
		RefreshToken string    `json:"refresh_token"`
		Expires      time.Time `json:"expires"`
		Hash         string    `json:"cr"`
	}
	if err := json.Unmarshal(resp.Results.Result, &result); err != nil {
		log.Warn().Err(err).Msg("login result unreadable")
		return
	}
	user := result.UserInfo
	if user.NetworkID == 0 {
		user.NetworkID = networkID
	}
	if err := c.sess.BeginUserSession(user, result.AuthToken, result.SessionID, result.RefreshToken, result.Expires); err != nil {
		log.Warn().Err(err).Msg("login result incomplete")
		return
	}
	hash := result.Hash
	if hash == "" {
		hash = c.currentSessionHash(user)
	} else if hash != c.currentSessionHash(user) {
		// Logged, not rejected: the mismatch path stays graceful.
		log.Warn().Int("user_id", user.UserID).Msg("server session hash mismatch")
	}
	c.saveSession(savedSession{
		User:         user,
		AuthToken:    result.AuthToken,
		SessionID:    result.SessionID,
		RefreshToken: result.RefreshToken,
		Expires:      result.Expires,
		Hash:         hash,
	})
}

// CheckIsUserLoggedIn re-validates the current login against its
// originating network, or sweeps the registered networks for an active
// session when the client believes nobody is logged in.
func (c *Client) CheckIsUserLoggedIn(ctx context.Context) (*identity.NetworkUser, error) {
	if c.sess.IsUserLoggedIn() {
		networkID := identity.NetworkID(c.sess.LoggedInUser().NetworkID)
		if networkID == 0 {
			networkID = identity.NetworkEnginesis
		}
		provider, err := c.providers.Provider(networkID)
		if err != nil {
			return nil, err
		}
		return provider.LoginStatus(ctx)
	}
	for _, id := range c.providers.NetworkIDs() {
		provider, err := c.providers.Provider(id)
		if err != nil {
			continue
		}
		user, err := provider.LoginStatus(ctx)
		if err == nil && user != nil {
			return user, nil
		}
	}
	return nil, identity.ErrNotConnected
}

// Logout clears local auth state, invokes the originating network's
// logout, and notifies the service. The anonymous identity survives.
func (c *Client) Logout(ctx context.Context) error {
	networkID := identity.NetworkID(c.sess.LoggedInUser().NetworkID)
	if networkID == 0 {
		networkID = identity.NetworkEnginesis
	}
	if c.sess.IsUserLoggedIn() {
		// The token is captured into the request now; local auth state is
		// cleared below, long before the wire write happens.
		c.disp.Enqueue(fnUserLogout, map[string]string{"authtok": c.sess.AuthToken()}, nil)
	}
	c.sess.ClearUserSession()
	c.clearSavedSession()

	provider, err := c.providers.Provider(networkID)
	if err != nil {
		return nil
	}
	return provider.Logout(ctx)
}
