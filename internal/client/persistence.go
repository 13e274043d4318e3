package client

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"enginesis-client/internal/crypto"
	"enginesis-client/internal/session"
	"enginesis-client/internal/storage"
)

// savedSession is the logged-in identity as persisted in client storage,
// carrying the integrity hash supplied by the service at login time.
type savedSession struct {
	User         session.UserInfo `json:"user"`
	AuthToken    string           `json:"authtok"`
	SessionID    string           `json:"session_id"`
	RefreshToken string           `json:"refresh_token"`
	Expires      time.Time        `json:"expires"`
	Hash         string           `json:"hash"`
}

func (c *Client) saveSession(saved savedSession) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(saved)
	if err != nil {
		log.Warn().Err(err).Msg("marshal saved session failed")
		return
	}
	if err := c.store.Put(storage.KeySavedSession, raw); err != nil {
		log.Warn().Err(err).Msg("persist session failed")
	}
}

func (c *Client) clearSavedSession() {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(storage.KeySavedSession); err != nil {
		log.Warn().Err(err).Msg("clear saved session failed")
	}
}

// loadSavedSession restores a previously authenticated identity. An
// integrity-hash mismatch is logged but does not block restoration; the
// record may simply predate a site-key rotation.
func (c *Client) loadSavedSession() bool {
	if c.store == nil {
		return false
	}
	raw, ok, err := c.store.Get(storage.KeySavedSession)
	if err != nil || !ok {
		return false
	}
	var saved savedSession
	if err := json.Unmarshal(raw, &saved); err != nil {
		log.Warn().Err(err).Msg("saved session unreadable, discarding")
		_ = c.store.Delete(storage.KeySavedSession)
		return false
	}
	if !c.sessionHashValid(saved) {
		log.Warn().Int("user_id", saved.User.UserID).Msg("saved session integrity hash mismatch")
	}
	if err := c.sess.BeginUserSession(saved.User, saved.AuthToken, saved.SessionID, saved.RefreshToken, saved.Expires); err != nil {
		log.Warn().Err(err).Msg("saved session incomplete, discarding")
		_ = c.store.Delete(storage.KeySavedSession)
		return false
	}
	return true
}

// sessionHashValid checks the stored hash against the current and the
// previous 48-hour bucket so a restore right after a rollover still
// validates.
func (c *Client) sessionHashValid(saved savedSession) bool {
	now := time.Now()
	for _, at := range []time.Time{now, now.Add(-48 * time.Hour)} {
		want := crypto.SessionHash(c.siteKey, c.sess.SiteID(), saved.User.UserID,
			saved.User.UserName, saved.User.SiteUserID, saved.User.AccessLevel, at)
		if saved.Hash == want {
			return true
		}
	}
	return false
}

func (c *Client) currentSessionHash(user session.UserInfo) string {
	return crypto.SessionHash(c.siteKey, c.sess.SiteID(), user.UserID,
		user.UserName, user.SiteUserID, user.AccessLevel, time.Now())
}

// loadOrCreateAnonymousUser installs the persistent pseudo-identity used
// to correlate activity before or without a login.
func (c *Client) loadOrCreateAnonymousUser() {
	now := time.Now()
	if c.store != nil {
		if raw, ok, err := c.store.Get(storage.KeyAnonymousUser); err == nil && ok {
			var anon session.AnonymousUser
			if err := json.Unmarshal(raw, &anon); err == nil {
				if anon.Hash != c.anonymousHash(anon) {
					log.Warn().Int64("user_id", anon.UserID).Msg("anonymous user integrity hash mismatch")
				}
				anon.DateLastVisit = now
				c.sess.SetAnonymousUser(anon)
				c.saveAnonymousUser()
				return
			}
			log.Warn().Err(err).Msg("anonymous user record unreadable, recreating")
		}
	}
	c.sess.SetAnonymousUser(session.AnonymousUser{
		DateCreated:   now,
		DateLastVisit: now,
		UserID:        newAnonymousID(),
		UserName:      newAnonymousName(),
	})
	c.saveAnonymousUser()
}

func (c *Client) saveAnonymousUser() {
	if c.store == nil {
		return
	}
	anon := c.sess.AnonymousUser()
	anon.Hash = c.anonymousHash(anon)
	c.sess.SetAnonymousUser(anon)
	raw, err := json.Marshal(anon)
	if err != nil {
		log.Warn().Err(err).Msg("marshal anonymous user failed")
		return
	}
	if err := c.store.Put(storage.KeyAnonymousUser, raw); err != nil {
		log.Warn().Err(err).Msg("persist anonymous user failed")
	}
}

func (c *Client) anonymousHash(anon session.AnonymousUser) string {
	return crypto.RecordHash(c.siteKey,
		strconv.FormatInt(anon.UserID, 10),
		anon.UserName,
		anon.SubscriberEmail,
		anon.DateCreated.UTC().Format(time.RFC3339),
	)
}
