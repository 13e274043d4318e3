// Package client is the session orchestrator: it initializes the client
// session from configuration, restores a previously authenticated
// identity, and coordinates login state across the registered identity
// providers while exposing the request queue to application callers.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"enginesis-client/internal/dispatch"
	"enginesis-client/internal/identity"
	"enginesis-client/internal/session"
	"enginesis-client/internal/storage"
	"enginesis-client/internal/transport"
)

type Config struct {
	SiteID       int
	DeveloperKey string
	GameID       int
	GameGroupID  int
	LanguageCode string

	// ServerStage selects the deployment: a stage code, "*" to match
	// CurrentHost, or a literal service host. ServiceURL, when set,
	// bypasses stage resolution entirely; the CLI uses it to point at a
	// local stub service.
	ServerStage string
	CurrentHost string
	ServiceURL  string

	// AuthToken plus UserInfoJSON restore a login handed to the client by
	// its host environment. The pair is trusted without re-validation.
	AuthToken    string
	UserInfoJSON string

	// SiteKey keys the integrity hash over cached session records.
	SiteKey string

	// StoragePath locates the durable store; empty disables persistence.
	// Storage, when set, wins over StoragePath.
	StoragePath string
	Storage     *storage.Store

	// Sender overrides the HTTP transport, used by tests and the CLI.
	Sender transport.Sender

	// OnResponse is the default subscriber invoked for every delivered
	// response that has no per-call callback.
	OnResponse dispatch.Callback

	// Providers are the third-party identity networks to register next
	// to the first-party provider.
	Providers []identity.Provider

	// DrainDelay postpones draining a restored queue so it does not
	// contend with host startup. Zero means 250ms.
	DrainDelay time.Duration
}

type Client struct {
	sess       *session.Session
	disp       *dispatch.Dispatcher
	store      *storage.Store
	providers  *identity.Registry
	siteKey    string
	serviceURL string
	onResponse dispatch.Callback
	ownStore   bool
}

func New(cfg Config) (*Client, error) {
	if cfg.SiteID == 0 || cfg.DeveloperKey == "" {
		return nil, fmt.Errorf("site id and developer key are required: %w", ErrMissingConfig)
	}

	store := cfg.Storage
	ownStore := false
	if store == nil && cfg.StoragePath != "" {
		opened, err := storage.Open(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		store = opened
		ownStore = true
	}

	sender := cfg.Sender
	if sender == nil {
		sender = transport.NewHTTPSender(0)
	}

	sess := session.New(session.Config{
		SiteID:       cfg.SiteID,
		DeveloperKey: cfg.DeveloperKey,
		GameID:       cfg.GameID,
		GameGroupID:  cfg.GameGroupID,
		LanguageCode: cfg.LanguageCode,
		ServerStage:  cfg.ServerStage,
	})

	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = ResolveServiceURL(cfg.ServerStage, cfg.CurrentHost)
	}

	c := &Client{
		sess:       sess,
		store:      store,
		siteKey:    cfg.SiteKey,
		serviceURL: serviceURL,
		onResponse: cfg.OnResponse,
		ownStore:   ownStore,
	}
	c.disp = dispatch.New(sess, store, sender, c.serviceURL, cfg.OnResponse)

	c.providers = identity.NewRegistry()
	c.providers.Register(identity.NewEnginesisProvider(sess))
	for _, p := range cfg.Providers {
		c.providers.Register(p)
	}

	c.restoreIdentity(cfg)

	restored, err := c.disp.RestoreQueue()
	if err != nil {
		log.Warn().Err(err).Msg("restore queue failed")
	}
	if restored > 0 {
		delay := cfg.DrainDelay
		if delay <= 0 {
			delay = 250 * time.Millisecond
		}
		log.Info().Int("restored", restored).Msg("draining restored queue after startup delay")
		time.AfterFunc(delay, func() {
			c.disp.DrainOnReconnect(context.Background())
		})
	}
	return c, nil
}

// restoreIdentity installs the anonymous identity, which exists with or
// without a login, then walks the login restoration priority order: an
// explicit token/user-info pair first, then the saved session.
func (c *Client) restoreIdentity(cfg Config) {
	c.loadOrCreateAnonymousUser()
	if cfg.AuthToken != "" && cfg.UserInfoJSON != "" {
		var user session.UserInfo
		if err := json.Unmarshal([]byte(cfg.UserInfoJSON), &user); err == nil {
			// Trusted without re-validation; the token came from the host
			// page environment. A known gap, kept deliberately.
			if err := c.sess.BeginUserSession(user, cfg.AuthToken, "", "", time.Time{}); err == nil {
				return
			}
		} else {
			log.Warn().Err(err).Msg("supplied user info unreadable")
		}
	}
	c.loadSavedSession()
}

func (c *Client) Session() *session.Session { return c.sess }

func (c *Client) ServiceURL() string { return c.serviceURL }

func (c *Client) IsUserLoggedIn() bool { return c.sess.IsUserLoggedIn() }

// QueueLen reports pending plus in-flight requests.
func (c *Client) QueueLen() int { return c.disp.QueueLen() }

// AddFavoriteGame records a favorite on the anonymous identity, most
// recent first, and persists the updated record.
func (c *Client) AddFavoriteGame(gameID int64) {
	c.sess.AddFavoriteGame(gameID)
	c.saveAnonymousUser()
}

// GamePlayed records a play on the anonymous identity and persists it.
func (c *Client) GamePlayed(gameID int64) {
	c.sess.MarkGamePlayed(gameID)
	c.saveAnonymousUser()
}

// SetEnabled turns the whole client off or on; a disabled client answers
// every call with a DISABLED response and queues nothing.
func (c *Client) SetEnabled(enabled bool) { c.disp.SetEnabled(enabled) }

// DrainOnReconnect retries queued requests after connectivity returns.
func (c *Client) DrainOnReconnect(ctx context.Context) int {
	return c.disp.DrainOnReconnect(ctx)
}

func (c *Client) Close() error {
	if c.ownStore && c.store != nil {
		return c.store.Close()
	}
	return nil
}
