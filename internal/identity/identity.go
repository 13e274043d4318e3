// Package identity abstracts the login networks behind one capability
// interface. Adding a network means registering a Provider, not extending
// a switch.
package identity

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotConnected   = errors.New("not_connected")
	ErrUnknownNetwork = errors.New("unknown_network")
)

type NetworkID int

// Network ids are assigned by the service and shared with every client.
const (
	NetworkEnginesis NetworkID = 1
	NetworkFacebook  NetworkID = 2
	NetworkGoogle    NetworkID = 7
	NetworkTwitter   NetworkID = 11
	NetworkApple     NetworkID = 14
)

func (n NetworkID) String() string {
	switch n {
	case NetworkEnginesis:
		return "enginesis"
	case NetworkFacebook:
		return "facebook"
	case NetworkGoogle:
		return "google"
	case NetworkTwitter:
		return "twitter"
	case NetworkApple:
		return "apple"
	default:
		return "unknown"
	}
}

// NetworkUser is the normalized record every provider produces regardless
// of what the network's own API returns.
type NetworkUser struct {
	NetworkID     NetworkID `json:"network_id"`
	UserName      string    `json:"user_name"`
	RealName      string    `json:"real_name"`
	Email         string    `json:"email_address"`
	SiteUserID    string    `json:"site_user_id"`
	SiteUserToken string    `json:"site_user_token"`
	Gender        string    `json:"gender"`
	DOB           string    `json:"dob"`
	AvatarURL     string    `json:"avatar_url"`
	Scope         string    `json:"scope"`
}

type Provider interface {
	NetworkID() NetworkID

	// Load prepares the network's machinery. Providers that need nothing
	// return nil immediately.
	Load(ctx context.Context) error

	// Login runs the network's interactive flow and resolves with the
	// normalized user, or ErrNotConnected when the user declined.
	Login(ctx context.Context) (*NetworkUser, error)

	Logout(ctx context.Context) error

	// LoginStatus reports the active session on that network without
	// starting an interactive flow. ErrNotConnected means no session.
	LoginStatus(ctx context.Context) (*NetworkUser, error)

	TokenExpirationDate() time.Time
}

type Registry struct {
	mu        sync.Mutex
	providers map[NetworkID]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[NetworkID]Provider{}}
}

// Register installs or replaces the provider for its network id.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.NetworkID()] = p
}

func (r *Registry) Provider(id NetworkID) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrUnknownNetwork
	}
	return p, nil
}

// NetworkIDs returns the registered ids in ascending order so iteration
// during a status sweep is deterministic.
func (r *Registry) NetworkIDs() []NetworkID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]NetworkID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
