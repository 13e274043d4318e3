package identity

import (
	"context"
	"time"

	"enginesis-client/internal/session"
)

// EnginesisProvider is the first-party network. There is no external SDK
// to load and no interactive flow of its own; it answers from the client
// session, which the orchestrator fills via the service.
type EnginesisProvider struct {
	sess *session.Session
}

func NewEnginesisProvider(sess *session.Session) *EnginesisProvider {
	return &EnginesisProvider{sess: sess}
}

func (p *EnginesisProvider) NetworkID() NetworkID { return NetworkEnginesis }

func (p *EnginesisProvider) Load(context.Context) error { return nil }

func (p *EnginesisProvider) Login(ctx context.Context) (*NetworkUser, error) {
	return p.LoginStatus(ctx)
}

func (p *EnginesisProvider) Logout(context.Context) error { return nil }

func (p *EnginesisProvider) LoginStatus(context.Context) (*NetworkUser, error) {
	if !p.sess.IsUserLoggedIn() {
		return nil, ErrNotConnected
	}
	user := p.sess.LoggedInUser()
	return &NetworkUser{
		NetworkID:     NetworkEnginesis,
		UserName:      user.UserName,
		RealName:      user.FullName,
		Email:         user.Email,
		SiteUserID:    user.SiteUserID,
		SiteUserToken: p.sess.AuthToken(),
		Gender:        user.Gender,
		DOB:           user.DateOfBirth,
	}, nil
}

func (p *EnginesisProvider) TokenExpirationDate() time.Time {
	return p.sess.AuthTokenExpires()
}
