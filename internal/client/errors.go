package client

import "errors"

var (
	ErrMissingConfig  = errors.New("missing_config")
	ErrNotLoggedIn    = errors.New("not_logged_in")
	ErrInvalidSession = errors.New("invalid_session")
	ErrInvalidGameID  = errors.New("invalid_game_id")
	ErrInvalidParam   = errors.New("invalid_param")
)
