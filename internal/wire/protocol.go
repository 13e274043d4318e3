// Package wire defines the request/response envelope shared with the
// Enginesis service and the synthetic responses produced locally when a
// call never reaches the network.
package wire

import (
	"encoding/json"
	"errors"
)

// Fixed vocabulary for locally synthesized status messages. Server-reported
// business errors carry whatever message the server chose and pass through
// unmodified.
const (
	MsgOffline          = "OFFLINE"
	MsgDisabled         = "DISABLED"
	MsgValidationFailed = "VALIDATION_FAILED"
	MsgServiceError     = "SERVICE_ERROR"
	MsgNotLoggedIn      = "NOT_LOGGED_IN"
	MsgInvalidSession   = "INVALID_SESSION"
	MsgInvalidGameID    = "INVALID_GAME_ID"
	MsgInvalidParam     = "INVALID_PARAM"
	MsgInvalidToken     = "INVALID_TOKEN"
)

var ErrMalformedResponse = errors.New("malformed_response")

type Passthru struct {
	Fn       string `json:"fn"`
	StateSeq int64  `json:"state_seq"`
}

type Status struct {
	Success      string    `json:"success"`
	Message      string    `json:"message,omitempty"`
	ExtendedInfo string    `json:"extended_info,omitempty"`
	Passthru     *Passthru `json:"passthru,omitempty"`
}

type Results struct {
	Status Status          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

type Response struct {
	Fn      string  `json:"fn"`
	Results Results `json:"results"`
}

func (r Response) Succeeded() bool {
	return r.Results.Status.Success == "1"
}

// Parse decodes a service payload. A payload that decodes but carries no
// status block is treated as malformed, not as a business error.
func Parse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, ErrMalformedResponse
	}
	if resp.Results.Status.Success == "" {
		return Response{}, ErrMalformedResponse
	}
	return resp, nil
}

// SyntheticError builds a local error response in the same shape the
// service uses so callers have a single result branch to check.
func SyntheticError(fn string, stateSeq int64, message, extendedInfo string) Response {
	return Response{
		Fn: fn,
		Results: Results{
			Status: Status{
				Success:      "0",
				Message:      message,
				ExtendedInfo: extendedInfo,
				Passthru:     &Passthru{Fn: fn, StateSeq: stateSeq},
			},
		},
	}
}

// SyntheticSuccess is used by the stub service and by tests that need a
// well formed success envelope.
func SyntheticSuccess(fn string, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Fn: fn,
		Results: Results{
			Status: Status{Success: "1"},
			Result: raw,
		},
	}, nil
}
