// Package dispatch owns the outbound request queue. Every remote call
// becomes a queued envelope; a single serialized dispatcher delivers them
// in FIFO order, survives connectivity loss by persisting the queue, and
// resolves each caller exactly once.
package dispatch

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"enginesis-client/internal/session"
	"enginesis-client/internal/storage"
	"enginesis-client/internal/transport"
	"enginesis-client/internal/wire"
)

type Status int

const (
	StatusPending  Status = 0
	StatusInFlight Status = 1
	StatusDone     Status = 2
)

// Callback receives a response in addition to the per-call channel. A
// per-call callback overrides the dispatcher's default subscriber.
type Callback func(wire.Response)

// Request is one pending or in-flight remote operation. Only the exported
// fields are persisted; a restored request has no caller channel, its
// response goes to the default subscriber.
type Request struct {
	Fn          string            `json:"fn"`
	StateSeq    int64             `json:"state_seq"`
	StateStatus Status            `json:"state_status"`
	Params      map[string]string `json:"params"`

	cb       Callback
	done     chan wire.Response
	resolved bool
}

type Dispatcher struct {
	sess       *session.Session
	store      *storage.Store
	sender     transport.Sender
	serviceURL string
	defaultCB  Callback

	mu        sync.Mutex
	enabled   bool
	nextSeq   int64
	queue     []*Request
	inFlight  bool
	persisted bool
}

// New builds a dispatcher. store may be nil, in which case the queue does
// not survive a restart.
func New(sess *session.Session, store *storage.Store, sender transport.Sender, serviceURL string, defaultCB Callback) *Dispatcher {
	return &Dispatcher{
		sess:       sess,
		store:      store,
		sender:     sender,
		serviceURL: serviceURL,
		defaultCB:  defaultCB,
		enabled:    true,
		nextSeq:    1,
	}
}

func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Enqueue appends a request and, when online, kicks the dispatcher. The
// returned channel resolves with exactly one response; all failure modes
// are error-shaped responses, the channel never closes without a value.
func (d *Dispatcher) Enqueue(fn string, params map[string]string, cb Callback) <-chan wire.Response {
	done := make(chan wire.Response, 1)

	d.mu.Lock()

	// Rejected calls never enter the queue: they echo state_seq 0 and
	// consume no sequence number.
	if !d.enabled {
		d.mu.Unlock()
		d.deliver(&Request{Fn: fn, cb: cb, done: done},
			wire.SyntheticError(fn, 0, wire.MsgDisabled, "client is disabled"))
		return done
	}
	if !d.operationalLocked() {
		d.mu.Unlock()
		d.deliver(&Request{Fn: fn, cb: cb, done: done},
			wire.SyntheticError(fn, 0, wire.MsgValidationFailed, "client is not configured for service calls"))
		return done
	}
	seq := d.nextSeq
	d.nextSeq++

	merged := map[string]string{
		"apikey":        d.sess.DeveloperKey(),
		"site_id":       strconv.Itoa(d.sess.SiteID()),
		"user_id":       strconv.Itoa(d.sess.LoggedInUserID()),
		"language_code": d.sess.LanguageCode(),
		"response":      "json",
	}
	for k, v := range params {
		merged[k] = v
	}
	req := &Request{
		Fn:          fn,
		StateSeq:    seq,
		StateStatus: StatusPending,
		Params:      merged,
		cb:          cb,
		done:        done,
	}
	d.queue = append(d.queue, req)
	online := d.sess.Online()
	if !online {
		// Requests accepted while offline must survive a reload too, not
		// only the one whose failure took the session offline.
		d.persistQueueLocked()
	}
	d.mu.Unlock()

	if online {
		go d.pump(context.Background())
	}
	return done
}

// operationalLocked reports whether the client can reach the service at
// all: a resolved URL, a site id, and a developer key.
func (d *Dispatcher) operationalLocked() bool {
	return d.serviceURL != "" && d.sess.SiteID() != 0 && d.sess.DeveloperKey() != ""
}

func (d *Dispatcher) pump(ctx context.Context) {
	for d.dispatchNext(ctx) {
	}
}

// dispatchNext delivers the oldest pending entry. It reports whether a
// further dispatch should be attempted: false when the queue is empty,
// another dispatch is already in flight, or the session went offline.
func (d *Dispatcher) dispatchNext(ctx context.Context) bool {
	d.mu.Lock()
	if d.inFlight || !d.sess.Online() {
		d.mu.Unlock()
		return false
	}
	var req *Request
	for _, candidate := range d.queue {
		if candidate.StateStatus == StatusPending {
			req = candidate
			break
		}
	}
	if req == nil {
		d.mu.Unlock()
		return false
	}
	req.StateStatus = StatusInFlight
	d.inFlight = true
	params := d.wireParamsLocked(req)
	serviceURL := d.serviceURL
	d.mu.Unlock()

	body, err := d.sender.Send(ctx, serviceURL, params)

	d.mu.Lock()
	d.inFlight = false
	if err != nil {
		// Connectivity failure: the entry survives for a later retry,
		// the session flips offline, and the queue is persisted.
		req.StateStatus = StatusPending
		d.sess.SetOnline(false)
		d.persistQueueLocked()
		d.mu.Unlock()
		log.Warn().Str("fn", req.Fn).Int64("state_seq", req.StateSeq).Err(err).Msg("service unreachable, going offline")
		d.deliver(req, wire.SyntheticError(req.Fn, req.StateSeq, wire.MsgOffline, "service unreachable"))
		return false
	}
	d.removeLocked(req)
	d.mu.Unlock()

	resp, perr := wire.Parse(body)
	if perr != nil {
		// A malformed payload is terminal for this entry; retrying would
		// replay the same server state.
		resp = wire.SyntheticError(req.Fn, req.StateSeq, wire.MsgServiceError, "unexpected response from service")
	}
	d.deliver(req, resp)
	return true
}

// DrainOnReconnect marks the session online and dispatches queued entries
// in retained order until the queue is empty or a failure flips the
// session offline again. Returns the number of delivered entries.
func (d *Dispatcher) DrainOnReconnect(ctx context.Context) int {
	d.sess.SetOnline(true)
	delivered := 0
	for d.dispatchNext(ctx) {
		delivered++
	}
	return delivered
}

// RestoreQueue loads any previously persisted queue, clears the persisted
// copy, and resets every loaded entry to pending so it will be retried.
func (d *Dispatcher) RestoreQueue() (int, error) {
	if d.store == nil {
		return 0, nil
	}
	raw, ok, err := d.store.Get(storage.KeyRequestQueue)
	if err != nil || !ok {
		return 0, err
	}
	if err := d.store.Delete(storage.KeyRequestQueue); err != nil {
		return 0, err
	}
	var entries []*Request
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Warn().Err(err).Msg("persisted queue unreadable, discarding")
		return 0, nil
	}

	d.mu.Lock()
	for _, req := range entries {
		req.StateStatus = StatusPending
		if req.StateSeq >= d.nextSeq {
			d.nextSeq = req.StateSeq + 1
		}
		d.queue = append(d.queue, req)
	}
	d.mu.Unlock()
	return len(entries), nil
}

// QueueLen reports how many entries are pending or in flight.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Snapshot returns a copy of the queue for inspection.
func (d *Dispatcher) Snapshot() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, 0, len(d.queue))
	for _, req := range d.queue {
		out = append(out, Request{
			Fn:          req.Fn,
			StateSeq:    req.StateSeq,
			StateStatus: req.StateStatus,
			Params:      req.Params,
		})
	}
	return out
}

func (d *Dispatcher) wireParamsLocked(req *Request) url.Values {
	params := url.Values{}
	for k, v := range req.Params {
		params.Set(k, v)
	}
	params.Set("fn", req.Fn)
	params.Set("state_seq", strconv.FormatInt(req.StateSeq, 10))
	params.Set("state_status", strconv.Itoa(int(req.StateStatus)))
	if d.sess.IsUserLoggedIn() {
		params.Set("logged_in_user_id", strconv.Itoa(d.sess.LoggedInUserID()))
		params.Set("authtok", d.sess.AuthToken())
	}
	return params
}

func (d *Dispatcher) removeLocked(req *Request) {
	req.StateStatus = StatusDone
	for i, candidate := range d.queue {
		if candidate == req {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			break
		}
	}
	if d.persisted {
		d.persistQueueLocked()
	}
}

// persistQueueLocked writes the full queue under its fixed key, or clears
// the key when the queue is empty.
func (d *Dispatcher) persistQueueLocked() {
	if d.store == nil {
		return
	}
	if len(d.queue) == 0 {
		if err := d.store.Delete(storage.KeyRequestQueue); err != nil {
			log.Warn().Err(err).Msg("clear persisted queue failed")
		}
		d.persisted = false
		return
	}
	raw, err := json.Marshal(d.queue)
	if err != nil {
		log.Warn().Err(err).Msg("marshal queue failed")
		return
	}
	if err := d.store.Put(storage.KeyRequestQueue, raw); err != nil {
		log.Warn().Err(err).Msg("persist queue failed")
		return
	}
	d.persisted = true
}

// deliver resolves a request. Callbacks run before the channel resolves
// so state they capture is visible to a caller blocked on the channel.
// The channel receives at most one response; callbacks also fire for
// retried entries whose channel was already consumed by an earlier
// offline resolution.
func (d *Dispatcher) deliver(req *Request, resp wire.Response) {
	d.mu.Lock()
	alreadyResolved := req.resolved
	req.resolved = true
	d.mu.Unlock()

	if req.cb != nil {
		req.cb(resp)
	} else if d.defaultCB != nil {
		d.defaultCB(resp)
	}
	if req.done != nil && !alreadyResolved {
		req.done <- resp
	}
}
