// Package dialog is a queue of modal alert and confirm requests.
//
// Only the head of the queue is shown. Resolving it runs its callback and
// promotes the next request; no request is ever dropped or resolved twice.
package dialog

import (
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("kalcame.dialog")

// DefaultConfirmLabel is used when Config.ConfirmLabel is empty.
const DefaultConfirmLabel = "OK"

// Config describes one dialog.
type Config struct {
	Title        string
	Message      string
	ConfirmLabel string
	// CancelLabel is ignored for alerts.
	CancelLabel string
}

// Kind distinguishes alerts from confirms.
type Kind int

const (
	KindAlert Kind = iota
	KindConfirm
)

func (k Kind) String() string {
	if k == KindConfirm {
		return "confirm"
	}
	return "alert"
}

// Request is a queued dialog.
type Request struct {
	Kind   Kind
	Config Config

	done func(bool)
}

// Labels returns the button labels to show. Alerts have no cancel label.
func (r *Request) Labels() (confirm, cancel string) {
	confirm = r.Config.ConfirmLabel
	if confirm == "" {
		confirm = DefaultConfirmLabel
	}
	if r.Kind == KindConfirm {
		cancel = r.Config.CancelLabel
	}
	return confirm, cancel
}

// Provider is the dialog queue. It is owned by the UI goroutine.
type Provider struct {
	queue  []*Request
	closed bool

	// OnChange is called whenever the head of the queue changes.
	OnChange func(current *Request)
}

// New returns an empty provider.
func New() *Provider {
	return &Provider{}
}

// Alert queues an acknowledgement-only dialog. done may be nil.
func (p *Provider) Alert(cfg Config, done func()) {
	cfg.CancelLabel = ""
	var cb func(bool)
	if done != nil {
		cb = func(bool) { done() }
	}
	p.enqueue(&Request{Kind: KindAlert, Config: cfg, done: cb})
}

// Confirm queues a yes/no dialog; done receives the answer exactly once.
func (p *Provider) Confirm(cfg Config, done func(bool)) {
	p.enqueue(&Request{Kind: KindConfirm, Config: cfg, done: done})
}

func (p *Provider) enqueue(r *Request) {
	if p.closed {
		logger.Debugf("%s %q after close, rejecting", r.Kind, r.Config.Title)
		if r.done != nil {
			r.done(false)
		}
		return
	}
	p.queue = append(p.queue, r)
	logger.Debugf("queued %s %q (%d pending)", r.Kind, r.Config.Title, len(p.queue))
	if len(p.queue) == 1 {
		p.changed()
	}
}

// Current returns the dialog being shown, or nil.
func (p *Provider) Current() *Request {
	if len(p.queue) == 0 {
		return nil
	}
	return p.queue[0]
}

// Pending returns the number of queued requests including the current one.
func (p *Provider) Pending() int { return len(p.queue) }

// Resolve answers the current dialog. For alerts the value is ignored and
// the callback still runs. It returns false if nothing was shown.
func (p *Provider) Resolve(confirmed bool) bool {
	if len(p.queue) == 0 {
		return false
	}
	r := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	if r.Kind == KindAlert {
		confirmed = true
	}
	logger.Debugf("resolved %s %q: %v", r.Kind, r.Config.Title, confirmed)
	if r.done != nil {
		r.done(confirmed)
	}
	p.changed()
	return true
}

// Close rejects every pending request with false. Later requests are
// rejected immediately.
func (p *Provider) Close() {
	if p.closed {
		return
	}
	p.closed = true
	pending := p.queue
	p.queue = nil
	for _, r := range pending {
		if r.done != nil {
			r.done(false)
		}
	}
	if len(pending) > 0 {
		p.changed()
	}
}

func (p *Provider) changed() {
	if p.OnChange != nil {
		p.OnChange(p.Current())
	}
}
