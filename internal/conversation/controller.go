// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/ident"
	"github.com/jeranaias/streamchat/internal/logging"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/stream"
	"github.com/jeranaias/streamchat/internal/telemetry"
	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// TRANSPORT
// =============================================================================

// Request is one message sent to the assistant. An empty ThreadID is
// omitted on the wire.
type Request struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

// Transport is the remote assistant.
type Transport interface {
	// OpenStream sends req and returns the streamed reply body. The body
	// must stop blocking once ctx is cancelled.
	OpenStream(ctx context.Context, req Request) (io.ReadCloser, error)

	// CreateThread obtains a new thread handle.
	CreateThread(ctx context.Context) (string, error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs exchanges against a Transport and owns the conversation.
type Controller struct {
	transport Transport
	store     *model.Store
	threads   *session.Manager
	ids       ident.Generator
	log       logging.Logger
	rec       telemetry.Recorder
	now       func() time.Time
	chunkSize int

	// mu guards the exchange state and serializes store mutations with the
	// snapshots taken of them.
	mu         sync.Mutex
	busy       bool
	pendingID  string
	phase      Phase
	generation uint64
	cancel     context.CancelFunc
	lastErr    string

	// queue holds snapshots in mutation order. While delivering is set one
	// goroutine drains it; every other mutator only appends.
	queue      []Snapshot
	delivering bool

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates a controller for transport.
func New(transport Transport, opts ...Option) *Controller {
	c := &Controller{
		transport: transport,
		store:     model.NewStore(),
		ids:       ident.Default(),
		log:       logging.Nop(),
		rec:       telemetry.Nop(),
		now:       time.Now,
		chunkSize: stream.DefaultChunkSize,
		subs:      make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.threads == nil {
		c.threads = session.NewManager(session.Config{Now: c.now})
	}
	return c
}

// Threads returns the thread handle manager.
func (c *Controller) Threads() *session.Manager {
	return c.threads
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Busy reports whether an exchange is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function unregisters it.
//
// Snapshots reach fn one at a time and in mutation order. fn may call back
// into the controller; snapshots produced by such calls are delivered after
// fn returns. A Submit made from fn runs its whole exchange before any of
// its snapshots are delivered.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// =============================================================================
// THREAD LIFECYCLE
// =============================================================================

// Start requests the initial thread handle. A failure is logged and
// returned; the controller keeps working without a thread id.
func (c *Controller) Start(ctx context.Context) error {
	return c.renewThread(ctx)
}

// Reset abandons any in-flight exchange, clears the conversation and
// requests a fresh thread handle. The cleared state is published before the
// thread request is made. A thread failure is returned but leaves the
// controller usable.
func (c *Controller) Reset(ctx context.Context) error {
	// the old handle must not leak into exchanges sent while renewing
	c.threads.Clear()

	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.store.Clear()
	c.busy = false
	c.pendingID = ""
	c.phase = PhaseIdle
	c.lastErr = ""
	gen := c.generation
	c.unlockAndNotify()

	c.log.Info("CONVERSATION | reset generation=%d", gen)
	return c.renewThread(ctx)
}

func (c *Controller) renewThread(ctx context.Context) error {
	id, err := c.threads.Renew(ctx, c.transport.CreateThread)
	c.rec.ThreadRenewed(err == nil)
	if err != nil {
		c.log.Warn("CONVERSATION | thread unavailable, continuing without one err=%v", err)
	} else {
		c.log.Info("CONVERSATION | thread=%s", session.ShortID(id))
	}

	c.mu.Lock()
	c.unlockAndNotify()
	return err
}

// =============================================================================
// EXCHANGE
// =============================================================================

// Submit runs one exchange and returns when it reaches a terminal state or
// is abandoned by Reset. Blank input returns ErrEmptyInput and input while
// busy returns ErrBusy; neither touches the conversation. Transport and
// stream failures are shown in the reply, not returned.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}

	start := c.now()
	userMsg := model.NewUserMessage(c.ids.NewID(), text, start)
	if err := c.store.Append(userMsg); err != nil {
		c.mu.Unlock()
		return err
	}
	exCtx, cancel := context.WithCancel(ctx)
	gen := c.generation
	c.busy = true
	c.cancel = cancel
	c.phase = PhaseUserAppended
	c.lastErr = ""
	c.unlockAndNotify()

	c.mu.Lock()
	if gen != c.generation {
		// reset between the two steps
		c.mu.Unlock()
		cancel()
		return nil
	}
	botID := c.ids.NewID()
	if err := c.store.Append(model.NewPlaceholder(botID, c.now())); err != nil {
		c.busy = false
		c.cancel = nil
		c.phase = PhaseErrored
		c.lastErr = err.Error()
		c.unlockAndNotify()
		cancel()
		return err
	}
	c.pendingID = botID
	c.phase = PhasePending
	c.unlockAndNotify()

	c.rec.ExchangeStarted()
	outcome := telemetry.OutcomeAbandoned
	defer func() {
		cancel()
		c.cleanup(gen, botID)
		c.rec.ExchangeFinished(outcome, c.now().Sub(start))
	}()

	c.threads.RecordExchange()
	req := Request{Message: text, ThreadID: c.threads.ThreadID()}
	c.log.Debug("CONVERSATION | exchange start reply=%s thread=%s text=%q", botID, session.ShortID(req.ThreadID), util.TruncateRunes(text, 40))

	outcome = c.run(exCtx, gen, botID, req, start)
	c.log.Debug("CONVERSATION | exchange end reply=%s outcome=%s", botID, outcome)
	return nil
}

// run performs the transport call and stream loop and returns the outcome.
func (c *Controller) run(ctx context.Context, gen uint64, botID string, req Request, start time.Time) string {
	body, err := c.transport.OpenStream(ctx, req)
	if err == nil && body == nil {
		err = ErrNoBody
	}
	if err != nil {
		return c.fail(gen, botID, err)
	}
	defer body.Close()

	reader := stream.NewReader(&countingReader{r: body, rec: c.rec}, c.chunkSize,
		stream.WithDecoderLogger(c.log))

	var reply strings.Builder
	gotContent := false
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c.fail(gen, botID, err)
		}
		c.rec.FrameDecoded(frame.Kind.String())

		switch frame.Kind {
		case stream.FrameContent:
			if !gotContent {
				gotContent = true
				c.rec.FirstContent(c.now().Sub(start))
			}
			reply.WriteString(frame.Text)
			if !c.apply(gen, botID, reply.String(), PhaseStreaming) {
				return telemetry.OutcomeAbandoned
			}
		case stream.FrameError:
			return c.fail(gen, botID, &RemoteError{Message: frame.Text})
		case stream.FrameDone:
			return c.finalize(gen, botID, reply.String())
		}
	}
	return c.finalize(gen, botID, reply.String())
}

// apply writes text onto the pending message if the exchange is still
// current. It reports false when the exchange was abandoned.
func (c *Controller) apply(gen uint64, botID, text string, phase Phase) bool {
	c.mu.Lock()
	if gen != c.generation || !c.store.Has(botID) {
		c.mu.Unlock()
		return false
	}
	if err := c.store.ReplaceText(botID, text); err != nil {
		c.mu.Unlock()
		c.log.Error("CONVERSATION | replace failed reply=%s err=%v", botID, err)
		return false
	}
	c.phase = phase
	c.unlockAndNotify()
	return true
}

func (c *Controller) finalize(gen uint64, botID, reply string) string {
	final := model.FinalText(reply)
	if !c.apply(gen, botID, final, PhaseFinalized) {
		return telemetry.OutcomeAbandoned
	}
	if final == model.FallbackText {
		return telemetry.OutcomeFallback
	}
	return telemetry.OutcomeFinalized
}

func (c *Controller) fail(gen uint64, botID string, err error) string {
	c.mu.Lock()
	if gen != c.generation || !c.store.Has(botID) {
		c.mu.Unlock()
		c.log.Debug("CONVERSATION | dropped failure of abandoned reply=%s err=%v", botID, err)
		return telemetry.OutcomeAbandoned
	}
	if rerr := c.store.ReplaceText(botID, failureText(err)); rerr != nil {
		c.mu.Unlock()
		c.log.Error("CONVERSATION | replace failed reply=%s err=%v", botID, rerr)
		return telemetry.OutcomeAbandoned
	}
	c.phase = PhaseErrored
	c.lastErr = err.Error()
	c.unlockAndNotify()

	c.log.Warn("CONVERSATION | exchange failed reply=%s err=%v", botID, err)
	return telemetry.OutcomeErrored
}

// cleanup clears the single-flight state on every exit path of Submit,
// unless a reset already did so for this exchange.
func (c *Controller) cleanup(gen uint64, botID string) {
	c.mu.Lock()
	if gen != c.generation || c.pendingID != botID {
		c.mu.Unlock()
		return
	}
	c.busy = false
	c.pendingID = ""
	c.cancel = nil
	if c.phase.Active() {
		// left without a terminal write, e.g. a panicking transport
		c.phase = PhaseErrored
		c.lastErr = errInterrupted.Error()
		_ = c.store.ReplaceText(botID, failureText(errInterrupted))
	}
	c.unlockAndNotify()
}

// =============================================================================
// NOTIFICATION
// =============================================================================

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Messages:   c.store.Messages(),
		Busy:       c.busy,
		PendingID:  c.pendingID,
		Phase:      c.phase,
		ThreadID:   c.threads.ThreadID(),
		Generation: c.generation,
		LastError:  c.lastErr,
	}
}

// unlockAndNotify must be called with c.mu held. It queues a snapshot of
// the state and releases c.mu. If no other call is delivering, this one
// drains the queue before returning.
func (c *Controller) unlockAndNotify() {
	c.queue = append(c.queue, c.snapshotLocked())
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true

	drained := false
	defer func() {
		if !drained {
			// a subscriber panicked; let the next mutation deliver
			c.mu.Lock()
			c.delivering = false
			c.mu.Unlock()
		}
	}()

	for len(c.queue) > 0 {
		snap := c.queue[0]
		c.queue[0] = Snapshot{}
		c.queue = c.queue[1:]
		c.mu.Unlock()
		c.deliver(snap)
		c.mu.Lock()
	}
	c.queue = nil
	c.delivering = false
	drained = true
	c.mu.Unlock()
}

func (c *Controller) deliver(snap Snapshot) {
	c.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// countingReader reports body bytes to the recorder as they are read.
type countingReader struct {
	r   io.Reader
	rec telemetry.Recorder
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.rec.BytesRead(n)
	return n, err
}
