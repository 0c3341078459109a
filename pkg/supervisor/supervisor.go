package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tether-protocol/tether-go/pkg/link"
	"github.com/tether-protocol/tether-go/pkg/log"
	"github.com/tether-protocol/tether-go/pkg/relay"
	"github.com/tether-protocol/tether-go/pkg/statevar"
)

// Supervisor errors.
var (
	// ErrCancelled indicates the supervisor has been closed and
	// cannot be started again.
	ErrCancelled = errors.New("supervisor cancelled")
)

// DefaultDisconnectTimeout bounds link teardown when none is
// configured.
const DefaultDisconnectTimeout = 5 * time.Second

// Config holds supervisor configuration. Peer is required; everything
// else has a usable zero value.
type Config struct {
	// Peer is the identity of the peer to supervise.
	Peer link.PeerID

	// DisconnectTimeout caps how long link teardown may take before
	// the supervisor abandons it. Defaults to
	// DefaultDisconnectTimeout.
	DisconnectTimeout time.Duration

	// OnEvent, if set, receives a lifecycle event per attempt
	// outcome. Called from the supervisor loop; keep it fast.
	OnEvent func(Event)

	// Backoff, if set, paces retries between attempts. Nil retries
	// immediately.
	Backoff *Backoff

	// RelayBufferSize is the per-subscriber notification buffer
	// capacity. Defaults to relay.DefaultBufferSize.
	RelayBufferSize int

	// EventLogger receives lifecycle log events. Nil disables
	// logging.
	EventLogger log.Logger
}

// Supervisor keeps a link to one peer alive. Create with New.
type Supervisor struct {
	connector link.Connector
	cfg       Config

	// id correlates this supervisor's log events (UUID).
	id string

	status *statevar.Var[Status]
	relay  *relay.Relay

	// current is the held link. Written only by the attempt loop;
	// cleared before PhaseDisconnecting is published so pass-through
	// callers fail fast during teardown.
	current atomic.Pointer[heldLink]

	// attempts counts completed attempt iterations. The first
	// completed iteration is 1; never reset.
	attempts atomic.Uint64

	// running guards against concurrent loops; only the Start call
	// that flips it spawns the loop.
	running atomic.Bool

	// lifeCtx spans the supervisor's whole lifetime; cancelled once,
	// by Close.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	// lifeMu serializes Start and Close decisions.
	lifeMu     sync.Mutex
	closed     bool
	closeCause error

	// attemptMu guards the in-flight attempt's cancellation handle.
	attemptMu     sync.Mutex
	attemptCancel context.CancelFunc
	attemptDone   chan struct{}

	// wg tracks the loop goroutine.
	wg sync.WaitGroup
}

// heldLink wraps the held link for atomic publication.
type heldLink struct {
	l link.Link
}

// New creates a supervisor for the peer in cfg using the given
// connector. The supervisor is idle until Start is called.
func New(connector link.Connector, cfg Config) *Supervisor {
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if cfg.EventLogger == nil {
		cfg.EventLogger = log.NoopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		connector:  connector,
		cfg:        cfg,
		id:         uuid.NewString(),
		status:     statevar.New(Status{Phase: PhaseDisconnected}),
		relay:      relay.New(cfg.RelayBufferSize),
		lifeCtx:    ctx,
		lifeCancel: cancel,
	}
}

// ID returns the supervisor's correlation ID.
func (s *Supervisor) ID() string { return s.id }

// Peer returns the supervised peer identity.
func (s *Supervisor) Peer() link.PeerID { return s.cfg.Peer }

// Status returns the current lifecycle status.
func (s *Supervisor) Status() Status { return s.status.Get() }

// WatchStatus subscribes to lifecycle status changes. The channel
// yields the current status immediately and the latest status after
// each change (conflating), and is closed when ctx is cancelled.
func (s *Supervisor) WatchStatus(ctx context.Context) <-chan Status {
	return s.status.Watch(ctx)
}

// Subscribe returns a subscription to the notification relay. The
// subscription survives reconnections and is closed when the
// supervisor is closed.
func (s *Supervisor) Subscribe() *relay.Subscription {
	return s.relay.Subscribe()
}

// AttemptCount returns the number of completed attempt iterations.
func (s *Supervisor) AttemptCount() uint64 { return s.attempts.Load() }

// Running reports whether the attempt loop is active.
func (s *Supervisor) Running() bool { return s.running.Load() }

// Start begins the attempt loop. It returns (true, nil) when this
// call started the loop, (false, nil) when the loop is already
// running, and (false, ErrCancelled) after Close.
func (s *Supervisor) Start() (bool, error) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.closed {
		return false, ErrCancelled
	}
	if !s.running.CompareAndSwap(false, true) {
		return false, nil
	}

	s.wg.Add(1)
	go s.run()
	return true, nil
}

// Stop cancels the attempt currently in flight and blocks until its
// teardown has completed. The loop itself keeps running and will
// start a fresh attempt; use Close to shut the supervisor down.
func (s *Supervisor) Stop() {
	s.attemptMu.Lock()
	cancel, done := s.attemptCancel, s.attemptDone
	s.attemptMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close shuts the supervisor down permanently: the loop observes
// cancellation at its next suspension point, tears any held link down
// within the disconnect timeout, and the status moves to the terminal
// PhaseCancelled. cause may be nil for ordinary shutdown. Subsequent
// calls are no-ops.
//
// Close must not be called from the OnEvent callback.
func (s *Supervisor) Close(cause error) {
	s.lifeMu.Lock()
	if s.closed {
		s.lifeMu.Unlock()
		return
	}
	s.closed = true
	s.closeCause = cause
	s.lifeCancel()
	s.lifeMu.Unlock()

	s.wg.Wait()

	s.publish(PhaseCancelled, cause, "supervisor closed")
	s.relay.Close()
}

// run is the attempt loop. Strictly sequential: at most one attempt
// is in flight at a time.
func (s *Supervisor) run() {
	defer s.wg.Done()
	defer s.running.Store(false)

	for s.lifeCtx.Err() == nil {
		if fatal := s.attempt(); fatal != nil {
			// Loop-fatal failure (rejection or an error escaping the
			// forwarding task): the loop exits without cancelling the
			// supervisor. Start may be called again.
			s.logError(fatal, "attempt loop terminated")
			return
		}

		if s.cfg.Backoff != nil && s.lifeCtx.Err() == nil {
			select {
			case <-s.lifeCtx.Done():
			case <-time.After(s.cfg.Backoff.Next()):
			}
		}
	}
}

// attempt runs one acquire → hold → teardown iteration. It returns a
// non-nil error only for loop-fatal failures.
func (s *Supervisor) attempt() error {
	ctx, cancel := context.WithCancel(s.lifeCtx)
	done := make(chan struct{})

	s.attemptMu.Lock()
	s.attemptCancel = cancel
	s.attemptDone = done
	s.attemptMu.Unlock()

	defer func() {
		cancel()
		s.attemptMu.Lock()
		s.attemptCancel = nil
		s.attemptDone = nil
		s.attemptMu.Unlock()
		// Closed after all of this attempt's publishes, so Stop
		// returns only once teardown is observable.
		close(done)
	}()

	s.publish(PhaseConnecting, nil, "")

	l, err := s.connector.Connect(ctx, s.cfg.Peer)
	if err != nil {
		if s.lifeCtx.Err() != nil {
			// Supervisor closed mid-connect: no attempt accounting,
			// Close publishes the terminal phase.
			return nil
		}
		s.publish(PhaseDisconnected, err, "connect failed")
		s.finishAttempt(false, err)
		if link.IsRejected(err) {
			return err
		}
		return nil
	}

	if s.cfg.Backoff != nil {
		s.cfg.Backoff.Reset()
	}

	// Forward notifications into the relay before anyone can observe
	// CONNECTED, so early notifications are not lost.
	forwardDone := make(chan error, 1)
	go s.forward(l, forwardDone)

	s.current.Store(&heldLink{l: l})
	s.publish(PhaseConnected, nil, "")
	s.emit(ConnectedEvent{Link: l})

	var fatal error
	select {
	case fatal = <-forwardDone:
		// Link loss (nil) or a failure escaping the forwarding task.
	case <-ctx.Done():
		// Stop or Close.
	}

	// Clear the held link before publishing DISCONNECTING so
	// pass-through callers fail fast during teardown.
	s.current.Store(nil)
	s.publish(PhaseDisconnecting, nil, "")

	s.teardown(l)

	if fatal != nil {
		s.publish(PhaseDisconnected, fatal, "forwarding failed")
		s.finishAttempt(true, fatal)
		return fatal
	}

	s.publish(PhaseDisconnected, nil, "")
	s.finishAttempt(true, nil)
	return nil
}

// forward pumps the link's notification stream into the relay. It
// reports nil when the stream closes (the link-loss signal) and an
// error if forwarding itself fails.
func (s *Supervisor) forward(l link.Link, done chan<- error) {
	defer func() {
		if r := recover(); r != nil {
			done <- fmt.Errorf("notification forwarding: %v", r)
		}
	}()

	for n := range l.Notifications() {
		s.relay.Publish(n)
		s.logNotification(n)
	}
	done <- nil
}

// teardown runs the bounded disconnect. It is shielded from the
// cancellation that triggered it: the link gets the full disconnect
// timeout even when the attempt or the supervisor was cancelled. A
// link that never completes is abandoned after the timeout.
func (s *Supervisor) teardown(l link.Link) {
	ctx, cancel := context.WithTimeout(
		context.WithoutCancel(s.lifeCtx), s.cfg.DisconnectTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- l.Disconnect(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logError(err, "disconnect")
		}
	case <-ctx.Done():
		// The link ignored the deadline; abandon it rather than hang.
		s.logError(ctx.Err(), "disconnect abandoned after timeout")
	}
}

// finishAttempt emits the per-iteration disconnect event and advances
// the attempt counter.
func (s *Supervisor) finishAttempt(wasConnected bool, cause error) {
	n := s.attempts.Add(1)

	failure := ""
	if cause != nil {
		failure = cause.Error()
	}
	s.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SupervisorID: s.id,
		PeerID:       s.cfg.Peer.String(),
		Category:     log.CategoryAttempt,
		Attempt: &log.AttemptEvent{
			Number:    n,
			Connected: wasConnected,
			Failure:   failure,
		},
	})

	s.emit(DisconnectedEvent{WasConnected: wasConnected, Attempt: n})
}

// held returns the currently held link, or ErrNotReady.
func (s *Supervisor) held() (link.Link, error) {
	h := s.current.Load()
	if h == nil {
		return nil, link.ErrNotReady
	}
	return h.l, nil
}

// DiscoverTopology forwards to the held link.
func (s *Supervisor) DiscoverTopology(ctx context.Context) (*link.Topology, error) {
	l, err := s.held()
	if err != nil {
		return nil, err
	}
	return l.DiscoverTopology(ctx)
}

// Read forwards to the held link.
func (s *Supervisor) Read(ctx context.Context, h link.Handle) ([]byte, error) {
	l, err := s.held()
	if err != nil {
		return nil, err
	}
	return l.Read(ctx, h)
}

// Write forwards to the held link.
func (s *Supervisor) Write(ctx context.Context, h link.Handle, data []byte, mode link.WriteMode) error {
	l, err := s.held()
	if err != nil {
		return err
	}
	return l.Write(ctx, h, data, mode)
}

// SetNotify forwards to the held link.
func (s *Supervisor) SetNotify(ctx context.Context, h link.Handle, enabled bool) (bool, error) {
	l, err := s.held()
	if err != nil {
		return false, err
	}
	return l.SetNotify(ctx, h, enabled)
}

// RequestParameterChange forwards to the held link.
func (s *Supervisor) RequestParameterChange(ctx context.Context, p link.Params) (link.Params, error) {
	l, err := s.held()
	if err != nil {
		return link.Params{}, err
	}
	return l.RequestParameterChange(ctx, p)
}

// ReadSignalStrength forwards to the held link.
func (s *Supervisor) ReadSignalStrength(ctx context.Context) (int, error) {
	l, err := s.held()
	if err != nil {
		return 0, err
	}
	return l.ReadSignalStrength(ctx)
}

// publish moves the lifecycle status to a new phase and logs the
// transition.
func (s *Supervisor) publish(phase Phase, cause error, reason string) {
	old := s.status.Get()
	s.status.Set(Status{Phase: phase, Err: cause})

	if reason == "" && cause != nil {
		reason = cause.Error()
	}
	s.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SupervisorID: s.id,
		PeerID:       s.cfg.Peer.String(),
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: old.Phase.String(),
			NewState: phase.String(),
			Reason:   reason,
		},
	})
}

// emit delivers a lifecycle event to the configured callback.
func (s *Supervisor) emit(e Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(e)
	}
}

// logNotification records a relayed notification.
func (s *Supervisor) logNotification(n link.Notification) {
	s.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SupervisorID: s.id,
		PeerID:       s.cfg.Peer.String(),
		Category:     log.CategoryNotification,
		Notification: &log.NotificationEvent{
			Handle: uint16(n.Handle),
			Size:   len(n.Payload),
		},
	})
}

// logError records an error event.
func (s *Supervisor) logError(err error, context string) {
	s.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SupervisorID: s.id,
		PeerID:       s.cfg.Peer.String(),
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Message: err.Error(),
			Context: context,
		},
	})
}
