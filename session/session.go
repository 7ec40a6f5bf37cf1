// Package session owns the lifecycle of a connection to one Ultimate64
// device: the identification handshake, the control command queue, the
// two UDP stream channels, and the publish/subscribe dispatch of decoded
// frames and state changes.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/sandlbn/ultimate64-manager/command"
	"github.com/sandlbn/ultimate64-manager/demux"
	"github.com/sandlbn/ultimate64-manager/media"
	"github.com/sandlbn/ultimate64-manager/rest"
)

// DefaultVideoPort is the local UDP port video is received on when the
// endpoint does not choose one. Audio defaults to the next port up.
const DefaultVideoPort = 11000

// Endpoint describes how to reach one device. Immutable once a session is
// established; a reconnect replaces it wholesale.
type Endpoint struct {
	Host      string // control host[:port]
	Password  string
	VideoPort int
	AudioPort int
}

func (e Endpoint) videoPort() int {
	if e.VideoPort > 0 {
		return e.VideoPort
	}
	return DefaultVideoPort
}

func (e Endpoint) audioPort() int {
	if e.AudioPort > 0 {
		return e.AudioPort
	}
	return e.videoPort() + 1
}

// Session is the single owner of connection state. All state transitions
// and reads go through its mutex; stream receiver goroutines and the
// command worker never mutate state directly.
type Session struct {
	log  *slog.Logger
	subs *subscribers

	stateCh chan stateChange

	mu       sync.Mutex
	state    State
	stateErr error // cause, set while state == StateError
	endpoint Endpoint
	client   *rest.Client
	queue    *command.Queue
	info     *rest.DeviceInfo
	channels map[media.StreamKind]*streamChannel
}

// New creates a disconnected Session. If log is nil, slog.Default() is
// used.
func New(log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		log:      log.With("component", "session"),
		subs:     newSubscribers(),
		stateCh:  make(chan stateChange, 64),
		channels: make(map[media.StreamKind]*streamChannel),
	}
	go s.notify()
	return s
}

// State returns the current state and, when in Error, its cause.
func (s *Session) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.stateErr
}

// Info returns the device identification captured during Connect, or nil.
func (s *Session) Info() *rest.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Client exposes the REST client for read-only queries (configs, version)
// that bypass the command queue. Nil when not connected.
func (s *Session) Client() *rest.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Subscription interface. Callbacks run on internal goroutines; each
// registration returns its unsubscribe function.

func (s *Session) OnVideoFrame(fn func(*media.VideoFrame)) func() {
	return s.subs.addVideo(fn)
}

func (s *Session) OnAudioSamples(fn func(*media.AudioBlock)) func() {
	return s.subs.addAudio(fn)
}

func (s *Session) OnSessionStateChanged(fn func(State, error)) func() {
	return s.subs.addState(fn)
}

func (s *Session) OnStreamEvent(fn func(StreamEvent)) func() {
	return s.subs.addEvents(fn)
}

// Connect performs the identification handshake against the endpoint.
// Legal from Disconnected and from Error (reconnect). On failure the
// session enters the Error state with the cause.
func (s *Session) Connect(ctx context.Context, ep Endpoint) (*rest.DeviceInfo, error) {
	s.mu.Lock()
	switch s.state {
	case StateDisconnected, StateError:
	default:
		s.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	client := rest.NewClient(ep.Host, ep.Password)
	s.endpoint = ep
	s.client = client
	s.stateErr = nil
	s.setStateLocked(StateConnecting, nil)
	s.mu.Unlock()

	info, err := client.Info(ctx)
	if err != nil {
		s.fail(fmt.Errorf("handshake: %w", err))
		return nil, err
	}

	s.mu.Lock()
	s.info = info
	s.queue = command.NewQueue(s.log, 0)
	s.setStateLocked(StateConnected, nil)
	s.mu.Unlock()

	s.log.Info("connected", "host", ep.Host, "product", info.Product, "firmware", info.FirmwareVersion)
	return info, nil
}

// Disconnect tears the session down from any state: device-side stream
// stops first, then the local sockets, then the command queue.
func (s *Session) Disconnect() {
	s.mu.Lock()
	channels := s.takeChannelsLocked()
	client := s.client
	queue := s.queue
	s.queue = nil
	s.client = nil
	s.info = nil
	s.setStateLocked(StateDisconnected, nil)
	s.mu.Unlock()

	// Best effort: the device keeps sending datagrams until told to
	// stop, even after the local socket is gone.
	if client != nil && len(channels) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), rest.DefaultTimeout)
		for kind := range channels {
			if err := client.StopStream(ctx, kind.String()); err != nil {
				s.log.Warn("device stream stop failed", "kind", kind.String(), "error", err)
			}
		}
		cancel()
	}

	for _, sc := range channels {
		sc.stop()
	}
	if queue != nil {
		queue.Close()
	}
	s.log.Info("disconnected")
}

// StartStream binds a local UDP socket for the stream kind and asks the
// device to send to it. Legal in Connected or Streaming.
func (s *Session) StartStream(ctx context.Context, kind media.StreamKind) error {
	s.mu.Lock()
	if s.state != StateConnected && s.state != StateStreaming {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if _, ok := s.channels[kind]; ok {
		s.mu.Unlock()
		return ErrStreamActive
	}

	port := s.endpoint.videoPort()
	if kind == media.StreamAudio {
		port = s.endpoint.audioPort()
	}

	sc, err := newStreamChannel(kind, port, s.subs, func(err error) {
		go s.fail(err)
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.channels[kind] = sc
	s.setStateLocked(StateStreaming, nil)
	queue := s.queue
	client := s.client
	host := s.endpoint.Host
	s.mu.Unlock()

	dest, err := localDestination(host, sc.port())
	if err == nil {
		err = s.run(ctx, queue, command.Command{
			Verb:       "stream-start-" + kind.String(),
			Idempotent: true,
			Fn: func(ctx context.Context) error {
				return client.StartStream(ctx, kind.String(), dest)
			},
		})
	}
	if err != nil {
		s.removeChannel(kind)
		return err
	}

	s.log.Info("stream started", "kind", kind.String(), "dest", dest)
	return nil
}

// StopStream asks the device to stop the stream and tears down the local
// channel. The receiver goroutine has exited by the time this returns.
func (s *Session) StopStream(ctx context.Context, kind media.StreamKind) error {
	s.mu.Lock()
	sc, ok := s.channels[kind]
	if !ok {
		s.mu.Unlock()
		return ErrStreamInactive
	}
	queue := s.queue
	client := s.client
	s.mu.Unlock()

	err := s.run(ctx, queue, command.Command{
		Verb:       "stream-stop-" + kind.String(),
		Idempotent: true,
		Fn: func(ctx context.Context) error {
			return client.StopStream(ctx, kind.String())
		},
	})

	s.removeChannelValue(kind, sc)
	s.log.Info("stream stopped", "kind", kind.String())
	return err
}

// StreamStats returns demux counters for an active stream channel.
func (s *Session) StreamStats(kind media.StreamKind) (demux.Stats, bool) {
	s.mu.Lock()
	sc, ok := s.channels[kind]
	s.mu.Unlock()
	if !ok {
		return demux.Stats{}, false
	}
	return sc.stats(), true
}

// Control commands. All are serialized through the command queue; the
// destructive ones first tear down active streams, since the device stops
// emitting them anyway.

func (s *Session) Pause(ctx context.Context) error {
	return s.control(ctx, "pause", true, func(ctx context.Context) error {
		return s.clientOrNil().Pause(ctx)
	})
}

func (s *Session) Resume(ctx context.Context) error {
	return s.control(ctx, "resume", true, func(ctx context.Context) error {
		return s.clientOrNil().Resume(ctx)
	})
}

func (s *Session) MenuButton(ctx context.Context) error {
	return s.control(ctx, "menu", true, func(ctx context.Context) error {
		return s.clientOrNil().MenuButton(ctx)
	})
}

func (s *Session) Reset(ctx context.Context) error {
	s.stopAllStreams()
	return s.control(ctx, "reset", false, func(ctx context.Context) error {
		return s.clientOrNil().Reset(ctx)
	})
}

func (s *Session) Reboot(ctx context.Context) error {
	s.stopAllStreams()
	return s.control(ctx, "reboot", false, func(ctx context.Context) error {
		return s.clientOrNil().Reboot(ctx)
	})
}

func (s *Session) PowerOff(ctx context.Context) error {
	s.stopAllStreams()
	return s.control(ctx, "poweroff", false, func(ctx context.Context) error {
		return s.clientOrNil().PowerOff(ctx)
	})
}

func (s *Session) control(ctx context.Context, verb string, idempotent bool, fn func(context.Context) error) error {
	s.mu.Lock()
	if s.state != StateConnected && s.state != StateStreaming {
		s.mu.Unlock()
		return ErrNotConnected
	}
	queue := s.queue
	s.mu.Unlock()

	return s.run(ctx, queue, command.Command{Verb: verb, Idempotent: idempotent, Fn: fn})
}

// run submits a command and blocks until it completes or ctx expires.
// A dispatched command cannot be cancelled; on ctx expiry its eventual
// result is simply ignored.
func (s *Session) run(ctx context.Context, queue *command.Queue, cmd command.Command) error {
	if queue == nil {
		return ErrNotConnected
	}
	h, err := queue.Submit(cmd)
	if err != nil {
		return err
	}
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		h.Cancel()
		return ctx.Err()
	}
}

func (s *Session) clientOrNil() *rest.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// fail moves the session to the Error state and tears down all streams.
// The process keeps running; only an explicit Connect leaves Error.
func (s *Session) fail(cause error) {
	s.mu.Lock()
	if s.state == StateError {
		s.mu.Unlock()
		return
	}
	channels := s.takeChannelsLocked()
	s.stateErr = &SessionError{Cause: cause}
	s.setStateLocked(StateError, s.stateErr)
	s.mu.Unlock()

	for _, sc := range channels {
		sc.stop()
	}
	s.log.Error("session entered error state", "cause", cause)
}

func (s *Session) stopAllStreams() {
	s.mu.Lock()
	channels := s.takeChannelsLocked()
	if s.state == StateStreaming {
		s.setStateLocked(StateConnected, nil)
	}
	s.mu.Unlock()

	for _, sc := range channels {
		sc.stop()
	}
}

func (s *Session) takeChannelsLocked() map[media.StreamKind]*streamChannel {
	channels := s.channels
	s.channels = make(map[media.StreamKind]*streamChannel)
	return channels
}

func (s *Session) removeChannel(kind media.StreamKind) {
	s.mu.Lock()
	sc := s.channels[kind]
	delete(s.channels, kind)
	if len(s.channels) == 0 && s.state == StateStreaming {
		s.setStateLocked(StateConnected, nil)
	}
	s.mu.Unlock()
	if sc != nil {
		sc.stop()
	}
}

// removeChannelValue removes the channel only if it is still the one the
// caller captured, guarding against a concurrent restart.
func (s *Session) removeChannelValue(kind media.StreamKind, sc *streamChannel) {
	s.mu.Lock()
	if cur, ok := s.channels[kind]; ok && cur == sc {
		delete(s.channels, kind)
	}
	if len(s.channels) == 0 && s.state == StateStreaming {
		s.setStateLocked(StateConnected, nil)
	}
	s.mu.Unlock()
	sc.stop()
}

// setStateLocked transitions the state and hands the change to the
// notifier goroutine. Enqueueing under s.mu keeps notifications in
// transition order; delivering off the lock lets subscribers call State()
// freely from their callbacks.
func (s *Session) setStateLocked(st State, err error) {
	if s.state == st {
		return
	}
	s.state = st
	s.stateCh <- stateChange{state: st, err: err}
}

type stateChange struct {
	state State
	err   error
}

func (s *Session) notify() {
	for ch := range s.stateCh {
		s.subs.publishState(ch.state, ch.err)
	}
}

// localDestination determines the local IP the device should stream to,
// by opening a throwaway UDP "connection" toward the device and reading
// the chosen source address.
func localDestination(deviceHost string, port int) (string, error) {
	host := deviceHost
	if h, _, err := net.SplitHostPort(deviceHost); err == nil {
		host = h
	}
	conn, err := net.Dial("udp4", net.JoinHostPort(host, "80"))
	if err != nil {
		return "", err
	}
	defer conn.Close()
	local := conn.LocalAddr().(*net.UDPAddr)
	return fmt.Sprintf("%s:%d", local.IP.String(), port), nil
}
