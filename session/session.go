// Package session bridges one transport connection to the connection
// registry: it decodes inbound frames into registry calls, serializes
// registry deliveries back to the wire, and polices liveness.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/samber/lo"
)

// Conn is the message-framed transport a session reads and writes.
// ReadFrame blocks until the next inbound text frame; Close unblocks it.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	WritePing() error
	Close() error
}

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

type Options struct {
	DefaultRoom       string
	DisplayName       string
	OutboundBuffer    int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// Session is the server-side state bound to one live connection.
// Two goroutines serve it: the read loop (transport frames in, registry
// calls out) and the write pump (sole writer to the transport, also the
// heartbeat clock). Local state below the mutex line is owned by the
// read loop and never touched by another goroutine.
type Session struct {
	log      *slog.Logger
	registry contract.IRegistry
	conn     Conn
	out      *Outbound
	monitor  *HeartbeatMonitor

	id          uint64
	defaultRoom string

	state atomic.Int32

	// Owned by the read loop.
	room        string
	displayName string

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

func New(log *slog.Logger, registry contract.IRegistry, conn Conn, opts Options) *Session {
	s := &Session{
		log:         log,
		registry:    registry,
		conn:        conn,
		out:         NewOutbound(opts.OutboundBuffer),
		monitor:     NewHeartbeatMonitor(opts.HeartbeatInterval, opts.HeartbeatTimeout),
		defaultRoom: opts.DefaultRoom,
		room:        opts.DefaultRoom,
		displayName: opts.DisplayName,
		closed:      make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Touch records a liveness signal from the peer. Wired to the
// transport's pong handler; any inbound frame counts as well.
func (s *Session) Touch() {
	s.monitor.Touch(time.Now())
}

// Start registers the session with the registry, moves it to Active and
// spawns the read loop and write pump. The session lands in the default
// room and receives a joined acknowledgment for it.
func (s *Session) Start() error {
	id, err := s.registry.Connect(s.out)
	if err != nil {
		return fmt.Errorf("registering session: %w", err)
	}
	s.id = id
	s.monitor.Touch(time.Now())
	s.state.Store(int32(StateActive))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.readLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.writePump()
	}()

	s.ackJoined(s.defaultRoom)
	return nil
}

// Wait blocks until both pumps have exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) readLoop() {
	for {
		payload, err := s.conn.ReadFrame()
		if err != nil {
			s.close("transport read failed", err)
			return
		}
		s.Touch()

		cmd, err := domain.DecodeInbound(payload)
		if err != nil {
			s.close("undecodable frame", err)
			return
		}
		s.dispatch(cmd)
	}
}

// dispatch handles one decoded command. Exhaustive over the closed
// Inbound set; only UnrecognizedCommand is a recoverable protocol error.
func (s *Session) dispatch(cmd domain.Inbound) {
	switch c := cmd.(type) {
	case domain.JoinCommand:
		s.join(c.Room)
	case domain.MessageCommand:
		s.broadcast(c.Text)
	case domain.LeaveCommand:
		s.leave()
	case domain.NameCommand:
		s.setName(c.Name)
	case domain.UnrecognizedCommand:
		s.sendError(fmt.Sprintf("unrecognized command type %q", c.Type))
	}
}

func (s *Session) join(room string) {
	if err := s.registry.Join(s.id, room); err != nil {
		s.sendError(err.Error())
		return
	}
	s.room = room
	s.ackJoined(room)
}

func (s *Session) leave() {
	if err := s.registry.Leave(s.id); err != nil {
		s.sendError(err.Error())
		return
	}
	s.room = s.defaultRoom
	s.ackJoined(s.defaultRoom)
}

func (s *Session) setName(name string) {
	if err := s.registry.SetDisplayName(s.id, name); err != nil {
		s.sendError(err.Error())
		return
	}
	s.displayName = name
}

func (s *Session) broadcast(text string) {
	var from *string
	if s.displayName != "" {
		from = lo.ToPtr(s.displayName)
	}

	payload, err := domain.EncodeFrame(domain.NewMessageFrame(from, s.room, text))
	if err != nil {
		s.sendError("message could not be serialized")
		return
	}
	s.registry.Broadcast(s.room, payload, s.id)
}

func (s *Session) ackJoined(room string) {
	s.send(domain.NewJoinedFrame(room))
}

func (s *Session) sendError(reason string) {
	s.send(domain.NewErrorFrame(reason))
}

// send queues a frame on the session's own outbound link. Best effort:
// if the link is already dead the session is on its way out anyway.
func (s *Session) send(frame any) {
	payload, err := domain.EncodeFrame(frame)
	if err != nil {
		s.log.Error("Failed to encode outbound frame", "session_id", s.id, "error", err)
		return
	}
	if err := s.out.Deliver(payload); err != nil {
		s.log.Debug("Outbound frame dropped", "session_id", s.id, "error", err)
	}
}

// writePump is the sole writer to the transport. It drains the outbound
// queue in delivery order and doubles as the heartbeat clock: every tick
// it checks for expiry, then probes the peer with a ping.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.monitor.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case payload := <-s.out.ch:
			if err := s.conn.WriteFrame(payload); err != nil {
				s.close("transport write failed", err)
				return
			}
		case <-ticker.C:
			if s.monitor.Expired(time.Now()) {
				s.close("heartbeat timeout", errors.ErrHeartbeatTimeout)
				return
			}
			if err := s.conn.WritePing(); err != nil {
				s.close("ping write failed", err)
				return
			}
		}
	}
}

// close drives Active -> Closing -> Closed exactly once, whichever pump
// or timer got there first. Deregistration is synchronous: once it
// returns, no subsequent broadcast can reach this session.
func (s *Session) close(reason string, err error) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.log.Info("Closing session",
			"session_id", s.id, "reason", reason, "error", err)

		s.out.Close()
		close(s.closed)
		s.registry.Disconnect(s.id)
		_ = s.conn.Close()

		s.state.Store(int32(StateClosed))
	})
}
