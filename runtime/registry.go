// Package runtime hosts the connection registry: the single coordinator
// owning room membership and message delivery for the whole process.
// It contains no wire or storage logic, only membership state and fan-out.
package runtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"chat-relay/contract"
	"chat-relay/errors"

	"github.com/samber/lo"
)

type Set map[uint64]struct{}

// sessionRecord is the registry's view of one live connection.
// The outbound link is only read here, never mutated; everything else
// about the connection belongs to its session.
type sessionRecord struct {
	id          uint64
	displayName string
	room        string
	out         contract.Outbound
}

// Registry serializes every membership mutation and broadcast through a
// single mailbox consumed by Run. The two maps always agree: every id in
// a room's member set has a session record whose room field names that
// room, and vice versa. Callers never touch the maps directly.
type Registry struct {
	log         *slog.Logger
	defaultRoom string
	mailbox     chan request
	done        chan struct{}
	closeOnce   sync.Once

	// Owned exclusively by the Run goroutine.
	nextID      uint64
	sessions    map[uint64]*sessionRecord
	roomMembers map[string]Set
}

func NewRegistry(log *slog.Logger, defaultRoom string, bufferSize int) *Registry {
	r := &Registry{
		log:         log,
		defaultRoom: defaultRoom,
		mailbox:     make(chan request, bufferSize),
		done:        make(chan struct{}),
		sessions:    make(map[uint64]*sessionRecord),
		roomMembers: make(map[string]Set),
	}
	// The default room is pinned: it exists even when empty, since every
	// new session lands there and Leave always targets it.
	r.roomMembers[defaultRoom] = make(Set)
	return r
}

// request is one serialized unit of registry work.
type request interface {
	apply(r *Registry)
}

// Run consumes the mailbox strictly in arrival order. It holds the only
// reference allowed to mutate the membership maps and never blocks on
// external I/O, so one slow connection cannot stall the others.
func (r *Registry) Run(ctx context.Context) error {
	r.log.Info("Starting connection registry", "default_room", r.defaultRoom)
	defer func() {
		if ctx.Err() != nil {
			r.closeOnce.Do(func() { close(r.done) })
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Stopping connection registry")
			return ctx.Err()
		case req := <-r.mailbox:
			req.apply(r)
		}
	}
}

func (r *Registry) submit(req request) error {
	select {
	case r.mailbox <- req:
		return nil
	case <-r.done:
		return errors.ErrRegistryClosed
	}
}

type connectRequest struct {
	out   contract.Outbound
	reply chan uint64
}

func (c connectRequest) apply(r *Registry) {
	r.nextID++
	rec := &sessionRecord{id: r.nextID, room: r.defaultRoom, out: c.out}
	r.sessions[rec.id] = rec
	r.addMember(r.defaultRoom, rec.id)
	r.log.Info("Session connected", "session_id", rec.id, "room", rec.room)
	c.reply <- rec.id
}

// Connect registers a new connection, places it in the default room and
// returns its process-unique id. Ids are monotonic and never reused while
// the registry is running. The only failure mode is a stopped registry.
func (r *Registry) Connect(out contract.Outbound) (uint64, error) {
	reply := make(chan uint64, 1)
	if err := r.submit(connectRequest{out: out, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case id := <-reply:
		return id, nil
	case <-r.done:
		return 0, errors.ErrRegistryClosed
	}
}

type disconnectRequest struct {
	id    uint64
	reply chan struct{}
}

func (d disconnectRequest) apply(r *Registry) {
	defer close(d.reply)
	rec, ok := r.sessions[d.id]
	if !ok {
		// Idempotent: double disconnects and unknown ids are no-ops.
		return
	}
	r.removeMember(rec.room, rec.id)
	delete(r.sessions, rec.id)
	r.log.Info("Session disconnected", "session_id", rec.id, "room", rec.room)
}

// Disconnect removes the session from its current room and discards its
// record. It returns once the removal has been processed, so a broadcast
// submitted afterwards can no longer reach the session.
func (r *Registry) Disconnect(id uint64) {
	reply := make(chan struct{})
	if err := r.submit(disconnectRequest{id: id, reply: reply}); err != nil {
		return
	}
	select {
	case <-reply:
	case <-r.done:
	}
}

type joinRequest struct {
	id    uint64
	room  string
	reply chan error
}

func (j joinRequest) apply(r *Registry) {
	rec, ok := r.sessions[j.id]
	if !ok {
		j.reply <- errors.ErrSessionUnknown
		return
	}
	if j.room == "" {
		j.reply <- errors.ErrEmptyRoomName
		return
	}
	if rec.room == j.room {
		// Already a member: acknowledged no-op.
		j.reply <- nil
		return
	}

	// Leave-then-join happens inside one request, so no observer can see
	// the session in zero or two rooms.
	r.removeMember(rec.room, rec.id)
	r.addMember(j.room, rec.id)
	rec.room = j.room
	r.log.Info("Session moved", "session_id", rec.id, "room", rec.room)
	j.reply <- nil
}

// Join atomically moves the session into roomName, creating the room on
// first use. Joining the current room again is acknowledged without any
// membership change.
func (r *Registry) Join(id uint64, room string) error {
	reply := make(chan error, 1)
	if err := r.submit(joinRequest{id: id, room: room, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return errors.ErrRegistryClosed
	}
}

// Leave returns the session to the default room. A session is never a
// member of zero rooms.
func (r *Registry) Leave(id uint64) error {
	return r.Join(id, r.defaultRoom)
}

type setNameRequest struct {
	id    uint64
	name  string
	reply chan error
}

func (s setNameRequest) apply(r *Registry) {
	rec, ok := r.sessions[s.id]
	if !ok {
		s.reply <- errors.ErrSessionUnknown
		return
	}
	rec.displayName = s.name
	s.reply <- nil
}

// SetDisplayName records the name announced by the client.
func (r *Registry) SetDisplayName(id uint64, name string) error {
	reply := make(chan error, 1)
	if err := r.submit(setNameRequest{id: id, name: name, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return errors.ErrRegistryClosed
	}
}

type broadcastRequest struct {
	room      string
	payload   []byte
	excludeID uint64
}

func (b broadcastRequest) apply(r *Registry) {
	members, ok := r.roomMembers[b.room]
	if !ok {
		return
	}
	for id := range members {
		if id == b.excludeID {
			continue
		}
		rec := r.sessions[id]
		if err := rec.out.Deliver(b.payload); err != nil {
			// A broken member never aborts delivery to the rest of the
			// room; its own session lifecycle will reap it.
			r.log.Debug("Delivery skipped for unreachable session",
				"session_id", id, "room", b.room, "error", err)
		}
	}
}

// Broadcast delivers payload to every current member of the room except
// the excluded sender (0 excludes nobody). Per-member delivery failures
// are swallowed here by design of the error taxonomy.
func (r *Registry) Broadcast(room string, payload []byte, excludeID uint64) {
	_ = r.submit(broadcastRequest{room: room, payload: payload, excludeID: excludeID})
}

type listRoomsRequest struct {
	reply chan []string
}

func (l listRoomsRequest) apply(r *Registry) {
	names := lo.Keys(r.roomMembers)
	sort.Strings(names)
	l.reply <- names
}

// ListRooms reports the rooms currently known to the registry, sorted.
// Empty rooms are deleted eagerly, so only the pinned default room may
// appear with no members.
func (r *Registry) ListRooms() []string {
	reply := make(chan []string, 1)
	if err := r.submit(listRoomsRequest{reply: reply}); err != nil {
		return nil
	}
	select {
	case names := <-reply:
		return names
	case <-r.done:
		return nil
	}
}

type roomMembersRequest struct {
	room  string
	reply chan []uint64
}

func (m roomMembersRequest) apply(r *Registry) {
	members, ok := r.roomMembers[m.room]
	if !ok {
		m.reply <- nil
		return
	}
	m.reply <- lo.Keys(members)
}

// RoomMembers returns the ids of the sessions currently in the room,
// or nil when the room does not exist.
func (r *Registry) RoomMembers(room string) []uint64 {
	reply := make(chan []uint64, 1)
	if err := r.submit(roomMembersRequest{room: room, reply: reply}); err != nil {
		return nil
	}
	select {
	case ids := <-reply:
		return ids
	case <-r.done:
		return nil
	}
}

func (r *Registry) addMember(room string, id uint64) {
	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(Set)
	}
	r.roomMembers[room][id] = struct{}{}
}

func (r *Registry) removeMember(room string, id uint64) {
	members, ok := r.roomMembers[room]
	if !ok {
		return
	}
	delete(members, id)

	// If no one is left in the room, remove the room entry entirely.
	// The default room stays: every Leave and Connect targets it.
	if len(members) == 0 && room != r.defaultRoom {
		delete(r.roomMembers, room)
	}
}
