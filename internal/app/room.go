package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/dkeye/voxbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// DropHandler is told about sessions whose send buffer overflowed during an emission.
// It runs after the room lock is released.
type DropHandler func(room *Room, sid core.SessionID, conn core.SignalConnection)

type RoomOptions struct {
	MaxHistory         int
	MaxMessageLength   int
	GracePeriod        time.Duration
	RequireClientToken bool
	HostFailover       HostFailover
	SystemMessages     bool
	OnDrop             DropHandler
	Now                func() time.Time
}

type JoinRequest struct {
	Username       string
	SpeakLanguage  string
	ListenLanguage string
	IsHost         bool
	ClientToken    string
}

type JoinResult struct {
	Snapshot domain.RoomSnapshot
	// Rejoined is set when a disconnected entry was reactivated.
	Rejoined bool
	// PreviousID is the session id the reactivated entry was bound to.
	PreviousID core.SessionID
	// Repeat is set when the session was already connected to the room.
	Repeat bool
}

type member struct {
	p              domain.Participant
	conn           core.SignalConnection
	clientToken    string
	disconnectedAt time.Time
}

func (m *member) connected() bool { return m.p.State == domain.Connected && m.conn != nil }

// Listener is one audio recipient.
type Listener struct {
	SID      core.SessionID
	Language string
}

// AudioPlan is the fan-out computed for one audio frame.
type AudioPlan struct {
	SpeakerName    string
	SourceLanguage string
	Listeners      []Listener
}

// Room is one meeting. Every mutation and the events it produces happen under mu,
// so no session can observe state between a change and its broadcast.
type Room struct {
	mu         sync.Mutex
	meta       domain.Room
	opts       RoomOptions
	state      domain.RoomState
	endedAt    time.Time
	emptySince time.Time
	members    map[core.SessionID]*member
	order      []core.SessionID
	hostSID    core.SessionID
	history    *History

	dropped []droppedConn
}

type droppedConn struct {
	sid  core.SessionID
	conn core.SignalConnection
}

func NewRoom(meta domain.Room, opts RoomOptions) *Room {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HostFailover == "" {
		opts.HostFailover = HostKeep
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = opts.Now()
	}
	return &Room{
		meta:       meta,
		opts:       opts,
		state:      domain.RoomActive,
		emptySince: meta.CreatedAt,
		members:    make(map[core.SessionID]*member),
		history:    NewHistory(opts.MaxHistory),
	}
}

func (r *Room) Code() domain.RoomCode { return r.meta.Code }
func (r *Room) Meta() domain.Room     { return r.meta }

// do runs fn under the room lock and hands overflowed sessions to OnDrop afterwards.
func (r *Room) do(fn func()) {
	r.mu.Lock()
	fn()
	dropped := r.dropped
	r.dropped = nil
	r.mu.Unlock()

	if r.opts.OnDrop == nil {
		return
	}
	for _, d := range dropped {
		r.opts.OnDrop(r, d.sid, d.conn)
	}
}

func (r *Room) Join(sid core.SessionID, conn core.SignalConnection, req JoinRequest) (res JoinResult, err error) {
	r.do(func() { res, err = r.joinLocked(sid, conn, req) })
	return res, err
}

func (r *Room) joinLocked(sid core.SessionID, conn core.SignalConnection, req JoinRequest) (JoinResult, error) {
	if r.state == domain.RoomEnded {
		return JoinResult{}, ErrRoomEnded
	}
	if !r.meta.Supports(req.ListenLanguage) {
		return JoinResult{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.ListenLanguage)
	}
	now := r.opts.Now()

	if m, ok := r.members[sid]; ok && m.p.State == domain.Connected {
		m.conn = conn
		snap := r.snapshotLocked()
		r.emitTo(sid, core.EvRoomJoined, snap)
		return JoinResult{Snapshot: snap, Repeat: true}, nil
	}

	res := JoinResult{}
	m := r.findRejoinLocked(req, now)
	// This session left earlier under another identity; drop that stale entry.
	if stale, ok := r.members[sid]; ok && stale != m {
		delete(r.members, sid)
		r.dropOrderLocked(sid)
		if r.hostSID == sid {
			r.hostSID = ""
		}
	}
	if m != nil {
		oldSID := core.SessionID(m.p.ID)
		delete(r.members, oldSID)
		for i, s := range r.order {
			if s == oldSID {
				r.order[i] = sid
			}
		}
		if r.hostSID == oldSID {
			r.hostSID = sid
		}
		m.p.ID = string(sid)
		m.p.State = domain.Connected
		m.conn = conn
		m.disconnectedAt = time.Time{}
		if req.ClientToken != "" {
			m.clientToken = req.ClientToken
		}
		r.members[sid] = m
		res.Rejoined = true
		res.PreviousID = oldSID
	} else {
		m = &member{
			p: domain.Participant{
				ID:             string(sid),
				Username:       req.Username,
				SpeakLanguage:  req.SpeakLanguage,
				ListenLanguage: req.ListenLanguage,
				State:          domain.Connected,
				JoinedAt:       now,
			},
			conn:        conn,
			clientToken: req.ClientToken,
		}
		r.members[sid] = m
		r.order = append(r.order, sid)
	}
	if !m.p.IsHost && req.IsHost && r.hostSID == "" {
		m.p.IsHost = true
		r.hostSID = sid
	}
	r.emptySince = time.Time{}

	snap := r.snapshotLocked()
	res.Snapshot = snap
	r.emitTo(sid, core.EvRoomJoined, snap)
	r.broadcast(sid, core.EvUserJoined, m.p)
	if !res.Rejoined {
		r.systemLocked(fmt.Sprintf("%s joined the meeting", m.p.Username), now)
	} else {
		r.systemLocked(fmt.Sprintf("%s reconnected", m.p.Username), now)
	}

	log.Info().
		Str("module", "app.room").
		Str("room", string(r.meta.Code)).
		Str("sid", string(sid)).
		Bool("rejoined", res.Rejoined).
		Bool("host", m.p.IsHost).
		Msg("member joined")
	return res, nil
}

// findRejoinLocked picks the newest disconnected entry with the same identity tuple
// that is still inside its grace period.
func (r *Room) findRejoinLocked(req JoinRequest, now time.Time) *member {
	var best *member
	for _, m := range r.members {
		if m.p.State != domain.Disconnected {
			continue
		}
		if !m.p.SameIdentity(req.Username, req.SpeakLanguage, req.ListenLanguage) {
			continue
		}
		if r.opts.GracePeriod > 0 && now.Sub(m.disconnectedAt) > r.opts.GracePeriod {
			continue
		}
		if r.opts.RequireClientToken && (req.ClientToken == "" || m.clientToken != req.ClientToken) {
			continue
		}
		if best == nil || m.p.JoinedAt.After(best.p.JoinedAt) {
			best = m
		}
	}
	return best
}

// Leave marks sid disconnected. It reports whether anything changed.
func (r *Room) Leave(sid core.SessionID) (changed bool) {
	r.do(func() { changed = r.leaveLocked(sid) })
	return changed
}

func (r *Room) leaveLocked(sid core.SessionID) bool {
	m, ok := r.members[sid]
	if !ok || m.p.State != domain.Connected {
		return false
	}
	now := r.opts.Now()
	m.p.State = domain.Disconnected
	m.conn = nil
	m.disconnectedAt = now

	r.broadcast(sid, core.EvUserLeft, core.UserLeft{UserID: string(sid)})
	if r.state == domain.RoomActive {
		r.systemLocked(fmt.Sprintf("%s left the meeting", m.p.Username), now)
		if sid == r.hostSID && r.opts.HostFailover == HostPromote {
			r.promoteLocked(m, now)
		}
	}
	if r.connectedLocked() == 0 {
		r.emptySince = now
	}
	log.Info().Str("module", "app.room").Str("room", string(r.meta.Code)).Str("sid", string(sid)).Msg("member left")
	return true
}

func (r *Room) promoteLocked(old *member, now time.Time) {
	for _, sid := range r.order {
		m := r.members[sid]
		if m == nil || !m.connected() {
			continue
		}
		old.p.IsHost = false
		m.p.IsHost = true
		r.hostSID = sid
		r.broadcast("", core.EvHostChanged, core.HostChanged{HostID: string(sid)})
		r.systemLocked(fmt.Sprintf("%s is now the host", m.p.Username), now)
		log.Info().Str("module", "app.room").Str("room", string(r.meta.Code)).Str("host", string(sid)).Msg("host promoted")
		return
	}
}

// RemoveParticipant hard-deletes target on behalf of the host.
func (r *Room) RemoveParticipant(actor, target core.SessionID) (removed domain.Participant, err error) {
	r.do(func() { removed, err = r.removeLocked(actor, target) })
	return removed, err
}

func (r *Room) removeLocked(actor, target core.SessionID) (domain.Participant, error) {
	if r.state == domain.RoomEnded {
		return domain.Participant{}, ErrRoomEnded
	}
	host, err := r.hostLocked(actor)
	if err != nil {
		return domain.Participant{}, err
	}
	m, ok := r.members[target]
	if !ok {
		return domain.Participant{}, ErrParticipantNotFound
	}
	if target == r.hostSID {
		return domain.Participant{}, ErrCannotRemoveHost
	}

	r.emitTo(target, core.EvRemovedFromMeeting, core.RemovedFromMeeting{RemovedBy: host.p.Username})
	delete(r.members, target)
	r.dropOrderLocked(target)
	r.broadcast(target, core.EvUserLeft, core.UserLeft{UserID: string(target)})
	now := r.opts.Now()
	r.systemLocked(fmt.Sprintf("%s was removed by the host", m.p.Username), now)
	if r.connectedLocked() == 0 {
		r.emptySince = now
	}
	log.Info().Str("module", "app.room").Str("room", string(r.meta.Code)).Str("sid", string(target)).Msg("member removed")
	return m.p, nil
}

// End terminates the meeting. It returns the sessions that were connected.
func (r *Room) End(actor core.SessionID) (sids []core.SessionID, err error) {
	r.do(func() { sids, err = r.endLocked(actor) })
	return sids, err
}

func (r *Room) endLocked(actor core.SessionID) ([]core.SessionID, error) {
	if r.state == domain.RoomEnded {
		return nil, ErrRoomEnded
	}
	host, err := r.hostLocked(actor)
	if err != nil {
		return nil, err
	}
	now := r.opts.Now()
	r.state = domain.RoomEnded
	r.endedAt = now
	r.broadcast("", core.EvMeetingEnded, core.MeetingEnded{EndedBy: host.p.Username})

	sids := make([]core.SessionID, 0, len(r.members))
	for _, sid := range r.order {
		m := r.members[sid]
		if m == nil || m.p.State != domain.Connected {
			continue
		}
		sids = append(sids, sid)
		m.p.State = domain.Disconnected
		m.conn = nil
		m.disconnectedAt = now
	}
	r.emptySince = now
	log.Info().Str("module", "app.room").Str("room", string(r.meta.Code)).Str("by", string(actor)).Msg("meeting ended")
	return sids, nil
}

func (r *Room) hostLocked(actor core.SessionID) (*member, error) {
	m, ok := r.members[actor]
	if !ok || !m.connected() || actor != r.hostSID {
		return nil, ErrNotHost
	}
	return m, nil
}

// AppendMessage stores a chat line and fans it out to every connected member, sender included.
func (r *Room) AppendMessage(sid core.SessionID, text string) (msg domain.ChatMessage, err error) {
	r.do(func() { msg, err = r.appendLocked(sid, text) })
	return msg, err
}

func (r *Room) appendLocked(sid core.SessionID, text string) (domain.ChatMessage, error) {
	if r.state == domain.RoomEnded {
		return domain.ChatMessage{}, ErrRoomEnded
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}
	if r.opts.MaxMessageLength > 0 && len(text) > r.opts.MaxMessageLength {
		return domain.ChatMessage{}, ErrMessageTooLong
	}
	m, ok := r.members[sid]
	if !ok || !m.connected() {
		return domain.ChatMessage{}, ErrNotInRoom
	}
	msg := domain.NewUserMessage(string(sid), m.p.Username, text, r.opts.Now())
	r.history.Append(msg)
	r.broadcast("", core.EvNewMessage, msg)
	return msg, nil
}

func (r *Room) systemLocked(text string, at time.Time) {
	if !r.opts.SystemMessages {
		return
	}
	msg := domain.NewSystemMessage(text, at)
	r.history.Append(msg)
	r.broadcast("", core.EvNewMessage, msg)
}

// RequestRoster sends the current snapshot to sid as participants-list.
func (r *Room) RequestRoster(sid core.SessionID) (snap domain.RoomSnapshot, err error) {
	r.do(func() {
		m, ok := r.members[sid]
		if !ok || !m.connected() {
			err = ErrNotInRoom
			return
		}
		snap = r.snapshotLocked()
		r.emitTo(sid, core.EvParticipantsList, snap)
	})
	return snap, err
}

func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	parts := make([]domain.Participant, 0, len(r.order))
	for _, sid := range r.order {
		if m, ok := r.members[sid]; ok {
			parts = append(parts, m.p)
		}
	}
	langs := make([]string, len(r.meta.SupportedLanguages))
	copy(langs, r.meta.SupportedLanguages)
	return domain.RoomSnapshot{
		Code:               r.meta.Code,
		Name:               r.meta.Name,
		HostLanguage:       r.meta.HostLanguage,
		SupportedLanguages: langs,
		State:              r.state,
		HostID:             string(r.hostSID),
		Participants:       parts,
		Messages:           r.history.Messages(),
	}
}

// Relay forwards an opaque signaling payload from one connected member to another.
func (r *Room) Relay(from, to core.SessionID, event string, payload json.RawMessage) (err error) {
	r.do(func() {
		if r.state == domain.RoomEnded {
			err = ErrRoomEnded
			return
		}
		if m, ok := r.members[from]; !ok || !m.connected() {
			err = ErrNotInRoom
			return
		}
		if m, ok := r.members[to]; !ok || !m.connected() {
			err = ErrPeerNotFound
			return
		}
		r.emitTo(to, event, core.SignalOut{Signal: payload, CallerID: string(from)})
	})
	return err
}

// AudioPlan lists everyone who should hear from's audio.
func (r *Room) AudioPlan(from core.SessionID) (AudioPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RoomEnded {
		return AudioPlan{}, ErrRoomEnded
	}
	sp, ok := r.members[from]
	if !ok || !sp.connected() {
		return AudioPlan{}, ErrNotInRoom
	}
	plan := AudioPlan{SpeakerName: sp.p.Username, SourceLanguage: sp.p.SpeakLanguage}
	for _, sid := range r.order {
		m := r.members[sid]
		if sid == from || m == nil || !m.connected() {
			continue
		}
		plan.Listeners = append(plan.Listeners, Listener{SID: sid, Language: m.p.ListenLanguage})
	}
	return plan, nil
}

// Deliver emits one event to each of sids that is still a connected member.
func (r *Room) Deliver(sids []core.SessionID, event string, data any) (sent int) {
	r.do(func() {
		if r.state == domain.RoomEnded {
			return
		}
		frame, err := core.Encode(event, data)
		if err != nil {
			log.Error().Err(err).Str("module", "app.room").Msg("deliver encode")
			return
		}
		for _, sid := range sids {
			if m, ok := r.members[sid]; ok && m.connected() {
				if r.send(sid, m, frame) {
					sent++
				}
			}
		}
	})
	return sent
}

// ConnectedCount counts members with a live transport.
func (r *Room) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedLocked()
}

func (r *Room) connectedLocked() int {
	n := 0
	for _, m := range r.members {
		if m.connected() {
			n++
		}
	}
	return n
}

func (r *Room) Summary() domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RoomEnded {
		return domain.RoomSummary{Exists: false}
	}
	n := r.connectedLocked()
	langs := make([]string, len(r.meta.SupportedLanguages))
	copy(langs, r.meta.SupportedLanguages)
	return domain.RoomSummary{
		Exists:             true,
		Name:               r.meta.Name,
		ParticipantsCount:  &n,
		SupportedLanguages: langs,
	}
}

func (r *Room) State() domain.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Expired reports whether the sweeper may drop the room at now.
func (r *Room) Expired(now time.Time, idle, endedRetention time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RoomEnded {
		return now.Sub(r.endedAt) >= endedRetention
	}
	return r.connectedLocked() == 0 && !r.emptySince.IsZero() && now.Sub(r.emptySince) >= idle
}

// PurgeDisconnected drops entries whose rejoin grace period has passed.
func (r *Room) PurgeDisconnected(now time.Time) (purged int) {
	if r.opts.GracePeriod <= 0 {
		return 0
	}
	r.do(func() {
		for sid, m := range r.members {
			if m.p.State != domain.Disconnected || now.Sub(m.disconnectedAt) <= r.opts.GracePeriod {
				continue
			}
			delete(r.members, sid)
			r.dropOrderLocked(sid)
			if sid == r.hostSID {
				r.hostSID = ""
			}
			purged++
		}
	})
	return purged
}

func (r *Room) dropOrderLocked(sid core.SessionID) {
	for i, s := range r.order {
		if s == sid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Room) emitTo(sid core.SessionID, event string, data any) {
	m, ok := r.members[sid]
	if !ok || !m.connected() {
		return
	}
	frame, err := core.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.room").Str("event", event).Msg("encode")
		return
	}
	r.send(sid, m, frame)
}

// broadcast sends to every connected member except skip (empty skip means everyone).
func (r *Room) broadcast(skip core.SessionID, event string, data any) {
	frame, err := core.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.room").Str("event", event).Msg("encode")
		return
	}
	sent := 0
	for _, sid := range r.order {
		if sid == skip {
			continue
		}
		m := r.members[sid]
		if m == nil || !m.connected() {
			continue
		}
		if r.send(sid, m, frame) {
			sent++
		}
	}
	log.Debug().Str("module", "app.room").Str("room", string(r.meta.Code)).Str("event", event).Int("sent_to", sent).Msg("broadcast")
}

func (r *Room) send(sid core.SessionID, m *member, frame core.Frame) bool {
	if err := m.conn.TrySend(frame); err != nil {
		r.dropped = append(r.dropped, droppedConn{sid: sid, conn: m.conn})
		return false
	}
	return true
}
