package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dkeye/voxbridge/internal/domain"
	gonanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"
)

// CodeAlphabet leaves out characters that are easy to misread (0/O, 1/I).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultMeetingName = "Meeting"

type RegistryOptions struct {
	CodeLength     int
	CodeAttempts   int
	MaxRooms       int
	MaxNameLength  int
	IdleTimeout    time.Duration
	EndedRetention time.Duration
	SweepInterval  time.Duration
	Room           RoomOptions
	// Generate overrides the code generator. Used by tests to force collisions.
	Generate func() string
}

type CreateRoomRequest struct {
	HostLanguage       string
	SupportedLanguages []string
	MeetingName        string
}

type RoomInfo struct {
	Code         domain.RoomCode
	Name         string
	Connected    int
	Participants int
}

// RoomRegistry owns every live room, keyed by canonical code.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*Room
	opts  RegistryOptions
	gen   func() string
}

func NewRoomRegistry(opts RegistryOptions) (*RoomRegistry, error) {
	if opts.CodeLength < 6 {
		opts.CodeLength = 6
	}
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = 10
	}
	if opts.Room.Now == nil {
		opts.Room.Now = time.Now
	}
	gen := opts.Generate
	if gen == nil {
		g, err := gonanoid.CustomASCII(CodeAlphabet, opts.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("code generator: %w", err)
		}
		gen = g
	}
	return &RoomRegistry{
		rooms: make(map[domain.RoomCode]*Room),
		opts:  opts,
		gen:   gen,
	}, nil
}

// SetDropHandler installs the backpressure callback on rooms created from now on.
func (r *RoomRegistry) SetDropHandler(h DropHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.Room.OnDrop = h
}

func (r *RoomRegistry) Create(req CreateRoomRequest) (domain.RoomCode, error) {
	if err := CheckLanguage(req.HostLanguage); err != nil {
		return "", err
	}
	for _, l := range req.SupportedLanguages {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if err := CheckLanguage(l); err != nil {
			return "", err
		}
	}
	name := strings.TrimSpace(req.MeetingName)
	if name == "" {
		name = DefaultMeetingName
	}
	if r.opts.MaxNameLength > 0 && utf8.RuneCountInString(name) > r.opts.MaxNameLength {
		return "", ErrMeetingNameTooLong
	}
	host := strings.TrimSpace(req.HostLanguage)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.MaxRooms > 0 && len(r.rooms) >= r.opts.MaxRooms {
		return "", ErrRegistryFull
	}
	for attempt := 0; attempt < r.opts.CodeAttempts; attempt++ {
		code := domain.NormalizeCode(r.gen())
		if _, taken := r.rooms[code]; taken {
			log.Warn().Str("module", "app.rooms").Str("code", string(code)).Int("attempt", attempt+1).Msg("code collision")
			continue
		}
		meta := domain.Room{
			Code:               code,
			Name:               name,
			HostLanguage:       host,
			SupportedLanguages: domain.NormalizeLanguages(host, req.SupportedLanguages),
			CreatedAt:          r.opts.Room.Now(),
		}
		r.rooms[code] = NewRoom(meta, r.opts.Room)
		log.Info().
			Str("module", "app.rooms").
			Str("code", string(code)).
			Str("host_language", host).
			Strs("languages", meta.SupportedLanguages).
			Msg("room created")
		return code, nil
	}
	return "", ErrCodeSpaceExhausted
}

// IsValidCode reports whether raw could be a code this registry issues.
func (r *RoomRegistry) IsValidCode(raw string) bool {
	code := string(domain.NormalizeCode(raw))
	if len(code) < 6 {
		return false
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func (r *RoomRegistry) Get(raw string) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[domain.NormalizeCode(raw)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Lookup is the public existence check. Ended rooms report exists=false.
func (r *RoomRegistry) Lookup(raw string) domain.RoomSummary {
	room, err := r.Get(raw)
	if err != nil {
		return domain.RoomSummary{Exists: false}
	}
	return room.Summary()
}

func (r *RoomRegistry) Remove(code domain.RoomCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
	log.Info().Str("module", "app.rooms").Str("code", string(code)).Msg("room removed")
}

func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// List returns active rooms ordered by code.
func (r *RoomRegistry) List() []RoomInfo {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		snap := room.Snapshot()
		if snap.State == domain.RoomEnded {
			continue
		}
		out = append(out, RoomInfo{
			Code:         snap.Code,
			Name:         snap.Name,
			Connected:    snap.ConnectedCount(),
			Participants: len(snap.Participants),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Sweep drops expired rooms and stale disconnected participants. It returns the removed codes.
func (r *RoomRegistry) Sweep(now time.Time) []domain.RoomCode {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	var candidates []*Room
	for _, room := range rooms {
		if n := room.PurgeDisconnected(now); n > 0 {
			log.Debug().Str("module", "app.rooms").Str("code", string(room.Code())).Int("purged", n).Msg("purged participants")
		}
		if room.Expired(now, r.opts.IdleTimeout, r.opts.EndedRetention) {
			candidates = append(candidates, room)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Re-check under the write lock: a join may have landed since the first pass.
	var expired []domain.RoomCode
	r.mu.Lock()
	for _, room := range candidates {
		if r.rooms[room.Code()] != room || !room.Expired(now, r.opts.IdleTimeout, r.opts.EndedRetention) {
			continue
		}
		delete(r.rooms, room.Code())
		expired = append(expired, room.Code())
	}
	r.mu.Unlock()
	if len(expired) == 0 {
		return nil
	}
	log.Info().Str("module", "app.rooms").Int("removed", len(expired)).Int("active", len(r.List())).Msg("sweep")
	return expired
}

// Run sweeps on SweepInterval until ctx is done. onRemoved, if set, is called for every dropped room.
func (r *RoomRegistry) Run(ctx context.Context, onRemoved func(domain.RoomCode)) error {
	interval := r.opts.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			for _, code := range r.Sweep(r.opts.Room.Now()) {
				if onRemoved != nil {
					onRemoved(code)
				}
			}
		}
	}
}
