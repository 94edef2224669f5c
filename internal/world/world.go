package world

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"
)

var (
	ErrRoomFull        = errors.New("room full")
	ErrGameFinished    = errors.New("game finished")
	ErrPhaseRegression = errors.New("phase cannot move backwards")
)

// Phase of a room's game. Transitions only move forward.
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhaseCountdown
	PhaseInProgress
	PhaseFinished
)

var phaseNames = [...]string{"WAITING", "COUNTDOWN", "IN_PROGRESS", "FINISHED"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", p)
}

// Architecture is chosen once per connection at join time.
type Architecture uint8

const (
	ArchAuthoritative Architecture = iota + 1
	ArchRelay
)

// Code is the short tag written into result metadata.
func (a Architecture) Code() string {
	switch a {
	case ArchAuthoritative:
		return "A"
	case ArchRelay:
		return "B"
	}
	return "?"
}

// ParseArchitecture reads an architecture tag as written by Code.
func ParseArchitecture(s string) (Architecture, error) {
	switch s {
	case "A", "":
		return ArchAuthoritative, nil
	case "B":
		return ArchRelay, nil
	}
	return 0, fmt.Errorf("unknown architecture %q", s)
}

// Arena is the playfield size in units.
type Arena struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

var DefaultArena = Arena{Width: 480, Height: 640}

// Config describes a room when its World is created.
type Config struct {
	RoomID     int64
	MapName    string
	WinMode    WinMode
	MaxPlayers int
	Arena      Arena
	Seed       uint64 // 0 picks a random seed
}

// World is the authoritative state of one room. Not safe for concurrent
// use: only the game loop touches it.
type World struct {
	Players   map[string]*Player
	Bullets   map[uint32]*Bullet
	Asteroids map[uint32]*Asteroid

	// SpawnTimer accumulates time since the last asteroid spawn.
	SpawnTimer time.Duration

	roomID     int64
	mapName    string
	winMode    WinMode
	maxPlayers int
	arena      Arena

	phase   Phase
	startAt time.Time // countdown deadline, which is also the game start
	endedAt time.Time
	frame   uint64
	nextID  uint32
	order   []string // usernames in join order

	pcg *rand.PCG
	rng *rand.Rand
}

// MaxSeats is the seat limit of any room.
const MaxSeats = 4

// New builds a WAITING World. MaxPlayers outside 1..MaxSeats is clamped to
// MaxSeats.
func New(cfg Config) *World {
	seats := cfg.MaxPlayers
	if seats <= 0 || seats > MaxSeats {
		seats = MaxSeats
	}
	arena := cfg.Arena
	if arena.Width <= 0 || arena.Height <= 0 {
		arena = DefaultArena
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	pcg := rand.NewPCG(seed, uint64(cfg.RoomID))
	return &World{
		Players:    make(map[string]*Player),
		Bullets:    make(map[uint32]*Bullet),
		Asteroids:  make(map[uint32]*Asteroid),
		roomID:     cfg.RoomID,
		mapName:    cfg.MapName,
		winMode:    cfg.WinMode,
		maxPlayers: seats,
		arena:      arena,
		pcg:        pcg,
		rng:        rand.New(pcg),
	}
}

func (w *World) RoomID() int64       { return w.roomID }
func (w *World) MapName() string     { return w.mapName }
func (w *World) WinMode() WinMode    { return w.winMode }
func (w *World) MaxPlayers() int     { return w.maxPlayers }
func (w *World) Arena() Arena        { return w.arena }
func (w *World) Phase() Phase        { return w.phase }
func (w *World) StartAt() time.Time  { return w.startAt }
func (w *World) EndedAt() time.Time  { return w.endedAt }
func (w *World) Frame() uint64       { return w.frame }
func (w *World) Rand() *rand.Rand    { return w.rng }
func (w *World) IncrementFrame()     { w.frame++ }
func (w *World) PlayerCount() int    { return len(w.Players) }
func (w *World) JoinOrder() []string { return append([]string(nil), w.order...) }
func (w *World) Finished() bool      { return w.phase == PhaseFinished }

// SetPhase moves the room forward. Setting the current phase is a no-op.
func (w *World) SetPhase(p Phase) error {
	if p < w.phase {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseRegression, w.phase, p)
	}
	w.phase = p
	return nil
}

// StartCountdown enters COUNTDOWN with the game due to start at startAt.
// Only valid while WAITING.
func (w *World) StartCountdown(startAt time.Time) error {
	if w.phase != PhaseWaiting {
		return fmt.Errorf("%w: countdown from %s", ErrPhaseRegression, w.phase)
	}
	w.phase = PhaseCountdown
	w.startAt = startAt
	return nil
}

// Finish moves to FINISHED and stamps the end time. Reports false if the
// room had already finished.
func (w *World) Finish(now time.Time) bool {
	if w.phase == PhaseFinished {
		return false
	}
	w.phase = PhaseFinished
	w.endedAt = now
	return true
}

// Elapsed is the time since the game started, zero before the start.
func (w *World) Elapsed(now time.Time) time.Duration {
	if w.startAt.IsZero() || now.Before(w.startAt) {
		return 0
	}
	return now.Sub(w.startAt)
}

// AddPlayer adds a player at the next spawn slot. Adding a player that is
// already present returns the existing one.
func (w *World) AddPlayer(username string) (*Player, error) {
	if p, ok := w.Players[username]; ok {
		return p, nil
	}
	if w.phase == PhaseFinished {
		return nil, ErrGameFinished
	}
	if len(w.Players) >= w.maxPlayers {
		return nil, ErrRoomFull
	}
	slot := float64(len(w.Players)) - float64(w.maxPlayers-1)/2
	p := &Player{
		Username: username,
		Pos: Vec2{
			X: w.arena.Width/2 + slot*PlayerSpawnStride,
			Y: w.arena.Height - PlayerSpawnRise,
		},
		HP:    PlayerMaxHP,
		Alive: true,
	}
	w.Players[username] = p
	w.order = append(w.order, username)
	return p, nil
}

// RemovePlayer drops a player and its bullets. Nothing changes once the game
// has finished.
func (w *World) RemovePlayer(username string) bool {
	if w.phase == PhaseFinished {
		return false
	}
	if _, ok := w.Players[username]; !ok {
		return false
	}
	delete(w.Players, username)
	for id, b := range w.Bullets {
		if b.Owner == username {
			delete(w.Bullets, id)
		}
	}
	for i, u := range w.order {
		if u == username {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return true
}

// NextID allocates an id shared by bullets and asteroids.
func (w *World) NextID() uint32 {
	w.nextID++
	return w.nextID
}

func (w *World) AddBullet(b *Bullet)     { w.Bullets[b.ID] = b }
func (w *World) AddAsteroid(a *Asteroid) { w.Asteroids[a.ID] = a }

// AliveCount returns the number of players still alive.
func (w *World) AliveCount() int {
	n := 0
	for _, p := range w.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

// OrderedPlayers returns players in join order.
func (w *World) OrderedPlayers() []*Player {
	out := make([]*Player, 0, len(w.order))
	for _, u := range w.order {
		if p, ok := w.Players[u]; ok {
			out = append(out, p)
		}
	}
	return out
}

// OrderedBullets returns bullets sorted by id, oldest first.
func (w *World) OrderedBullets() []*Bullet {
	out := make([]*Bullet, 0, len(w.Bullets))
	for _, b := range w.Bullets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OrderedAsteroids returns asteroids sorted by id, oldest first.
func (w *World) OrderedAsteroids() []*Asteroid {
	out := make([]*Asteroid, 0, len(w.Asteroids))
	for _, a := range w.Asteroids {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clone deep-copies the World including its random source, so a tick can
// be rolled back with Restore.
func (w *World) Clone() *World {
	c := *w
	c.Players = make(map[string]*Player, len(w.Players))
	for k, p := range w.Players {
		cp := *p
		c.Players[k] = &cp
	}
	c.Bullets = make(map[uint32]*Bullet, len(w.Bullets))
	for k, b := range w.Bullets {
		cb := *b
		c.Bullets[k] = &cb
	}
	c.Asteroids = make(map[uint32]*Asteroid, len(w.Asteroids))
	for k, a := range w.Asteroids {
		ca := *a
		c.Asteroids[k] = &ca
	}
	c.order = append([]string(nil), w.order...)
	pcg := *w.pcg
	c.pcg = &pcg
	c.rng = rand.New(c.pcg)
	return &c
}

// Restore replaces w's state with snap. snap must not be used afterwards.
func (w *World) Restore(snap *World) {
	*w = *snap
}
