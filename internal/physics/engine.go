// Package physics advances a World by one fixed step: input application,
// integration, asteroid spawning and collision resolution. The Engine holds
// no per-room state; everything it mutates lives on the World.
package physics

import (
	"math"
	"time"

	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

const (
	SpawnInterval = 800 * time.Millisecond
	MaxAsteroids  = 20
	FireInterval  = 200 * time.Millisecond

	BigAsteroidPoints   = 10
	SmallAsteroidPoints = 5
	EliminationBonus    = 50
)

// Scorer decides how many points a destroyed asteroid or an elimination is
// worth.
type Scorer interface {
	AsteroidPoints(big bool) int
	KillBonus() int
}

// DefaultScorer is the built-in scoring table.
type DefaultScorer struct{}

func (DefaultScorer) AsteroidPoints(big bool) int {
	if big {
		return BigAsteroidPoints
	}
	return SmallAsteroidPoints
}

func (DefaultScorer) KillBonus() int { return EliminationBonus }

// OutcomeKind classifies what a collision did.
type OutcomeKind uint8

const (
	AsteroidDestroyed OutcomeKind = iota + 1
	PlayerDamaged
	PlayerEliminated
)

// Outcome is one scoring or damage consequence of collision resolution.
type Outcome struct {
	Kind     OutcomeKind
	Username string // player credited (AsteroidDestroyed) or hurt (PlayerDamaged/Eliminated)
	By       string // bullet owner for player hits, empty for asteroid impacts
	Points   int
}

type Engine struct {
	scorer Scorer
	grid   *world.Grid
	log    *zap.Logger
}

func NewEngine(scorer Scorer, log *zap.Logger) *Engine {
	if scorer == nil {
		scorer = DefaultScorer{}
	}
	return &Engine{scorer: scorer, log: log}
}

// Step runs integration, spawning and collision resolution, in that order.
func (e *Engine) Step(w *world.World, dt time.Duration) []Outcome {
	e.Integrate(w, dt)
	e.SpawnAsteroids(w, dt)
	return e.ResolveCollisions(w)
}

// ApplyInput turns direction flags into a velocity of at most PlayerSpeed.
// Diagonals are normalized.
func (e *Engine) ApplyInput(p *world.Player, in world.Input) {
	if !p.Alive {
		p.Vel = world.Vec2{}
		return
	}
	var dx, dy float64
	if in.Left {
		dx--
	}
	if in.Right {
		dx++
	}
	if in.Up {
		dy--
	}
	if in.Down {
		dy++
	}
	if dx == 0 && dy == 0 {
		p.Vel = world.Vec2{}
		return
	}
	n := math.Hypot(dx, dy)
	p.Vel = world.Vec2{X: dx / n * world.PlayerSpeed, Y: dy / n * world.PlayerSpeed}
}

// CanFire reports whether p's fire cooldown has elapsed at now.
func CanFire(p *world.Player, now time.Time) bool {
	return p.LastFire.IsZero() || now.Sub(p.LastFire) >= FireInterval
}

// Fire spawns a bullet above p if p is alive and off cooldown. Returns nil
// when the request is rejected.
func (e *Engine) Fire(w *world.World, p *world.Player, now time.Time) *world.Bullet {
	if !p.Alive || !CanFire(p, now) {
		return nil
	}
	p.LastFire = now
	b := &world.Bullet{
		ID:     w.NextID(),
		Owner:  p.Username,
		Pos:    world.Vec2{X: p.Pos.X, Y: p.Pos.Y - world.PlayerRadius},
		Vel:    world.Vec2{Y: -world.BulletSpeed},
		Damage: world.BulletDamage,
	}
	w.AddBullet(b)
	return b
}

// Integrate moves every entity by velocity*dt, clamps players to the arena
// and drops bullets and asteroids that left it.
func (e *Engine) Integrate(w *world.World, dt time.Duration) {
	secs := dt.Seconds()
	arena := w.Arena()

	for _, p := range w.Players {
		if !p.Alive {
			continue
		}
		p.Pos.X = clamp(p.Pos.X+p.Vel.X*secs, world.PlayerRadius, arena.Width-world.PlayerRadius)
		p.Pos.Y = clamp(p.Pos.Y+p.Vel.Y*secs, world.PlayerRadius, arena.Height-world.PlayerRadius)
	}

	for id, b := range w.Bullets {
		b.Pos.X += b.Vel.X * secs
		b.Pos.Y += b.Vel.Y * secs
		if b.Pos.X < -world.BulletMargin || b.Pos.X > arena.Width+world.BulletMargin ||
			b.Pos.Y < -world.BulletMargin || b.Pos.Y > arena.Height+world.BulletMargin {
			delete(w.Bullets, id)
		}
	}

	for id, a := range w.Asteroids {
		a.Pos.X += a.Vel.X * secs
		a.Pos.Y += a.Vel.Y * secs
		if a.Pos.Y-a.Radius > arena.Height {
			delete(w.Asteroids, id)
		}
	}
}

// SpawnAsteroids accumulates dt and spawns one asteroid each time the
// interval elapses. At the cap the timer keeps accumulating, so a spawn is
// due as soon as room frees up.
func (e *Engine) SpawnAsteroids(w *world.World, dt time.Duration) {
	w.SpawnTimer += dt
	if len(w.Asteroids) >= MaxAsteroids || w.SpawnTimer < SpawnInterval {
		return
	}
	w.SpawnTimer = 0

	rng := w.Rand()
	arena := w.Arena()
	size := world.SizeSmall
	if rng.Float64() < world.AsteroidBigChance {
		size = world.SizeBig
	}
	x := world.AsteroidSpawnMargin + rng.Float64()*(arena.Width-2*world.AsteroidSpawnMargin)
	vy := world.AsteroidMinSpeed + rng.Float64()*world.AsteroidSpeedRange
	w.AddAsteroid(world.NewAsteroid(w.NextID(), x, vy, size))
}

// ResolveCollisions runs bullet/asteroid, asteroid/player and bullet/player
// checks in that order, oldest entities first.
func (e *Engine) ResolveCollisions(w *world.World) []Outcome {
	var out []Outcome
	players := w.OrderedPlayers()

	e.grid = w.AsteroidGrid(e.grid)
	for _, b := range w.OrderedBullets() {
		for _, id := range e.grid.Nearby(b.Pos) {
			a, ok := w.Asteroids[id]
			if !ok || !overlaps(b.Pos, world.BulletRadius, a.Pos, a.Radius) {
				continue
			}
			delete(w.Bullets, b.ID)
			a.HP -= b.Damage
			if a.HP <= 0 {
				delete(w.Asteroids, a.ID)
				points := e.scorer.AsteroidPoints(a.IsBig())
				if shooter, ok := w.Players[b.Owner]; ok {
					shooter.Score += points
				}
				out = append(out, Outcome{Kind: AsteroidDestroyed, Username: b.Owner, Points: points})
			}
			break
		}
	}

	for _, a := range w.OrderedAsteroids() {
		for _, p := range players {
			if !p.Alive || !overlaps(a.Pos, a.Radius, p.Pos, world.PlayerRadius) {
				continue
			}
			delete(w.Asteroids, a.ID)
			out = append(out, e.damage(p, 1, ""))
			break
		}
	}

	for _, b := range w.OrderedBullets() {
		for _, p := range players {
			if p.Username == b.Owner || !p.Alive || !overlaps(b.Pos, world.BulletRadius, p.Pos, world.PlayerRadius) {
				continue
			}
			delete(w.Bullets, b.ID)
			o := e.damage(p, b.Damage, b.Owner)
			if o.Kind == PlayerEliminated {
				o.Points = e.scorer.KillBonus()
				if shooter, ok := w.Players[b.Owner]; ok {
					shooter.Score += o.Points
				}
			}
			out = append(out, o)
			break
		}
	}
	return out
}

func (e *Engine) damage(p *world.Player, amount int, by string) Outcome {
	p.HP -= amount
	if p.HP <= 0 {
		p.HP = 0
		p.Alive = false
		p.Vel = world.Vec2{}
		e.log.Debug("player eliminated", zap.String("player", p.Username), zap.String("by", by))
		return Outcome{Kind: PlayerEliminated, Username: p.Username, By: by}
	}
	return Outcome{Kind: PlayerDamaged, Username: p.Username, By: by}
}

func overlaps(a world.Vec2, ra float64, b world.Vec2, rb float64) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	r := ra + rb
	return dx*dx+dy*dy < r*r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
