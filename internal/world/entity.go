package world

import "time"

// Vec2 is a point or velocity in arena units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Player is a participant's avatar. Owned by the World, mutated only from
// the game loop.
type Player struct {
	Username string
	Pos      Vec2
	Vel      Vec2
	HP       int
	Score    int
	Alive    bool
	LastFire time.Time // zero until the first shot
}

// Bullet is a projectile fired by a player.
type Bullet struct {
	ID     uint32
	Owner  string
	Pos    Vec2
	Vel    Vec2
	Damage int
}

// SizeClass of an asteroid. Decides radius, hit points and score value.
type SizeClass uint8

const (
	SizeSmall SizeClass = iota
	SizeBig
)

func (s SizeClass) String() string {
	if s == SizeBig {
		return "big"
	}
	return "small"
}

// Asteroid is a hazard drifting down the arena.
type Asteroid struct {
	ID     uint32
	Pos    Vec2
	Vel    Vec2
	Radius float64
	HP     int
	Size   SizeClass
}

func (a *Asteroid) IsBig() bool { return a.Size == SizeBig }

// Input is one movement/fire sample for a player. At is the server-side
// receive time; fire rate limiting uses it, never a client clock.
type Input struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
	Fire  bool
	At    time.Time
}

// Entity constants.
const (
	PlayerMaxHP       = 3
	PlayerSpeed       = 200.0 // units/s
	PlayerRadius      = 16.0
	PlayerSpawnRise   = 140.0 // spawn row distance from the bottom edge
	PlayerSpawnStride = 60.0

	BulletSpeed  = 400.0
	BulletDamage = 1
	BulletRadius = 4.0
	BulletMargin = 10.0

	AsteroidBigRadius   = 20.0
	AsteroidSmallRadius = 12.0
	AsteroidBigHP       = 3
	AsteroidSmallHP     = 1
	AsteroidSpawnY      = -30.0
	AsteroidSpawnMargin = 30.0
	AsteroidMinSpeed    = 100.0
	AsteroidSpeedRange  = 80.0
	AsteroidBigChance   = 0.4
)

// NewAsteroid builds an asteroid of the given size at x, falling at vy.
func NewAsteroid(id uint32, x, vy float64, size SizeClass) *Asteroid {
	a := &Asteroid{
		ID:   id,
		Pos:  Vec2{X: x, Y: AsteroidSpawnY},
		Vel:  Vec2{Y: vy},
		Size: size,
	}
	if size == SizeBig {
		a.Radius, a.HP = AsteroidBigRadius, AsteroidBigHP
	} else {
		a.Radius, a.HP = AsteroidSmallRadius, AsteroidSmallHP
	}
	return a
}
