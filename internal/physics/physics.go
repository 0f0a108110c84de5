// Package physics integrates fighter bodies one frame at a time. Velocities
// are in world units per frame; dt is measured in frames.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Platform is an axis-aligned ledge. Its top surface can be landed on.
// Solid platforms also block horizontal movement through their body.
type Platform struct {
	ID        string  `json:"id" yaml:"id"`
	MinX      float64 `json:"minX" yaml:"minX"`
	MaxX      float64 `json:"maxX" yaml:"maxX"`
	MinZ      float64 `json:"minZ" yaml:"minZ"`
	MaxZ      float64 `json:"maxZ" yaml:"maxZ"`
	Top       float64 `json:"top" yaml:"top"`
	Thickness float64 `json:"thickness" yaml:"thickness"`
	Solid     bool    `json:"solid" yaml:"solid"`
}

func (p Platform) covers(x, z float64) bool {
	return x >= p.MinX && x <= p.MaxX && z >= p.MinZ && z <= p.MaxZ
}

// Config holds arena geometry and movement tuning.
type Config struct {
	Gravity        float64
	GroundAccel    float64
	GroundDecel    float64
	AirAccel       float64
	AirDecel       float64
	MaxSpeed       float64
	AirSpeedFactor float64
	JumpVelocity   float64
	MaxFallSpeed   float64
	FloorY         float64
	MinX           float64
	MaxX           float64
	MinZ           float64
	MaxZ           float64
	CapsuleRadius  float64
	CapsuleHeight  float64
	Platforms      []Platform
}

// DefaultConfig returns the standard arena: a 16 unit wide stage with two
// pass-through side platforms and a solid crate by the right wall.
func DefaultConfig() Config {
	return Config{
		Gravity:        0.018,
		GroundAccel:    0.02,
		GroundDecel:    0.035,
		AirAccel:       0.008,
		AirDecel:       0.004,
		MaxSpeed:       0.13,
		AirSpeedFactor: 0.75,
		JumpVelocity:   0.32,
		MaxFallSpeed:   0.6,
		FloorY:         0,
		MinX:           -8,
		MaxX:           8,
		MinZ:           -1,
		MaxZ:           1,
		CapsuleRadius:  0.4,
		CapsuleHeight:  1.8,
		Platforms: []Platform{
			{ID: "left", MinX: -6.5, MaxX: -3.5, MinZ: -1, MaxZ: 1, Top: 2.2, Thickness: 0.2},
			{ID: "right", MinX: 3.5, MaxX: 6.5, MinZ: -1, MaxZ: 1, Top: 2.2, Thickness: 0.2},
			{ID: "crate", MinX: 6.8, MaxX: 7.6, MinZ: -1, MaxZ: 1, Top: 0.8, Thickness: 0.8, Solid: true},
		},
	}
}

// Body is the integrable part of a fighter.
type Body struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Airborne bool
}

// Intent is the movement request for one frame.
type Intent struct {
	// MoveX and MoveZ are stick values in [-1, 1].
	MoveX       float64
	MoveZ       float64
	Jump        bool
	DropThrough bool
	// Launched lifts the speed cap so knockback can carry the body.
	Launched bool
}

// Step advances body by dt frames. dt == 0 leaves the body untouched, which is
// how hit-lag freezes movement.
func Step(cfg Config, body Body, in Intent, dt float64) Body {
	if dt <= 0 {
		return body
	}
	prev := body.Position

	if !body.Airborne && in.Jump {
		body.Velocity[1] = cfg.JumpVelocity
		body.Airborne = true
	}

	maxSpeed := cfg.MaxSpeed
	accel, decel := cfg.GroundAccel, cfg.GroundDecel
	if body.Airborne {
		maxSpeed *= cfg.AirSpeedFactor
		accel, decel = cfg.AirAccel, cfg.AirDecel
	}
	body.Velocity[0] = approach(body.Velocity[0], clampUnit(in.MoveX)*maxSpeed, accel, decel, dt)
	body.Velocity[2] = approach(body.Velocity[2], clampUnit(in.MoveZ)*maxSpeed, accel, decel, dt)
	if !in.Launched {
		body.Velocity[0] = clampAbs(body.Velocity[0], maxSpeed)
		body.Velocity[2] = clampAbs(body.Velocity[2], maxSpeed)
	}

	if body.Airborne {
		body.Velocity[1] -= cfg.Gravity * dt
		if cfg.MaxFallSpeed > 0 && body.Velocity[1] < -cfg.MaxFallSpeed {
			body.Velocity[1] = -cfg.MaxFallSpeed
		}
	} else {
		body.Velocity[1] = 0
	}

	body.Position = body.Position.Add(body.Velocity.Mul(dt))

	if body.Airborne {
		if body.Velocity[1] <= 0 {
			if surface, ok := landingSurface(cfg, prev, body.Position, in.DropThrough); ok {
				body.Position[1] = surface
				body.Velocity[1] = 0
				body.Airborne = false
			}
		}
	} else if !supported(cfg, body.Position, in.DropThrough) {
		body.Airborne = true
	}

	return resolveBounds(cfg, body, prev)
}

// SurfaceBelow returns the highest landable surface under (x, z) at or below y.
func SurfaceBelow(cfg Config, pos mgl64.Vec3) float64 {
	best := cfg.FloorY
	for _, p := range cfg.Platforms {
		if p.covers(pos[0], pos[2]) && p.Top <= pos[1]+epsilon && p.Top > best {
			best = p.Top
		}
	}
	return best
}

// OverPlatform reports whether pos is above a pass-through platform.
func OverPlatform(cfg Config, pos mgl64.Vec3) bool {
	for _, p := range cfg.Platforms {
		if !p.Solid && p.covers(pos[0], pos[2]) && p.Top <= pos[1]+epsilon {
			return true
		}
	}
	return false
}

const epsilon = 1e-6

func landingSurface(cfg Config, prev, next mgl64.Vec3, dropThrough bool) (float64, bool) {
	found := false
	best := math.Inf(-1)
	if next[1] <= cfg.FloorY {
		best, found = cfg.FloorY, true
	}
	for _, p := range cfg.Platforms {
		if dropThrough && !p.Solid {
			continue
		}
		if !p.covers(next[0], next[2]) {
			continue
		}
		// Only surfaces the body was above last frame can catch it.
		if prev[1]+epsilon >= p.Top && next[1] <= p.Top && p.Top > best {
			best, found = p.Top, true
		}
	}
	return best, found
}

func supported(cfg Config, pos mgl64.Vec3, dropThrough bool) bool {
	if pos[1] <= cfg.FloorY+epsilon {
		return true
	}
	for _, p := range cfg.Platforms {
		if dropThrough && !p.Solid {
			continue
		}
		if p.covers(pos[0], pos[2]) && math.Abs(pos[1]-p.Top) <= epsilon {
			return true
		}
	}
	return false
}

func resolveBounds(cfg Config, body Body, prev mgl64.Vec3) Body {
	r := cfg.CapsuleRadius
	if body.Position[0] < cfg.MinX+r {
		body.Position[0] = cfg.MinX + r
		if body.Velocity[0] < 0 {
			body.Velocity[0] = 0
		}
	}
	if body.Position[0] > cfg.MaxX-r {
		body.Position[0] = cfg.MaxX - r
		if body.Velocity[0] > 0 {
			body.Velocity[0] = 0
		}
	}
	if body.Position[2] < cfg.MinZ {
		body.Position[2] = cfg.MinZ
		body.Velocity[2] = math.Max(body.Velocity[2], 0)
	}
	if body.Position[2] > cfg.MaxZ {
		body.Position[2] = cfg.MaxZ
		body.Velocity[2] = math.Min(body.Velocity[2], 0)
	}
	if body.Position[1] < cfg.FloorY {
		body.Position[1] = cfg.FloorY
		body.Velocity[1] = 0
		body.Airborne = false
	}

	for _, p := range cfg.Platforms {
		if !p.Solid {
			continue
		}
		bottom := p.Top - p.Thickness
		feet, head := body.Position[1], body.Position[1]+cfg.CapsuleHeight
		if feet >= p.Top-epsilon || head <= bottom {
			continue
		}
		if body.Position[0]+r <= p.MinX || body.Position[0]-r >= p.MaxX {
			continue
		}
		if prev[0] <= (p.MinX+p.MaxX)/2 {
			body.Position[0] = p.MinX - r
			if body.Velocity[0] > 0 {
				body.Velocity[0] = 0
			}
		} else {
			body.Position[0] = p.MaxX + r
			if body.Velocity[0] < 0 {
				body.Velocity[0] = 0
			}
		}
	}
	return body
}

func approach(current, target, accel, decel, dt float64) float64 {
	rate := decel
	if target != 0 && (math.Signbit(target) == math.Signbit(current) || current == 0) && math.Abs(target) > math.Abs(current) {
		rate = accel
	} else if target != 0 && math.Signbit(target) != math.Signbit(current) {
		rate = accel + decel
	}
	delta := target - current
	step := rate * dt
	if math.Abs(delta) <= step {
		return target
	}
	if delta > 0 {
		return current + step
	}
	return current - step
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
