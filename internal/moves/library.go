package moves

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

// ErrInvalidDefinition wraps every validation failure.
var ErrInvalidDefinition = errors.New("invalid move definition")

// Library is an immutable set of moves keyed by id. Order preserves the
// authored order, which is also the default start priority.
type Library struct {
	byID  map[string]Definition
	order []string
}

// NewLibrary validates defs and builds a library.
func NewLibrary(defs []Definition) (*Library, error) {
	lib := &Library{
		byID:  make(map[string]Definition, len(defs)),
		order: make([]string, 0, len(defs)),
	}
	for _, def := range defs {
		if _, exists := lib.byID[def.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDefinition, def.ID)
		}
		if def.Restriction == "" {
			def.Restriction = RestrictAny
		}
		for i := range def.Cancels {
			if def.Cancels[i].Trigger == "" {
				def.Cancels[i].Trigger = TriggerInput
			}
		}
		for i := range def.Hitboxes {
			if def.Hitboxes[i].Guard == "" {
				def.Hitboxes[i].Guard = GuardMid
			}
		}
		lib.byID[def.ID] = def
		lib.order = append(lib.order, def.ID)
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Get returns the definition for id.
func (l *Library) Get(id string) (Definition, bool) {
	if l == nil {
		return Definition{}, false
	}
	def, ok := l.byID[id]
	return def, ok
}

// Priority returns move ids in authored order.
func (l *Library) Priority() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Len reports the number of moves.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Definitions returns every move in authored order.
func (l *Library) Definitions() []Definition {
	if l == nil {
		return nil
	}
	out := make([]Definition, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// Validate checks windows, hitboxes and cancel targets.
func (l *Library) Validate() error {
	for _, id := range l.order {
		def := l.byID[id]
		if def.ID == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
		}
		if def.TotalFrames <= 0 {
			return fmt.Errorf("%w: %s: totalFrames must be positive", ErrInvalidDefinition, id)
		}
		for name, w := range map[string]FrameWindow{"startup": def.Startup, "active": def.Active, "recovery": def.Recovery} {
			if w.Start < 0 || w.End < w.Start || w.End > def.TotalFrames {
				return fmt.Errorf("%w: %s: %s window [%v, %v] outside [0, %v]", ErrInvalidDefinition, id, name, w.Start, w.End, def.TotalFrames)
			}
		}
		switch def.Restriction {
		case RestrictAny, RestrictGrounded, RestrictAerial:
		default:
			return fmt.Errorf("%w: %s: unknown restriction %q", ErrInvalidDefinition, id, def.Restriction)
		}
		seen := make(map[string]struct{}, len(def.Hitboxes))
		for _, hb := range def.Hitboxes {
			if hb.ID == "" {
				return fmt.Errorf("%w: %s: hitbox without id", ErrInvalidDefinition, id)
			}
			if _, dup := seen[hb.ID]; dup {
				return fmt.Errorf("%w: %s: duplicate hitbox %q", ErrInvalidDefinition, id, hb.ID)
			}
			seen[hb.ID] = struct{}{}
			if hb.Radius <= 0 || hb.Height <= 0 {
				return fmt.Errorf("%w: %s/%s: radius and height must be positive", ErrInvalidDefinition, id, hb.ID)
			}
			switch hb.Guard {
			case GuardMid, GuardLow, GuardHigh, GuardThrow, GuardUnblockable:
			default:
				return fmt.Errorf("%w: %s/%s: unknown guard type %q", ErrInvalidDefinition, id, hb.ID, hb.Guard)
			}
		}
		for _, branch := range def.Cancels {
			if _, ok := l.byID[branch.Target]; !ok {
				return fmt.Errorf("%w: %s: cancel target %q not in library", ErrInvalidDefinition, id, branch.Target)
			}
			if branch.Trigger != TriggerInput && branch.Trigger != TriggerOnHit {
				return fmt.Errorf("%w: %s: unknown cancel trigger %q", ErrInvalidDefinition, id, branch.Trigger)
			}
		}
	}
	return nil
}

// Load decodes a YAML document into a library.
func Load(r io.Reader) (*Library, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode move library: %w", err)
	}
	if len(doc.Moves) == 0 {
		return nil, fmt.Errorf("%w: library has no moves", ErrInvalidDefinition)
	}
	return NewLibrary(doc.Moves)
}

// LoadFile reads a library from path.
func LoadFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open move library: %w", err)
	}
	defer f.Close()
	lib, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lib, nil
}

// Default returns the built-in library.
func Default() *Library {
	lib, err := Load(bytes.NewReader(defaultDocument))
	if err != nil {
		panic(fmt.Sprintf("moves: embedded library is invalid: %v", err))
	}
	return lib
}
