package match

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is the complete authoritative state of a match at one frame. It
// is what the session layer broadcasts and what replays digest.
type Snapshot struct {
	MatchID  string     `json:"matchId" msgpack:"matchId"`
	Frame    uint64     `json:"frame" msgpack:"frame"`
	HitLag   float64    `json:"hitLag" msgpack:"hitLag"`
	RNG      uint32     `json:"rng" msgpack:"rng"`
	Fighters [2]Fighter `json:"fighters" msgpack:"fighters"`
	Ended    bool       `json:"ended" msgpack:"ended"`
	Winner   int        `json:"winner" msgpack:"winner"`
}

// Snapshot copies the current state.
func (r *Runtime) Snapshot() Snapshot {
	snap := Snapshot{
		MatchID:  r.cfg.MatchID,
		Frame:    r.frame,
		HitLag:   r.hitLag,
		RNG:      r.rng.State,
		Fighters: r.fighters,
		Ended:    r.ended,
		Winner:   r.winner,
	}
	for i := range snap.Fighters {
		if b := snap.Fighters[i].Brain; b != nil {
			clone := *b
			snap.Fighters[i].Brain = &clone
		}
	}
	return snap
}

// Encode returns the msgpack form of the snapshot. Struct fields encode in
// declaration order, so equal snapshots always produce equal bytes.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}
