// Package store persists taught positions between runs: the pick point,
// the hook rack and the safety height. Two backends exist, a
// schema-validated JSON file for bench setups and postgres for shared
// installations.
package store

import (
	"context"

	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
)

// StoredPositions is the persisted teach data. Pick and SafeZ are
// pointers so an empty store is distinguishable from a taught zero.
type StoredPositions struct {
	Pick  *motion.Position  `json:"pick,omitempty"`
	SafeZ *float64          `json:"safe_z,omitempty"`
	Hooks []motion.Position `json:"hooks"`
}

// Store loads and saves taught positions.
type Store interface {
	Load(ctx context.Context) (StoredPositions, error)
	Save(ctx context.Context, p StoredPositions) error
	Close()
}
