// Package procedure implements the iterator-shaped callable algorithms
// exposed to `CALL`: bounded single-pair and single-source weighted
// path search (`algo.shortestPath`, `algo.SPpaths`, `algo.SSpaths`)
// and the administrative `db.constraints()` listing.
package procedure

import (
	"errors"
	"math"

	"github.com/graphkernel/corequery/internal/graphstore"
)

// Config is the shared path-finding configuration map:
// {sourceNode, targetNode?, relTypes[], relDirection, maxLen,
// weightProp, costProp, maxCost, pathCount}. It is decoded from a
// query-supplied map literal, defaulted first and validated once
// before the search begins.
type Config struct {
	SourceNode int64
	TargetNode int64
	HasTarget  bool

	RelTypes     []graphstore.SchemaID // empty means "any relation"
	RelDirection graphstore.Direction

	MinLen int64
	MaxLen int64

	WeightAttr int
	HasWeight  bool
	CostAttr   int
	HasCost    bool
	MaxCost    float64

	PathCount int
}

// DefaultConfig returns the zero-value-safe defaults:
// relDirection=outgoing, minLen=1, a practically-unbounded maxLen,
// pathCount=1, maxCost=+Inf.
func DefaultConfig() Config {
	return Config{
		RelDirection: graphstore.Outgoing,
		MinLen:       1,
		MaxLen:       1<<31 - 2,
		MaxCost:      math.Inf(1),
		PathCount:    1,
	}
}

// Validate checks the populated config for self-consistency. It runs
// once, before the DFS begins.
func (c *Config) Validate() error {
	if c.MinLen < 0 {
		return errors.New("procedure: minLen must be >= 0")
	}
	if c.MaxLen < c.MinLen {
		return errors.New("procedure: maxLen must be >= minLen")
	}
	if c.PathCount < 0 {
		return errors.New("procedure: pathCount must be >= 0")
	}
	if c.MaxCost < 0 {
		return errors.New("procedure: maxCost must be >= 0")
	}
	return nil
}
