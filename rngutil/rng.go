// Package rngutil provides deterministic, per-subsystem RNG streams so
// that a simulation seeded once produces bit-for-bit identical routing
// decisions on every rerun, regardless of how many routers "run in
// parallel" in simulated time.
package rngutil

import (
	"hash/fnv"
	"math/rand"
	"strconv"
)

// SimulationKey is the master seed for one reproducible simulation run.
type SimulationKey int64

// PartitionedRNG hands out one *rand.Rand per named subsystem, each
// deterministically derived from the master key so independent
// subsystems never perturb each other's stream.
//
// Thread-safety: not safe for concurrent use; the simulator is
// single-threaded by design (spec.md §5).
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master key.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, subsystems: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the (cached) RNG for the named subsystem, deriving
// it as masterSeed XOR fnv1a64(name) on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	seed := int64(p.key) ^ fnv1a64(name)
	rng := rand.New(rand.NewSource(seed))
	p.subsystems[name] = rng
	return rng
}

// ForRouter returns the RNG stream reserved for router-local routing
// decisions (RANDOM / TURN_MODEL algorithms).
func (p *PartitionedRNG) ForRouter(routerID int) *rand.Rand {
	return p.ForSubsystem(routerSubsystem(routerID))
}

func routerSubsystem(routerID int) string {
	return "router_" + strconv.Itoa(routerID)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
