// Package registry provides a global registry of AI subsystem factories.
// Subsystems register themselves in init() functions, allowing the
// orchestrator to build the enabled set by name without hardcoded
// dependencies.
package registry

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Subsystem is an AI process that reads world snapshots and proposes
// effects. Subsystems keep private state and their own random stream; they
// never mutate the world directly.
type Subsystem interface {
	// Name returns the registry id (e.g., "ecosystem").
	Name() string

	// Run inspects a snapshot taken at wall-clock time now and returns the
	// effects it wants applied. The snapshot must not be retained.
	Run(now time.Time, snap *sim.WorldState) ([]sim.Effect, error)
}

// Planner is implemented by subsystems that play on behalf of AI players.
// Actions planned during Run are collected with PlannedActions and queued
// like any other player input.
type Planner interface {
	PlannedActions() []core.PlayerAction
}

// Env is what a factory receives when a match builds its subsystems.
type Env struct {
	Seed       int64 // Match seed; subsystems derive their own stream from it
	Tables     *config.Tables
	Difficulty config.Difficulty
	MapType    string
	Log        *log.Logger
}

// Rand returns a random stream derived from the match seed. Each
// subsystem uses its own stream so adding one never shifts another.
func (e Env) Rand(stream string) *rand.Rand {
	return rand.New(rand.NewSource(core.DeriveSeed(e.Seed, stream)))
}

// Info contains metadata about a registered subsystem.
type Info struct {
	ID    string
	Title string
}

// Factory creates a new instance of a subsystem.
type Factory func(env Env) Subsystem

var (
	factories = make(map[string]Factory)
	titles    = make(map[string]string)
	mu        sync.RWMutex
)

// Register adds a subsystem factory to the registry.
// Typically called from an init() function.
// Panics if a subsystem with the same ID is already registered.
func Register(id, title string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[id]; exists {
		panic(fmt.Sprintf("registry: subsystem %q already registered", id))
	}

	factories[id] = f
	titles[id] = title
}

// List returns information about all registered subsystems, sorted by ID.
func List() []Info {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]Info, 0, len(factories))
	for id := range factories {
		result = append(result, Info{
			ID:    id,
			Title: titles[id],
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Create instantiates a subsystem by its ID.
// Returns an error if the ID is not registered.
func Create(id string, env Env) (Subsystem, error) {
	mu.RLock()
	f, ok := factories[id]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("registry: unknown subsystem %q", id)
	}
	if env.Log == nil {
		env.Log = log.Default()
	}
	return f(env), nil
}

// Exists checks if a subsystem with the given ID is registered.
func Exists(id string) bool {
	mu.RLock()
	defer mu.RUnlock()

	_, ok := factories[id]
	return ok
}
