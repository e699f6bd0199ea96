package app

import (
	"fmt"

	"semantic-triage/internal/dispatch"
	"semantic-triage/internal/embeddings"
)

const (
	EngineLocal = "local"
	EngineNATS  = "nats"
)

// NewEngine returns the configured partition engine. The local engine builds
// WORKERS workers once, each with its own encoder from deps.NewEncoder, and
// reuses them for every job. The NATS engine keeps at most WORKERS partition
// requests in flight.
func NewEngine(deps Deps) (dispatch.Engine, error) {
	switch deps.Config.Engine {
	case "", EngineLocal:
		return dispatch.NewLocalEngine(deps.Config.Workers, func(id int) *dispatch.Worker {
			return dispatch.NewWorker(fmt.Sprintf("local-%d", id), embeddings.NewLazy(deps.NewEncoder), deps.Store, deps.Log)
		}), nil
	case EngineNATS:
		if deps.Queue == nil {
			return nil, fmt.Errorf("ENGINE=nats requires a queue connection")
		}
		return dispatch.NewQueueEngine(deps.Queue, deps.Config.Workers), nil
	default:
		return nil, fmt.Errorf("invalid ENGINE: %s (valid options: local, nats)", deps.Config.Engine)
	}
}

// NewDispatcher wires a dispatcher over deps.Store using the configured engine
// and records runs in the store's job ledger.
func NewDispatcher(deps Deps) (*dispatch.Dispatcher, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("dispatcher requires a store")
	}
	engine, err := NewEngine(deps)
	if err != nil {
		return nil, err
	}
	return dispatch.NewDispatcher(deps.Store, engine, deps.Log, dispatch.Options{
		Partitions: deps.Config.Partitions,
		MaxTokens:  deps.Config.MaxTextTokens,
		Ledger:     deps.Store,
	}), nil
}
