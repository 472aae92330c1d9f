package runtime

import (
	"chat-presence/contract"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Orchestrator restores the router tables and then runs the supervised
// workers around it: the broadcast fanout, the request loop and whatever
// reporting workers the binary adds.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	router     *Router
	workers    []contract.Worker
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, router *Router) *Orchestrator {
	return &Orchestrator{log: log, supervisor: supervisor, router: router}
}

func (o *Orchestrator) Add(workers ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers = append(o.workers, workers...)
}

// Start blocks until ctx is cancelled or Stop is called.
// No worker is started when the persisted state cannot be loaded.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.router.Restore(ctx); err != nil {
		return fmt.Errorf("restoring state: %w", err)
	}

	o.mu.Lock()
	o.supervisor.Add(o.workers...)
	count := len(o.workers)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "workers", count)
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised workers. Start returns once they exited.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
