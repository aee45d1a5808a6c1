package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commonbook-be/internal/bootstrap"
	"commonbook-be/internal/config"
	"commonbook-be/internal/dispatch"
	"commonbook-be/internal/tracer"
)

// How often expired sessions are swept from disk.
const sweepInterval = 15 * time.Minute

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer("commonbook-worker")
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Consume tasks
	err := container.Dispatcher.Start(ctx, func(ctx context.Context, task dispatch.Task) error {
		switch task.Type {
		case dispatch.TaskSynthesis:
			// Pipeline failures are recorded in the progress store;
			// redelivery would only repeat the failure.
			if err := container.Orchestrator.Run(ctx, task.SessionID, task.Mode); err != nil {
				log.Printf("[ERROR] Synthesis run failed for %s: %v", task.SessionID, err)
			}
			return nil
		case dispatch.TaskPurge:
			return container.SessionSvc.Burn(ctx, task.SessionID)
		default:
			return fmt.Errorf("unknown task type: %s", task.Type)
		}
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to start task consumer: %v", err)
	}
	log.Println("✅ Worker is consuming tasks")

	// 4. Sweep expired sessions in the background
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := container.SessionSvc.SweepExpired(ctx); err != nil {
					log.Printf("[ERROR] Expiry sweep failed: %v", err)
				}
			}
		}
	}()

	// 5. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	if err := container.Dispatcher.Close(); err != nil {
		log.Printf("[WARN] Dispatcher close: %v", err)
	}
}
