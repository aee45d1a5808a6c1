package main

import (
	"context"
	"log"

	"commonbook-be/internal/bootstrap"
	"commonbook-be/internal/config"
	"commonbook-be/internal/server"
	"commonbook-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer("commonbook-api")
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Run Server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
