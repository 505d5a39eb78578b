package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/workspace-chat/config"
	"github.com/example/workspace-chat/modules/activity"
	"github.com/example/workspace-chat/modules/api"
	"github.com/example/workspace-chat/modules/chat"
)

func main() {
	log.Println("=== Workspace Chat - Fiber + mono EventBus ===")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithNATSPort(cfg.NATSPort),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	chatModule, err := chat.NewModule(cfg, app.Logger())
	if err != nil {
		log.Fatalf("Failed to create chat module: %v", err)
	}
	activityModule := activity.NewModule(app.Logger())

	// The WebSocket edge drives live sessions in-process, so it gets the chat
	// module directly; REST calls go through the chat service container.
	apiModule := api.NewModule(cfg, chatModule, app.Logger())

	// Register modules with the framework.
	// - chat: room engine (ServiceProviderModule + EventEmitterModule)
	// - activity: room statistics (EventConsumerModule + ServiceProviderModule)
	// - api: Fiber HTTP/WebSocket edge, depends on chat and activity
	for _, m := range []mono.Module{chatModule, activityModule, apiModule} {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register module %s: %v", m.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - History capacity: %d messages per room", cfg.HistoryCapacity)
	log.Printf("  - Heartbeat timeout: %s", cfg.HeartbeatTimeout)
	if cfg.MessageRate > 0 {
		log.Printf("  - Chat rate limit: %g msg/s, burst %d", cfg.MessageRate, cfg.MessageBurst)
	} else {
		log.Println("  - Chat rate limit: disabled")
	}
	if cfg.RoomIdleTTL > 0 {
		log.Printf("  - Idle rooms retired after: %s", cfg.RoomIdleTTL)
	} else {
		log.Println("  - Idle rooms retired after: never")
	}
	log.Printf("  - NATS port: %d", cfg.NATSPort)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.Port)
	log.Println("  GET    /health                      - Health check")
	log.Println("  POST   /api/create-room             - Create a room")
	log.Println("  GET    /api/room/:room_id           - Room details")
	log.Println("  POST   /api/room/:room_id/join      - Register a user in a room")
	log.Println("  GET    /api/room/:room_id/messages  - Recent messages")
	log.Println("  GET    /api/room/:room_id/stats     - Room activity")
	log.Println("  GET    /api/rooms                   - List rooms")
	log.Println("  GET    /api/activity                - Activity summary")
	log.Println("")
	log.Printf("WebSocket Endpoint: ws://localhost:%d/ws/:room_id/:user_id", cfg.Port)
	log.Println("  Client frames: join_room, message, typing, ping, leave_room")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
