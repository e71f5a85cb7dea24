package main

import (
	"log"
	"net/http"
	"time"

	"ibird-backend/config"
	"ibird-backend/container"
	"ibird-backend/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize dependency container
	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer c.Close()

	// Sweep abandoned publish workflows in the background
	if err := c.Registry.Start(time.Minute); err != nil {
		log.Fatalf("Failed to start workflow sweeper: %v", err)
	}
	defer c.Registry.Stop()

	// Set up middleware chain
	mux := http.NewServeMux()

	// Apply middleware to the request/response routes
	api := middleware.Logging(
		middleware.SecurityHeaders(
			middleware.Metrics(
				middleware.ValidateFilename(
					middleware.Timeout(30 * time.Second)(
						setupRoutes(mux, c),
					),
				),
			),
		),
	)

	// The websocket stream is long-lived and needs the raw connection, so it
	// bypasses the timeout and the status-capturing wrappers.
	root := http.NewServeMux()
	root.HandleFunc("/api/feed/stream", c.StreamHandler.HandleStream)
	root.Handle("/", api)

	handler := middleware.Recovery(middleware.CORS(root))

	log.Printf("Gateway starting on :%s (network %s)", cfg.Port, cfg.Network)
	log.Printf("API endpoints at: http://localhost:%s/api/", cfg.Port)
	log.Printf("Metrics at: http://localhost:%s/metrics", cfg.Port)

	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}

func setupRoutes(mux *http.ServeMux, c *container.Container) http.Handler {
	// Health endpoints
	mux.HandleFunc("/api/health", c.HealthHandler.HandleHealth)

	// Publish + workflow endpoints
	mux.HandleFunc("/api/publish", c.WorkflowHandler.HandleCreatePublish)
	mux.HandleFunc("/api/workflows/", c.WorkflowHandler.HandleWorkflow)
	mux.HandleFunc("/api/reactions", c.ReactionHandler.HandleReaction)

	// Read-path endpoints
	mux.HandleFunc("/api/topics/", c.FeedHandler.HandleMessages)
	mux.HandleFunc("/api/threads/", c.FeedHandler.HandleThread)

	// Share endpoints
	mux.HandleFunc("/api/share/link", c.ShareHandler.HandleShareLink)
	mux.HandleFunc("/api/share/qr", c.ShareHandler.HandleShareQR)

	// Wallet session endpoints
	mux.HandleFunc("/api/wallet", c.WalletHandler.HandleWallet)
	mux.HandleFunc("/api/wallet/connect", c.WalletHandler.HandleConnect)
	mux.HandleFunc("/api/wallet/disconnect", c.WalletHandler.HandleDisconnect)

	// Prometheus scrape endpoint
	mux.Handle("/metrics", middleware.MetricsHandler())

	return mux
}
