package container

import (
	"log"
	"time"

	"ibird-backend/config"
	"ibird-backend/handlers"
	"ibird-backend/ipfs"
	"ibird-backend/ledger"
	"ibird-backend/mirror"
	"ibird-backend/services"
	"ibird-backend/storage"
	"ibird-backend/workflow"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Clients
	Media     *ipfs.Client
	Mirror    *mirror.Client
	Connector ledger.Connector
	Submitter *ledger.Submitter

	// State
	Registry  *workflow.Registry
	FeedCache *storage.FeedCache
	PageStore storage.PageStore

	// Services
	PublishService *services.PublishService
	FeedService    *services.FeedService
	ShareService   *services.ShareService
	HealthService  *services.HealthService

	// Handlers
	HealthHandler   *handlers.HealthHandler
	WorkflowHandler *handlers.WorkflowHandler
	ReactionHandler *handlers.ReactionHandler
	FeedHandler     *handlers.FeedHandler
	StreamHandler   *handlers.StreamHandler
	ShareHandler    *handlers.ShareHandler
	WalletHandler   *handlers.WalletHandler
}

// NewContainer creates a new dependency container
func NewContainer(cfg *config.Config) (*Container, error) {
	// Initialize clients
	media := ipfs.NewClient(cfg.IPFSAPIURL)
	mirrorClient := mirror.NewClient(cfg.MirrorBaseURL)
	connector := ledger.NewRemoteSigner(cfg.SignerAPIURL)
	submitter := ledger.NewSubmitter(connector)

	// Initialize state
	registry := workflow.NewRegistry(cfg.WorkflowTTL)
	feedCache, err := storage.NewFeedCache(1024, 30*time.Second)
	if err != nil {
		return nil, err
	}

	var pageStore storage.PageStore
	if cfg.DatabaseURL != "" {
		ps, err := storage.NewPostgresPageStore(cfg.DatabaseURL)
		if err != nil {
			// The durable tier is an accelerator; run memory-only rather
			// than refuse to start.
			log.Printf("Postgres page store unavailable, using memory cache only: %v", err)
		} else {
			pageStore = ps
		}
	}

	// Initialize services
	publishService := services.NewPublishService(media, submitter, registry, cfg.MaxMediaBytes, cfg.DependencyPoll, cfg.DependencyTimeout)
	feedService := services.NewFeedService(mirrorClient, feedCache, pageStore, 5*time.Minute)
	shareService := services.NewShareService(cfg.ShareOrigin)
	healthService := services.NewHealthService(cfg.Network)

	publishService.OnPublished(feedService.Invalidate)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(healthService)
	workflowHandler := handlers.NewWorkflowHandler(publishService, registry)
	reactionHandler := handlers.NewReactionHandler(publishService)
	feedHandler := handlers.NewFeedHandler(feedService)
	streamHandler := handlers.NewStreamHandler(feedService, 5*time.Second)
	shareHandler := handlers.NewShareHandler(shareService)
	walletHandler := handlers.NewWalletHandler(connector)

	return &Container{
		Config: cfg,

		Media:     media,
		Mirror:    mirrorClient,
		Connector: connector,
		Submitter: submitter,

		Registry:  registry,
		FeedCache: feedCache,
		PageStore: pageStore,

		PublishService: publishService,
		FeedService:    feedService,
		ShareService:   shareService,
		HealthService:  healthService,

		HealthHandler:   healthHandler,
		WorkflowHandler: workflowHandler,
		ReactionHandler: reactionHandler,
		FeedHandler:     feedHandler,
		StreamHandler:   streamHandler,
		ShareHandler:    shareHandler,
		WalletHandler:   walletHandler,
	}, nil
}

// Close releases long-lived resources.
func (c *Container) Close() {
	if c.PageStore != nil {
		if err := c.PageStore.Close(); err != nil {
			log.Printf("Failed to close page store: %v", err)
		}
	}
}
