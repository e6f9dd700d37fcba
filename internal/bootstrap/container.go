package bootstrap

import (
	"context"
	"fmt"
	"time"

	"textbook-rag-be/internal/config"
	"textbook-rag-be/internal/controller"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/repository/cache"
	"textbook-rag-be/internal/repository/unitofwork"
	"textbook-rag-be/internal/service"
	"textbook-rag-be/internal/websocket"
	"textbook-rag-be/pkg/embedding"
	embeddingFactory "textbook-rag-be/pkg/embedding/factory"
	"textbook-rag-be/pkg/events"
	"textbook-rag-be/pkg/llm/factory"
	pktNats "textbook-rag-be/pkg/nats"
	"textbook-rag-be/pkg/rag/chunker"
	"textbook-rag-be/pkg/rag/history"
	"textbook-rag-be/pkg/rag/prompt"
	"textbook-rag-be/pkg/rag/search"
	"textbook-rag-be/pkg/vectorindex"
	"textbook-rag-be/pkg/vectorindex/memory"
	"textbook-rag-be/pkg/vectorindex/pgvector"
	"textbook-rag-be/pkg/vectorindex/qdrant"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container owns every long-lived client of the server process.
type Container struct {
	// Controllers
	ChatController         controller.IChatController
	ConversationController controller.IConversationController
	HealthController       controller.IHealthController
	AdminController        controller.IAdminController

	// Services
	ChatService         service.IChatService
	ConversationService service.IConversationService
	IngestionService    service.IIngestionService
	ConsumerService     service.IConsumerService

	WebSocketHub *websocket.Hub
	VectorIndex  vectorindex.Index

	logger  logger.ILogger
	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
}

// NewEmbeddingProvider builds the configured embedding provider.
func NewEmbeddingProvider(cfg *config.Config) (embedding.EmbeddingProvider, error) {
	return embeddingFactory.NewEmbeddingProvider(
		cfg.Ai.EmbeddingProvider,
		cfg.Ai.EmbeddingModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.EmbeddingDimension,
		embeddingFactory.Keys{
			OpenAI: cfg.Keys.OpenAI,
			Gemini: cfg.Keys.GoogleGemini,
			Jina:   cfg.Keys.Jina,
		},
	)
}

// NewVectorIndex builds the configured backend. db is only needed for pgvector.
func NewVectorIndex(cfg *config.Config, db *gorm.DB, dimension int) (vectorindex.Index, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		return qdrant.New(qdrant.Config{
			URL:        cfg.Vector.QdrantURL,
			APIKey:     cfg.Keys.Qdrant,
			Collection: cfg.Vector.Collection,
			Dimension:  dimension,
		})
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector backend needs DB_CONNECTION_STRING")
		}
		return pgvector.New(db, dimension)
	case "memory":
		return memory.New(cfg.Vector.Collection, dimension), nil
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
}

// NewIngestionService wires the indexing pipeline without the HTTP stack.
func NewIngestionService(cfg *config.Config, db *gorm.DB, log logger.ILogger) (service.IIngestionService, vectorindex.Index, error) {
	embedder, err := NewEmbeddingProvider(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding provider: %w", err)
	}
	index, err := NewVectorIndex(cfg, db, embedder.Dimension())
	if err != nil {
		return nil, nil, fmt.Errorf("vector index: %w", err)
	}
	svc := service.NewIngestionService(
		chunker.New(),
		embedder,
		index,
		cfg.Ingest.EmbedBatchSize,
		cfg.Ingest.RequestsPerSecond,
		log,
	)
	return svc, index, nil
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// 1. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)

	// 2. Model providers
	embedder, err := NewEmbeddingProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	sysLogger.Info("RETRIEVAL", "Embedding provider ready", map[string]interface{}{
		"provider":  cfg.Ai.EmbeddingProvider,
		"dimension": embedder.Dimension(),
	})

	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.LLMBaseURL, llmKey(cfg))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	sysLogger.Info("CHAT", "LLM provider ready", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})

	index, err := NewVectorIndex(cfg, db, embedder.Dimension())
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}

	sources, err := search.LoadSourceMapper(cfg.Rag.ChaptersFile)
	if err != nil {
		return nil, fmt.Errorf("chapters file: %w", err)
	}

	// 3. Infrastructure
	c := &Container{logger: sysLogger, pubSub: pubSub, VectorIndex: index}

	if cfg.Messaging.NatsURL != "" {
		if c.natsPub, err = pktNats.NewPublisher(cfg.Messaging.NatsURL, sysLogger); err != nil {
			sysLogger.Warn("NATS", "Failed to connect publisher, domain events disabled", map[string]interface{}{"error": err.Error()})
		}
		if c.natsSub, err = pktNats.NewSubscriber(cfg.Messaging.NatsURL, sysLogger); err != nil {
			sysLogger.Warn("NATS", "Failed to connect subscriber, remote ingest requests disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	historyCache := c.newHistoryCache(cfg)

	// 4. Services
	conversationService := service.NewConversationService(uowFactory, historyCache, sysLogger)

	var publisher events.Publisher
	if c.natsPub != nil {
		publisher = c.natsPub
	}

	chatService := service.NewChatService(
		search.NewRetriever(embedder, index, sources, search.Config{
			TopK:          cfg.Rag.TopK,
			SelectionTopK: cfg.Rag.SelectionTopK,
			Threshold:     cfg.Rag.Threshold,
		}, sysLogger),
		prompt.NewBuilder(cfg.Rag.HistoryLimit),
		llmProvider,
		history.NewLoader(conversationService, cfg.Rag.HistoryLimit),
		conversationService,
		publisher,
		service.ChatOptions{
			Temperature:     cfg.Ai.Temperature,
			MaxTokens:       cfg.Ai.MaxTokens,
			OutOfScopeDelay: cfg.Rag.OutOfScopeDelay,
		},
		sysLogger,
	)

	ingestionService := service.NewIngestionService(
		chunker.New(),
		embedder,
		index,
		cfg.Ingest.EmbedBatchSize,
		cfg.Ingest.RequestsPerSecond,
		sysLogger,
	)
	consumerService := service.NewConsumerService(pubSub, service.IngestTopic, ingestionService, cfg.Rag.DocsDir, sysLogger)

	adminService := service.NewAdminService(
		pubSub,
		service.IngestTopic,
		index,
		cfg.Vector.Backend,
		conversationService,
		cfg.Rag.DocsDir,
		cfg.Rag.CleanupAfter,
		sysLogger,
	)

	healthService := service.NewHealthService(map[string]service.HealthCheck{
		"database": service.PingCheck(conversationService.Ping, "connected"),
		"vectorIndex": service.CollectionCheck(func(ctx context.Context) (int64, string, error) {
			info, err := index.Info(ctx)
			return info.PointsCount, info.Status, err
		}),
		"cache": service.PingCheck(historyCache.Ping, historyCache.Name()),
	}, []string{"database", "vectorIndex"}, sysLogger)

	wsHub := websocket.NewHub(sysLogger)

	// 5. Controllers
	c.ChatController = controller.NewChatController(chatService, wsHub, sysLogger)
	c.ConversationController = controller.NewConversationController(conversationService)
	c.HealthController = controller.NewHealthController(healthService)
	c.AdminController = controller.NewAdminController(adminService, cfg.Keys.AdminJWTSecret)

	c.ChatService = chatService
	c.ConversationService = conversationService
	c.IngestionService = ingestionService
	c.ConsumerService = consumerService
	c.WebSocketHub = wsHub

	return c, nil
}

func llmKey(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "huggingface" {
		return cfg.Keys.HuggingFace
	}
	return cfg.Keys.OpenAI
}

// newHistoryCache prefers Redis and falls back to an in-process cache.
func (c *Container) newHistoryCache(cfg *config.Config) cache.HistoryCache {
	if cfg.Cache.RedisURL == "" {
		return cache.NewMemoryHistoryCache(cfg.Cache.TTL)
	}

	opt, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		c.logger.Warn("CACHE", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.Cache.RedisURL}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		c.logger.Warn("CACHE", "Redis unreachable, using in-process cache", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return cache.NewMemoryHistoryCache(cfg.Cache.TTL)
	}

	c.rdb = rdb
	return cache.NewRedisHistoryCache(rdb, cfg.Cache.TTL, c.logger)
}

// Start launches the background workers. They stop when ctx is done.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("ingest consumer: %w", err)
	}

	if c.natsSub != nil {
		handler := service.IngestRequestedHandler(c.pubSub, service.IngestTopic)
		if err := c.natsSub.Subscribe(ctx, events.TypeIngestRequested, "textbook-rag-ingest", handler); err != nil {
			c.logger.Warn("NATS", "Failed to subscribe to ingest requests", map[string]interface{}{"error": err.Error()})
		}
	}

	return nil
}

// Close releases every connection the container opened.
func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	if err := c.pubSub.Close(); err != nil {
		c.logger.Warn("INGEST", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}
}
