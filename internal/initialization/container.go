package initialization

import (
	"context"
	"fmt"
	"time"

	"github.com/flowbaker/triage/pkg/ai-sdk/provider"
	"github.com/flowbaker/triage/pkg/ai-sdk/provider/anthropic"
	"github.com/flowbaker/triage/pkg/ai-sdk/provider/gemini"
	"github.com/flowbaker/triage/pkg/ai-sdk/provider/openai"
	mongoarchive "github.com/flowbaker/triage/pkg/archive/mongo"
	"github.com/flowbaker/triage/pkg/classifier"
	"github.com/flowbaker/triage/pkg/costs"
	"github.com/flowbaker/triage/pkg/dispatch"
	"github.com/flowbaker/triage/pkg/dispatch/kafka"
	"github.com/flowbaker/triage/pkg/domain"
	redisledger "github.com/flowbaker/triage/pkg/ledger/redis"
	slacknotify "github.com/flowbaker/triage/pkg/notify/slack"
	"github.com/flowbaker/triage/pkg/retrieval"
	"github.com/flowbaker/triage/pkg/tokenizer"
	"github.com/flowbaker/triage/pkg/triage"
	"github.com/flowbaker/triage/pkg/vectorstore"
	"github.com/flowbaker/triage/pkg/vectorstore/chroma"
	"github.com/flowbaker/triage/pkg/vectorstore/inmemory"
	"github.com/flowbaker/triage/pkg/vectorstore/pgvector"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const healthCheckTimeout = 5 * time.Second

// Container owns every long-lived dependency of the triage service.
type Container struct {
	Config     *Config
	Service    *triage.Service
	Classifier *classifier.Classifier
	Ledger     *redisledger.Ledger
	Notifier   *slacknotify.Notifier

	Interactions domain.VectorCollection
	Policies     domain.VectorCollection

	healthCheckers map[string]domain.HealthChecker
	closers        []func()
}

// NewContainer connects to the configured backends and wires the triage service.
func NewContainer(ctx context.Context, config *Config) (*Container, error) {
	log.Info().Msg("Building triage dependencies")

	c := &Container{
		Config:         config,
		healthCheckers: make(map[string]domain.HealthChecker),
	}

	model, err := newLanguageModel(ctx, config)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if config.ModelRequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.ModelRequestsPerSecond), 1)
	}

	policy := classifier.DefaultRetryPolicy()
	policy.MaxAttempts = config.ModelMaxRetries

	c.Classifier, err = classifier.NewClassifier(classifier.ClassifierDependencies{
		Model:       model,
		Policy:      policy,
		Temperature: float32(config.ModelTemperature),
		MaxTokens:   config.ModelMaxTokens,
		Limiter:     limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	if err := c.buildCollections(ctx); err != nil {
		c.Close()
		return nil, err
	}

	counter, err := tokenizer.NewTiktokenCounter()
	if err != nil {
		c.Close()
		return nil, err
	}

	aggregator := costs.NewAggregator(costs.AggregatorDependencies{
		Counter:      counter,
		SystemPrompt: classifier.SystemPrompt,
	})

	serviceDeps := triage.ServiceDependencies{
		Retriever: retrieval.NewRetriever(retrieval.RetrieverDependencies{
			Interactions: c.Interactions,
			Policies:     c.Policies,
			NResults:     config.VectorQueryNResults,
		}),
		Classifier:   c.Classifier,
		Aggregator:   aggregator,
		Interactions: c.Interactions,
		Pricing: domain.Pricing{
			InputPerMillion:  config.InputCostPerMillion,
			OutputPerMillion: config.OutputCostPerMillion,
		},
		TokenCountModel: config.TokenCountModel,
		NResults:        config.VectorQueryNResults,
		MaxConcurrency:  config.MaxConcurrentRequests,
	}

	if config.RedisAddr != "" {
		c.Ledger, err = redisledger.New(redisledger.LedgerDeps{Context: ctx}, redisledger.Opts{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err != nil {
			c.Close()
			return nil, err
		}

		serviceDeps.Ledger = c.Ledger
		c.healthCheckers["cost_ledger"] = c.Ledger
		c.closers = append(c.closers, func() { _ = c.Ledger.Close() })
	}

	dispatchers, err := c.buildDispatchers(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	if len(dispatchers) > 0 {
		serviceDeps.Dispatcher = dispatchers
	}

	c.Service = triage.NewService(serviceDeps)

	log.Info().
		Str("model", c.Classifier.ModelID()).
		Str("vector_backend", config.VectorBackend).
		Msg("Triage dependencies built successfully")

	return c, nil
}

// buildDispatchers collects every configured destination for routed tickets.
func (c *Container) buildDispatchers(ctx context.Context) (dispatch.Fanout, error) {
	config := c.Config

	var dispatchers dispatch.Fanout

	if brokers := config.Brokers(); len(brokers) > 0 {
		dispatcher := kafka.NewDispatcher(brokers, config.KafkaTopicPrefix)

		dispatchers = append(dispatchers, dispatcher)
		c.closers = append(c.closers, func() { _ = dispatcher.Close() })

		log.Info().Strs("brokers", brokers).Msg("Routed tickets will be dispatched to Kafka")
	}

	if config.MongoURI != "" {
		archive, err := mongoarchive.New(mongoarchive.ArchiveDeps{Context: ctx}, mongoarchive.Opts{
			URI:            config.MongoURI,
			DatabaseName:   config.MongoDatabase,
			CollectionName: config.MongoCollection,
		})
		if err != nil {
			return nil, err
		}

		dispatchers = append(dispatchers, archive)
		c.healthCheckers["archive"] = archive
		c.closers = append(c.closers, func() { _ = archive.Close(context.Background()) })

		log.Info().Str("database", config.MongoDatabase).Msg("Routed tickets will be archived to MongoDB")
	}

	if config.SlackEnabled() {
		notifier, err := slacknotify.New(slacknotify.Opts{
			Token:      config.SlackBotToken,
			ChannelID:  config.SlackChannelID,
			MinUrgency: domain.TicketUrgency(config.SlackMinUrgency),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create slack notifier: %w", err)
		}

		c.Notifier = notifier
		dispatchers = append(dispatchers, notifier)

		log.Info().Str("min_urgency", config.SlackMinUrgency).Msg("Urgent tickets will be posted to Slack")
	}

	return dispatchers, nil
}

func newLanguageModel(ctx context.Context, config *Config) (provider.LanguageModel, error) {
	switch config.ModelProvider {
	case ProviderGroq:
		model := openai.NewWithConfig(openai.Config{
			APIKey:  config.GroqAPIKey,
			Model:   config.ModelName,
			BaseURL: openai.GroqBaseURL,
		})
		model.SetRequestSettings(openai.RequestSettings{
			Model:          config.ModelName,
			MaxTokens:      config.ModelMaxTokens,
			JSONObjectMode: true,
		})

		return model, nil
	case ProviderOpenAI:
		model := openai.New(config.OpenAIAPIKey, config.ModelName)
		model.SetRequestSettings(openai.RequestSettings{
			Model:     config.ModelName,
			MaxTokens: config.ModelMaxTokens,
		})

		return model, nil
	case ProviderAnthropic:
		return anthropic.NewWithConfig(anthropic.Config{
			APIKey:    config.AnthropicAPIKey,
			Model:     config.ModelName,
			MaxTokens: config.ModelMaxTokens,
		}), nil
	case ProviderGemini:
		return gemini.New(ctx, config.GeminiAPIKey, config.ModelName)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", config.ModelProvider)
	}
}

func (c *Container) embedder() vectorstore.Embedder {
	if c.Config.OpenAIAPIKey == "" {
		return nil
	}

	return openai.NewEmbedder(openai.EmbedderConfig{
		APIKey: c.Config.OpenAIAPIKey,
		Model:  c.Config.EmbeddingModel,
	})
}

func (c *Container) buildCollections(ctx context.Context) error {
	config := c.Config
	embedder := c.embedder()

	switch config.VectorBackend {
	case VectorBackendChroma:
		if embedder == nil {
			return fmt.Errorf("chroma backend: %w, set OPENAI_API_KEY", vectorstore.ErrEmbedderRequired)
		}

		client := chroma.NewClient(
			chroma.WithBaseURL(config.ChromaURL),
			chroma.WithEmbedder(embedder),
			chroma.WithTenant(config.ChromaTenant, config.ChromaDatabase),
		)
		c.healthCheckers["vector_store"] = client

		interactions, err := client.Collection(ctx, config.InteractionCollection)
		if err != nil {
			return fmt.Errorf("failed to open collection %s: %w", config.InteractionCollection, err)
		}

		policies, err := client.Collection(ctx, config.PoliciesCollection)
		if err != nil {
			return fmt.Errorf("failed to open collection %s: %w", config.PoliciesCollection, err)
		}

		c.Interactions, c.Policies = interactions, policies
	case VectorBackendPgvector:
		store, err := pgvector.New(pgvector.StoreDeps{
			Context:  ctx,
			Embedder: embedder,
		}, pgvector.Opts{
			URI:        config.PostgresURI,
			Dimensions: config.EmbeddingDimensions,
		})
		if err != nil {
			return err
		}

		c.healthCheckers["vector_store"] = store
		c.closers = append(c.closers, store.Close)

		interactions, err := store.Collection(ctx, config.InteractionCollection)
		if err != nil {
			return err
		}

		policies, err := store.Collection(ctx, config.PoliciesCollection)
		if err != nil {
			return err
		}

		c.Interactions, c.Policies = interactions, policies
	case VectorBackendMemory:
		interactions := inmemory.New(config.InteractionCollection, embedder)

		c.healthCheckers["vector_store"] = interactions
		c.Interactions = interactions
		c.Policies = inmemory.New(config.PoliciesCollection, embedder)

		log.Warn().Msg("Using the in-memory vector store, stored tickets are lost on exit")
	default:
		return fmt.Errorf("unsupported vector backend: %s", config.VectorBackend)
	}

	return nil
}

// Health probes every backing service. A nil value means the service answered.
func (c *Container) Health(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	report := make(map[string]error, len(c.healthCheckers))

	for name, checker := range c.healthCheckers {
		err := checker.Heartbeat(ctx)
		if err != nil {
			log.Warn().Err(err).Str("service", name).Msg("Health check failed")
		}

		report[name] = err
	}

	return report
}

// Close releases backend connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}

	c.closers = nil
}
