package initialization

import (
	"errors"
	"fmt"
	"strings"

	mongoarchive "github.com/flowbaker/triage/pkg/archive/mongo"
	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/reports"
	"github.com/flowbaker/triage/pkg/vectorstore/chroma"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	VectorBackendChroma   = "chroma"
	VectorBackendPgvector = "pgvector"
	VectorBackendMemory   = "memory"

	configFileName = "triage_config"
)

// Config holds all triage service configuration. It is read once at startup.
type Config struct {
	HTTPAddress string
	APIKey      string
	JWTSecret   string
	LogLevel    string

	ModelProvider          string
	ModelName              string
	ModelTemperature       float64
	ModelMaxRetries        int
	ModelMaxTokens         int
	ModelRequestsPerSecond float64

	InputCostPerMillion  float64
	OutputCostPerMillion float64
	TokenCountModel      string

	VectorBackend         string
	VectorQueryNResults   int
	ChromaURL             string
	ChromaTenant          string
	ChromaDatabase        string
	PostgresURI           string
	InteractionCollection string
	PoliciesCollection    string
	EmbeddingModel        string
	EmbeddingDimensions   int

	GroqAPIKey      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers     string
	KafkaTopicPrefix string

	SlackBotToken       string
	SlackChannelID      string
	SlackMinUrgency     string
	DailyReportSchedule string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	MaxConcurrentRequests int
}

// SlackEnabled reports whether urgent ticket alerts are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

// Brokers splits the comma separated broker list.
func (c *Config) Brokers() []string {
	var brokers []string

	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}

	return brokers
}

// ProviderAPIKey returns the API key of the configured model provider.
func (c *Config) ProviderAPIKey() string {
	switch c.ModelProvider {
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return ""
	}
}

var envMappings = map[string]string{
	"HTTPAddress":            "HTTP_ADDRESS",
	"APIKey":                 "TRIAGE_API_KEY",
	"JWTSecret":              "TRIAGE_JWT_SECRET",
	"LogLevel":               "LOG_LEVEL",
	"ModelProvider":          "MODEL_PROVIDER",
	"ModelName":              "MODEL_NAME",
	"ModelTemperature":       "MODEL_TEMPERATURE",
	"ModelMaxRetries":        "MODEL_MAX_RETRIES",
	"ModelMaxTokens":         "MODEL_MAX_TOKENS",
	"ModelRequestsPerSecond": "MODEL_REQUESTS_PER_SECOND",
	"InputCostPerMillion":    "INPUT_COST_PER_MILLION",
	"OutputCostPerMillion":   "OUTPUT_COST_PER_MILLION",
	"TokenCountModel":        "TOKEN_COUNT_MODEL",
	"VectorBackend":          "VECTOR_BACKEND",
	"VectorQueryNResults":    "VECTOR_QUERY_N_RESULTS",
	"ChromaURL":              "CHROMA_URL",
	"ChromaTenant":           "CHROMA_TENANT",
	"ChromaDatabase":         "CHROMA_DATABASE",
	"PostgresURI":            "POSTGRES_URI",
	"InteractionCollection":  "INTERACTION_COLLECTION",
	"PoliciesCollection":     "POLICIES_COLLECTION",
	"EmbeddingModel":         "EMBEDDING_MODEL",
	"EmbeddingDimensions":    "EMBEDDING_DIMENSIONS",
	"GroqAPIKey":             "GROQ_API_KEY",
	"OpenAIAPIKey":           "OPENAI_API_KEY",
	"AnthropicAPIKey":        "ANTHROPIC_API_KEY",
	"GeminiAPIKey":           "GEMINI_API_KEY",
	"RedisAddr":              "REDIS_ADDR",
	"RedisPassword":          "REDIS_PASSWORD",
	"RedisDB":                "REDIS_DB",
	"KafkaBrokers":           "KAFKA_BROKERS",
	"KafkaTopicPrefix":       "KAFKA_TOPIC_PREFIX",
	"SlackBotToken":          "SLACK_BOT_TOKEN",
	"SlackChannelID":         "SLACK_CHANNEL_ID",
	"SlackMinUrgency":        "SLACK_MIN_URGENCY",
	"DailyReportSchedule":    "DAILY_REPORT_SCHEDULE",
	"MongoURI":               "MONGO_URI",
	"MongoDatabase":          "MONGO_DATABASE",
	"MongoCollection":        "MONGO_COLLECTION",
	"MaxConcurrentRequests":  "MAX_CONCURRENT_REQUESTS",
}

// LoadConfig loads configuration from files and environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.triage")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	log.Debug().
		Str("provider", config.ModelProvider).
		Str("model", config.ModelName).
		Str("vector_backend", config.VectorBackend).
		Msg("Config loaded")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("LogLevel", "info")

	v.SetDefault("ModelProvider", ProviderGroq)
	v.SetDefault("ModelName", "deepseek-r1-distill-llama-70b")
	v.SetDefault("ModelTemperature", 0.0)
	v.SetDefault("ModelMaxRetries", 3)
	v.SetDefault("ModelMaxTokens", 1024)
	v.SetDefault("ModelRequestsPerSecond", 0.0)

	v.SetDefault("InputCostPerMillion", 0.15)
	v.SetDefault("OutputCostPerMillion", 0.60)
	v.SetDefault("TokenCountModel", "gpt-3.5-turbo")

	v.SetDefault("VectorBackend", VectorBackendChroma)
	v.SetDefault("VectorQueryNResults", 1)
	v.SetDefault("ChromaURL", chroma.DefaultBaseURL)
	v.SetDefault("ChromaTenant", chroma.DefaultTenant)
	v.SetDefault("ChromaDatabase", chroma.DefaultDatabase)
	v.SetDefault("InteractionCollection", "customer_interaction")
	v.SetDefault("PoliciesCollection", "customer_policies")
	v.SetDefault("EmbeddingDimensions", 1536)

	v.SetDefault("KafkaTopicPrefix", "triage.routed")

	v.SetDefault("SlackMinUrgency", string(domain.TicketUrgency_Critical))
	v.SetDefault("DailyReportSchedule", reports.DefaultSchedule)

	v.SetDefault("MongoDatabase", mongoarchive.DefaultDatabaseName)
	v.SetDefault("MongoCollection", mongoarchive.DefaultCollectionName)

	v.SetDefault("MaxConcurrentRequests", 5)
}

// validateConfig validates the required configuration fields
func validateConfig(config *Config) error {
	var missingVars []string
	var invalid []string

	switch config.ModelProvider {
	case ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		if config.ProviderAPIKey() == "" {
			missingVars = append(missingVars, strings.ToUpper(config.ModelProvider)+"_API_KEY")
		}
	default:
		invalid = append(invalid, fmt.Sprintf("MODEL_PROVIDER=%q", config.ModelProvider))
	}

	if config.ModelName == "" {
		missingVars = append(missingVars, "MODEL_NAME")
	}

	switch config.VectorBackend {
	case VectorBackendChroma:
		if config.ChromaURL == "" {
			missingVars = append(missingVars, "CHROMA_URL")
		}

		if config.OpenAIAPIKey == "" {
			missingVars = append(missingVars, "OPENAI_API_KEY")
		}
	case VectorBackendPgvector:
		if config.PostgresURI == "" {
			missingVars = append(missingVars, "POSTGRES_URI")
		}

		if config.OpenAIAPIKey == "" {
			missingVars = append(missingVars, "OPENAI_API_KEY")
		}
	case VectorBackendMemory:
	default:
		invalid = append(invalid, fmt.Sprintf("VECTOR_BACKEND=%q", config.VectorBackend))
	}

	if config.InteractionCollection == "" {
		missingVars = append(missingVars, "INTERACTION_COLLECTION")
	}

	if config.PoliciesCollection == "" {
		missingVars = append(missingVars, "POLICIES_COLLECTION")
	}

	if config.ModelTemperature < 0 {
		invalid = append(invalid, "MODEL_TEMPERATURE must not be negative")
	}

	if config.ModelMaxRetries < 1 {
		invalid = append(invalid, "MODEL_MAX_RETRIES must be at least 1")
	}

	if config.InputCostPerMillion < 0 || config.OutputCostPerMillion < 0 {
		invalid = append(invalid, "token rates must not be negative")
	}

	if config.VectorQueryNResults < 1 {
		invalid = append(invalid, "VECTOR_QUERY_N_RESULTS must be at least 1")
	}

	if (config.SlackBotToken == "") != (config.SlackChannelID == "") {
		invalid = append(invalid, "SLACK_BOT_TOKEN and SLACK_CHANNEL_ID must be set together")
	}

	if !domain.TicketUrgency(config.SlackMinUrgency).IsValid() {
		invalid = append(invalid, fmt.Sprintf("SLACK_MIN_URGENCY=%q", config.SlackMinUrgency))
	}

	if config.MaxConcurrentRequests < 1 {
		invalid = append(invalid, "MAX_CONCURRENT_REQUESTS must be at least 1")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, "; "))
	}

	return nil
}
