package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	NATS         NATSConfig         `yaml:"nats"`
	Blockchain   BlockchainConfig   `yaml:"blockchain"`
	Distribution DistributionConfig `yaml:"distribution"`
	Community    CommunityConfig    `yaml:"community"`
	CORS         CORSConfig         `yaml:"cors"`
	Admin        AdminConfig        `yaml:"admin"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig message server configuration
type NATSConfig struct {
	URL             string `yaml:"url"`
	Timeout         int    `yaml:"timeout"`
	ReconnectWait   int    `yaml:"reconnect_wait"`
	MaxReconnects   int    `yaml:"max_reconnects"`
	EnableJetStream bool   `yaml:"enable_jetstream"`
}

// BlockchainConfig blockchain configuration
type BlockchainConfig struct {
	Networks map[string]NetworkConfig `yaml:"networks"`

	// DefaultNetwork names the entry in Networks the distribution pipeline
	// submits against.
	DefaultNetwork string `yaml:"defaultNetwork"`
}

// NetworkConfig per-network configuration
type NetworkConfig struct {
	ChainID       int      `yaml:"chainId"`
	Name          string   `yaml:"name"`
	RPCEndpoints  []string `yaml:"rpcEndpoints"`
	TokenContract string   `yaml:"tokenContract"` // MORE token contract address

	PrivateKey string `yaml:"privateKey"` // hex format, without 0x prefix

	GasLimitBase    uint64 `yaml:"gasLimitBase"`    // fixed gas budget per batch tx
	GasPerRecipient uint64 `yaml:"gasPerRecipient"` // marginal gas per transfer in the batch
	MaxGasPriceGwei int64  `yaml:"maxGasPriceGwei"` // submission is deferred above this
	ConfirmTimeout  int    `yaml:"confirmTimeout"`  // seconds to wait for receipt
	Enabled         bool   `yaml:"enabled"`
}

// EngagementConfig engagement-based eligibility and reward configuration
type EngagementConfig struct {
	MinPoints       float64            `yaml:"minPoints"`
	BaseAmount      string             `yaml:"baseAmount"` // token units, decimal string
	PointMultiplier float64            `yaml:"pointMultiplier"`
	ActivityBonuses map[string]float64 `yaml:"activityBonuses"` // activity type -> bonus points per occurrence
}

// ChallengeConfig challenge-based eligibility and reward configuration
type ChallengeConfig struct {
	MinCompletions       int     `yaml:"minCompletions"`
	BaseAmount           string  `yaml:"baseAmount"`
	CompletionMultiplier float64 `yaml:"completionMultiplier"`
	StreakBonus          float64 `yaml:"streakBonus"`
	DifficultyMultiplier float64 `yaml:"difficultyMultiplier"`
}

// DistributionConfig autonomous distribution configuration
type DistributionConfig struct {
	FrequencyHours         int     `yaml:"frequencyHours"`         // cycle interval, default 24
	MaxBatchSize           int     `yaml:"maxBatchSize"`           // recipients per on-chain batch
	PeriodMaxTokens        string  `yaml:"periodMaxTokens"`        // per-cycle token cap, decimal string
	RetryAttempts          int     `yaml:"retryAttempts"`          // in-process submission attempts
	RetryDelaySeconds      int     `yaml:"retryDelaySeconds"`      // delay between in-process attempts
	ExpiryHours            int     `yaml:"expiryHours"`            // claim window per batch
	DualParticipationBonus float64 `yaml:"dualParticipationBonus"` // bonus fraction applied when eligible on both tracks

	Engagement EngagementConfig `yaml:"engagement"`
	Challenges ChallengeConfig  `yaml:"challenges"`
}

// CommunityConfig community data service configuration
type CommunityConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Timeout int    `yaml:"timeout"` // request timeout (seconds)
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"` // max age for preflight requests (seconds)
}

// AdminConfig admin API access control configuration
type AdminConfig struct {
	AllowedIPs   []string `yaml:"allowedIPs"` // allowed IP addresses or CIDR ranges
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"passwordHash"` // bcrypt hash
	TOTPSecret   string   `yaml:"totpSecret"`   // required for the manual trigger endpoint
	JWTSecret    string   `yaml:"jwtSecret"`
}

// LoadConfig loads the configuration file and applies environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	fmt.Printf("✅ [%s] Loaded configuration from %s\n", time.Now().Format("2006-01-02 15:04:05"), configPath)

	overrideFromEnv(&config)
	applyDefaults(&config)

	if len(config.Admin.AllowedIPs) > 0 {
		fmt.Printf("📋 [Config] Admin IP whitelist loaded: %d IPs/CIDRs configured\n", len(config.Admin.AllowedIPs))
	} else {
		fmt.Printf("📋 [Config] Admin IP whitelist: not configured (localhost-only mode)\n")
	}

	if len(config.CORS.AllowedOrigins) > 0 {
		fmt.Printf("📋 [Config] CORS allowed origins loaded: %d origins configured\n", len(config.CORS.AllowedOrigins))
	} else {
		fmt.Printf("📋 [Config] CORS: not configured (will allow all origins *)\n")
	}

	return &config, nil
}

// applyDefaults fills the distribution knobs that have fixed defaults.
func applyDefaults(config *Config) {
	if config.Distribution.FrequencyHours <= 0 {
		config.Distribution.FrequencyHours = 24
	}
	if config.Distribution.MaxBatchSize <= 0 {
		config.Distribution.MaxBatchSize = 100
	}
	if config.Distribution.RetryAttempts <= 0 {
		config.Distribution.RetryAttempts = 3
	}
	if config.Distribution.RetryDelaySeconds <= 0 {
		config.Distribution.RetryDelaySeconds = 60
	}
	if config.Distribution.ExpiryHours <= 0 {
		config.Distribution.ExpiryHours = 24 * 30
	}
	if config.Distribution.DualParticipationBonus <= 0 {
		config.Distribution.DualParticipationBonus = 0.5
	}
	for name, network := range config.Blockchain.Networks {
		if network.MaxGasPriceGwei <= 0 {
			network.MaxGasPriceGwei = 50
		}
		if network.GasLimitBase == 0 {
			network.GasLimitBase = 100000
		}
		if network.GasPerRecipient == 0 {
			network.GasPerRecipient = 35000
		}
		if network.ConfirmTimeout <= 0 {
			network.ConfirmTimeout = 300
		}
		config.Blockchain.Networks[name] = network
	}
}

// overrideFromEnv applies environment variable overrides
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if communityURL := os.Getenv("COMMUNITY_BASE_URL"); communityURL != "" {
		config.Community.BaseURL = communityURL
	}
	if communityKey := os.Getenv("COMMUNITY_API_KEY"); communityKey != "" {
		config.Community.APIKey = communityKey
	}

	if jwtSecret := os.Getenv("ADMIN_JWT_SECRET"); jwtSecret != "" {
		config.Admin.JWTSecret = jwtSecret
	}
	if totpSecret := os.Getenv("ADMIN_TOTP_SECRET"); totpSecret != "" {
		config.Admin.TOTPSecret = totpSecret
	}
	if passwordHash := os.Getenv("ADMIN_PASSWORD_HASH"); passwordHash != "" {
		config.Admin.PasswordHash = passwordHash
	}

	if maxTokens := os.Getenv("DISTRIBUTION_PERIOD_MAX_TOKENS"); maxTokens != "" {
		config.Distribution.PeriodMaxTokens = maxTokens
	}
	if freq := os.Getenv("DISTRIBUTION_FREQUENCY_HOURS"); freq != "" {
		if f, err := strconv.Atoi(freq); err == nil {
			config.Distribution.FrequencyHours = f
		}
	}

	for networkName, networkConfig := range config.Blockchain.Networks {
		// Network-specific private key first (e.g. BASE_PRIVATE_KEY), then
		// the generic PRIVATE_KEY.
		envPrivateKey := fmt.Sprintf("%s_PRIVATE_KEY", strings.ToUpper(networkName))
		if privateKey := os.Getenv(envPrivateKey); privateKey != "" {
			networkConfig.PrivateKey = privateKey
			fmt.Printf("✅ [Config] Loaded private key for network '%s' from environment variable: %s\n", networkName, envPrivateKey)
		} else if privateKey := os.Getenv("PRIVATE_KEY"); privateKey != "" {
			networkConfig.PrivateKey = privateKey
			fmt.Printf("✅ [Config] Loaded private key for network '%s' from environment variable: PRIVATE_KEY\n", networkName)
		}

		envRPC := fmt.Sprintf("%s_RPC_ENDPOINTS", strings.ToUpper(networkName))
		if rpcEndpoints := os.Getenv(envRPC); rpcEndpoints != "" {
			networkConfig.RPCEndpoints = strings.Split(rpcEndpoints, ",")
		}

		if tokenContract := os.Getenv("MORE_TOKEN_CONTRACT"); tokenContract != "" {
			networkConfig.TokenContract = tokenContract
		}

		envMaxGas := fmt.Sprintf("%s_MAX_GAS_PRICE_GWEI", strings.ToUpper(networkName))
		if maxGas := os.Getenv(envMaxGas); maxGas != "" {
			if g, err := strconv.ParseInt(maxGas, 10, 64); err == nil {
				networkConfig.MaxGasPriceGwei = g
			}
		}

		config.Blockchain.Networks[networkName] = networkConfig
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// GetNetworkConfig returns the named enabled network.
func (c *Config) GetNetworkConfig(networkName string) (*NetworkConfig, error) {
	network, exists := c.Blockchain.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not found in config", networkName)
	}

	if !network.Enabled {
		return nil, fmt.Errorf("network %s is disabled", networkName)
	}

	return &network, nil
}

// GetNetworkConfigByChainID returns the enabled network with the given chain ID.
func (c *Config) GetNetworkConfigByChainID(chainID int) (*NetworkConfig, error) {
	for _, network := range c.Blockchain.Networks {
		if network.ChainID == chainID && network.Enabled {
			return &network, nil
		}
	}

	return nil, fmt.Errorf("network with chainID %d not found or disabled", chainID)
}

// DefaultNetwork returns the network the distribution pipeline runs against.
func (c *Config) DefaultNetwork() (*NetworkConfig, error) {
	name := c.Blockchain.DefaultNetwork
	if name == "" {
		for candidate, network := range c.Blockchain.Networks {
			if network.Enabled {
				name = candidate
				break
			}
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no enabled network configured")
	}
	return c.GetNetworkConfig(name)
}
