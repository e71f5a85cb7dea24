package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-driven settings for the gateway.
type Config struct {
	Port    string
	Network string // "mainnet" or "testnet"

	MirrorBaseURL string
	IPFSAPIURL    string
	SignerAPIURL  string
	DatabaseURL   string

	// Default topic IDs the explore feed is built from.
	ExploreTopicID string
	AdsTopicID     string

	// Origin used when building shareable deep links.
	ShareOrigin string

	// Bounds for the cross-step dependency wait in publish workflows.
	DependencyPoll    time.Duration
	DependencyTimeout time.Duration

	// Retention for idle publish workflows before the registry sweeps them.
	WorkflowTTL time.Duration

	MaxMediaBytes int64
}

const (
	mainnetMirrorURL = "https://mainnet-public.mirrornode.hedera.com"
	testnetMirrorURL = "https://testnet.mirrornode.hedera.com"
)

// Load reads configuration from the environment. A .env file is honored
// when present so local runs match the container setup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	network := strings.ToLower(envDefault("IBIRD_NETWORK", "mainnet"))
	if network != "mainnet" && network != "testnet" {
		return nil, fmt.Errorf("unsupported network %q (want mainnet or testnet)", network)
	}

	mirrorURL := os.Getenv("MIRROR_API_URL")
	if mirrorURL == "" {
		mirrorURL = mainnetMirrorURL
		if network == "testnet" {
			mirrorURL = testnetMirrorURL
		}
	}

	cfg := &Config{
		Port:              envDefault("PORT", "3001"),
		Network:           network,
		MirrorBaseURL:     strings.TrimRight(mirrorURL, "/"),
		IPFSAPIURL:        envDefault("IPFS_API_URL", "http://127.0.0.1:5001"),
		SignerAPIURL:      os.Getenv("SIGNER_API_URL"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ExploreTopicID:    envDefault("EXPLORE_TOPIC_ID", "0.0.1330462"),
		AdsTopicID:        envDefault("ADS_TOPIC_ID", "0.0.1627200"),
		ShareOrigin:       envDefault("SHARE_ORIGIN", "https://ibird.io"),
		DependencyPoll:    envSeconds("WORKFLOW_DEPENDENCY_POLL_SEC", 1),
		DependencyTimeout: envSeconds("WORKFLOW_DEPENDENCY_TIMEOUT_SEC", 30),
		WorkflowTTL:       envSeconds("WORKFLOW_TTL_SEC", 1800),
		MaxMediaBytes:     100 << 20,
	}

	return cfg, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return time.Duration(def) * time.Second
}
