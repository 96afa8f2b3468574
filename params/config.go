package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default network endpoints. A local node exposes JSON-RPC and the
// websocket event stream on the same port.
const (
	DefaultRPCURL     = "http://localhost:26300"
	DefaultListenAddr = ":26300"
)

type Client struct {
	RPCURL  string
	Timeout time.Duration // per-request HTTP timeout
}

type Devnet struct {
	ListenAddr string
	// DataDir holds the pebble object store. Empty means the devnet
	// runs on the in-memory store and loses state on restart.
	//
	// Recommended values:
	//   - Throwaway devnet:      "" (in-memory, fastest)
	//   - Local development:     "~/.lightpool/devnet" (survives restarts)
	DataDir     string
	ChainID     string
	LogFile     string
	EventBuffer int // websocket broadcast queue depth per client
}

type Keystore struct {
	Dir string
}

type Config struct {
	Client   Client
	Devnet   Devnet
	Keystore Keystore
}

func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Client: Client{
			RPCURL:  DefaultRPCURL,
			Timeout: 30 * time.Second,
		},
		Devnet: Devnet{
			ListenAddr:  DefaultListenAddr,
			DataDir:     "",
			ChainID:     "lightpool-devnet",
			EventBuffer: 256,
		},
		Keystore: Keystore{
			Dir: home + "/.lightpool/keystore",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Client.RPCURL = getEnv("LIGHTPOOL_RPC_URL", cfg.Client.RPCURL)
	if ms := os.Getenv("LIGHTPOOL_RPC_TIMEOUT_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Client.Timeout = time.Duration(v) * time.Millisecond
		}
	}

	cfg.Devnet.ListenAddr = getEnv("LIGHTPOOL_LISTEN_ADDR", cfg.Devnet.ListenAddr)
	cfg.Devnet.DataDir = getEnv("LIGHTPOOL_DATA_DIR", cfg.Devnet.DataDir)
	cfg.Devnet.ChainID = getEnv("LIGHTPOOL_CHAIN_ID", cfg.Devnet.ChainID)
	cfg.Devnet.LogFile = getEnv("LIGHTPOOL_LOG_FILE", cfg.Devnet.LogFile)
	if n := os.Getenv("LIGHTPOOL_EVENT_BUFFER"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			cfg.Devnet.EventBuffer = v
		}
	}

	cfg.Keystore.Dir = getEnv("LIGHTPOOL_KEYSTORE_DIR", cfg.Keystore.Dir)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
