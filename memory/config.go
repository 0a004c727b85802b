// Package memory is the top-level facade wiring the memory subsystem's
// components together, grounded on the teacher's pkg/core.Client
// (component wiring) and pkg/core.Config (env-driven configuration).
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/agentmem/memcore/pkg/slotstore"
)

// Config configures a Client. Loading it from the environment or a
// config file is a host-side convenience (LoadConfigFromEnv below); the
// core itself never reads flags or the environment on its own.
type Config struct {
	// StateDir holds the local sqlite file (slots + entities + edges).
	StateDir string

	// SlotCategoriesWhitelist, when non-empty, is the only set of
	// categories SlotStore.Set will accept; enforced by
	// pkg/slotstore/sqlite via slotstore.Limits.
	SlotCategoriesWhitelist []slotstore.Category

	// MaxSlots caps the number of live slots per (user, agent) scope;
	// enforced by pkg/slotstore/sqlite via slotstore.Limits.
	MaxSlots int

	// InjectedStateTokenBudget bounds the size of the AutoRecall block.
	InjectedStateTokenBudget int

	Vector VectorConfig
	LLM    LLMConfig
	Embed  EmbedConfig

	AutoCaptureEnabled       bool
	AutoCaptureMinConfidence float64

	ContextWindowMaxTokens int

	// SnowflakeNodeID seeds the opaque id generator (0-1023).
	SnowflakeNodeID int64
}

// VectorConfig configures the vector database connection.
type VectorConfig struct {
	Host       string
	Port       int
	Collection string
	VectorSize int
}

// LLMConfig configures the extraction LLM.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// EmbedConfig configures the embedding provider.
type EmbedConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// DefaultConfig returns a Config with the spec's stated defaults filled
// in; callers still need to supply endpoints and credentials.
func DefaultConfig() *Config {
	return &Config{
		StateDir:                 "./data",
		MaxSlots:                 1000,
		InjectedStateTokenBudget: 2000,
		Vector: VectorConfig{
			Host:       "localhost",
			Port:       6333,
			Collection: "agent_memory",
			VectorSize: 1536,
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Embed: EmbedConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		AutoCaptureEnabled:       true,
		AutoCaptureMinConfidence: 0.7,
		ContextWindowMaxTokens:   12000,
	}
}

// SlotDBPath returns the path to the shared sqlite file under StateDir.
func (c *Config) SlotDBPath() string {
	return filepath.Join(c.StateDir, "memory.db")
}

// SlotLimits derives the slotstore.Limits the sqlite backend enforces
// from this Config.
func (c *Config) SlotLimits() slotstore.Limits {
	return slotstore.Limits{
		CategoryWhitelist: c.SlotCategoriesWhitelist,
		MaxSlots:          c.MaxSlots,
	}
}

// LoadConfigFromEnv reads MEMCORE_* environment variables into a Config
// on top of DefaultConfig, mirroring the teacher's LoadConfigFromEnv.
// Config loading/CLI wiring is explicitly the host's job, not the
// core's (spec §1 Non-goals); this exists purely as an opt-in
// convenience a host may call before constructing a Client.
func LoadConfigFromEnv() (*Config, error) {
	_ = godotenv.Load() // best-effort; missing .env is not an error

	cfg := DefaultConfig()

	if v := os.Getenv("MEMCORE_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("MEMCORE_MAX_SLOTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("memory: MEMCORE_MAX_SLOTS: %w", err)
		}
		cfg.MaxSlots = n
	}
	if v := os.Getenv("MEMCORE_SLOT_CATEGORIES_WHITELIST"); v != "" {
		var whitelist []slotstore.Category
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				whitelist = append(whitelist, slotstore.Category(part))
			}
		}
		cfg.SlotCategoriesWhitelist = whitelist
	}
	if v := os.Getenv("MEMCORE_VECTOR_HOST"); v != "" {
		cfg.Vector.Host = v
	}
	if v := os.Getenv("MEMCORE_VECTOR_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("memory: MEMCORE_VECTOR_PORT: %w", err)
		}
		cfg.Vector.Port = n
	}
	if v := os.Getenv("MEMCORE_VECTOR_COLLECTION"); v != "" {
		cfg.Vector.Collection = v
	}
	if v := os.Getenv("MEMCORE_VECTOR_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("memory: MEMCORE_VECTOR_SIZE: %w", err)
		}
		cfg.Vector.VectorSize = n
	}
	if v := os.Getenv("MEMCORE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("MEMCORE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("MEMCORE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MEMCORE_EMBED_BASE_URL"); v != "" {
		cfg.Embed.BaseURL = v
	}
	if v := os.Getenv("MEMCORE_EMBED_API_KEY"); v != "" {
		cfg.Embed.APIKey = v
	}
	if v := os.Getenv("MEMCORE_EMBED_MODEL"); v != "" {
		cfg.Embed.Model = v
	}
	if v := os.Getenv("MEMCORE_AUTO_CAPTURE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("memory: MEMCORE_AUTO_CAPTURE_ENABLED: %w", err)
		}
		cfg.AutoCaptureEnabled = b
	}
	if v := os.Getenv("MEMCORE_AUTO_CAPTURE_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("memory: MEMCORE_AUTO_CAPTURE_MIN_CONFIDENCE: %w", err)
		}
		cfg.AutoCaptureMinConfidence = f
	}

	return cfg, cfg.Validate()
}

// Validate reports whether cfg is internally consistent enough to build
// a Client from.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("memory: StateDir must not be empty")
	}
	if c.Vector.Collection == "" {
		return fmt.Errorf("memory: Vector.Collection must not be empty")
	}
	if c.Vector.VectorSize <= 0 {
		return fmt.Errorf("memory: Vector.VectorSize must be positive")
	}
	if c.AutoCaptureMinConfidence < 0 || c.AutoCaptureMinConfidence > 1 {
		return fmt.Errorf("memory: AutoCaptureMinConfidence must be in [0,1]")
	}
	return nil
}

func (c *Config) vectorEndpoint() string {
	return fmt.Sprintf("http://%s:%d", c.Vector.Host, c.Vector.Port)
}
