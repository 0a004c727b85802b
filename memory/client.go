package memory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agentmem/memcore/internal/idgen"
	"github.com/agentmem/memcore/internal/sqlstore"
	"github.com/agentmem/memcore/pkg/autocapture"
	"github.com/agentmem/memcore/pkg/autorecall"
	"github.com/agentmem/memcore/pkg/contextwindow"
	"github.com/agentmem/memcore/pkg/embedgateway"
	embedopenai "github.com/agentmem/memcore/pkg/embedgateway/openai"
	"github.com/agentmem/memcore/pkg/graphstore"
	graphsqlite "github.com/agentmem/memcore/pkg/graphstore/sqlite"
	"github.com/agentmem/memcore/pkg/llmextractor"
	"github.com/agentmem/memcore/pkg/llmprovider"
	llmopenai "github.com/agentmem/memcore/pkg/llmprovider/openai"
	"github.com/agentmem/memcore/pkg/slotstore"
	slotsqlite "github.com/agentmem/memcore/pkg/slotstore/sqlite"
	"github.com/agentmem/memcore/pkg/tools"
	"github.com/agentmem/memcore/pkg/vectorgateway"
	"github.com/agentmem/memcore/pkg/vectorgateway/qdrant"
)

// Client wires every component into one entry point, the way the
// teacher's pkg/core.Client owns a Storage/LLM/Embedder set behind a
// single config-driven constructor.
type Client struct {
	cfg *Config

	db      *sql.DB
	slots   slotstore.Store
	graph   graphstore.Store
	vectors vectorgateway.Gateway
	embed   *embedgateway.Gateway
	extract *llmextractor.Extractor
	llm     llmprovider.Provider
}

// New builds a Client from cfg. The LLM provider is optional: when
// cfg.LLM.APIKey is empty, New still succeeds, AutoCaptureEnabled
// reports false, AutoCaptureDeps returns an error, and
// memory_auto_capture with use_llm=true reports an in-band error, so a
// host that only wants slots/graph/vector tools can omit it.
func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := idgen.Init(cfg.SnowflakeNodeID); err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	db, err := sqlstore.Open(cfg.SlotDBPath())
	if err != nil {
		return nil, fmt.Errorf("memory: open state db: %w", err)
	}

	slots, err := slotsqlite.New(db, cfg.SlotLimits())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: init slot store: %w", err)
	}

	graph, err := graphsqlite.New(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: init graph store: %w", err)
	}

	vectors := qdrant.New(qdrant.Config{
		Endpoint:   cfg.vectorEndpoint(),
		Collection: cfg.Vector.Collection,
		VectorSize: cfg.Vector.VectorSize,
	})
	if err := vectors.EnsureCollection(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: ensure vector collection: %w", err)
	}

	var embedProvider embedgateway.Provider
	if cfg.Embed.APIKey != "" {
		embedProvider = embedopenai.New(embedopenai.Config{
			APIKey:     cfg.Embed.APIKey,
			BaseURL:    cfg.Embed.BaseURL,
			Model:      cfg.Embed.Model,
			Dimensions: cfg.Embed.Dimensions,
		})
	}
	embed := embedgateway.New(embedProvider, cfg.Embed.Dimensions)

	var llm llmprovider.Provider
	var extract *llmextractor.Extractor
	if cfg.LLM.APIKey != "" {
		llm = llmopenai.New(llmopenai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		extract = llmextractor.New(llm, cfg.AutoCaptureMinConfidence)
	}

	return &Client{
		cfg:     cfg,
		db:      db,
		slots:   slots,
		graph:   graph,
		vectors: vectors,
		embed:   embed,
		extract: extract,
		llm:     llm,
	}, nil
}

// Close releases the shared database handle and any provider
// connections. The vector database and LLM are remote HTTP services
// with nothing to close beyond the http.Client they already own.
func (c *Client) Close() error {
	if c.llm != nil {
		_ = c.llm.Close()
	}
	_ = c.vectors.Close()
	return c.db.Close()
}

// AutoCaptureDeps returns the Deps for autocapture.Run pre-wired from
// this Client's components. Returns an error if no LLM was configured,
// since AutoCapture cannot extract without one.
func (c *Client) AutoCaptureDeps() (autocapture.Deps, error) {
	if c.extract == nil {
		return autocapture.Deps{}, fmt.Errorf("memory: auto-capture requires an LLM (set LLM.APIKey)")
	}
	return autocapture.Deps{
		Slots:         c.slots,
		Vectors:       c.vectors,
		Embedder:      c.embed,
		Extractor:     c.extract,
		MinConfidence: c.cfg.AutoCaptureMinConfidence,
		DupThreshold:  0.95,
		WindowConfig:  c.ContextWindowConfig(),
	}, nil
}

// AutoRecallDeps returns the Deps for autorecall.Run pre-wired from this
// Client's components.
func (c *Client) AutoRecallDeps() autorecall.Deps {
	return autorecall.Deps{
		Slots:       c.slots,
		Graph:       c.graph,
		Vectors:     c.vectors,
		Embedder:    c.embed,
		TokenBudget: c.cfg.InjectedStateTokenBudget,
	}
}

// ToolDeps returns the Deps every pkg/tools function expects. Extractor
// is nil when no LLM was configured; memory_auto_capture with
// use_llm=true will then report an in-band error, all other tools are
// unaffected.
func (c *Client) ToolDeps() *tools.Deps {
	return &tools.Deps{
		Slots:         c.slots,
		Graph:         c.graph,
		Vectors:       c.vectors,
		Embedder:      c.embed,
		Extractor:     c.extract,
		MinConfidence: c.cfg.AutoCaptureMinConfidence,
		DupThreshold:  0.95,
	}
}

// AutoCaptureEnabled reports whether the host should invoke
// autocapture.Run for this configuration (spec §6's auto-capture
// enabled flag, honored by the host's turn loop rather than by Run
// itself, so a host can flip it per-agent without reconstructing the
// Client).
func (c *Client) AutoCaptureEnabled() bool {
	return c.cfg.AutoCaptureEnabled && c.extract != nil
}

// ContextWindowConfig returns the contextwindow.Config derived from
// this Client's configuration, for hosts that select their own message
// window before calling autocapture.Run directly.
func (c *Client) ContextWindowConfig() contextwindow.Config {
	return contextwindow.Config{MaxConversationTokens: c.cfg.ContextWindowMaxTokens}
}

// Slots exposes the underlying slot store for hosts that need direct
// access beyond the tool surface (e.g. bulk migration scripts).
func (c *Client) Slots() slotstore.Store { return c.slots }

// Graph exposes the underlying graph store.
func (c *Client) Graph() graphstore.Store { return c.graph }

// Vectors exposes the underlying vector gateway.
func (c *Client) Vectors() vectorgateway.Gateway { return c.vectors }
