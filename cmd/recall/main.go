package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/spf13/cobra"

	"github.com/stellarlinkco/recall/internal/compact"
	"github.com/stellarlinkco/recall/internal/config"
	"github.com/stellarlinkco/recall/internal/memory"
	"github.com/stellarlinkco/recall/internal/session"
)

// CompleterFactory creates the model client for compaction (allows
// mocking in tests).
type CompleterFactory func(cfg *config.Config) (compact.Completer, func(), error)

// DefaultCompleterFactory picks the model wiring from config: a plain
// chat-completions client when a base URL is set, otherwise a full agent
// runtime through the provider SDK.
func DefaultCompleterFactory(cfg *config.Config) (compact.Completer, func(), error) {
	if cfg.Provider.APIKey == "" {
		return nil, nil, fmt.Errorf("API key not set. Set RECALL_API_KEY / ANTHROPIC_API_KEY or edit %s", config.ConfigPath())
	}

	if cfg.Provider.BaseURL != "" && cfg.Provider.Type == "openai" {
		return compact.NewHTTPCompleter(cfg.Provider.BaseURL, cfg.Provider.MaxTokens), func() {}, nil
	}

	var provider api.ModelFactory
	switch cfg.Provider.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Provider.Model,
			MaxTokens: cfg.Provider.MaxTokens,
		}
	default: // "anthropic" or empty
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Provider.Model,
			MaxTokens: cfg.Provider.MaxTokens,
		}
	}

	rt, err := api.New(context.Background(), api.Options{
		ModelFactory: provider,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create runtime: %w", err)
	}
	return session.NewRuntimeCompleter(rt, "compact"), func() { rt.Close() }, nil
}

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "recall - conversation compaction and hybrid memory retrieval",
}

var compactCmd = &cobra.Command{
	Use:   "compact [request.json]",
	Short: "Compact a conversation transcript into a structured summary artifact",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCompact,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a hybrid (dense + lexical) search over the chunk store",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var indexCmd = &cobra.Command{
	Use:   "index <chunks.json>",
	Short: "Upsert chunks into the store from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <source>",
	Short: "Delete every chunk carrying a source label",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recall configuration and store statistics",
	RunE:  runStatus,
}

var (
	sourcesFlag   []string
	limitFlag     int
	thresholdFlag bool
)

func init() {
	searchCmd.Flags().StringSliceVar(&sourcesFlag, "source", nil, "Restrict search to these source labels")
	searchCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum results (default from config)")
	searchCmd.Flags().BoolVar(&thresholdFlag, "dynamic-threshold", false, "Cut results at the confidence-adaptive threshold")
	rootCmd.AddCommand(compactCmd, searchCmd, indexCmd, forgetCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCompact(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var data []byte
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read compaction request: %w", err)
	}

	var ev session.BeforeCompactEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("parse compaction request: %w", err)
	}

	client, closeFn, err := DefaultCompleterFactory(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	registry := session.NewRegistry()
	registry.Set(ev.SessionID, runtimeFromConfig(cfg))

	compactor := session.NewCompactor(registry, client, session.StaticModel{
		Model:  cfg.Provider.Model,
		APIKey: cfg.Provider.APIKey,
	})

	artifact := compactor.OnBeforeCompact(cmd.Context(), ev)
	out, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runtimeFromConfig(cfg *config.Config) *session.SafeguardRuntime {
	guard := cfg.Compaction.QualityGuard()
	return &session.SafeguardRuntime{
		ContextWindowTokens:    &cfg.Compaction.ContextWindowTokens,
		RecentTurnsPreserve:    &cfg.Compaction.RecentTurnsPreserve,
		QualityGuardEnabled:    &guard,
		QualityGuardMaxRetries: &cfg.Compaction.QualityGuardMaxRetries,
		MaxHistoryShare:        &cfg.Compaction.MaxHistoryShare,
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := memory.Open(cfg.Retrieval.DBPath)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	defer store.Close()

	limit := limitFlag
	if limit <= 0 {
		limit = cfg.Retrieval.Limit
	}

	results, err := store.SearchHybrid(cmd.Context(), memory.HybridQuery{
		Query:   args[0],
		Limit:   limit,
		Model:   cfg.Retrieval.EmbeddingModel,
		Sources: sourcesFlag,
		Recency: memory.RecencyConfig{
			Enabled:    cfg.Retrieval.Recency.Enabled,
			Lambda:     cfg.Retrieval.Recency.Lambda,
			WindowDays: cfg.Retrieval.Recency.WindowDays,
		},
		VectorWeight:     cfg.Retrieval.VectorWeight,
		TextWeight:       cfg.Retrieval.TextWeight,
		DynamicThreshold: thresholdFlag || cfg.Retrieval.DynamicThreshold,
		SnippetMaxChars:  cfg.Retrieval.SnippetMaxChars,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, r := range results {
		loc := r.Path
		if r.StartLine > 0 {
			loc = fmt.Sprintf("%s:%d-%d", r.Path, r.StartLine, r.EndLine)
		}
		fmt.Printf("%.4f  %s  [%s]\n", r.Score, loc, r.Source)
		if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
			fmt.Printf("        %s\n", snippet)
		}
	}
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read chunks: %w", err)
	}
	var chunks []memory.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("parse chunks: %w", err)
	}

	store, err := memory.Open(cfg.Retrieval.DBPath)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	defer store.Close()

	if err := store.UpsertChunks(cmd.Context(), chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	fmt.Printf("Indexed %d chunk(s)\n", len(chunks))
	return nil
}

func runForget(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := memory.Open(cfg.Retrieval.DBPath)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	defer store.Close()

	n, err := store.DeleteBySource(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("forget source: %w", err)
	}
	fmt.Printf("Removed %d chunk(s) for source %q\n", n, args[0])
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Context window: %d tokens\n", cfg.Compaction.ContextWindowTokens)
	fmt.Printf("Quality guard: enabled=%v retries=%d\n", cfg.Compaction.QualityGuard(), cfg.Compaction.QualityGuardMaxRetries)
	fmt.Printf("Chunk store: %s\n", cfg.Retrieval.DBPath)

	if _, err := os.Stat(cfg.Retrieval.DBPath); err != nil {
		fmt.Println("Store: not initialized (run 'recall index')")
		return nil
	}
	store, err := memory.Open(cfg.Retrieval.DBPath)
	if err != nil {
		fmt.Printf("Store: error (%v)\n", err)
		return nil
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		fmt.Printf("Store: error (%v)\n", err)
		return nil
	}
	fmt.Printf("Store: %d chunk(s), %d embedded, %d source(s)\n", stats.Chunks, stats.Embedded, stats.Sources)
	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}
