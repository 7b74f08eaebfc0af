package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/empire-labs/chad/internal/config"
	"github.com/empire-labs/chad/internal/kb"
	"github.com/empire-labs/chad/internal/llm"
	"github.com/empire-labs/chad/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the vector collection from the knowledge base",
		Long:  "Chunk and embed every document under the knowledge-base directory, then atomically swap in the new collection",
		RunE:  runIngest,
	}

	cmd.Flags().String("kb-dir", "", "Knowledge-base directory (overrides CHAD_KB_DIR)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.RAGEnabled {
		return fmt.Errorf("retrieval is disabled (CHAD_RAG_ENABLED=false), nothing to ingest")
	}

	if kbDir, _ := cmd.Flags().GetString("kb-dir"); kbDir != "" {
		cfg.KBDir = kbDir
	}

	client := llm.New(llm.Config{
		BaseURL:         cfg.LLMBaseURL,
		APIKey:          cfg.LLMAPIKey,
		ChatModel:       cfg.ChatModel,
		EmbedModel:      cfg.EmbedModel,
		EmbedDimensions: cfg.EmbedDimensions,
	})

	store, cleanup, err := openIndexStore(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	chunkCfg := service.DefaultChunkConfig()
	chunkCfg.MaxChars = cfg.ChunkMaxChars
	chunkCfg.Overlap = cfg.ChunkOverlap

	svc := service.NewIngestService(kb.NewStore(cfg.KBDir), client, store, chunkCfg)

	report, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	log.Printf("ingest complete: %d documents, %d chunks, %d embedded", report.Documents, report.Chunks, report.Embedded)
	if report.Degraded() {
		log.Printf("ingest degraded: %d chunks skipped after retries", len(report.Skipped))
		for _, s := range report.Skipped {
			log.Printf("  skipped %s (%s): %v", s.ChunkID, s.Document, s.Err)
		}
	}
	return nil
}
