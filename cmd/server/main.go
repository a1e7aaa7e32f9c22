package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gwi.com/chat-memory/internal/api"
	"gwi.com/chat-memory/internal/config"
	"gwi.com/chat-memory/internal/core"
	"gwi.com/chat-memory/internal/extract"
	"gwi.com/chat-memory/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.Debug() {
		log.Println("Service starting in DEBUG mode")
		log.Printf("Provider %s, embedder %s", cfg.LLMProvider, cfg.Embedder)
	}

	ingestPath := flag.String("ingest", "", "Extract the given file, store it as a user turn and exit")
	replMode := flag.Bool("repl", false, "Chat on the console instead of serving HTTP")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := newServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer deps.Close()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL, deps.pipeline.Dimensions())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	chatService := core.NewChatService(dbStore, deps.provider,
		core.NewRetriever(deps.pipeline), core.NewHistoryPersister(deps.pipeline))
	defer chatService.CloseAll()

	if *ingestPath != "" {
		log.Printf("Starting ingestion of %s...", *ingestPath)
		text := extract.Text(*ingestPath)
		if text == "" {
			log.Fatalf("Nothing to ingest from %s", *ingestPath)
		}
		report, err := chatService.Ingest(ctx, text)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		log.Printf("Ingestion complete. Stored %d turns with %d embeddings.", report.Turns, report.Vectors)
		return
	}

	if *replMode {
		if err := runREPL(ctx, chatService, os.Stdin, os.Stdout); err != nil {
			log.Fatalf("Console session failed: %v", err)
		}
		return
	}

	if err := serve(ctx, cfg, chatService); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server exiting gracefully")
}

func serve(ctx context.Context, cfg config.Config, chatService *core.ChatService) error {
	apiHandler := api.NewAPIHandler(chatService)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Streams stay open for the whole completion.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
