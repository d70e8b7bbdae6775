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
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/conductor/internal/config"
	"github.com/aristath/conductor/internal/events"
	"github.com/aristath/conductor/internal/executor"
	"github.com/aristath/conductor/internal/httpapi"
	"github.com/aristath/conductor/internal/memory"
	"github.com/aristath/conductor/internal/persistence"
	"github.com/aristath/conductor/internal/reasoning"
	"github.com/aristath/conductor/internal/router"
	"github.com/aristath/conductor/internal/service"
	"github.com/aristath/conductor/internal/tools"
	"github.com/aristath/conductor/internal/tui"
	"github.com/aristath/conductor/internal/workflow"
)

func main() {
	withTUI := flag.Bool("tui", false, "run the terminal monitor alongside the server")
	multiTenant := flag.Bool("multi-tenant", false, "scope task operations to owners")
	flag.Parse()

	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Track runner subprocesses so shutdown can terminate them
	pm := reasoning.NewProcessManager()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	bus := events.NewEventBus()
	defer bus.Close()

	runner := reasoning.NewResilient(reasoning.NewCLIRunner(cfg.Runner, pm), cfg.Retry)
	rt := router.New(cfg.Routing, runner, store)
	registry := tools.NewRegistry()
	mem := memory.NewStoreProvider(store)
	exec := executor.New(store, registry, mem, runner, cfg.Prompts, bus)
	workflows := workflow.NewEngine(store, rt, exec, bus)

	svc := service.New(ctx, store, rt, exec, workflows, bus, service.Options{
		MultiTenant: *multiTenant,
		Concurrency: cfg.Concurrency,
	})
	defer svc.Shutdown()

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewServer(svc),
	}

	httpErr := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	var tuiErr chan error
	var program *tea.Program
	if *withTUI {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			os.Exit(1)
		}
		globalPath := filepath.Join(homeDir, ".conductor", "config.json")
		projectPath := filepath.Join(".conductor", "config.json")

		program = tea.NewProgram(tui.New(bus, cfg, globalPath, projectPath), tea.WithAltScreen())
		tuiErr = make(chan error, 1)
		go func() {
			_, err := program.Run()
			tuiErr <- err
		}()
	}

	select {
	case err := <-httpErr:
		log.Printf("HTTP server error: %v", err)
	case err := <-tuiErr:
		// Monitor exited (user pressed 'q')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	case <-ctx.Done():
		// Restore default signal handling (double Ctrl+C = force exit)
		stop()
		log.Println("Shutdown signal received, cleaning up...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	if err := pm.KillAll(); err != nil {
		log.Printf("Error killing subprocesses: %v", err)
	}

	if program != nil {
		program.Quit()
		select {
		case err := <-tuiErr:
			if err != nil {
				log.Printf("Monitor exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
}

// openStore picks the persistence backend: a SQLite file when DBPath is set,
// otherwise an in-memory store.
func openStore(ctx context.Context, cfg *config.Config) (persistence.Store, error) {
	if cfg.DBPath != "" {
		return persistence.NewSQLiteStore(ctx, cfg.DBPath)
	}
	return persistence.NewMemoryStore(), nil
}
