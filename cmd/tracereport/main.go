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
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/trace.report/internal/api"
	"github.com/banshee-data/trace.report/internal/config"
	"github.com/banshee-data/trace.report/internal/db"
	"github.com/banshee-data/trace.report/internal/session"
	"github.com/banshee-data/trace.report/internal/timeutil"
	"github.com/banshee-data/trace.report/internal/version"
	"github.com/banshee-data/trace.report/internal/visualiser"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", ":50051", "gRPC playback listen address (empty disables)")
	dbPath      = flag.String("db-path", "trace_report.db", "SQLite database path (empty disables persistence)")
	configPath  = flag.String("config", "", "display config JSON file (defaults apply when empty)")
	showVersion = flag.Bool("version", false, "print version and exit")
	maxUpload   = flag.Int64("max-upload-bytes", api.DefaultMaxUploadBytes, "largest accepted recording upload")
)

func loadConfig(path string) (*config.DisplayConfig, error) {
	if path == "" {
		return config.DefaultDisplayConfig(), nil
	}
	return config.LoadDisplayConfig(path)
}

// runMigrate handles "tracereport migrate <action>".
func runMigrate(args []string) int {
	if err := db.RunMigrateCommand(args, *dbPath); err != nil {
		log.Printf("migrate: %v", err)
		if errors.Is(err, db.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if flag.Arg(0) == "migrate" {
		os.Exit(runMigrate(flag.Args()[1:]))
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var database *db.DB
	var store session.Store
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		store = db.NewStore(database, cfg.LeadName)
	}

	sessions := session.NewManager(cfg, store, timeutil.RealClock{})
	defer sessions.Shutdown()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *grpcListen != "" {
		playback := visualiser.NewListener(visualiser.NewGRPCServer(visualiser.NewServer(sessions, timeutil.RealClock{})))
		if err := playback.Start(*grpcListen); err != nil {
			log.Fatalf("Failed to start gRPC server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			playback.Stop()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(sessions, database)
		apiServer.SetMaxUploadBytes(*maxUpload)
		mux := apiServer.ServeMux()
		if database != nil {
			database.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("%s listening on %s", version.String(), *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
