package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/reachify/beacon/internal/api"
	"github.com/reachify/beacon/internal/config"
	"github.com/reachify/beacon/internal/mailing"
	"github.com/reachify/beacon/internal/pkg/distlock"
	"github.com/reachify/beacon/internal/pkg/logger"
	"github.com/reachify/beacon/internal/storage"
	"github.com/reachify/beacon/internal/store"
	"github.com/reachify/beacon/internal/tracking"
	"github.com/reachify/beacon/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	slash := strings.Index(rest, "/")
	if slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	log.Println("Beacon outreach server starting")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open PostgreSQL when configured. The memory store runs without it.
	var db *sql.DB
	if cfg.Database.URL != "" {
		dbURL := cfg.Database.URL
		sep := "?"
		if strings.Contains(dbURL, "?") {
			sep = "&"
		}
		if !strings.Contains(dbURL, "connect_timeout") {
			dbURL += sep + "connect_timeout=5"
		}
		log.Printf("DB URL host portion: ...@%s/...", extractHost(dbURL))

		db, err = sql.Open("postgres", dbURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(30 * time.Second)

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			log.Printf("Warning: database ping failed: %v", err)
		} else {
			log.Println("Database connected successfully")
		}
		pingCancel()
	}

	// Initialize the tracking store for the configured backend
	trackingStore, err := store.New(ctx, cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize tracking store: %v", err)
	}
	log.Printf("Tracking store initialized (backend=%s)", cfg.Store.Backend)

	// Redis backs the retention sweep lock. Optional.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v, falling back to PG advisory locks", cfg.Redis.URL, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s", cfg.Redis.URL)
		}
		pingCancel()
	}

	// Outbound mail transport. A misconfigured transport degrades to a
	// mailer that fails sends with the cause; tracking keeps working.
	mailer, err := mailing.NewMailer(cfg.Mailer)
	if err != nil {
		log.Printf("Warning: mailer init failed, sends will be rejected: %v", err)
		mailer = mailing.Disabled(err)
	} else {
		log.Printf("Mailer initialized (provider=%s, from=%s)", cfg.Mailer.Provider, cfg.Mailer.FromEmail)
	}

	// Composition pipeline: merge fields, link rewriting, pixel injection
	rewriter := mailing.NewRewriter(cfg.Server.BaseURL)
	composer := mailing.NewComposer(mailing.NewTemplateService(), rewriter)

	// Optional resume attachment source (local file or S3)
	attachments, err := storage.NewAttachmentSource(ctx, cfg.Attachments)
	if err != nil {
		log.Printf("Warning: attachment source init failed, emails go out without attachments: %v", err)
		attachments = nil
	} else if attachments != nil {
		log.Printf("Attachment source initialized (source=%s)", cfg.Attachments.Source)
	}

	tracker := tracking.NewService(trackingStore)

	// SQS consumer applies engagement events published by edge beacons
	var trackingConsumer *tracking.Consumer
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Printf("Warning: AWS config for SQS consumer failed: %v", err)
		} else {
			sqsClient := sqs.NewFromConfig(awsCfg)
			trackingConsumer = tracking.NewConsumer(sqsClient, cfg.Tracking.QueueURL, tracker)
			trackingConsumer.Start(ctx)
			log.Printf("SQS tracking consumer started (queue=%s)", cfg.Tracking.QueueURL)
		}
	}

	// Retention sweep removes tracking records past the configured age
	if cfg.Retention.Enabled {
		var sweepLock distlock.DistLock
		if redisClient != nil || db != nil {
			sweepLock = distlock.NewLock(redisClient, db, worker.RetentionLockKey, worker.RetentionLockTTL)
		}
		retention := worker.NewRetentionWorker(trackingStore, sweepLock, cfg.Retention)
		go retention.Start(ctx)
		log.Printf("Retention worker started (max_age=%s, interval=%s)", cfg.Retention.MaxAge(), cfg.Retention.Interval())
	}

	handlers := api.NewHandlers(trackingStore, composer, mailer, attachments, tracker)
	server := api.NewServer(&cfg.Server, handlers)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s:%d (base_url=%s)", host, port, cfg.Server.BaseURL)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	// Cancel background tasks
	cancel()

	if trackingConsumer != nil {
		trackingConsumer.Stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}
	if db != nil {
		db.Close()
	}

	log.Println("Server stopped")
}
