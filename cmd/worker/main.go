package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drawing-trainer/api/rest/routes"
	"drawing-trainer/config"
	"drawing-trainer/core/monitoring"
	"drawing-trainer/core/orchestrator"
	"drawing-trainer/core/queue"
	"drawing-trainer/core/repository"
	"drawing-trainer/storage"
	"drawing-trainer/training/softmax"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected successfully")

	// Initialize object store
	blobs, err := storage.NewBlobStore(ctx, storage.Options{
		Endpoint:       cfg.Storage.Endpoint,
		AccessKey:      cfg.Storage.AccessKey,
		SecretKey:      cfg.Storage.SecretKey,
		Region:         cfg.Storage.Region,
		DrawingsBucket: cfg.Storage.DrawingsBucket,
		ModelsBucket:   cfg.Storage.ModelsBucket,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	drawingRepo := repository.NewDrawingRepository(db)
	modelRepo := repository.NewModelRepository(db)

	// Initialize orchestrator
	collector := monitoring.NewCollector()
	trainers := softmax.NewFactory(blobs)
	orch := orchestrator.New(jobRepo, drawingRepo, blobs, modelRepo, trainers, collector)

	// Connect to the job queue
	consumer, err := queue.NewConsumer(cfg.AMQPURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer consumer.Close()

	// Admin API
	r := mux.NewRouter()
	routes.SetupRoutes(r, jobRepo, modelRepo)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}
	go func() {
		log.Printf("Admin API listening on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Admin server failed: %v", err)
		}
	}()

	log.Println("Starting training worker...")
	if err := consumer.Consume(ctx, func(ctx context.Context, msg queue.JobMessage) error {
		return orch.ProcessJob(ctx, msg.JobID, msg.Config)
	}); err != nil {
		log.Printf("Consumer stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Admin server shutdown: %v", err)
	}
	log.Println("Worker shut down gracefully")
}
