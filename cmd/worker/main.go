package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"studentdesk/internal/config"
	"studentdesk/internal/ledger"
	"studentdesk/internal/queue"
	"studentdesk/internal/store"
)

// Worker consumes summary-refresh messages and warms the redis cache so
// interactive summary reads rarely hit Postgres.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "studentdesk:summaries")
	}

	led := ledger.NewService(ledger.NewRepository(db.Client), redisClient.Client, nil)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeSummaryRefresh {
			continue
		}

		username := string(msg.Body)
		sum, err := led.RefreshSummary(ctx, username)
		if err != nil {
			log.Printf("summary refresh for %s failed: %v", username, err)
			continue
		}
		log.Printf("summary cached for %s: %d/%d present", username, sum.Present, sum.Total)
	}

	log.Println("worker stopped")
}
