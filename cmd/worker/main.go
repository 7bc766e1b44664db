package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"lecture-quiz/internal/bootstrap"
	"lecture-quiz/internal/config"
	"lecture-quiz/internal/queue"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("worker: config:", err)
	}

	rt, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal("worker: init:", err)
	}
	defer rt.Close()

	// Consume uploads topic (work queue)
	uploads := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopicUploads, cfg.KafkaGroupID)
	defer uploads.Close()

	// Produce retry messages (delayed retry queue)
	retryProducer, err := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicRetry)
	if err != nil {
		log.Fatal("worker: init retry producer:", err)
	}
	defer retryProducer.Close()

	w := &worker{
		proc:          rt.Orchestrator,
		retry:         retryProducer,
		timeout:       cfg.InvocationTimeout,
		maxDeliveries: cfg.MaxDeliveries,
		now:           time.Now,
	}

	log.Println("worker: started",
		"workerID=", cfg.WorkerID,
		"uploadsTopic=", cfg.KafkaTopicUploads,
		"retryTopic=", cfg.KafkaTopicRetry,
		"brokers=", cfg.KafkaBrokers,
	)

	for {
		// 1) Read one upload message
		um, commit, err := uploads.ReadUpload(ctx)
		if err != nil {
			log.Println("worker: read error:", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		// 2) Run the pipeline
		if err := w.processOne(ctx, um); err != nil {
			log.Println("worker: process error:", err)
			// Not committed: Kafka redelivers and the job store dedupes.
			continue
		}

		// 3) Commit only after the outcome is final or a retry is scheduled
		if err := commit(ctx); err != nil {
			log.Println("worker: commit error:", err)
		}
	}
}
