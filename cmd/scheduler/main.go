package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"lecture-quiz/internal/config"
	"lecture-quiz/internal/queue"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("scheduler: config:", err)
	}

	retryConsumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopicRetry, cfg.KafkaSchedulerGroup)
	defer retryConsumer.Close()

	uploadsProducer, err := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicUploads)
	if err != nil {
		log.Fatal("scheduler: init producer:", err)
	}
	defer uploadsProducer.Close()

	s := &scheduler{uploads: uploadsProducer, now: time.Now, sleep: time.Sleep}

	log.Println("scheduler: started retryTopic=", cfg.KafkaTopicRetry, "uploadsTopic=", cfg.KafkaTopicUploads)

	for {
		rm, commit, err := retryConsumer.ReadRetry(ctx)
		if err != nil {
			log.Println("scheduler: read error:", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if err := s.forward(ctx, rm); err != nil {
			log.Println("scheduler: publish uploads failed:", err)
			// do not commit; will retry
			continue
		}

		if err := commit(ctx); err != nil {
			log.Println("scheduler: commit error:", err)
		}
	}
}
