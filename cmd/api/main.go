package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"lecture-quiz/internal/bootstrap"
	"lecture-quiz/internal/config"
	httpapi "lecture-quiz/internal/http"
	"lecture-quiz/internal/queue"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("api: config:", err)
	}
	log.Println("api: JOB_STORE =", cfg.JobStore)
	log.Println("api: DYNAMO_TABLE =", cfg.DynamoTable)

	awsCfg, err := bootstrap.LoadAWS(ctx, cfg)
	if err != nil {
		log.Fatal("api:", err)
	}
	st, closeStore, err := bootstrap.NewStore(ctx, cfg, awsCfg)
	if err != nil {
		log.Fatal("api: failed to init job store:", err)
	}
	defer closeStore()

	prod, err := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicUploads)
	if err != nil {
		log.Fatal("api: init producer:", err)
	}
	defer prod.Close()

	app := &httpapi.App{
		Store:           st,
		Uploads:         prod,
		AllowedSuffixes: cfg.AllowedSuffixes,
	}

	log.Println("api: listening on", cfg.APIAddr)
	log.Fatal(http.ListenAndServe(cfg.APIAddr, httpapi.NewRouter(app, cfg.CORSOrigins)))
}
