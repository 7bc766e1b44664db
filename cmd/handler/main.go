package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"lecture-quiz/internal/bootstrap"
	"lecture-quiz/internal/config"
	"lecture-quiz/internal/trigger"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("handler: config: %v", err)
	}

	rt, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("handler: init: %v", err)
	}

	h := trigger.NewHandler(rt.Orchestrator)
	lambda.Start(h.Handle)
}
