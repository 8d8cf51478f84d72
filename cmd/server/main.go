package main

import (
	"context"
	"log"

	"github.com/weskerllc/cronicorn-billing/internal/billing"
	"github.com/weskerllc/cronicorn-billing/internal/billing/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := billing.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
