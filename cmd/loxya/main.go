package main

import (
	"log"

	"github.com/loxya/loxya/internal/auth/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize loxya: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("loxya error: %v", err)
	}
}
