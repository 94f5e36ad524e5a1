package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"webmill/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := daemonrun.Run(ctx, *configPath); err != nil {
		log.Fatalf("webmilld: %v", err)
	}
}
