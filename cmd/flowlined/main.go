package main

import (
	"context"
	"log"

	"flowline/internal/config"
	"flowline/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, buildRunOptions(cfg)); err != nil {
		log.Fatalf("flowlined: %v", err)
	}
}
