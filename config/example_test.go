package config_test

import (
	"context"
	"fmt"
	"log"

	"github.com/riders-api/riders/config"
)

func ExampleLoad() {
	cfg, err := config.Load(nil, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Port: %d, Cache: %s, Redis: %s\n", cfg.Server.Port, cfg.Cache.Backend, cfg.Redis.Addr())
	// Output: Port: 8000, Cache: redis, Redis: localhost:6379
}

func ExampleWithContext() {
	cfg, _ := config.Load(nil, nil)

	ctx := config.WithContext(context.Background(), cfg)

	retrieved, err := config.FromContext(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Retrieved port: %d\n", retrieved.Server.Port)
	// Output: Retrieved port: 8000
}
