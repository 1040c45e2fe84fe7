package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"authhub.org/internal/blacklist"
	"authhub.org/internal/obs"
)

func main() {
	obs.Init()

	var (
		interval = flag.Duration("interval", time.Minute, "time between sweep runs")
		batch    = flag.Int64("batch", 1000, "max expired entries removed per round trip")
		once     = flag.Bool("once", false, "run a single sweep and exit")
	)
	flag.Parse()

	redisAddr := os.Getenv("AUTHHUB_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("AUTHHUB_REDIS_PASSWORD"),
	})
	defer rdb.Close()

	sweeper, err := blacklist.NewSweeper(blacklist.NewRedisRegistry(rdb), *batch)
	if err != nil {
		log.Fatalf("init sweeper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	if *once {
		removed, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Fatalf("sweep: %v", err)
		}
		log.Printf("removed %d expired blacklist entries", removed)
		return
	}

	log.Printf("Starting blacklist sweeper, interval %s, batch %d", *interval, *batch)
	if err := sweeper.Run(ctx, *interval); err != nil && ctx.Err() == nil {
		log.Fatalf("sweeper: %v", err)
	}
	log.Println("Stopped")
}
