package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"authhub.org/internal/authz"
	"authhub.org/internal/blacklist"
	"authhub.org/internal/endpoint"
	"authhub.org/internal/httpapi"
	"authhub.org/internal/obs"
	"authhub.org/internal/ratelimit"
	"authhub.org/internal/rbac"
	"authhub.org/internal/store/pg"
	"authhub.org/internal/token"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("AUTHHUB_PG_DSN")
	if dsn == "" {
		log.Fatal("AUTHHUB_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	redisAddr := os.Getenv("AUTHHUB_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("AUTHHUB_REDIS_PASSWORD"),
	})
	defer rdb.Close()

	privPEM := os.Getenv("AUTHHUB_JWT_PRIVATE_KEY")
	pubPEM := os.Getenv("AUTHHUB_JWT_PUBLIC_KEY")
	if pubPEM == "" {
		log.Fatal("AUTHHUB_JWT_PUBLIC_KEY is required")
	}
	issuer := os.Getenv("AUTHHUB_ISSUER")
	if issuer == "" {
		issuer = "authhub"
	}
	kid := os.Getenv("AUTHHUB_JWT_KID")

	// The signer is optional: a verification-only deployment never mints
	// tokens and carries no private key.
	var signer *token.Signer
	if privPEM != "" {
		signer, err = token.NewSigner(privPEM, pubPEM,
			token.WithIssuer(issuer), token.WithKeyID(kid))
		if err != nil {
			log.Fatalf("init signer: %v", err)
		}
	}
	verifier, err := token.NewVerifier(pubPEM,
		token.VerifierIssuer(issuer), token.VerifierKeyID(kid))
	if err != nil {
		log.Fatalf("init verifier: %v", err)
	}

	registry := blacklist.NewRedisRegistry(rdb)
	limiter, err := ratelimit.NewLimiter(ratelimit.NewRedisCounter(rdb))
	if err != nil {
		log.Fatalf("init limiter: %v", err)
	}
	resolver, err := rbac.NewResolver(store)
	if err != nil {
		log.Fatalf("init resolver: %v", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	rows, err := store.ListActive(loadCtx, "")
	cancelLoad()
	if err != nil {
		log.Fatalf("load endpoint permissions: %v", err)
	}
	matcher := endpoint.NewLiveMatcher(rows)
	log.Printf("loaded %d endpoint permissions", len(rows))

	decider, err := authz.NewDecider(verifier, registry, limiter, matcher, resolver)
	if err != nil {
		log.Fatalf("init decider: %v", err)
	}

	opts := []httpapi.Option{
		httpapi.WithServiceTokens(parseServiceTokens(os.Getenv("AUTHHUB_SERVICE_TOKENS"))),
		httpapi.WithEndpointAdmin(store, matcher),
	}
	if rps := envInt("AUTHHUB_EDGE_RPS", 0); rps > 0 {
		opts = append(opts, httpapi.WithEdgeRateLimit(envInt("AUTHHUB_EDGE_BURST", rps*2), rps))
	}
	api := httpapi.New(signer, verifier, decider, registry,
		httpapi.ReadyProbe{DB: store.DB(), Redis: rdb}, version, opts...)

	addr := os.Getenv("AUTHHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting authhub-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}

// parseServiceTokens reads "name=secret,name2=secret2".
func parseServiceTokens(raw string) map[string]string {
	tokens := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, secret, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || secret == "" {
			continue
		}
		tokens[name] = secret
	}
	return tokens
}
