// Command assetcache runs a local caching proxy in front of a remote web
// application. Point the desktop client's webview at the proxy address and
// cacheable static resources are served from memory, with Prometheus metrics
// and a JSON stats endpoint for inspection.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gameshell/assetcache"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:8780", "address to listen on")
	upstream := flag.String("upstream", "", "remote application origin, e.g. https://game.example.com (required)")
	buildID := flag.String("build-id", "", "client build identifier for the version guard")
	maxBytes := flag.Int64("max-bytes", 0, "cache budget in bytes (0 uses the default)")
	statePath := flag.String("state", ".assetcache", "directory for persisted cache state")
	flag.Parse()

	if *upstream == "" {
		flag.Usage()
		os.Exit(2)
	}
	target, err := url.Parse(*upstream)
	if err != nil {
		log.Fatalf("invalid upstream %q: %v", *upstream, err)
	}

	// Signal-aware context owns the lifetime of the proxy and any
	// background prewarm started during Init.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	opts := []assetcache.ClientOption{
		assetcache.WithStatePath(*statePath),
		assetcache.WithLogger(logger),
	}
	if *buildID != "" {
		opts = append(opts, assetcache.WithBuildID(*buildID))
	}
	if *maxBytes > 0 {
		opts = append(opts, assetcache.WithMaxSizeBytes(*maxBytes))
	}

	client, err := assetcache.NewWithOptions(opts...)
	if err != nil {
		log.Fatalf("creating cache client: %v", err)
	}
	if err := client.Init(ctx); err != nil {
		log.Fatalf("initializing cache client: %v", err)
	}

	prometheus.MustRegister(assetcache.NewPrometheusCollector(client))

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = client.Transport()

	mux := http.NewServeMux()
	mux.Handle("/", proxy)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(client.Stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
		if err := client.Close(shutdownCtx); err != nil {
			log.Printf("cache close: %v", err)
		}
	}()

	log.Printf("caching proxy for %s listening on %s", target, *listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
}
