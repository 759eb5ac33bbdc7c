package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/feedcache/internal/config"
	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/feedcache"
	"github.com/Sternrassler/feedcache/pkg/logging"
	"github.com/Sternrassler/feedcache/pkg/metrics"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
)

// readyProbeURL is read by /ready to check that the store answers.
const readyProbeURL = "feedcache://ready"

func main() {
	configPath := flag.String("config", os.Getenv("FEEDCACHE_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "feedcache-proxy: %v\n", err)
		os.Exit(1)
	}
	cfg.SetupLogging()
	logger := logging.NewLogger("proxy")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cfg.OpenStore(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open cache store")
	}

	fc, err := cfg.FeedCache(store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create feed cache")
	}
	defer fc.Close()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newMux(fc, store, cfg.Batch.Timeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("backend", cfg.Store.Backend).
		Dur("ceiling", cfg.Cache.Ceiling).
		Str("user_agent", cfg.Source.UserAgent).
		Msg("Starting feed cache proxy")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}

func newMux(fc *feedcache.FeedCache, store cache.Store, timeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(store))
	mux.HandleFunc("/feed", feedHandler(fc, timeout))
	mux.HandleFunc("/feeds", feedsHandler(fc))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports whether the cache store can be read.
func readyHandler(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := store.Read(ctx, readyProbeURL); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "cache store unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// feedResponse is the JSON form of a fetched feed.
type feedResponse struct {
	URL          string       `json:"url"`
	Outcome      string       `json:"outcome,omitempty"`
	StatusCode   int          `json:"status_code,omitempty"`
	ETag         string       `json:"etag,omitempty"`
	LastModified string       `json:"last_modified,omitempty"`
	ExpireAt     *time.Time   `json:"expire_at,omitempty"`
	Feed         *gofeed.Feed `json:"feed,omitempty"`
	Error        string       `json:"error,omitempty"`
}

func newFeedResponse(res *feedcache.Result) feedResponse {
	out := feedResponse{
		URL:        res.URL,
		Outcome:    string(res.Outcome),
		StatusCode: res.StatusCode,
	}
	if e := res.Entry; e != nil {
		expireAt := e.ExpireAt
		out.ETag = e.ETag
		out.LastModified = e.LastModified
		out.ExpireAt = &expireAt
		out.Feed = e.Feed
	}
	return out
}

// feedHandler serves GET /feed?url=<feed url>.
func feedHandler(fc *feedcache.FeedCache, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		feedURL := r.URL.Query().Get("url")
		if feedURL == "" {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		res, err := fc.Fetch(ctx, feedURL)
		if err != nil {
			writeJSON(w, errorStatus(err), feedResponse{URL: feedURL, Error: err.Error()})
			return
		}

		if res.Outcome == feedcache.OutcomeTerminal {
			status := res.StatusCode
			if status < 400 || status > 599 {
				status = http.StatusBadGateway
			}
			writeJSON(w, status, newFeedResponse(res))
			return
		}

		w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(int(res.Entry.TTL(time.Now()).Seconds())))
		if res.Entry.ETag != "" {
			w.Header().Set("ETag", res.Entry.ETag)
		}
		writeJSON(w, http.StatusOK, newFeedResponse(res))
	}
}

// feedsHandler serves GET /feeds?url=<a>&url=<b>... through FetchAll.
func feedsHandler(fc *feedcache.FeedCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		urls := r.URL.Query()["url"]
		if len(urls) == 0 {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}

		results := fc.FetchAll(r.Context(), urls)
		out := make([]feedResponse, 0, len(results))
		for _, br := range results {
			if br.Err != nil {
				out = append(out, feedResponse{URL: br.URL, Error: br.Err.Error()})
				continue
			}
			out = append(out, newFeedResponse(br.Result))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// errorStatus maps a Fetch error to the proxy's HTTP status.
func errorStatus(err error) int {
	var storeErr *cache.StoreError
	switch {
	case errors.Is(err, feedcache.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError
	default:
		// source failures and protocol violations
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
