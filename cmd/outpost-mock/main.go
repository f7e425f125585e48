// Command outpost-mock runs a local ingest endpoint for developing and
// debugging the SDK without a real backend. It accepts envelopes on
// /api/{project}/envelope/, logs what it receives and exposes counters
// on /metrics. Flags can inject 429 responses to exercise the SDK's
// rate limit handling.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/version"
)

var (
	envelopesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outpost_mock_envelopes_received_total",
		Help: "Envelopes accepted by the ingest endpoint.",
	})
	recordsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outpost_mock_records_received_total",
		Help: "Telemetry records received, by envelope item type.",
	}, []string{"type"})
	envelopesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outpost_mock_envelopes_rejected_total",
		Help: "Envelopes answered with HTTP 429 by the rejection injector.",
	})
)

// ingestHandler accepts envelopes posted to /api/{project}/envelope/.
type ingestHandler struct {
	logger *slog.Logger

	// rejectEvery makes every Nth envelope fail with HTTP 429 when
	// positive.
	rejectEvery int64

	// rateLimitsHeader is served as X-Sentry-Rate-Limits on injected
	// 429 responses. When empty, a Retry-After header is served
	// instead.
	rateLimitsHeader string

	seen atomic.Int64
}

func (h *ingestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	if n := h.seen.Add(1); h.rejectEvery > 0 && n%h.rejectEvery == 0 {
		h.reject(w, project)
		return
	}

	var envelope *protocol.RawEnvelope
	var err error
	if r.Header.Get("Content-Encoding") == "gzip" {
		envelope, err = protocol.ParseCompressedEnvelope(r.Body)
	} else {
		envelope, err = protocol.ParseEnvelope(r.Body)
	}

	if err != nil {
		h.logger.Warn("rejecting malformed envelope",
			"project", project,
			"error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	envelopesReceived.Inc()
	for _, item := range envelope.Items {
		recordsReceived.
			WithLabelValues(item.Type).
			Add(float64(item.ItemCount))
	}

	h.logger.Info("received envelope",
		"project", project,
		"items", len(envelope.Items),
		"records", envelope.ItemCount())
	for _, item := range envelope.Items {
		h.logger.Debug("received item",
			"type", item.Type,
			"item_count", item.ItemCount,
			"payload", item.Payload)
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":%q}`, protocol.NewEventID())
}

func (h *ingestHandler) reject(w http.ResponseWriter, project string) {
	envelopesRejected.Inc()

	if h.rateLimitsHeader != "" {
		w.Header().Set("X-Sentry-Rate-Limits", h.rateLimitsHeader)
	} else {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(http.StatusTooManyRequests)

	h.logger.Info("injected rate limit response",
		"project", project,
		"rate_limits", h.rateLimitsHeader)
}

func main() {
	addr := flag.String("addr", "127.0.0.1:9970",
		"Specifies the address the ingest endpoint listens on.")
	logLevel := flag.Int("log-level", 0,
		"Specifies the log level to use for logging. -4: debug, 0: info, 4: warn, 8: error.")
	rejectEvery := flag.Int64("reject-every", 0,
		"Answers every Nth envelope with HTTP 429 to exercise the SDK's rate limit "+
			"handling. 0 disables rejection.")
	rateLimits := flag.String("rate-limits", "",
		"X-Sentry-Rate-Limits header value served with injected 429 responses, such as "+
			"'60:error;log:organization'. When empty, a Retry-After header is served instead.")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "============================================\n")
		fmt.Fprintf(os.Stderr, "        Outpost Mock Ingest Endpoint        \n")
		fmt.Fprintf(os.Stderr, "============================================\n")
		fmt.Fprintf(os.Stderr, "Version: %s\n\n", version.Version)
		fmt.Fprintf(os.Stderr, "Use the following flags to configure the endpoint:\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	logger := slog.New(
		slog.NewTextHandler(
			os.Stderr,
			&slog.HandlerOptions{Level: slog.Level(*logLevel)},
		),
	)
	slog.SetDefault(logger)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-c
		slog.Info("received shutdown signal", "signal", sig)
		os.Exit(0)
	}()

	mux := http.NewServeMux()
	mux.Handle("POST /api/{project}/envelope/", &ingestHandler{
		logger:           logger,
		rejectEvery:      *rejectEvery,
		rateLimitsHeader: *rateLimits,
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		slog.Error("failed to start mock ingest endpoint, exiting", "error", err)
		return
	}

	slog.Info("mock ingest endpoint is running",
		"addr", listener.Addr(),
		"reject-every", *rejectEvery,
		"rate-limits", *rateLimits)

	if err := http.Serve(listener, mux); err != nil {
		slog.Error("mock ingest endpoint stopped", "error", err)
	}
}
