// Package transport delivers envelopes to the ingestion endpoint.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/outposthq/outpost/core/internal/clientreport"
	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/ratelimit"
	"github.com/outposthq/outpost/core/internal/settings"
	"github.com/outposthq/outpost/core/internal/version"
	"github.com/wandb/simplejsonext"
	"golang.org/x/time/rate"
)

const (
	authHeader       = "X-Sentry-Auth"
	rateLimitsHeader = "X-Sentry-Rate-Limits"
	retryAfterHeader = "Retry-After"

	// sendTimeout bounds one attempt, not the whole exchange.
	sendTimeout = 30 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 8 << 10

	// defaultRetryAfterSeconds is the embargo applied when the server
	// asks us to back off without saying for how long.
	defaultRetryAfterSeconds = 60
)

type Params struct {
	Settings   *settings.Settings
	Logger     *observability.CoreLogger
	RateLimits *ratelimit.Map
	Discards   *clientreport.Recorder
	Printer    *observability.Printer
}

// Transport performs envelope exchanges over HTTP.
//
// It compresses, authenticates and posts envelopes, retries connection
// problems and server errors with the configured delay ladder, and owns
// the rate limit bookkeeping: items in embargoed categories are dropped
// before any I/O, and limits the server announces on a response are
// recorded for the rest of the SDK to observe.
type Transport struct {
	settings   *settings.Settings
	logger     *observability.CoreLogger
	rateLimits *ratelimit.Map
	discards   *clientreport.Recorder
	printer    *observability.Printer

	client      *retryablehttp.Client
	envelopeURL string
	sdk         protocol.SDKInfo

	// pacer spaces out requests client-side, nil if unpaced.
	pacer *rate.Limiter
}

func New(params Params) *Transport {
	if params.Settings == nil {
		panic("transport: nil Settings")
	}
	if params.Logger == nil {
		panic("transport: nil Logger")
	}
	if params.RateLimits == nil {
		panic("transport: nil RateLimits")
	}
	if params.Discards == nil {
		panic("transport: nil Discards")
	}
	if params.Printer == nil {
		panic("transport: nil Printer")
	}

	transport := &Transport{
		settings:    params.Settings,
		logger:      params.Logger,
		rateLimits:  params.RateLimits,
		discards:    params.Discards,
		printer:     params.Printer,
		client:      newRetryableClient(params.Settings, params.Logger),
		envelopeURL: params.Settings.DSN().EnvelopeURL(),
		sdk: protocol.SDKInfo{
			Name:    version.SDKName,
			Version: version.Version,
		},
	}

	if perSecond := params.Settings.TransmitRatePerSecond(); perSecond > 0 {
		transport.pacer = rate.NewLimiter(
			rate.Limit(perSecond),
			max(int(perSecond), 1))
	}

	return transport
}

// Send delivers one envelope.
//
// By the time Send returns, every item in the envelope is either
// delivered or accounted as discarded; the returned error is
// informational and the caller only logs it.
func (t *Transport) Send(
	ctx context.Context,
	envelope *protocol.Envelope,
) error {
	envelope = t.withoutRateLimited(envelope)
	if envelope == nil {
		return nil
	}

	if err := t.pace(ctx); err != nil {
		t.accountItems(clientreport.ReasonNetworkError, envelope.Items)
		return err
	}

	var body bytes.Buffer
	if err := envelope.SerializeCompressed(&body); err != nil {
		t.accountItems(clientreport.ReasonInternalSDKError, envelope.Items)
		return err
	}

	request, err := retryablehttp.NewRequestWithContext(
		ctx, http.MethodPost, t.envelopeURL, body.Bytes())
	if err != nil {
		t.accountItems(clientreport.ReasonInternalSDKError, envelope.Items)
		return fmt.Errorf("transport: failed to build request: %v", err)
	}
	t.setHeaders(request)

	response, err := t.client.Do(request)
	if err != nil {
		t.accountItems(clientreport.ReasonNetworkError, envelope.Items)
		return fmt.Errorf("transport: failed to send envelope: %v", err)
	}
	defer func() { _ = response.Body.Close() }()

	// The server may adjust quotas on any response, not only on 429.
	if header := response.Header.Get(rateLimitsHeader); header != "" {
		t.rateLimits.Update(header, time.Now())
	}

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		t.logAccepted(response)
		return nil

	case response.StatusCode == http.StatusTooManyRequests:
		t.recordBackoff(response)
		t.accountItems(clientreport.ReasonRatelimitBackoff, envelope.Items)
		return nil

	default:
		t.accountItems(clientreport.ReasonSendError, envelope.Items)
		return fmt.Errorf(
			"transport: server rejected envelope: status %d",
			response.StatusCode)
	}
}

// withoutRateLimited strips items in embargoed categories, accounting
// each as a rate limit discard. Returns nil if nothing is left.
func (t *Transport) withoutRateLimited(
	envelope *protocol.Envelope,
) *protocol.Envelope {
	now := time.Now()

	var kept, dropped []protocol.Item
	for _, item := range envelope.Items {
		if t.rateLimits.IsRateLimited(item.Category(), now) {
			dropped = append(dropped, item)
		} else {
			kept = append(kept, item)
		}
	}

	if len(dropped) == 0 {
		return envelope
	}
	t.accountItems(clientreport.ReasonRatelimitBackoff, dropped)

	if len(kept) == 0 {
		return nil
	}
	trimmed := *envelope
	trimmed.Items = kept
	return &trimmed
}

// pace blocks until the transmit rate allows another request.
func (t *Transport) pace(ctx context.Context) error {
	if t.pacer == nil {
		return nil
	}

	reservation := t.pacer.Reserve()
	delay := reservation.Delay()
	if delay == 0 {
		return nil
	}

	t.printer.AtMostEvery(10 * time.Second).Write(
		"Telemetry uploads are being paced by the transmit rate limit.")

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return fmt.Errorf(
			"transport: while waiting to transmit: %v", ctx.Err())
	}
}

func (t *Transport) setHeaders(request *retryablehttp.Request) {
	// Extra headers first so that the protocol headers take precedence.
	for key, value := range t.settings.ExtraHeaders() {
		request.Header.Set(key, value)
	}

	request.Header.Set("Content-Type", "application/x-sentry-envelope")
	request.Header.Set("Content-Encoding", "gzip")
	request.Header.Set(authHeader,
		t.settings.DSN().AuthHeader(time.Now(), t.sdk))
}

// recordBackoff embargoes categories after a 429.
//
// A structured rate limit header was already applied if present; this
// handles the fallback where the server only says Retry-After, or says
// nothing at all.
func (t *Transport) recordBackoff(response *http.Response) {
	t.printer.AtMostEvery(30 * time.Second).Write(
		"The server is rate limiting telemetry uploads.")

	if response.Header.Get(rateLimitsHeader) != "" {
		return
	}

	seconds := defaultRetryAfterSeconds
	if value := response.Header.Get(retryAfterHeader); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 {
			seconds = int(parsed)
		}
	}
	t.rateLimits.UpdateGlobal(seconds, time.Now())
}

// logAccepted parses the server's {"id": ...} acknowledgment.
func (t *Transport) logAccepted(response *http.Response) {
	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return
	}

	object, err := simplejsonext.UnmarshalObject(body)
	if err != nil {
		return
	}

	if id, ok := object["id"].(string); ok {
		t.logger.Debug("transport: envelope accepted", "id", id)
	}
}

func (t *Transport) accountItems(
	reason clientreport.DiscardReason,
	items []protocol.Item,
) {
	for _, item := range items {
		t.discards.RecordN(reason, item.Category(), int64(item.ItemCount()))
	}
}
