// Package clientreport accounts for telemetry items the SDK discards
// instead of delivering.
//
// Every drop anywhere in the pipeline is recorded with a reason and the
// item's category. The aggregated counts are periodically reported to
// the server as a client report so that data loss is visible even though
// producers never see an error.
package clientreport

// DiscardReason says why an item was dropped.
type DiscardReason string

const (
	// ReasonQueueOverflow marks items rejected because the send queue
	// was full.
	ReasonQueueOverflow DiscardReason = "queue_overflow"

	// ReasonCacheOverflow marks items evicted from a full buffer.
	ReasonCacheOverflow DiscardReason = "cache_overflow"

	// ReasonRatelimitBackoff marks items dropped while their category
	// was embargoed by the server.
	ReasonRatelimitBackoff DiscardReason = "ratelimit_backoff"

	// ReasonNetworkError marks items lost to connection failures after
	// retries were exhausted.
	ReasonNetworkError DiscardReason = "network_error"

	// ReasonSendError marks items rejected by the server with a
	// non-retryable status.
	ReasonSendError DiscardReason = "send_error"

	// ReasonBackpressure marks items dropped because a sender pool
	// worker's queue was full.
	ReasonBackpressure DiscardReason = "backpressure"

	// ReasonSampleRate, ReasonBeforeSend and ReasonEventProcessor mark
	// items dropped by capture-side filtering. Producers record these;
	// the pipeline only reports them.
	ReasonSampleRate     DiscardReason = "sample_rate"
	ReasonBeforeSend     DiscardReason = "before_send"
	ReasonEventProcessor DiscardReason = "event_processor"

	// ReasonInsufficientData marks items too incomplete to serialize.
	ReasonInsufficientData DiscardReason = "insufficient_data"

	// ReasonInternalSDKError marks items lost to a bug in the SDK
	// itself, such as a recovered panic in a send unit.
	ReasonInternalSDKError DiscardReason = "internal_sdk_error"
)
