// Package settings holds the SDK configuration.
package settings

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/outposthq/outpost/core/internal/protocol"
)

// DefaultQueueCapacity is the send queue's item-count bound.
const DefaultQueueCapacity = 200

// DefaultRetryDelays is the wait before each retry of a failed send.
var DefaultRetryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// BufferOverride adjusts one category's buffer sizing. Zero fields keep
// the built-in default.
type BufferOverride struct {
	Capacity     int
	BatchSize    int
	FlushTimeout time.Duration
}

// PriorityWeights is how many cycle slots each priority tier receives.
type PriorityWeights struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

// DefaultPriorityWeights returns the standard 5/4/3/2 split.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{Critical: 5, High: 4, Medium: 3, Low: 2}
}

// Params are the inputs to New. The zero value of any field means
// "use the default".
type Params struct {
	// DSN is the ingestion endpoint descriptor. Falls back to the
	// OUTPOST_DSN environment variable.
	DSN string

	// Debug enables debug-level diagnostic logging. Falls back to the
	// OUTPOST_DEBUG environment variable.
	Debug bool

	// EnabledCategories restricts which telemetry kinds are buffered
	// and scheduled. Defaults to error, check_in, transaction and log.
	EnabledCategories []protocol.Category

	BufferOverrides map[protocol.Category]BufferOverride
	PriorityWeights *PriorityWeights

	// QueueCapacity bounds the send queue, measured in telemetry
	// records rather than envelopes.
	QueueCapacity int

	// RetryDelays is the ordered list of waits between send attempts.
	// Its length is the maximum number of retries.
	RetryDelays []time.Duration

	// TransmitRatePerSecond paces outgoing requests. Zero disables
	// client-side pacing.
	TransmitRatePerSecond float64

	// SenderPoolSize is the number of workers on the fire-and-forget
	// path. Zero picks max(number of CPUs, 8).
	SenderPoolSize int

	// BeforeSendLog transforms each log record before transmission.
	// Returning nil drops the record. A panicking transform is ignored
	// and the original record is used.
	BeforeSendLog func(*protocol.LogRecord) *protocol.LogRecord

	// OnEnvelope, if set, receives every envelope instead of the send
	// queue and transport. Test hook.
	OnEnvelope func(*protocol.Envelope)

	// DisableClientReports turns off periodic discard reporting.
	DisableClientReports bool
	ClientReportInterval time.Duration

	// ExtraHeaders are added to every ingestion request.
	ExtraHeaders map[string]string

	// HTTPProxy routes ingestion requests through a proxy. Empty uses
	// the environment's proxy configuration.
	HTTPProxy string
}

// Settings is the SDK configuration, immutable after construction.
//
// One instance is built at client start and shared by reference with
// every component. Live reconfiguration means building a new instance,
// never mutating this one.
type Settings struct {
	dsn                   *protocol.DSN
	debug                 bool
	enabledCategories     []protocol.Category
	bufferOverrides       map[protocol.Category]BufferOverride
	priorityWeights       PriorityWeights
	queueCapacity         int
	retryDelays           []time.Duration
	transmitRatePerSecond float64
	senderPoolSize        int
	beforeSendLog         func(*protocol.LogRecord) *protocol.LogRecord
	onEnvelope            func(*protocol.Envelope)
	clientReportsEnabled  bool
	clientReportInterval  time.Duration
	extraHeaders          map[string]string
	httpProxy             string
}

// New validates params, applies environment fallbacks and defaults, and
// builds an immutable Settings.
func New(params Params) (*Settings, error) {
	if params.DSN == "" {
		params.DSN = os.Getenv("OUTPOST_DSN")
	}
	if params.DSN == "" {
		return nil, fmt.Errorf("settings: no DSN configured")
	}

	dsn, err := protocol.ParseDSN(params.DSN)
	if err != nil {
		return nil, fmt.Errorf("settings: %v", err)
	}

	debug := params.Debug
	if !debug {
		debug = isTruthy(os.Getenv("OUTPOST_DEBUG"))
	}

	categories := params.EnabledCategories
	if categories == nil {
		categories = []protocol.Category{
			protocol.CategoryError,
			protocol.CategoryCheckIn,
			protocol.CategoryTransaction,
			protocol.CategoryLog,
		}
	}

	weights := DefaultPriorityWeights()
	if params.PriorityWeights != nil {
		weights = *params.PriorityWeights
	}

	queueCapacity := params.QueueCapacity
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}

	retryDelays := params.RetryDelays
	if retryDelays == nil {
		retryDelays = DefaultRetryDelays
	}

	reportInterval := params.ClientReportInterval
	if reportInterval <= 0 {
		reportInterval = 30 * time.Second
	}

	return &Settings{
		dsn:                   dsn,
		debug:                 debug,
		enabledCategories:     slices.Clone(categories),
		bufferOverrides:       maps.Clone(params.BufferOverrides),
		priorityWeights:       weights,
		queueCapacity:         queueCapacity,
		retryDelays:           slices.Clone(retryDelays),
		transmitRatePerSecond: params.TransmitRatePerSecond,
		senderPoolSize:        params.SenderPoolSize,
		beforeSendLog:         params.BeforeSendLog,
		onEnvelope:            params.OnEnvelope,
		clientReportsEnabled:  !params.DisableClientReports,
		clientReportInterval:  reportInterval,
		extraHeaders:          maps.Clone(params.ExtraHeaders),
		httpProxy:             params.HTTPProxy,
	}, nil
}

// DSN is the parsed ingestion endpoint descriptor.
func (s *Settings) DSN() *protocol.DSN { return s.dsn }

// Debug reports whether debug logging is enabled.
func (s *Settings) Debug() bool { return s.debug }

// LogLevel is the minimum level for the SDK's own diagnostics.
func (s *Settings) LogLevel() slog.Level {
	if s.debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// EnabledCategories are the telemetry kinds the pipeline accepts.
func (s *Settings) EnabledCategories() []protocol.Category {
	return slices.Clone(s.enabledCategories)
}

// BufferOverride returns the sizing override for a category, if any.
func (s *Settings) BufferOverride(
	category protocol.Category,
) (BufferOverride, bool) {
	override, ok := s.bufferOverrides[category]
	return override, ok
}

// PriorityWeights is the cycle slot count per priority tier.
func (s *Settings) PriorityWeights() PriorityWeights { return s.priorityWeights }

// QueueCapacity is the send queue bound in telemetry records.
func (s *Settings) QueueCapacity() int { return s.queueCapacity }

// RetryDelays is the wait before each retry of a failed send.
func (s *Settings) RetryDelays() []time.Duration {
	return slices.Clone(s.retryDelays)
}

// TransmitRatePerSecond is the client-side request pacing, 0 if unpaced.
func (s *Settings) TransmitRatePerSecond() float64 {
	return s.transmitRatePerSecond
}

// SenderPoolSize is the configured pool size, 0 if derived from the
// machine.
func (s *Settings) SenderPoolSize() int { return s.senderPoolSize }

// BeforeSendLog is the log transform hook, nil if unset.
func (s *Settings) BeforeSendLog() func(*protocol.LogRecord) *protocol.LogRecord {
	return s.beforeSendLog
}

// OnEnvelope is the envelope interception hook, nil if unset.
func (s *Settings) OnEnvelope() func(*protocol.Envelope) { return s.onEnvelope }

// ClientReportsEnabled reports whether discards are reported upstream.
func (s *Settings) ClientReportsEnabled() bool { return s.clientReportsEnabled }

// ClientReportInterval is the time between client reports.
func (s *Settings) ClientReportInterval() time.Duration {
	return s.clientReportInterval
}

// ExtraHeaders are additional headers for every ingestion request.
func (s *Settings) ExtraHeaders() map[string]string {
	return maps.Clone(s.extraHeaders)
}

// HTTPProxy is the proxy URL for ingestion requests, empty for the
// environment default.
func (s *Settings) HTTPProxy() string { return s.httpProxy }

func isTruthy(value string) bool {
	switch value {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	default:
		return false
	}
}
