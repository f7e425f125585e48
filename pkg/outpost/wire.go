//go:build wireinject

package outpost

import (
	"context"

	"github.com/google/wire"
	"github.com/outposthq/outpost/core/internal/clientreport"
	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/ratelimit"
	"github.com/outposthq/outpost/core/internal/settings"
	"github.com/outposthq/outpost/core/internal/telemetry"
	"github.com/outposthq/outpost/core/internal/transport"
	"github.com/outposthq/outpost/core/internal/waiting"
)

// injectComponents builds the pipeline behind a Client.
func injectComponents(
	s *settings.Settings,
	logger *observability.CoreLogger,
) *clientComponents {
	wire.Build(clientBindings)
	return &clientComponents{}
}

var clientBindings = wire.NewSet(
	clientreport.NewRecorder,
	observability.NewPrinter,
	provideReporter,
	provideScheduler,
	provideSweeper,
	ratelimit.NewMap,
	telemetry.NewPipeline,
	transport.New,
	transport.NewSenderPool,
	wire.Bind(new(telemetry.EnvelopeSender), new(*transport.Transport)),
	wire.Struct(new(clientComponents), "*"),
	wire.Struct(new(telemetry.PipelineParams), "*"),
	wire.Struct(new(transport.Params), "*"),
	wire.Struct(new(transport.SenderPoolParams), "*"),
)

// clientComponents is everything a Client needs.
type clientComponents struct {
	Settings *settings.Settings
	Logger   *observability.CoreLogger
	Printer  *observability.Printer
	Pipeline *telemetry.Pipeline
	Pool     *transport.SenderPool
}

func provideScheduler(
	s *settings.Settings,
	logger *observability.CoreLogger,
	rateLimits *ratelimit.Map,
	discards *clientreport.Recorder,
	sender telemetry.EnvelopeSender,
) *telemetry.Scheduler {
	return telemetry.NewScheduler(telemetry.SchedulerParams{
		Settings:   s,
		Logger:     logger,
		RateLimits: rateLimits,
		Discards:   discards,
		Sender:     sender,
	})
}

func provideSweeper(
	rateLimits *ratelimit.Map,
	logger *observability.CoreLogger,
) *ratelimit.Sweeper {
	return ratelimit.NewSweeper(ratelimit.SweeperParams{
		RateLimits: rateLimits,
		Logger:     logger,
	})
}

// provideReporter wires client reports straight to the transport, so
// that the final report on shutdown does not depend on the pipeline
// still accepting items.
func provideReporter(
	s *settings.Settings,
	logger *observability.CoreLogger,
	recorder *clientreport.Recorder,
	sender telemetry.EnvelopeSender,
) *clientreport.Reporter {
	return clientreport.NewReporter(clientreport.ReporterParams{
		Recorder: recorder,
		Logger:   logger,
		Interval: waiting.NewDelay(s.ClientReportInterval()),
		Send: func(item protocol.Item) {
			envelope := telemetry.NewEnvelope(s, []protocol.Item{item})
			if err := sender.Send(context.Background(), envelope); err != nil {
				logger.Warn(
					"outpost: client report send failed",
					"error", err.Error())
			}
		},
	})
}
