package settings

import (
	"fmt"
	"time"

	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// fileSettings is the YAML schema of a settings file.
//
// Durations are written as Go duration strings, e.g. "5s" or "1m30s".
type fileSettings struct {
	DSN                   string                        `yaml:"dsn"`
	Debug                 bool                          `yaml:"debug"`
	EnabledCategories     []string                      `yaml:"enabled_categories"`
	Categories            map[string]fileBufferOverride `yaml:"categories"`
	Weights               *fileWeights                  `yaml:"weights"`
	QueueCapacity         int                           `yaml:"queue_capacity"`
	RetryDelays           []string                      `yaml:"retry_delays"`
	TransmitRatePerSecond float64                       `yaml:"transmit_rate_per_second"`
	SenderPoolSize        int                           `yaml:"sender_pool_size"`
	ClientReports         *fileClientReports            `yaml:"client_reports"`
	ExtraHeaders          map[string]string             `yaml:"extra_headers"`
	HTTPProxy             string                        `yaml:"http_proxy"`
}

type fileBufferOverride struct {
	Capacity     int    `yaml:"capacity"`
	BatchSize    int    `yaml:"batch_size"`
	FlushTimeout string `yaml:"flush_timeout"`
}

type fileWeights struct {
	Critical int `yaml:"critical"`
	High     int `yaml:"high"`
	Medium   int `yaml:"medium"`
	Low      int `yaml:"low"`
}

type fileClientReports struct {
	Disabled bool   `yaml:"disabled"`
	Interval string `yaml:"interval"`
}

// Load reads a YAML settings file into Params.
//
// The result is passed to New, which layers environment fallbacks and
// defaults on top.
func Load(fs afero.Fs, path string) (Params, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Params{}, fmt.Errorf("settings: failed to read %s: %v", path, err)
	}

	var file fileSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Params{}, fmt.Errorf("settings: failed to parse %s: %v", path, err)
	}

	params := Params{
		DSN:                   file.DSN,
		Debug:                 file.Debug,
		QueueCapacity:         file.QueueCapacity,
		TransmitRatePerSecond: file.TransmitRatePerSecond,
		SenderPoolSize:        file.SenderPoolSize,
		ExtraHeaders:          file.ExtraHeaders,
		HTTPProxy:             file.HTTPProxy,
	}

	for _, name := range file.EnabledCategories {
		params.EnabledCategories = append(
			params.EnabledCategories, protocol.Category(name))
	}

	if len(file.Categories) > 0 {
		params.BufferOverrides = make(map[protocol.Category]BufferOverride)
	}
	for name, override := range file.Categories {
		flushTimeout, err := parseOptionalDuration(override.FlushTimeout)
		if err != nil {
			return Params{}, fmt.Errorf(
				"settings: category %q: %v", name, err)
		}

		params.BufferOverrides[protocol.Category(name)] = BufferOverride{
			Capacity:     override.Capacity,
			BatchSize:    override.BatchSize,
			FlushTimeout: flushTimeout,
		}
	}

	if file.Weights != nil {
		params.PriorityWeights = &PriorityWeights{
			Critical: file.Weights.Critical,
			High:     file.Weights.High,
			Medium:   file.Weights.Medium,
			Low:      file.Weights.Low,
		}
	}

	for _, delay := range file.RetryDelays {
		parsed, err := time.ParseDuration(delay)
		if err != nil {
			return Params{}, fmt.Errorf(
				"settings: invalid retry delay %q: %v", delay, err)
		}
		params.RetryDelays = append(params.RetryDelays, parsed)
	}

	if file.ClientReports != nil {
		params.DisableClientReports = file.ClientReports.Disabled

		interval, err := parseOptionalDuration(file.ClientReports.Interval)
		if err != nil {
			return Params{}, fmt.Errorf(
				"settings: client report interval: %v", err)
		}
		params.ClientReportInterval = interval
	}

	return params, nil
}

func parseOptionalDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}
