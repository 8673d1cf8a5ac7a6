package gtfs

import "time"

const (
	DefaultPollInterval = 30 * time.Second
	DefaultFetchTimeout = 15 * time.Second
)

type Config struct {
	StaticSource            string
	VehiclePositionsURL     string
	RealTimeAuthHeaderKey   string
	RealTimeAuthHeaderValue string
	PollInterval            time.Duration
	FetchTimeout            time.Duration
}

func (config Config) realTimeDataEnabled() bool {
	return config.VehiclePositionsURL != ""
}

func (config Config) headers() map[string]string {
	headers := map[string]string{}
	if config.RealTimeAuthHeaderKey != "" && config.RealTimeAuthHeaderValue != "" {
		headers[config.RealTimeAuthHeaderKey] = config.RealTimeAuthHeaderValue
	}
	return headers
}

func (config Config) withDefaults() Config {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	return config
}
