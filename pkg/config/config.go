package config

import (
	"lintang/deliverynav/pkg/comparator"
	"lintang/deliverynav/pkg/navigation"
	"lintang/deliverynav/pkg/provider"
	"lintang/deliverynav/pkg/routing"
	"lintang/deliverynav/pkg/server"
	"lintang/deliverynav/pkg/traffic"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port        int      `yaml:"port" validate:"gt=0,lt=65536"`
	CorsOrigins []string `yaml:"cors_origins"`
}

type ProviderConfig struct {
	Name    string        `yaml:"name" validate:"oneof=google osrm"`
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey  string        `yaml:"api_key" validate:"required_if=Name google"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	Retries int           `yaml:"retries" validate:"gte=0,lte=5"`
}

type RoutingConfig struct {
	CacheSize         int           `yaml:"cache_size" validate:"gt=0"`
	CacheTTL          time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	QueueSize         int           `yaml:"queue_size" validate:"gt=0"`
	DailyBudget       int64         `yaml:"daily_budget" validate:"gte=0"`
}

type NavigationConfig struct {
	CompletionRadiusM  float64       `yaml:"completion_radius_m" validate:"gt=0"`
	OffRouteThresholdM float64       `yaml:"off_route_threshold_m" validate:"gt=0"`
	RerouteAfterFixes  int           `yaml:"reroute_after_fixes" validate:"gt=0"`
	RerouteWindow      time.Duration `yaml:"reroute_window" validate:"gte=0"`
}

type TrafficConfig struct {
	Interval      time.Duration `yaml:"interval" validate:"gt=0"`
	HistorySize   int           `yaml:"history_size" validate:"gt=0,lte=24"`
	IncidentDelay time.Duration `yaml:"incident_delay" validate:"gt=0"`
	SevereDelay   time.Duration `yaml:"severe_delay" validate:"gtfield=IncidentDelay"`
	Workers       int           `yaml:"workers" validate:"gt=0"`
}

type ComparatorConfig struct {
	SignificantDelay     time.Duration `yaml:"significant_delay" validate:"gt=0"`
	MinTimeSavings       time.Duration `yaml:"min_time_savings" validate:"gt=0"`
	SimulateAlternatives bool          `yaml:"simulate_alternatives"`
	SimulatedDiscount    float64       `yaml:"simulated_discount" validate:"gt=0,lt=1"`
}

type StorageConfig struct {
	// empty keeps the usage counter in memory
	Dir string `yaml:"dir"`
}

type AMQPConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Provider   ProviderConfig   `yaml:"provider"`
	Routing    RoutingConfig    `yaml:"routing"`
	Navigation NavigationConfig `yaml:"navigation"`
	Traffic    TrafficConfig    `yaml:"traffic"`
	Comparator ComparatorConfig `yaml:"comparator"`
	Storage    StorageConfig    `yaml:"storage"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Log        LogConfig        `yaml:"log"`
}

func Default() Config {
	rc := routing.DefaultConfig()
	nc := navigation.DefaultConfig()
	tc := traffic.DefaultConfig()
	cc := comparator.DefaultConfig()
	return Config{
		Server: ServerConfig{Port: 5000, CorsOrigins: []string{"https://*", "http://*"}},
		Provider: ProviderConfig{
			Name:    "google",
			Timeout: 10 * time.Second,
		},
		Routing: RoutingConfig{
			CacheSize:         rc.CacheSize,
			CacheTTL:          rc.CacheTTL,
			RequestsPerSecond: rc.RequestsPerSecond,
			QueueSize:         rc.QueueSize,
			DailyBudget:       rc.DailyBudget,
		},
		Navigation: NavigationConfig{
			CompletionRadiusM:  nc.CompletionRadiusM,
			OffRouteThresholdM: nc.OffRouteThresholdM,
			RerouteAfterFixes:  nc.RerouteAfterFixes,
			RerouteWindow:      nc.RerouteWindow,
		},
		Traffic: TrafficConfig{
			Interval:      tc.Interval,
			HistorySize:   tc.HistorySize,
			IncidentDelay: tc.IncidentDelay,
			SevereDelay:   tc.SevereDelay,
			Workers:       tc.Workers,
		},
		Comparator: ComparatorConfig{
			SignificantDelay:  cc.SignificantDelay,
			MinTimeSavings:    cc.MinTimeSavings,
			SimulatedDiscount: cc.SimulatedDiscount,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the yaml file at path over the defaults. An empty path only applies the
// defaults. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, server.WrapErrorf(err, server.ErrBadParamInput, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, server.WrapErrorf(err, server.ErrBadParamInput, "parse config %s", path)
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return server.WrapErrorf(err, server.ErrBadParamInput, "invalid config")
	}
	return nil
}

func (c Config) ProviderOptions() provider.Options {
	return provider.Options{
		BaseURL: c.Provider.BaseURL,
		APIKey:  c.Provider.APIKey,
		Timeout: c.Provider.Timeout,
		Retries: c.Provider.Retries,
	}
}

func (c Config) RoutingConfig() routing.Config {
	return routing.Config{
		CacheSize:         c.Routing.CacheSize,
		CacheTTL:          c.Routing.CacheTTL,
		RequestsPerSecond: c.Routing.RequestsPerSecond,
		QueueSize:         c.Routing.QueueSize,
		DailyBudget:       c.Routing.DailyBudget,
	}
}

func (c Config) NavigationConfig() navigation.Config {
	return navigation.Config{
		CompletionRadiusM:  c.Navigation.CompletionRadiusM,
		OffRouteThresholdM: c.Navigation.OffRouteThresholdM,
		RerouteAfterFixes:  c.Navigation.RerouteAfterFixes,
		RerouteWindow:      c.Navigation.RerouteWindow,
	}
}

func (c Config) TrafficConfig() traffic.Config {
	return traffic.Config{
		Interval:      c.Traffic.Interval,
		HistorySize:   c.Traffic.HistorySize,
		IncidentDelay: c.Traffic.IncidentDelay,
		SevereDelay:   c.Traffic.SevereDelay,
		Workers:       c.Traffic.Workers,
	}
}

func (c Config) ComparatorConfig() comparator.Config {
	return comparator.Config{
		SignificantDelay:     c.Comparator.SignificantDelay,
		MinTimeSavings:       c.Comparator.MinTimeSavings,
		SimulateAlternatives: c.Comparator.SimulateAlternatives,
		SimulatedDiscount:    c.Comparator.SimulatedDiscount,
	}
}
