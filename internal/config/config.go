package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigurationError reports an invalid or missing configuration option.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration option %s: %s", e.Option, e.Reason)
}

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxDocuments  int    `yaml:"max_documents"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// DimensionBounds declares the raw value domain of one semantic dimension.
// Signed dimensions normalize into [-1,1] instead of [0,1].
type DimensionBounds struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Signed bool    `yaml:"signed,omitempty"`
}

type CalibrationConfig struct {
	Mode   string                     `yaml:"mode"`   // static | document-relative
	Method string                     `yaml:"method"` // minmax | zscore (document-relative only)
	Bounds map[string]DimensionBounds `yaml:"bounds"`
}

type ModulationConfig struct {
	WindowSize    int                `yaml:"window_size"`
	DefaultBlend  float64            `yaml:"default_blend"`
	BlendWeights  map[string]float64 `yaml:"blend_weights"`
	WindowWeights []float64          `yaml:"window_weights,omitempty"`
}

type CurveConfig struct {
	Name       string `yaml:"name"`
	Module     string `yaml:"module,omitempty"`
	Entrypoint string `yaml:"entrypoint,omitempty"`
}

type PitchConfig struct {
	MinHz   float64            `yaml:"min_hz"`
	MaxHz   float64            `yaml:"max_hz"`
	Sources map[string]float64 `yaml:"sources"`
	Curve   CurveConfig        `yaml:"curve"`
}

type TempoConfig struct {
	MinFactor         float64            `yaml:"min_factor"`
	MaxFactor         float64            `yaml:"max_factor"`
	Sources           map[string]float64 `yaml:"sources"`
	Curve             CurveConfig        `yaml:"curve"`
	DurationWeight    float64            `yaml:"duration_weight"`
	ReferenceDuration float64            `yaml:"reference_duration"`
}

type IntensityConfig struct {
	Baseline float64            `yaml:"baseline"`
	Sources  map[string]float64 `yaml:"sources"`
	Curve    CurveConfig        `yaml:"curve"`
}

type TimbreConfig struct {
	Source     string   `yaml:"source"`
	Categories []string `yaml:"categories"`
}

type MappingConfig struct {
	Pitch     PitchConfig     `yaml:"pitch"`
	Tempo     TempoConfig     `yaml:"tempo"`
	Intensity IntensityConfig `yaml:"intensity"`
	Timbre    TimbreConfig    `yaml:"timbre"`
}

type ScheduleConfig struct {
	MinGap           float64 `yaml:"min_gap"`
	MaxOverlap       float64 `yaml:"max_overlap"`
	MaxTotalDuration float64 `yaml:"max_total_duration"`
	MinEventDuration float64 `yaml:"min_event_duration"`
}

// SonifyConfig carries every option one pipeline run depends on: calibration,
// context modulation, the audio mappings and scheduling. The engine itself
// keeps no mutable state, so two runs with equal SonifyConfig and equal input
// produce identical timelines.
type SonifyConfig struct {
	Calibration CalibrationConfig `yaml:"calibration"`
	Modulation  ModulationConfig  `yaml:"modulation"`
	Mapping     MappingConfig     `yaml:"mapping"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
}

type FeatureConfig struct {
	Mode               string  `yaml:"mode"` // mock | exec
	Command            string  `yaml:"command"`
	WordsPerSecond     float64 `yaml:"words_per_second"`
	MinSegmentDuration float64 `yaml:"min_segment_duration"`
	MaxSegmentDuration float64 `yaml:"max_segment_duration"`
}

type RenderConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Mode       string `yaml:"mode"` // mock | exec
	Command    string `yaml:"command"`
	OutputDir  string `yaml:"output_dir"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type ServiceConfig struct {
	Enabled         bool    `yaml:"enabled"`
	DurationCeiling float64 `yaml:"duration_ceiling"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Store       StoreConfig     `yaml:"timeline_store"`
	Service     ServiceConfig   `yaml:"service"`
	Feature     FeatureConfig   `yaml:"feature"`
	Render      RenderConfig    `yaml:"render"`
	Sonify      SonifyConfig    `yaml:"sonify"`
}

func Default() Config {
	return Config{
		ServiceName: "semantic-sonifier",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/sonifier-timelines.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxDocuments:  10000,
		},
		Service: ServiceConfig{
			Enabled:         true,
			DurationCeiling: 30,
		},
		Feature: FeatureConfig{
			Mode:               "mock",
			WordsPerSecond:     3.0,
			MinSegmentDuration: 0.8,
			MaxSegmentDuration: 8.0,
		},
		Render: RenderConfig{
			Enabled:    false,
			Mode:       "mock",
			OutputDir:  "./data/audio",
			SampleRate: 32000,
			Channels:   1,
		},
		Sonify: DefaultSonify(),
	}
}

// DefaultSonify returns the default pipeline options on their own, so library
// callers and tests can start from them without the daemon surface.
func DefaultSonify() SonifyConfig {
	return SonifyConfig{
		Calibration: CalibrationConfig{
			Mode:   "static",
			Method: "minmax",
			Bounds: map[string]DimensionBounds{
				"sentiment":  {Min: -1, Max: 1, Signed: true},
				"topicality": {Min: 0, Max: 1},
				"novelty":    {Min: 0, Max: 1},
				"emphasis":   {Min: 0, Max: 1},
				"topic":      {Min: 0, Max: 1},
			},
		},
		Modulation: ModulationConfig{
			WindowSize:   2,
			DefaultBlend: 0.3,
			BlendWeights: map[string]float64{
				"sentiment":  0.6,
				"topicality": 0.4,
				"novelty":    0.3,
				"emphasis":   0.1,
				"topic":      0.5,
			},
		},
		Mapping: MappingConfig{
			Pitch: PitchConfig{
				MinHz: 220,
				MaxHz: 880,
				Sources: map[string]float64{
					"topicality": 0.5,
					"novelty":    0.3,
					"sentiment":  0.2,
				},
				Curve: CurveConfig{Name: "linear"},
			},
			Tempo: TempoConfig{
				MinFactor:         0.5,
				MaxFactor:         2.0,
				Sources:           map[string]float64{"emphasis": -1},
				Curve:             CurveConfig{Name: "linear"},
				DurationWeight:    0.25,
				ReferenceDuration: 2.5,
			},
			Intensity: IntensityConfig{
				Baseline: 0.2,
				Sources: map[string]float64{
					"sentiment_magnitude": 0.6,
					"emphasis":            0.4,
				},
				Curve: CurveConfig{Name: "linear"},
			},
			Timbre: TimbreConfig{
				Source: "topic",
				Categories: []string{
					"serene", "happy", "melancholic", "energetic",
					"peaceful", "chaotic", "mysterious", "romantic",
					"dramatic", "calm", "joyful", "somber",
					"intense", "light", "dark", "dreamy",
				},
			},
		},
		Schedule: ScheduleConfig{
			MinGap:           0.05,
			MaxOverlap:       0.25,
			MaxTotalDuration: 30,
			MinEventDuration: 0.25,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "SONIFIER_SERVICE_NAME")
	overrideString(&cfg.Environment, "SONIFIER_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SONIFIER_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SONIFIER_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SONIFIER_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SONIFIER_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SONIFIER_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "SONIFIER_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SONIFIER_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "SONIFIER_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "SONIFIER_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SONIFIER_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SONIFIER_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SONIFIER_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SONIFIER_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SONIFIER_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "SONIFIER_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "SONIFIER_STORE_RETENTION_MODE")
	overrideInt(&cfg.Store.RetentionDays, "SONIFIER_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxDocuments, "SONIFIER_STORE_MAX_DOCUMENTS")
	overrideBool(&cfg.Store.VacuumOnStart, "SONIFIER_STORE_VACUUM_ON_START")
	overrideBool(&cfg.Service.Enabled, "SONIFIER_SERVICE_ENABLED")
	overrideFloat(&cfg.Service.DurationCeiling, "SONIFIER_SERVICE_DURATION_CEILING")
	overrideString(&cfg.Feature.Mode, "SONIFIER_FEATURE_MODE")
	overrideString(&cfg.Feature.Command, "SONIFIER_FEATURE_COMMAND")
	overrideFloat(&cfg.Feature.WordsPerSecond, "SONIFIER_FEATURE_WORDS_PER_SECOND")
	overrideBool(&cfg.Render.Enabled, "SONIFIER_RENDER_ENABLED")
	overrideString(&cfg.Render.Mode, "SONIFIER_RENDER_MODE")
	overrideString(&cfg.Render.Command, "SONIFIER_RENDER_COMMAND")
	overrideString(&cfg.Render.OutputDir, "SONIFIER_RENDER_OUTPUT_DIR")
	overrideInt(&cfg.Render.SampleRate, "SONIFIER_RENDER_SAMPLE_RATE")
	overrideInt(&cfg.Render.Channels, "SONIFIER_RENDER_CHANNELS")
	overrideString(&cfg.Sonify.Calibration.Mode, "SONIFIER_CALIBRATION_MODE")
	overrideString(&cfg.Sonify.Calibration.Method, "SONIFIER_CALIBRATION_METHOD")
	overrideInt(&cfg.Sonify.Modulation.WindowSize, "SONIFIER_MODULATION_WINDOW_SIZE")
	overrideFloat(&cfg.Sonify.Modulation.DefaultBlend, "SONIFIER_MODULATION_DEFAULT_BLEND")
	overrideFloat(&cfg.Sonify.Mapping.Pitch.MinHz, "SONIFIER_PITCH_MIN_HZ")
	overrideFloat(&cfg.Sonify.Mapping.Pitch.MaxHz, "SONIFIER_PITCH_MAX_HZ")
	overrideFloat(&cfg.Sonify.Mapping.Tempo.MinFactor, "SONIFIER_TEMPO_MIN_FACTOR")
	overrideFloat(&cfg.Sonify.Mapping.Tempo.MaxFactor, "SONIFIER_TEMPO_MAX_FACTOR")
	overrideFloat(&cfg.Sonify.Mapping.Intensity.Baseline, "SONIFIER_INTENSITY_BASELINE")
	overrideFloat(&cfg.Sonify.Schedule.MinGap, "SONIFIER_SCHEDULE_MIN_GAP")
	overrideFloat(&cfg.Sonify.Schedule.MaxOverlap, "SONIFIER_SCHEDULE_MAX_OVERLAP")
	overrideFloat(&cfg.Sonify.Schedule.MaxTotalDuration, "SONIFIER_SCHEDULE_MAX_TOTAL_DURATION")
	overrideFloat(&cfg.Sonify.Schedule.MinEventDuration, "SONIFIER_SCHEDULE_MIN_EVENT_DURATION")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func invalid(option, format string, args ...any) error {
	return &ConfigurationError{Option: option, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the full daemon configuration. Every failure is reported
// as a *ConfigurationError naming the offending option.
func Validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return invalid("service_name", "must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return invalid("http.port", "must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return invalid("bus.port", "must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return invalid("bus.servers", "must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Store.Path == "" {
		return invalid("timeline_store.path", "must not be empty")
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return invalid("timeline_store.retention_mode", "must be one of ephemeral|session|persistent")
	}
	if cfg.Store.RetentionDays < 0 {
		return invalid("timeline_store.retention_days", "must be >= 0")
	}
	if cfg.Service.Enabled && cfg.Service.DurationCeiling <= 0 {
		return invalid("service.duration_ceiling", "must be positive")
	}
	if err := validateFeature(cfg.Feature); err != nil {
		return err
	}
	if err := validateRender(cfg.Render); err != nil {
		return err
	}
	return ValidateSonify(cfg.Sonify)
}

func validateFeature(cfg FeatureConfig) error {
	switch cfg.Mode {
	case "mock", "exec":
	default:
		return invalid("feature.mode", "must be one of mock|exec")
	}
	if cfg.Mode == "exec" && cfg.Command == "" {
		return invalid("feature.command", "must be set when mode=exec")
	}
	if cfg.WordsPerSecond <= 0 {
		return invalid("feature.words_per_second", "must be positive")
	}
	if cfg.MinSegmentDuration <= 0 || cfg.MaxSegmentDuration < cfg.MinSegmentDuration {
		return invalid("feature.min_segment_duration", "need 0 < min <= max segment duration")
	}
	return nil
}

func validateRender(cfg RenderConfig) error {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Mode {
	case "mock", "exec":
	default:
		return invalid("render.mode", "must be one of mock|exec")
	}
	if cfg.Mode == "exec" {
		if cfg.Command == "" {
			return invalid("render.command", "must be set when mode=exec")
		}
		if cfg.OutputDir == "" {
			return invalid("render.output_dir", "must be set when mode=exec")
		}
	}
	if cfg.SampleRate <= 0 {
		return invalid("render.sample_rate", "must be positive")
	}
	if cfg.Channels <= 0 {
		return invalid("render.channels", "must be positive")
	}
	return nil
}

// ValidateSonify checks only the pipeline options, for callers that embed the
// engine without the daemon around it.
func ValidateSonify(cfg SonifyConfig) error {
	switch cfg.Calibration.Mode {
	case "static", "document-relative":
	default:
		return invalid("sonify.calibration.mode", "must be static or document-relative")
	}
	switch cfg.Calibration.Method {
	case "", "minmax", "zscore":
	default:
		return invalid("sonify.calibration.method", "must be minmax or zscore")
	}
	if cfg.Calibration.Mode == "static" && len(cfg.Calibration.Bounds) == 0 {
		return invalid("sonify.calibration.bounds", "must declare at least one dimension in static mode")
	}
	for name, b := range cfg.Calibration.Bounds {
		if b.Max <= b.Min {
			return invalid("sonify.calibration.bounds."+name, "max must exceed min")
		}
	}
	if cfg.Modulation.WindowSize < 0 {
		return invalid("sonify.modulation.window_size", "must be >= 0")
	}
	if cfg.Modulation.DefaultBlend < 0 || cfg.Modulation.DefaultBlend > 1 {
		return invalid("sonify.modulation.default_blend", "must lie in [0,1]")
	}
	for name, w := range cfg.Modulation.BlendWeights {
		if w < 0 || w > 1 {
			return invalid("sonify.modulation.blend_weights."+name, "must lie in [0,1]")
		}
	}
	if n := len(cfg.Modulation.WindowWeights); n > 0 {
		if n != cfg.Modulation.WindowSize+1 {
			return invalid("sonify.modulation.window_weights", "need window_size+1 entries (center first), got %d", n)
		}
		for i, w := range cfg.Modulation.WindowWeights {
			if w < 0 {
				return invalid("sonify.modulation.window_weights", "entry %d must be >= 0", i)
			}
		}
		if cfg.Modulation.WindowWeights[0] <= 0 {
			return invalid("sonify.modulation.window_weights", "center weight must be positive")
		}
	}
	if cfg.Mapping.Pitch.MinHz <= 0 || cfg.Mapping.Pitch.MaxHz <= cfg.Mapping.Pitch.MinHz {
		return invalid("sonify.mapping.pitch", "need 0 < min_hz < max_hz")
	}
	if cfg.Mapping.Tempo.MinFactor <= 0 || cfg.Mapping.Tempo.MinFactor > 1 || cfg.Mapping.Tempo.MaxFactor < 1 {
		return invalid("sonify.mapping.tempo", "need 0 < min_factor <= 1 <= max_factor")
	}
	if cfg.Mapping.Tempo.ReferenceDuration <= 0 {
		return invalid("sonify.mapping.tempo.reference_duration", "must be positive")
	}
	if cfg.Mapping.Tempo.DurationWeight < 0 {
		return invalid("sonify.mapping.tempo.duration_weight", "must be >= 0")
	}
	if cfg.Mapping.Intensity.Baseline < 0 || cfg.Mapping.Intensity.Baseline >= 1 {
		return invalid("sonify.mapping.intensity.baseline", "must lie in [0,1)")
	}
	if cfg.Mapping.Timbre.Source == "" {
		return invalid("sonify.mapping.timbre.source", "must name a dimension")
	}
	if len(cfg.Mapping.Timbre.Categories) == 0 {
		return invalid("sonify.mapping.timbre.categories", "must not be empty")
	}
	for _, c := range []struct {
		option string
		curve  CurveConfig
	}{
		{"sonify.mapping.pitch.curve", cfg.Mapping.Pitch.Curve},
		{"sonify.mapping.tempo.curve", cfg.Mapping.Tempo.Curve},
		{"sonify.mapping.intensity.curve", cfg.Mapping.Intensity.Curve},
	} {
		if c.curve.Name == "wasm" && c.curve.Module == "" {
			return invalid(c.option+".module", "must be set for wasm curves")
		}
	}
	if cfg.Schedule.MinGap < 0 {
		return invalid("sonify.schedule.min_gap", "must be >= 0")
	}
	if cfg.Schedule.MaxOverlap < 0 {
		return invalid("sonify.schedule.max_overlap", "must be >= 0")
	}
	if cfg.Schedule.MaxTotalDuration <= 0 {
		return invalid("sonify.schedule.max_total_duration", "must be positive")
	}
	if cfg.Schedule.MinEventDuration <= 0 || cfg.Schedule.MinEventDuration >= cfg.Schedule.MaxTotalDuration {
		return invalid("sonify.schedule.min_event_duration", "need 0 < min_event_duration < max_total_duration")
	}
	return nil
}
