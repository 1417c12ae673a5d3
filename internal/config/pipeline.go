package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/wayfinder/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// maxFileSize caps the size of a config file.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// maxBlockingWait caps the queue waits so cancellation is noticed promptly.
const maxBlockingWait = time.Second

// PipelineConfig holds the tunable parameters of the pipeline. Every field is
// optional; the Get* methods supply the default for anything left unset, so
// partial files are safe.
type PipelineConfig struct {
	// Queue capacities
	RawQueueCapacity       *int `json:"raw_queue_capacity,omitempty"`
	ProcessedQueueCapacity *int `json:"processed_queue_capacity,omitempty"`
	CommandQueueCapacity   *int `json:"command_queue_capacity,omitempty"`

	// Scheduler params
	MinInterval  *string `json:"min_interval,omitempty"`  // duration string like "40ms"
	DrainTimeout *string `json:"drain_timeout,omitempty"` // duration string like "20ms"
	PollTimeout  *string `json:"poll_timeout,omitempty"`  // worker and writer wait on an empty queue

	// Fusion window
	FusionCapacity  *int    `json:"fusion_capacity,omitempty"`
	FusionMaxAge    *string `json:"fusion_max_age,omitempty"`
	FusionTolerance *string `json:"fusion_tolerance,omitempty"`

	// Capture params
	SampleRate   *int     `json:"sample_rate,omitempty"`
	BlockSize    *int     `json:"block_size,omitempty"`
	DepthFPS     *float64 `json:"depth_fps,omitempty"`
	SmoothWindow *int     `json:"smooth_window,omitempty"`

	// Actuator link
	SerialPort     *string                `json:"serial_port,omitempty"`
	Serial         *serialmux.PortOptions `json:"serial,omitempty"` // line settings, 8N1 at 115200 when unset
	CommandHistory *int                   `json:"command_history,omitempty"`

	// Reporting
	StatsInterval *string `json:"stats_interval,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields set to nil.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a PipelineConfig with every field set to its
// default value.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		RawQueueCapacity:       ptrInt(50),
		ProcessedQueueCapacity: ptrInt(10),
		CommandQueueCapacity:   ptrInt(30),
		MinInterval:            ptrString("40ms"),
		DrainTimeout:           ptrString("20ms"),
		PollTimeout:            ptrString("100ms"),
		FusionCapacity:         ptrInt(5),
		FusionMaxAge:           ptrString("150ms"),
		FusionTolerance:        ptrString("50ms"),
		SampleRate:             ptrInt(44100),
		BlockSize:              ptrInt(2048),
		DepthFPS:               ptrFloat64(10),
		SmoothWindow:           ptrInt(5),
		SerialPort:             ptrString(""),
		Serial: &serialmux.PortOptions{
			BaudRate: serialmux.DefaultBaudRate,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
		},
		CommandHistory: ptrInt(100),
		StatsInterval:  ptrString("5s"),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<bin>/ nested
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	positive := map[string]*int{
		"raw_queue_capacity":       c.RawQueueCapacity,
		"processed_queue_capacity": c.ProcessedQueueCapacity,
		"command_queue_capacity":   c.CommandQueueCapacity,
		"fusion_capacity":          c.FusionCapacity,
		"sample_rate":              c.SampleRate,
		"block_size":               c.BlockSize,
		"smooth_window":            c.SmoothWindow,
		"command_history":          c.CommandHistory,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}

	if c.DepthFPS != nil && *c.DepthFPS <= 0 {
		return fmt.Errorf("depth_fps must be positive, got %f", *c.DepthFPS)
	}

	durations := map[string]*string{
		"min_interval":     c.MinInterval,
		"drain_timeout":    c.DrainTimeout,
		"poll_timeout":     c.PollTimeout,
		"fusion_max_age":   c.FusionMaxAge,
		"fusion_tolerance": c.FusionTolerance,
		"stats_interval":   c.StatsInterval,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, *v)
		}
	}

	// blocking waits must stay short enough for shutdown to be prompt
	waits := []struct {
		name string
		v    *string
	}{
		{"drain_timeout", c.DrainTimeout},
		{"poll_timeout", c.PollTimeout},
	}
	for _, w := range waits {
		if w.v == nil || *w.v == "" {
			continue
		}
		if d, _ := time.ParseDuration(*w.v); d > maxBlockingWait {
			return fmt.Errorf("%s must be at most %s, got %s", w.name, maxBlockingWait, *w.v)
		}
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// GetRawQueueCapacity returns the raw_queue_capacity value or the default.
func (c *PipelineConfig) GetRawQueueCapacity() int { return intOr(c.RawQueueCapacity, 50) }

// GetProcessedQueueCapacity returns the processed_queue_capacity value or the default.
func (c *PipelineConfig) GetProcessedQueueCapacity() int {
	return intOr(c.ProcessedQueueCapacity, 10)
}

// GetCommandQueueCapacity returns the command_queue_capacity value or the default.
func (c *PipelineConfig) GetCommandQueueCapacity() int { return intOr(c.CommandQueueCapacity, 30) }

// GetMinInterval parses and returns MinInterval as a time.Duration.
func (c *PipelineConfig) GetMinInterval() time.Duration {
	return durationOr(c.MinInterval, 40*time.Millisecond)
}

// GetDrainTimeout parses and returns DrainTimeout as a time.Duration.
func (c *PipelineConfig) GetDrainTimeout() time.Duration {
	return durationOr(c.DrainTimeout, 20*time.Millisecond)
}

// GetPollTimeout parses and returns PollTimeout as a time.Duration.
func (c *PipelineConfig) GetPollTimeout() time.Duration {
	return durationOr(c.PollTimeout, 100*time.Millisecond)
}

// GetFusionCapacity returns the fusion_capacity value or the default.
func (c *PipelineConfig) GetFusionCapacity() int { return intOr(c.FusionCapacity, 5) }

// GetFusionMaxAge parses and returns FusionMaxAge as a time.Duration.
func (c *PipelineConfig) GetFusionMaxAge() time.Duration {
	return durationOr(c.FusionMaxAge, 150*time.Millisecond)
}

// GetFusionTolerance parses and returns FusionTolerance as a time.Duration.
func (c *PipelineConfig) GetFusionTolerance() time.Duration {
	return durationOr(c.FusionTolerance, 50*time.Millisecond)
}

// GetSampleRate returns the sample_rate value or the default.
func (c *PipelineConfig) GetSampleRate() int { return intOr(c.SampleRate, 44100) }

// GetBlockSize returns the block_size value or the default.
func (c *PipelineConfig) GetBlockSize() int { return intOr(c.BlockSize, 2048) }

// GetDepthFPS returns the depth_fps value or the default.
func (c *PipelineConfig) GetDepthFPS() float64 {
	if c.DepthFPS == nil {
		return 10
	}
	return *c.DepthFPS
}

// GetSmoothWindow returns the smooth_window value or the default.
func (c *PipelineConfig) GetSmoothWindow() int { return intOr(c.SmoothWindow, 5) }

// GetSerialPort returns the serial device path. Empty means no board is
// attached and commands go to the recorder only.
func (c *PipelineConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialOptions returns the normalized serial line settings. Unset or
// invalid settings fall back to the board's defaults.
func (c *PipelineConfig) GetSerialOptions() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	n, err := opts.Normalize()
	if err != nil {
		n, _ = serialmux.PortOptions{}.Normalize()
	}
	return n
}

// GetCommandHistory returns the command_history value or the default.
func (c *PipelineConfig) GetCommandHistory() int { return intOr(c.CommandHistory, 100) }

// GetStatsInterval parses and returns StatsInterval as a time.Duration.
func (c *PipelineConfig) GetStatsInterval() time.Duration {
	return durationOr(c.StatsInterval, 5*time.Second)
}
