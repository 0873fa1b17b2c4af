package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Storage    StorageConfig    `toml:"storage"`    // Event persistence settings
	World      WorldConfig      `toml:"world"`      // Georeference and terrain of the simulated world
	Airships   AirshipsConfig   `toml:"airships"`   // Pilot and collision avoidance tuning
	Simulation SimulationConfig `toml:"simulation"` // Simulation loop settings
	Templating TemplatingConfig `toml:"templating"` // Phrasebook for pilot chat lines
	Routes     []RouteConfig    `toml:"routes"`     // Static route network
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve static files from (optional)
	RateLimitPerSec    float64  `toml:"rate_limit_per_sec"`    // Sustained API requests per second (0 = unlimited)
	RateLimitBurst     int      `toml:"rate_limit_burst"`      // Burst size for the API rate limiter
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains event persistence configuration
type StorageConfig struct {
	Type           string `toml:"type"`              // Storage backend type (currently only "sqlite" is supported)
	SQLitePath     string `toml:"sqlite_path"`       // Path of the SQLite database file
	MaxEventsInAPI int    `toml:"max_events_in_api"` // Maximum number of events returned per history request
}

// WorldConfig describes the simulated world
type WorldConfig struct {
	OriginLat         float64   `toml:"origin_lat"`         // Latitude of world position (0,0)
	OriginLon         float64   `toml:"origin_lon"`         // Longitude of world position (0,0)
	TerrainBase       float64   `toml:"terrain_base"`       // Mean terrain altitude
	TerrainAmplitude  float64   `toml:"terrain_amplitude"`  // Height of terrain undulation
	TerrainWavelength float64   `toml:"terrain_wavelength"` // Horizontal period of terrain undulation
	Epoch             time.Time `toml:"epoch"`              // Calendar date at simulation time zero, used for magnetic headings
}

// DefaultEpoch is the simulation start date when world.epoch is not set
var DefaultEpoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// AirshipsConfig contains pilot behavior and collision avoidance tuning
type AirshipsConfig struct {
	NominalSpeed        float64  `toml:"nominal_speed"`         // Simulated cruise speed in world units per second
	DockingDurationSecs float64  `toml:"docking_duration_secs"` // Base time an airship waits at each dock
	RouteModel          string   `toml:"route_model"`           // Default avoidance model: "predecessor" or "zone"
	SpeedOverride       *float64 `toml:"speed_override"`        // Fixed cruise speed factor, disables speed matching when set

	// Radar intervals: how often avoidance is re-evaluated per flight phase
	RadarCruiseSecs        float64 `toml:"radar_cruise_secs"`
	RadarTransitionSecs    float64 `toml:"radar_transition_secs"`
	RadarFinalApproachSecs float64 `toml:"radar_final_approach_secs"`

	// Avoidance distances in world units (not squared)
	CloseToDock   float64 `toml:"close_to_dock"`      // Predecessor this close to the dock counts as docking
	VeryClose     float64 `toml:"very_close"`         // Hold when the docking predecessor is this close
	HoldMargin    float64 `toml:"hold_margin"`        // Extra distance while already holding
	SomewhatClose float64 `toml:"somewhat_close"`     // Slow down when the docking predecessor is this close
	PassingClose  float64 `toml:"passing_close"`      // Slow down when a cruising predecessor is this close
	ZoneTolerance float64 `toml:"zone_tolerance"`     // Zone model: squared distance under which the predecessor counts as docked
	MatchRange    float64 `toml:"cruise_match_range"` // Speed matching only within this distance of the predecessor
}

// SimulationConfig contains simulation loop settings
type SimulationConfig struct {
	TickMs           int       `toml:"tick_ms"`            // Simulation step in milliseconds
	Seed             int64     `toml:"seed"`               // Random seed (0 = time based)
	AirshipsPerRoute int       `toml:"airships_per_route"` // Number of airships spawned on each route
	ObserverPos      []float64 `toml:"observer_pos"`       // World position airships are loaded around
	LoadedRadius     float64   `toml:"loaded_radius"`      // Airships within this distance of the observer are fully simulated
}

// TemplatingConfig contains settings for the pilot phrasebook
type TemplatingConfig struct {
	PhrasebookPath string `toml:"phrasebook_path"` // Optional TOML file overriding phrase templates
}

// RouteConfig describes one circular route
type RouteConfig struct {
	ID           int         `toml:"id"`            // Unique route id
	Model        string      `toml:"model"`         // Avoidance model for this route (defaults to airships.route_model)
	CruiseHeight float64     `toml:"cruise_height"` // Cruise height above terrain
	Legs         []LegConfig `toml:"legs"`          // Legs in flying order; the last leg leads back to the first
}

// LegConfig describes the approach at the end of one leg. Approach points
// that are omitted are derived from the dock and the previous site.
type LegConfig struct {
	Site       string    `toml:"site"`       // Name of the docking site
	Dock       []float64 `toml:"dock"`       // Docked airship position [x, y, z]
	Direction  []float64 `toml:"direction"`  // Direction the airship faces when docked [x, y]
	Transition []float64 `toml:"transition"` // End of cruise [x, y, z] (optional)
	Final      []float64 `toml:"final"`      // Final approach point [x, y, z] (optional)
	Initial    []float64 `toml:"initial"`    // Initial approach point [x, y, z] (optional)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}
	if c.Server.RateLimitPerSec < 0 {
		return fmt.Errorf("invalid rate_limit_per_sec: %f", c.Server.RateLimitPerSec)
	}
	if c.Server.RateLimitPerSec > 0 && c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = int(c.Server.RateLimitPerSec*2) + 1
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when storage type is sqlite")
	}
	if c.Storage.MaxEventsInAPI <= 0 {
		c.Storage.MaxEventsInAPI = 100
	}

	if err := c.ValidateWorld(); err != nil {
		return err
	}
	if err := c.ValidateAirships(); err != nil {
		return err
	}
	if err := c.ValidateSimulation(); err != nil {
		return err
	}
	return c.ValidateRoutes()
}

// ValidateWorld validates the world configuration
func (c *Config) ValidateWorld() error {
	if c.World.OriginLat < -90 || c.World.OriginLat > 90 {
		return fmt.Errorf("invalid world origin latitude: %f", c.World.OriginLat)
	}
	if c.World.OriginLon < -180 || c.World.OriginLon > 180 {
		return fmt.Errorf("invalid world origin longitude: %f", c.World.OriginLon)
	}
	if c.World.TerrainAmplitude < 0 {
		return fmt.Errorf("terrain_amplitude must be >= 0")
	}
	if c.World.TerrainWavelength <= 0 {
		c.World.TerrainWavelength = 2000
	}
	if c.World.Epoch.IsZero() {
		c.World.Epoch = DefaultEpoch
	}
	return nil
}

// ValidateAirships validates pilot tuning and fills in the calibrated defaults
func (c *Config) ValidateAirships() error {
	a := &c.Airships
	if a.NominalSpeed <= 0 {
		a.NominalSpeed = 24
	}
	if a.DockingDurationSecs <= 0 {
		a.DockingDurationSecs = 60
	}
	if a.RouteModel == "" {
		a.RouteModel = "predecessor"
	}
	if !validModel(a.RouteModel) {
		return fmt.Errorf("invalid route_model: %s (must be 'predecessor' or 'zone')", a.RouteModel)
	}
	if a.SpeedOverride != nil && (*a.SpeedOverride <= 0 || *a.SpeedOverride > 2) {
		return fmt.Errorf("speed_override must be in (0, 2]: %f", *a.SpeedOverride)
	}

	defaultFloat(&a.RadarCruiseSecs, 5)
	defaultFloat(&a.RadarTransitionSecs, 3)
	defaultFloat(&a.RadarFinalApproachSecs, 2)

	defaultFloat(&a.CloseToDock, 225)
	defaultFloat(&a.VeryClose, 400)
	defaultFloat(&a.HoldMargin, 50)
	defaultFloat(&a.SomewhatClose, 1000)
	defaultFloat(&a.PassingClose, 700)
	defaultFloat(&a.ZoneTolerance, 100)
	defaultFloat(&a.MatchRange, 2500)

	if a.VeryClose >= a.SomewhatClose {
		return fmt.Errorf("very_close (%.0f) must be less than somewhat_close (%.0f)", a.VeryClose, a.SomewhatClose)
	}
	return nil
}

// ValidateSimulation validates the simulation loop configuration
func (c *Config) ValidateSimulation() error {
	s := &c.Simulation
	if s.TickMs <= 0 {
		s.TickMs = 50
	}
	if s.AirshipsPerRoute <= 0 {
		s.AirshipsPerRoute = 1
	}
	if len(s.ObserverPos) != 0 && len(s.ObserverPos) != 2 {
		return fmt.Errorf("observer_pos must have 2 components, got %d", len(s.ObserverPos))
	}
	if s.LoadedRadius < 0 {
		return fmt.Errorf("loaded_radius must be >= 0")
	}
	return nil
}

// ValidateRoutes validates the static route network
func (c *Config) ValidateRoutes() error {
	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one route is required")
	}
	seen := make(map[int]bool)
	for i := range c.Routes {
		r := &c.Routes[i]
		if seen[r.ID] {
			return fmt.Errorf("duplicate route id: %d", r.ID)
		}
		seen[r.ID] = true

		if r.Model == "" {
			r.Model = c.Airships.RouteModel
		}
		if !validModel(r.Model) {
			return fmt.Errorf("route %d: invalid model: %s", r.ID, r.Model)
		}
		if len(r.Legs) < 2 {
			return fmt.Errorf("route %d: at least two legs are required, got %d", r.ID, len(r.Legs))
		}
		if r.Model == "zone" && len(r.Legs) != 2 {
			return fmt.Errorf("route %d: zone model needs exactly two legs, got %d", r.ID, len(r.Legs))
		}
		if r.CruiseHeight <= 0 {
			r.CruiseHeight = 300
		}
		for j, leg := range r.Legs {
			if leg.Site == "" {
				return fmt.Errorf("route %d leg %d: site is required", r.ID, j)
			}
			if len(leg.Dock) != 3 {
				return fmt.Errorf("route %d leg %d: dock must have 3 components", r.ID, j)
			}
			if len(leg.Direction) != 2 {
				return fmt.Errorf("route %d leg %d: direction must have 2 components", r.ID, j)
			}
			for name, v := range map[string][]float64{"transition": leg.Transition, "final": leg.Final, "initial": leg.Initial} {
				if len(v) != 0 && len(v) != 3 {
					return fmt.Errorf("route %d leg %d: %s must have 3 components", r.ID, j, name)
				}
			}
		}
	}
	return nil
}

func validModel(m string) bool {
	return m == "predecessor" || m == "zone"
}

func defaultFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}
