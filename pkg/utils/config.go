package utils

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"cosmossdk.io/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	astromath "github.com/oxygene76/hpgravity/pkg/astronomy/math"
	"github.com/oxygene76/hpgravity/pkg/astronomy/nbody"
	"github.com/oxygene76/hpgravity/pkg/astronomy/orbital"
	"github.com/oxygene76/hpgravity/pkg/simulation"
)

// Config represents a simulation scenario
type Config struct {
	Precision      uint          `yaml:"precision" mapstructure:"precision"`
	G              string        `yaml:"g" mapstructure:"g"`
	Integrator     string        `yaml:"integrator" mapstructure:"integrator"`
	FrameMode      string        `yaml:"frame_mode" mapstructure:"frame_mode"`
	ReferenceFrame string        `yaml:"reference_frame,omitempty" mapstructure:"reference_frame"`
	Cadence        CadenceConfig `yaml:"cadence" mapstructure:"cadence"`
	Log            LogConfig     `yaml:"log" mapstructure:"log"`
	Bodies         []BodyConfig  `yaml:"bodies" mapstructure:"bodies"`
}

// CadenceConfig controls how gravity steps are scheduled
type CadenceConfig struct {
	Mode            string  `yaml:"mode" mapstructure:"mode"`
	RateHz          float64 `yaml:"rate_hz" mapstructure:"rate_hz"`
	MaxStepsPerTick int     `yaml:"max_steps_per_tick" mapstructure:"max_steps_per_tick"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// BodyConfig describes one body. Mass, radius, position and velocity are
// decimal strings so they keep full precision; they must be quoted in YAML
// unless they are integers, since an unquoted decimal has already been
// rounded to float64 by the parser (see exactNumbersHook).
type BodyConfig struct {
	ID             string       `yaml:"id" mapstructure:"id"`
	Mass           string       `yaml:"mass" mapstructure:"mass"`
	Radius         string       `yaml:"radius" mapstructure:"radius"`
	Position       []string     `yaml:"position,omitempty" mapstructure:"position"`
	Velocity       []string     `yaml:"velocity,omitempty" mapstructure:"velocity"`
	ReferenceFrame bool         `yaml:"reference_frame,omitempty" mapstructure:"reference_frame"`
	Spin           *SpinConfig  `yaml:"spin,omitempty" mapstructure:"spin"`
	Orbit          *OrbitConfig `yaml:"orbit,omitempty" mapstructure:"orbit"`
}

// SpinConfig is a constant rotation about a local axis
type SpinConfig struct {
	Axis []float64 `yaml:"axis" mapstructure:"axis"`
	Rate float64   `yaml:"rate" mapstructure:"rate"` // radians per step
}

// OrbitConfig seeds position and velocity from Keplerian elements relative
// to a central body listed earlier in the scenario. Angles are degrees.
type OrbitConfig struct {
	Central                string  `yaml:"central" mapstructure:"central"`
	SemiMajorAxis          float64 `yaml:"semi_major_axis" mapstructure:"semi_major_axis"`
	Eccentricity           float64 `yaml:"eccentricity" mapstructure:"eccentricity"`
	Inclination            float64 `yaml:"inclination" mapstructure:"inclination"`
	LongitudeAscendingNode float64 `yaml:"longitude_ascending_node" mapstructure:"longitude_ascending_node"`
	ArgumentPerihelion     float64 `yaml:"argument_perihelion" mapstructure:"argument_perihelion"`
	MeanAnomaly            float64 `yaml:"mean_anomaly" mapstructure:"mean_anomaly"`
}

// Elements converts the orbit to radians
func (o OrbitConfig) Elements() orbital.OrbitalElements {
	return orbital.FromDegrees(o.SemiMajorAxis, o.Eccentricity, o.Inclination,
		o.LongitudeAscendingNode, o.ArgumentPerihelion, o.MeanAnomaly)
}

// DefaultConfig returns the Sun, Earth and Moon scenario
func DefaultConfig() *Config {
	return &Config{
		Precision:      astromath.DefaultPrecision,
		G:              nbody.G,
		Integrator:     nbody.LaggedEuler{}.Name(),
		FrameMode:      nbody.FrameRelative.String(),
		ReferenceFrame: "sun",
		Cadence: CadenceConfig{
			Mode:            "fixed",
			RateHz:          30,
			MaxStepsPerTick: 8,
		},
		Log: LogConfig{
			Level: "info",
		},
		Bodies: []BodyConfig{
			{
				ID:       "sun",
				Mass:     "1.989e30",
				Radius:   "6.96e8",
				Position: []string{"0", "0", "0"},
				Spin:     &SpinConfig{Axis: []float64{0, 0, 1}, Rate: 2.865e-6},
			},
			{
				ID:     "earth",
				Mass:   "5.972e24",
				Radius: "6.371e6",
				Spin:   &SpinConfig{Axis: []float64{0, 0.3987, 0.9171}, Rate: 7.2921e-5},
				Orbit: &OrbitConfig{
					Central:            "sun",
					SemiMajorAxis:      1.495978707e11,
					Eccentricity:       0.0167,
					ArgumentPerihelion: 102.9,
				},
			},
			{
				ID:     "moon",
				Mass:   "7.342e22",
				Radius: "1.7374e6",
				Orbit: &OrbitConfig{
					Central:       "earth",
					SemiMajorAxis: 3.844e8,
					Eccentricity:  0.0549,
					Inclination:   5.145,
				},
			},
		},
	}
}

// LoadConfig reads a scenario from path. With an empty path it searches
// the usual locations and writes the default scenario when none exists.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scenario")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".hpgravity"))
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// Set environment variable prefix
	v.SetEnvPrefix("HPGRAVITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("precision", def.Precision)
	v.SetDefault("g", def.G)
	v.SetDefault("integrator", def.Integrator)
	v.SetDefault("frame_mode", def.FrameMode)
	v.SetDefault("cadence.mode", def.Cadence.Mode)
	v.SetDefault("cadence.rate_hz", def.Cadence.RateHz)
	v.SetDefault("cadence.max_steps_per_tick", def.Cadence.MaxStepsPerTick)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.json", def.Log.JSON)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return createDefaultConfig()
		}
		return nil, fmt.Errorf("error reading scenario file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		exactNumbersHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("error unmarshaling scenario: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &config, nil
}

// exactNumbersHook refuses to turn an unquoted floating-point YAML value into
// a string field. Integers convert exactly and are let through.
func exactNumbersHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to.Kind() != reflect.String {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Float32, reflect.Float64:
			return nil, fmt.Errorf("%v was read as a float64 and may have lost digits; quote it", data)
		}
		return data, nil
	}
}

// SaveConfig writes the scenario as YAML. An empty path means the default
// location under the home directory.
func SaveConfig(config *Config, path string) error {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	return nil
}

// createDefaultConfig creates and saves the default scenario
func createDefaultConfig() (*Config, error) {
	config := DefaultConfig()

	if err := SaveConfig(config, ""); err != nil {
		return nil, err
	}

	return config, nil
}

// GetConfigPath returns the path to the default scenario file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".hpgravity", "scenario.yaml"), nil
}

// validateConfig rejects malformed scenarios before any big-float work
func validateConfig(config *Config) error {
	if config.Precision == 0 {
		return fmt.Errorf("precision must be positive")
	}
	if _, err := nbody.ParseIntegrator(config.Integrator); err != nil {
		return err
	}
	if _, err := nbody.ParseFrameMode(config.FrameMode); err != nil {
		return err
	}
	if _, err := config.ParseCadence(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if len(config.Bodies) == 0 {
		return fmt.Errorf("at least one body must be specified")
	}

	seen := make(map[string]bool, len(config.Bodies))
	frames := 0
	for i, b := range config.Bodies {
		if b.ID == "" {
			return fmt.Errorf("body %d has no id", i)
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate body id: %s", b.ID)
		}
		if b.Mass == "" || b.Radius == "" {
			return fmt.Errorf("body %s needs mass and radius", b.ID)
		}
		if b.ReferenceFrame {
			frames++
		}

		switch {
		case b.Orbit != nil:
			if !seen[b.Orbit.Central] {
				return fmt.Errorf("body %s orbits %q, which must be listed before it", b.ID, b.Orbit.Central)
			}
			if err := b.Orbit.Elements().Validate(); err != nil {
				return fmt.Errorf("body %s: %w", b.ID, err)
			}
			if len(b.Position) != 0 || len(b.Velocity) != 0 {
				return fmt.Errorf("body %s sets both an orbit and an explicit state", b.ID)
			}
		case len(b.Position) != 3:
			return fmt.Errorf("body %s position needs 3 components, got %d", b.ID, len(b.Position))
		case len(b.Velocity) != 0 && len(b.Velocity) != 3:
			return fmt.Errorf("body %s velocity needs 3 components, got %d", b.ID, len(b.Velocity))
		}

		if b.Spin != nil && len(b.Spin.Axis) != 3 {
			return fmt.Errorf("body %s spin axis needs 3 components", b.ID)
		}
		seen[b.ID] = true
	}

	if frames > 1 {
		return fmt.Errorf("at most one body may be flagged as reference frame")
	}
	if config.ReferenceFrame != "" && !seen[config.ReferenceFrame] {
		return fmt.Errorf("reference frame %q is not a body", config.ReferenceFrame)
	}

	return nil
}

// Validate checks the scenario without building it
func (c *Config) Validate() error {
	return validateConfig(c)
}

// ParseCadence returns the configured step cadence
func (c *Config) ParseCadence() (simulation.Cadence, error) {
	return simulation.ParseCadence(c.Cadence.Mode, c.Cadence.RateHz, c.Cadence.MaxStepsPerTick)
}

// BuildSystem parses the scenario at its precision and configures a system
func (c *Config) BuildSystem(logger log.Logger) (*nbody.System, error) {
	ctx, err := astromath.NewContext(c.Precision)
	if err != nil {
		return nil, err
	}
	g, err := ctx.ParseScalar(c.G)
	if err != nil {
		return nil, fmt.Errorf("g: %w", err)
	}
	integrator, err := nbody.ParseIntegrator(c.Integrator)
	if err != nil {
		return nil, err
	}
	mode, err := nbody.ParseFrameMode(c.FrameMode)
	if err != nil {
		return nil, err
	}

	specs, err := c.bodySpecs(ctx, g)
	if err != nil {
		return nil, err
	}

	opts := []nbody.Option{
		nbody.WithGravitationalConstant(g),
		nbody.WithIntegrator(integrator),
		nbody.WithFrameMode(mode),
	}
	if logger != nil {
		opts = append(opts, nbody.WithLogger(logger))
	}
	return nbody.Configure(ctx, specs, c.ReferenceFrame, opts...)
}

func (c *Config) bodySpecs(ctx *astromath.Context, g *big.Float) ([]nbody.BodySpec, error) {
	specs := make([]nbody.BodySpec, 0, len(c.Bodies))
	byID := make(map[string]nbody.BodySpec, len(c.Bodies))

	for _, b := range c.Bodies {
		mass, err := ctx.ParseScalar(b.Mass)
		if err != nil {
			return nil, fmt.Errorf("body %s mass: %w", b.ID, err)
		}
		radius, err := ctx.ParseScalar(b.Radius)
		if err != nil {
			return nil, fmt.Errorf("body %s radius: %w", b.ID, err)
		}

		spec := nbody.BodySpec{
			ID:              b.ID,
			Mass:            mass,
			EstimatedRadius: radius,
			ReferenceFrame:  b.ReferenceFrame,
		}

		if b.Orbit != nil {
			central, ok := byID[b.Orbit.Central]
			if !ok {
				return nil, fmt.Errorf("body %s orbits unknown body %q", b.ID, b.Orbit.Central)
			}
			spec.Position, spec.Velocity = seedOrbit(ctx, g, central, mass, b.Orbit.Elements())
		} else {
			if spec.Position, err = parseComponents(ctx, b.Position); err != nil {
				return nil, fmt.Errorf("body %s position: %w", b.ID, err)
			}
			if len(b.Velocity) > 0 {
				if spec.Velocity, err = parseComponents(ctx, b.Velocity); err != nil {
					return nil, fmt.Errorf("body %s velocity: %w", b.ID, err)
				}
			}
		}

		if b.Spin != nil && len(b.Spin.Axis) == 3 {
			spec.Spin = nbody.Spin{
				Axis: mgl32.Vec3{float32(b.Spin.Axis[0]), float32(b.Spin.Axis[1]), float32(b.Spin.Axis[2])},
				Rate: b.Spin.Rate,
			}
		}

		specs = append(specs, spec)
		byID[b.ID] = spec
	}
	return specs, nil
}

// seedOrbit places a body on its Keplerian orbit around central, using
// mu = G·(M + m). The offset is computed in float64 and added to the
// central body's full-precision state.
func seedOrbit(ctx *astromath.Context, g *big.Float, central nbody.BodySpec, mass *big.Float, oe orbital.OrbitalElements) (pos, vel astromath.Vector3) {
	total := new(big.Float).SetPrec(ctx.Precision()).Add(central.Mass, mass)
	mu, _ := total.Mul(total, g).Float64()

	p, v := oe.ToCartesian(mu)
	pos = central.Position.Add(ctx.Vector(p[0], p[1], p[2]))

	vel = ctx.Vector(v[0], v[1], v[2])
	if central.Velocity.X != nil {
		vel = central.Velocity.Add(vel)
	}
	return pos, vel
}

func parseComponents(ctx *astromath.Context, comps []string) (astromath.Vector3, error) {
	if len(comps) != 3 {
		return astromath.Vector3{}, fmt.Errorf("need 3 components, got %d", len(comps))
	}
	return ctx.ParseVector([3]string{comps[0], comps[1], comps[2]})
}
