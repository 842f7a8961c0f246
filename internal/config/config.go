package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvReduceNumBlocks overrides mc.cuda.reduceNumBlocks.
const EnvReduceNumBlocks = "UCC_MC_CUDA_REDUCE_NUM_BLOCKS"

// Driver names accepted by mc.cuda.driver.
const (
	DriverNative = "native"
	DriverSim    = "sim"
)

type Config struct {
	Logger  LoggerConfig `yaml:"logger"`
	MC struct {
		CUDA CUDAConfig `yaml:"cuda"`
	} `yaml:"mc"`
	Sim     SimConfig `yaml:"sim"`
	Metrics struct {
		ListenAddress string `yaml:"listenAddress"`
	} `yaml:"metrics"`
}

type LoggerConfig struct {
	Verbosity string `yaml:"verbosity"`
	// Encoding is "json" or "console".
	Encoding string `yaml:"encoding"`
}

// CUDAConfig configures the CUDA memory component.
type CUDAConfig struct {
	// ReduceNumBlocks is the number of thread blocks used for reductions.
	ReduceNumBlocks Units  `yaml:"reduceNumBlocks"`
	Driver          string `yaml:"driver"`
}

// SimConfig describes the device exposed by the simulated driver.
type SimConfig struct {
	RuntimeVersion     int    `yaml:"runtimeVersion"`
	MaxThreadsPerBlock int    `yaml:"maxThreadsPerBlock"`
	MaxGridDimX        int    `yaml:"maxGridDimX"`
	MemoryLimit        uint64 `yaml:"memoryLimit"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	cfg := &Config{}
	cfg.Logger.Verbosity = "info"
	cfg.Logger.Encoding = "json"
	cfg.MC.CUDA.ReduceNumBlocks = UnitsAuto
	cfg.MC.CUDA.Driver = DriverNative
	cfg.Sim = SimConfig{
		RuntimeVersion:     12020,
		MaxThreadsPerBlock: 1024,
		MaxGridDimX:        2147483647,
	}
	return cfg
}

// LoadConfig reads path over the defaults and applies environment
// overrides. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", path)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvReduceNumBlocks); ok {
		units, err := ParseUnits(v)
		if err != nil {
			return errors.Wrap(err, EnvReduceNumBlocks)
		}
		c.MC.CUDA.ReduceNumBlocks = units
	}
	return nil
}

// Validate checks fields that have a closed set of values.
func (c *Config) Validate() error {
	switch c.Logger.Encoding {
	case "json", "console":
	default:
		return errors.Errorf("logger.encoding: unknown encoding %q", c.Logger.Encoding)
	}
	switch c.MC.CUDA.Driver {
	case DriverNative, DriverSim:
	default:
		return errors.Errorf("mc.cuda.driver: unknown driver %q", c.MC.CUDA.Driver)
	}
	if c.Sim.MaxThreadsPerBlock <= 0 || c.Sim.MaxGridDimX <= 0 {
		return errors.New("sim: device limits must be positive")
	}
	return nil
}
