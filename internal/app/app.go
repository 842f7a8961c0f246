// Package app wires configuration, logging, the CUDA driver and the memory
// components into an fx application. Components are initialized on start
// and finalized on stop.
package app

import (
	"context"

	"github.com/akolliasAMD/ucc/internal/config"
	"github.com/akolliasAMD/ucc/internal/logger"
	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/mc/cuda"
	"github.com/akolliasAMD/ucc/internal/mc/cuda/sim"
	"github.com/akolliasAMD/ucc/internal/mc/host"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Components holds the shared handles of every memory component.
type Components struct {
	CUDA *mc.Shared
	Host *mc.Shared
}

var Module = fx.Module("mc",
	fx.Provide(
		NewLogger,
		NewDriver,
		NewCUDAComponent,
		NewHostComponent,
		NewComponents,
	),
)

// New builds the application for cfg. Extra options are appended, which is
// how callers populate the values they need.
func New(cfg *config.Config, opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{
		fx.Supply(cfg),
		Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	}, opts...)...)
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Logger)
}

// SimOptions translates the sim section of the config.
func SimOptions(cfg config.SimConfig) []sim.Option {
	opts := []sim.Option{
		sim.WithRuntimeVersion(cfg.RuntimeVersion),
		sim.WithDeviceLimits(cfg.MaxThreadsPerBlock, cfg.MaxGridDimX),
	}
	if cfg.MemoryLimit > 0 {
		opts = append(opts, sim.WithMemoryLimit(cfg.MemoryLimit))
	}
	return opts
}

// NewDriver returns the driver named by mc.cuda.driver.
func NewDriver(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (cuda.Driver, error) {
	if cfg.MC.CUDA.Driver == config.DriverSim {
		d := sim.New(SimOptions(cfg.Sim)...)
		lc.Append(fx.StopHook(d.Close))
		log.Info("using simulated cuda driver",
			zap.Int("runtime_version", cfg.Sim.RuntimeVersion),
			zap.Int("max_threads_per_block", cfg.Sim.MaxThreadsPerBlock),
			zap.Int("max_grid_dim_x", cfg.Sim.MaxGridDimX))
		return d, nil
	}
	return cuda.NewNativeDriver()
}

func NewCUDAComponent(driver cuda.Driver, cfg *config.Config, log *zap.Logger) *cuda.Component {
	return cuda.New(driver, cfg.MC.CUDA, log)
}

func NewHostComponent(log *zap.Logger) *host.Component {
	return host.New(log)
}

// NewComponents takes one reference on each component for the lifetime of
// the application.
func NewComponents(lc fx.Lifecycle, c *cuda.Component, h *host.Component, log *zap.Logger) *Components {
	components := &Components{
		CUDA: mc.NewShared(c, log),
		Host: mc.NewShared(h, log),
	}
	for _, shared := range []*mc.Shared{components.Host, components.CUDA} {
		shared := shared // per-iteration copy; go directive is below 1.22
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				_, err := shared.Acquire()
				return err
			},
			OnStop: func(context.Context) error {
				return shared.Release()
			},
		})
	}
	return components
}
