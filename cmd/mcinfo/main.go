package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/akolliasAMD/ucc/fixtures"
	"github.com/akolliasAMD/ucc/internal/app"
	"github.com/akolliasAMD/ucc/internal/config"
	"github.com/akolliasAMD/ucc/internal/logger"
	"github.com/akolliasAMD/ucc/internal/mc/cuda"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// env is filled in by the root Before hook.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	path string
}

// components is what the commands get from a started application.
type components struct {
	*app.Components
	cuda *cuda.Component
}

const startTimeout = 30 * time.Second

// run starts the memory components, calls fn and stops them again.
func (e *env) run(c *cli.Context, fn func(components) error) error {
	var (
		shared    *app.Components
		component *cuda.Component
	)
	fxApp := fx.New(
		fx.Supply(e.cfg),
		app.Module,
		fx.NopLogger,
		fx.Populate(&shared, &component),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(c.Context, startTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return errors.Wrap(err, "failed to start memory components")
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		if err := fxApp.Stop(stopCtx); err != nil {
			e.log.Error("failed to stop memory components", zap.Error(err))
		}
	}()

	return fn(components{Components: shared, cuda: component})
}

func newApp(e *env) *cli.App {
	var driver string
	var rootLogger *zap.Logger

	return &cli.App{
		Name:  "mcinfo",
		Usage: "Inspect and exercise the memory components",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to the configuration file",
				EnvVars:     []string{"UCC_MC_CONFIG"},
				Destination: &e.path,
			},
			&cli.StringFlag{
				Name:        "driver",
				Usage:       "Override mc.cuda.driver (native or sim)",
				Destination: &driver,
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			e.cfg, err = config.LoadConfig(e.path)
			if err != nil {
				return err
			}
			if driver != "" {
				e.cfg.MC.CUDA.Driver = driver
				if err := e.cfg.Validate(); err != nil {
					return err
				}
			}
			zapLogger, err := logger.New(e.cfg.Logger)
			if err != nil {
				return err
			}
			rootLogger = zapLogger
			e.log = zapLogger.Named("mcinfo")
			return nil
		},
		After: func(c *cli.Context) error {
			if rootLogger != nil {
				_ = rootLogger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			infoCommand(e),
			queryCommand(e),
			benchCommand(e),
			{
				Name:  "config",
				Usage: "Print the default configuration",
				Action: func(c *cli.Context) error {
					_, err := c.App.Writer.Write(fixtures.ConfigTemplate)
					return err
				},
			},
		},
	}
}

func main() {
	e := &env{}
	if err := newApp(e).Run(os.Args); err != nil {
		if e.log != nil {
			e.log.Fatal("failed to run app", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
