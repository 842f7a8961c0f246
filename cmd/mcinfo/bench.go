package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/metrics"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type benchResult struct {
	name     string
	bytes    uint64
	duration time.Duration
	err      error
}

func (r benchResult) row() []string {
	if r.err != nil {
		return []string{r.name, "-", "-", mc.KindName(r.err)}
	}
	rate := "-"
	if r.duration > 0 {
		rate = humanize.IBytes(uint64(float64(r.bytes)/r.duration.Seconds())) + "/s"
	}
	return []string{r.name, humanize.IBytes(r.bytes), r.duration.Round(time.Microsecond).String(), rate}
}

// serveMetrics exposes the default registry until ctx is done.
func serveMetrics(ctx context.Context, addr string, log *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	srv := &http.Server{Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("address", ln.Addr().String()))
	return func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}

// copyWorker moves size bytes host to device and back, iterations times.
func copyWorker(ctx context.Context, component mc.Component, size uint64, iterations int, seed byte) error {
	dev, err := component.Alloc(size)
	if err != nil {
		return err
	}
	defer component.Free(dev)

	src := make([]byte, size)
	for i := range src {
		src[i] = seed + byte(i)
	}
	dst := make([]byte, size)

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := component.Memcpy(dev, unsafe.Pointer(&src[0]), size, mc.MemoryTypeCUDA, mc.MemoryTypeHost); err != nil {
			return err
		}
		if err := component.Memcpy(unsafe.Pointer(&dst[0]), dev, size, mc.MemoryTypeHost, mc.MemoryTypeCUDA); err != nil {
			return err
		}
	}
	if dst[size-1] != src[size-1] || dst[0] != src[0] {
		return &mc.Error{Op: "bench: copied data mismatch", Kind: mc.ErrOperationFailed}
	}
	return nil
}

func benchCopies(ctx context.Context, component mc.Component, size uint64, iterations, workers int) benchResult {
	res := benchResult{name: fmt.Sprintf("memcpy h2d+d2h x%d", workers)}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		seed := byte(w)
		g.Go(func() error {
			return copyWorker(gctx, component, size, iterations, seed)
		})
	}
	res.err = g.Wait()
	res.duration = time.Since(start)
	res.bytes = 2 * size * uint64(iterations) * uint64(workers)
	return res
}

func benchReduce(component mc.Component, size uint64, iterations int) benchResult {
	res := benchResult{name: "reduce float32 sum"}
	count := size / 4
	buf, err := component.Alloc(count * 4)
	if err != nil {
		res.err = err
		return res
	}
	defer component.Free(buf)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := component.Reduce(buf, buf, buf, count, mc.DTFloat32, mc.OpSum); err != nil {
			res.err = err
			return res
		}
	}
	res.duration = time.Since(start)
	res.bytes = 3 * count * 4 * uint64(iterations)
	return res
}

func benchCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Measure copy and reduction throughput of the CUDA component",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "size", Value: "64MiB", Usage: "Buffer size per worker"},
			&cli.IntFlag{Name: "iterations", Value: 10, Usage: "Round trips per worker"},
			&cli.IntFlag{Name: "workers", Value: 1, Usage: "Concurrent workers sharing the component"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address while running"},
		},
		Action: func(c *cli.Context) error {
			size, err := humanize.ParseBytes(c.String("size"))
			if err != nil {
				return err
			}
			iterations, workers := c.Int("iterations"), c.Int("workers")
			if size == 0 || iterations <= 0 || workers <= 0 {
				return errors.New("size, iterations and workers must be positive")
			}

			addr := c.String("metrics-addr")
			if addr == "" {
				addr = e.cfg.Metrics.ListenAddress
			}
			if addr != "" {
				stop, err := serveMetrics(c.Context, addr, e.log)
				if err != nil {
					return err
				}
				defer stop()
			}

			return e.run(c, func(mcs components) error {
				e.log.Info("starting benchmark",
					zap.String("size", humanize.IBytes(size)),
					zap.Int("iterations", iterations),
					zap.Int("workers", workers))

				results := []benchResult{
					benchCopies(c.Context, mcs.cuda, size, iterations, workers),
					benchReduce(mcs.cuda, size, iterations),
				}

				table := newTable(c.App.Writer, "BENCHMARK", "BYTES", "TIME", "THROUGHPUT")
				for _, r := range results {
					table.Append(r.row())
				}
				table.Render()

				if err := results[0].err; err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "\n%d copies completed\n", 2*iterations*workers)
				return nil
			})
		},
	}
}
