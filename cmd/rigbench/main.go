// Package main is the entry point for rigbench, which evaluates a synthetic
// rig from parallel workers through the instance-data pool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/rigeval/internal/assets"
	"github.com/Faultbox/rigeval/internal/config"
	"github.com/Faultbox/rigeval/internal/logger"
	"github.com/Faultbox/rigeval/internal/synth"
	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/eval"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	fileCfg := logger.DefaultFileConfig(cfg.Logging.LogFile)
	fileCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	fileCfg.MaxBackups = cfg.Logging.MaxBackups
	err = logger.InitWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: true,
		File:    fileCfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== rigbench ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if config.WriteRequested() {
		if err := cfg.Save(); err != nil {
			logger.Error("failed to save config", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("config written", zap.String("path", config.UserConfigPath()))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("benchmark failed", zap.Error(err))
		os.Exit(1)
	}
}

type counters struct {
	evaluated atomic.Int64
	skipped   atomic.Int64
	refreshed atomic.Int64
}

func run(ctx context.Context, cfg *config.Config) error {
	fx, err := synth.Generate(cfg.Synth)
	if err != nil {
		return fmt.Errorf("generating rig: %w", err)
	}

	registry := anim.NewRegistry()
	key := registry.Register(fx.Mesh)

	provider := assets.NewRigProvider(cfg.Rig.Calculation,
		assets.WithLogger(logger.Named("assets")),
		assets.WithOrchestratorOptions(
			eval.WithLogger(logger.Named("eval")),
			eval.WithCurveIndexCache(cfg.Rig.CurveIndexCache),
		),
	)
	if err := provider.Reload(fx.Definition); err != nil {
		return err
	}

	pool := eval.NewPool(provider.PoolFactory(), eval.WithPoolLogger(logger.Named("pool")))

	if cfg.Bench.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bench.Timeout)
		defer cancel()
	}

	var stats counters
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Bench.Workers; w++ {
		g.Go(func() error {
			return worker(ctx, w, cfg, fx, key, pool, provider, &stats)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	evaluated := stats.evaluated.Load()
	perFrame := time.Duration(0)
	if evaluated > 0 {
		perFrame = elapsed * time.Duration(cfg.Bench.Workers) / time.Duration(evaluated)
	}
	hits, misses := provider.Stats()
	logger.Info("benchmark finished",
		zap.Duration("elapsed", elapsed),
		zap.Int64("evaluated", evaluated),
		zap.Int64("skipped", stats.skipped.Load()),
		zap.Int64("refreshed", stats.refreshed.Load()),
		zap.Duration("perFrame", perFrame),
		zap.Int("pooled", pool.Len()),
		zap.Int("contextHits", hits),
		zap.Int("contextMisses", misses),
	)

	registry.Unload(key)
	logger.Info("mesh unloaded", zap.Int("released", pool.GarbageCollect()), zap.Int("pooled", pool.Len()))
	return nil
}

func worker(
	ctx context.Context,
	id int,
	cfg *config.Config,
	fx *synth.Fixture,
	key anim.MeshHandle,
	pool *eval.Pool,
	provider *assets.RigProvider,
	stats *counters,
) error {
	poses := make([]*anim.Pose, fx.Mesh.NumLODs())
	for lod := range poses {
		pose, err := anim.NewPose(fx.Mesh, lod)
		if err != nil {
			return err
		}
		poses[lod] = pose
	}
	curves := anim.NewCurveSet()

	for frame := 0; frame < cfg.Bench.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("worker stopped early", zap.Int("worker", id), zap.Int("frame", frame), zap.Error(err))
			return nil
		}

		lod := cfg.Bench.LOD
		if cfg.Bench.CycleLODs {
			lod = frame % len(poses)
		}

		d, err := pool.RequestData(key)
		if err != nil {
			return fmt.Errorf("worker %d frame %d: %w", id, frame, err)
		}
		if provider.Refresh(d) {
			stats.refreshed.Add(1)
		}

		pose := poses[lod]
		fx.Apply(float32(frame+id), pose, curves)
		if res := d.Update(pose, curves, lod); res == eval.Evaluated {
			stats.evaluated.Add(1)
		} else {
			stats.skipped.Add(1)
		}
		pool.FreeData(key, d)

		if id != 0 {
			continue
		}
		if cfg.Bench.ReloadAt > 0 && frame == cfg.Bench.ReloadAt {
			if err := provider.Reload(fx.Definition); err != nil {
				return err
			}
		}
		if cfg.Bench.GCEvery > 0 && frame > 0 && frame%cfg.Bench.GCEvery == 0 {
			pool.GarbageCollect()
		}
	}
	return nil
}
