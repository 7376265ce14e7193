// Package engine wires the page-cache's ambient stack — structured
// logging, telemetry, and metrics — into the storage core, the way this
// lineage's server entrypoints construct their components at startup.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sushant-115/pagecache/internal/metrics"
	"github.com/sushant-115/pagecache/pkg/logger"
	"github.com/sushant-115/pagecache/pkg/telemetry"
	"github.com/sushant-115/pagecache/storage/buffer"
	"github.com/sushant-115/pagecache/storage/disk"
	"github.com/sushant-115/pagecache/walmgr"
)

// Config is the full set of knobs needed to stand up a page cache: the
// ambient logger/telemetry configuration plus the core's own sizing.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`

	DataFile string `yaml:"data_file"`
	Create   bool   `yaml:"create"`

	PoolSize  int `yaml:"pool_size"`
	ReplacerK int `yaml:"replacer_k"`

	WALDir            string        `yaml:"wal_dir"`
	WALBufferBytes    int           `yaml:"wal_buffer_bytes"`
	WALFlushInterval  time.Duration `yaml:"wal_flush_interval"`
	FlushRateBytesSec int           `yaml:"flush_rate_bytes_per_sec"`
}

// Engine bundles the live core components plus the ambient collaborators
// that must be shut down alongside them.
type Engine struct {
	Pool *buffer.Pool
	Disk *disk.Manager
	WAL  *walmgr.Manager
	Log  *zap.Logger

	telemetry         *telemetry.Telemetry
	shutdownTelemetry telemetry.ShutdownFunc
}

// New builds a logger from cfg.Logger, a meter/tracer pair from
// cfg.Telemetry, buffer-pool counters from that meter, and then the disk
// manager, WAL sink, and buffer pool, all sharing the same logger and
// wired together the way a standalone server's startup sequence would.
func New(cfg Config) (*Engine, error) {
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("engine: building logger: %w", err)
	}

	tel, shutdownTelemetry, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("engine: building telemetry: %w", err)
	}

	bpMetrics, err := metrics.NewBufferPoolMetrics(tel.Meter)
	if err != nil {
		_ = shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("engine: building buffer pool metrics: %w", err)
	}

	var diskOpts []disk.Option
	diskOpts = append(diskOpts, disk.WithLogger(log))
	if cfg.FlushRateBytesSec > 0 {
		diskOpts = append(diskOpts, disk.WithFlushRateLimit(cfg.FlushRateBytesSec))
	}
	dm, err := disk.Open(cfg.DataFile, cfg.Create, diskOpts...)
	if err != nil {
		_ = shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("engine: opening disk manager: %w", err)
	}

	wal, err := walmgr.New(cfg.WALDir, cfg.WALBufferBytes, cfg.WALFlushInterval, log)
	if err != nil {
		dm.Close()
		_ = shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("engine: opening write-ahead log: %w", err)
	}

	pool := buffer.NewPool(cfg.PoolSize, dm, cfg.ReplacerK,
		buffer.WithLogger(log),
		buffer.WithLogSink(wal),
		buffer.WithMetrics(bpMetrics),
	)

	log.Info("engine started",
		zap.String("dataFile", cfg.DataFile),
		zap.Int("poolSize", cfg.PoolSize),
		zap.Int("replacerK", cfg.ReplacerK),
	)

	return &Engine{
		Pool:              pool,
		Disk:              dm,
		WAL:               wal,
		Log:               log,
		telemetry:         tel,
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

// Close flushes every resident page, stops the write-ahead log and disk
// manager, and shuts down the telemetry providers, returning the first
// error encountered but still attempting every step.
func (e *Engine) Close(ctx context.Context) error {
	e.Pool.FlushAllPages()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(e.WAL.Close())
	record(e.Disk.Close())
	record(e.shutdownTelemetry(ctx))

	if firstErr != nil {
		return fmt.Errorf("engine: close: %w", firstErr)
	}
	return nil
}
