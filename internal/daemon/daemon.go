package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/persist"
	"github.com/Aman-CERP/seekhost/internal/tenant"
	"github.com/Aman-CERP/seekhost/pkg/version"
)

// Daemon owns one storage root and serves it over the socket.
type Daemon struct {
	cfg      Config
	store    *tenant.Store
	limits   *limiters
	handlers map[string]handlerFunc
	pidFile  *PIDFile
	lock     *persist.RootLock
}

// Option customizes a Daemon.
type Option func(*daemonOptions)

type daemonOptions struct {
	engine engine.Engine
}

// WithEngine replaces the bleve engine.
func WithEngine(e engine.Engine) Option {
	return func(o *daemonOptions) { o.engine = e }
}

// NewDaemon validates cfg and prepares an empty store. Start loads it.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := daemonOptions{engine: engine.NewBleveEngine()}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Daemon{
		cfg:     cfg,
		store:   tenant.NewStore(cfg.Root, o.engine, cfg.Store),
		limits:  newLimiters(),
		pidFile: NewPIDFile(cfg.PIDPath),
		lock:    persist.NewRootLock(cfg.Root),
	}
	d.handlers = d.routes()
	return d, nil
}

// Store returns the daemon's account store.
func (d *Daemon) Store() *tenant.Store { return d.store }

// Start takes ownership of the root, recovers every account and serves
// until ctx is cancelled. On return every index has been committed and
// closed.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pidFile.Acquire(); err != nil {
		return err
	}
	defer func() { _ = d.pidFile.Release() }()

	if err := d.lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = d.lock.Unlock() }()

	start := time.Now()
	recovered, err := d.store.Recover(ctx)
	if err != nil {
		return err
	}
	slog.Info("store_recovered",
		slog.String("root", d.cfg.Root),
		slog.Bool("accounts_found", recovered),
		slog.Int("accounts", d.store.Len()),
		slog.Duration("duration", time.Since(start)))

	srv, err := NewServer(d.cfg.SocketPath)
	if err != nil {
		return err
	}
	srv.SetTimeout(d.cfg.Timeout)
	srv.SetHandler(d)

	serveErr := srv.ListenAndServe(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownGracePeriod)
	defer cancel()
	d.store.Close(closeCtx)
	slog.Info("daemon_stopped", slog.String("root", d.cfg.Root))
	return serveErr
}

// GetStatus reports store totals.
func (d *Daemon) GetStatus() StatusResult {
	accounts := d.store.Accounts()
	indices := 0
	for _, a := range accounts {
		indices += a.Indices().Len()
	}
	return StatusResult{
		Running:  true,
		Version:  version.Version,
		Root:     d.cfg.Root,
		Accounts: len(accounts),
		Indices:  indices,
	}
}
