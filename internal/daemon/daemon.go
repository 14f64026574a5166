// Package daemon hosts the controller entries: it sets up and unloads
// coordinators, schedules their refreshes and serves the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/user/netmap/internal/coordinator"
	"github.com/user/netmap/internal/entity"
	"github.com/user/netmap/internal/hass"
	"github.com/user/netmap/internal/payloadcache"
	"github.com/user/netmap/internal/storage"
	"github.com/user/netmap/internal/util"
	"github.com/user/netmap/internal/web"
)

// PIDFile is the daemon PID file name inside the data dir.
const PIDFile = "netmap.pid"

// Daemon manages the background service.
type Daemon struct {
	config    *util.Config
	scheduler *Scheduler
	db        *storage.DB
	snapshots *storage.SnapshotStorage
	payloads  *payloadcache.Cache
	enricher  *web.Enricher
	registry  entity.Registry
	factory   coordinator.FetcherFactory
	webAddr   string
	pidFile   string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	startTime time.Time
	mu        sync.RWMutex

	// Entries, in setup order.
	emu      sync.RWMutex
	entries  map[string]*loadedEntry
	order    []string
	entities *entity.Cache

	insecureOnce sync.Once
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithFetcherFactory replaces the UniFi client used by coordinators.
func WithFetcherFactory(f coordinator.FetcherFactory) Option {
	return func(d *Daemon) { d.factory = f }
}

// WithRegistry replaces the entity registry source.
func WithRegistry(reg entity.Registry) Option {
	return func(d *Daemon) { d.registry = reg }
}

// WithWeb serves the HTTP API on addr while the daemon runs.
func WithWeb(addr string) Option {
	return func(d *Daemon) { d.webAddr = addr }
}

// New creates a new daemon instance.
func New(cfg *util.Config, opts ...Option) (*Daemon, error) {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:    cfg,
		db:        db,
		snapshots: storage.NewSnapshotStorage(db),
		payloads:  payloadcache.New(),
		pidFile:   filepath.Join(cfg.DataDir, PIDFile),
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[string]*loadedEntry),
	}
	d.factory = coordinator.ClientFactory(d.warnInsecure)
	for _, opt := range opts {
		opt(d)
	}
	d.enricher = web.NewEnricher(d.payloads, d.Entities)
	d.scheduler = NewScheduler(ctx)

	return d, nil
}

func (d *Daemon) warnInsecure() {
	d.insecureOnce.Do(func() {
		util.Warn("TLS certificate verification is disabled for at least one controller")
	})
}

// Start connects the registry, sets up every configured entry and starts the scheduler.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	util.Info("Daemon starting...")

	d.connectRegistry()
	d.registerJobs()

	for _, ec := range d.config.Entries {
		if err := d.SetupEntry(d.ctx, ec); err != nil {
			util.Error("Entry %s: %v", ec.ID, err)
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.scheduler.Run()
	}()

	if d.webAddr != "" {
		srv := web.NewServer(d, d.enricher, d.config.Auth.JWTSecret, d.webAddr).WithHistory(d.db)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := srv.Start(d.ctx); err != nil {
				util.Error("Web server error: %v", err)
			}
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handleSignals()
	}()

	util.Info("Daemon started with PID %d", os.Getpid())

	return nil
}

// connectRegistry starts the Home Assistant client when configured and
// falls back to an empty in-memory registry.
func (d *Daemon) connectRegistry() {
	if d.registry != nil {
		return
	}
	if d.config.Hass.URL != "" {
		c, err := hass.New(d.config.Hass.URL, d.config.Hass.Token)
		if err == nil {
			err = c.Start(d.ctx)
		}
		if err == nil {
			d.registry = c
			return
		}
		util.Warn("Home Assistant registry unavailable, entity linkage disabled: %v", err)
	}
	d.registry = entity.NewMemoryRegistry()
}

// Wait waits for the daemon to finish.
func (d *Daemon) Wait() {
	d.wg.Wait()
}

// Stop stops the daemon gracefully.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	util.Info("Daemon stopping...")

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		util.Info("Daemon stopped gracefully")
	case <-time.After(30 * time.Second):
		util.Warn("Daemon stop timed out")
	}

	for _, id := range d.EntryIDs() {
		d.UnloadEntry(id)
	}
	d.removePIDFile()
	if d.db != nil {
		d.db.Close()
	}

	return nil
}

func (d *Daemon) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		util.Info("Received signal: %v", sig)
		go d.Stop()
	case <-d.ctx.Done():
	}
}

func (d *Daemon) writePIDFile() error {
	pid := os.Getpid()
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func (d *Daemon) removePIDFile() {
	if err := os.Remove(d.pidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		util.Warn("Failed to remove PID file: %v", err)
	}
}

// GetStatus returns the daemon status.
func (d *Daemon) GetStatus() *DaemonStatus {
	d.mu.RLock()
	status := &DaemonStatus{
		Running:   d.running,
		PID:       os.Getpid(),
		StartTime: d.startTime,
		Uptime:    time.Since(d.startTime),
	}
	d.mu.RUnlock()

	status.Jobs = d.scheduler.GetJobStatuses()
	status.Entries = d.entryStatuses()
	return status
}

// DaemonStatus holds the current daemon status.
type DaemonStatus struct {
	Running   bool
	PID       int
	StartTime time.Time
	Uptime    time.Duration
	Jobs      []JobStatus
	Entries   []EntryStatus
}
