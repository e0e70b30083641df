package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"reflect"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/leonardotrapani/holdtype/internal/bus"
	"github.com/leonardotrapani/holdtype/internal/config"
	"github.com/leonardotrapani/holdtype/internal/correction"
	"github.com/leonardotrapani/holdtype/internal/hotkey"
	"github.com/leonardotrapani/holdtype/internal/injection"
	"github.com/leonardotrapani/holdtype/internal/models/whisper"
	"github.com/leonardotrapani/holdtype/internal/notify"
	"github.com/leonardotrapani/holdtype/internal/observe"
	"github.com/leonardotrapani/holdtype/internal/pipeline"
	"github.com/leonardotrapani/holdtype/internal/recording"
	"github.com/leonardotrapani/holdtype/internal/storage"
	"github.com/leonardotrapani/holdtype/internal/transcriber"
)

// Version is reported by the version verb; set by the main package.
var Version = "dev"

// Daemon owns every long-lived component of a running holdtype process.
type Daemon struct {
	configMgr *config.Manager

	rawStore  storage.Store
	store     storage.Store // mutations invalidate the correction caches
	corrector *correction.Engine

	model    *transcriber.Model // nil when a listener was injected
	listener transcriber.Listener
	injector injection.Injector

	monitor      hotkey.GlobalInputMonitor
	detector     *hotkey.Detector
	orchestrator *pipeline.Orchestrator

	tracker   *notify.Tracker
	presenter notify.Presenter

	provider *observe.Provider
	metrics  *observe.Metrics

	sockPath string
	pidFile  *bus.PidFile

	mu     sync.Mutex
	cancel context.CancelFunc

	closers []func() error
}

// Option replaces a component built from the config, mainly for tests.
type Option func(*Daemon)

func WithStore(s storage.Store) Option { return func(d *Daemon) { d.rawStore = s } }

func WithListener(l transcriber.Listener) Option { return func(d *Daemon) { d.listener = l } }

func WithInjector(i injection.Injector) Option { return func(d *Daemon) { d.injector = i } }

func WithMonitor(m hotkey.GlobalInputMonitor) Option { return func(d *Daemon) { d.monitor = m } }

func WithPresenter(p notify.Presenter) Option { return func(d *Daemon) { d.presenter = p } }

func WithMetrics(m *observe.Metrics) Option { return func(d *Daemon) { d.metrics = m } }

// WithRuntimePaths moves the control socket and pid file.
func WithRuntimePaths(sockPath, pidPath string) Option {
	return func(d *Daemon) {
		d.sockPath = sockPath
		d.pidFile = &bus.PidFile{Path: pidPath}
	}
}

// New loads the config at configPath ("" for the default location) and
// builds every component. Nothing runs until Run.
func New(configPath string, opts ...Option) (*Daemon, error) {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return nil, err
	}
	d := &Daemon{configMgr: mgr}
	for _, o := range opts {
		o(d)
	}
	if err := d.init(mgr.GetConfig()); err != nil {
		d.Close()
		return nil, err
	}
	mgr.Subscribe(d.onConfigChange)
	return d, nil
}

func (d *Daemon) init(cfg *config.Config) error {
	if err := d.initStore(cfg); err != nil {
		return err
	}

	d.corrector = correction.NewEngine(d.rawStore, cfg.ToThresholds())
	d.store = storage.WithInvalidation(d.rawStore, d.corrector)

	if err := d.initMetrics(cfg); err != nil {
		return err
	}
	if err := d.initListener(cfg); err != nil {
		return err
	}
	if err := d.initInjector(cfg); err != nil {
		return err
	}

	d.tracker = &notify.Tracker{}
	if d.presenter == nil {
		d.presenter = notify.New(cfg.NotificationType())
	}
	d.presenter = notify.Multi{d.presenter, d.tracker}

	combo, err := d.initialHotkey(cfg)
	if err != nil {
		return err
	}
	if d.monitor == nil {
		d.monitor = hotkey.NewHookMonitor()
	}
	d.detector, err = hotkey.NewDetector(d.monitor, combo, hotkey.WithConfirmDelay(cfg.Hotkey.ConfirmDelay))
	if err != nil {
		return err
	}

	d.orchestrator = pipeline.New(cfg.ToSessionConfig(), d.listener, d.corrector, d.store,
		d.injector, d.presenter, d.metrics)

	if d.sockPath == "" {
		if d.sockPath, err = bus.SockPath(); err != nil {
			return err
		}
	}
	if d.pidFile == nil {
		if d.pidFile, err = bus.NewPidFile(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) initStore(cfg *config.Config) error {
	if d.rawStore != nil {
		return nil
	}
	dir, err := cfg.StorageDir()
	if err != nil {
		return err
	}
	if dir == "" {
		log.Printf("Daemon: using in-memory storage, nothing is persisted")
		d.rawStore = storage.NewMemoryStore()
	} else {
		s, err := storage.OpenBadger(dir)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		d.rawStore = s
	}
	d.closers = append(d.closers, d.rawStore.Close)
	return nil
}

func (d *Daemon) initMetrics(cfg *config.Config) error {
	if d.metrics != nil {
		return nil
	}
	if cfg.Metrics.Listen == "" {
		d.metrics = observe.DefaultMetrics()
		return nil
	}
	p, err := observe.InitProvider()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	d.provider = p
	d.metrics = p.Metrics
	d.closers = append(d.closers, func() error { return p.Shutdown(context.Background()) })
	return nil
}

func (d *Daemon) initListener(cfg *config.Config) error {
	if d.listener != nil {
		return nil
	}
	registry, err := whisper.DefaultRegistry()
	if err != nil {
		return err
	}
	modelPath, err := registry.Resolve(cfg.Recognition.Model, cfg.Recognition.ModelPath)
	if err != nil {
		return fmt.Errorf("%w (run holdtype model download %s)", err, cfg.Recognition.Model)
	}

	d.model = transcriber.NewModel(transcriber.WhisperLoader(modelPath, cfg.Recognition.Language, cfg.Recognition.Threads))
	d.closers = append(d.closers, d.model.Close)

	recorder := recording.NewRecorder(cfg.ToRecordingConfig())
	d.listener, err = transcriber.New(cfg.ToTranscriberConfig(), recorder, d.model)
	return err
}

func (d *Daemon) initInjector(cfg *config.Config) error {
	if d.injector != nil {
		return nil
	}
	inj, err := injection.NewInjector(cfg.ToInjectionConfig())
	if err != nil {
		return fmt.Errorf("init injection: %w", err)
	}
	if err := inj.Available(); err != nil {
		log.Printf("Daemon: text injection may not work: %v", err)
	}
	d.injector = inj
	return nil
}

// initialHotkey prefers the combination saved with the hotkey verb over the
// config file.
func (d *Daemon) initialHotkey(cfg *config.Config) (hotkey.Configuration, error) {
	pref, ok, err := d.rawStore.GetUserHotkeyPreference(context.Background(), cfg.General.User)
	if err != nil {
		log.Printf("Daemon: failed to read hotkey preference: %v", err)
	}
	if ok {
		if combo := hotkeyFromPreference(pref); combo.Validate() == nil {
			return combo, nil
		}
		log.Printf("Daemon: ignoring invalid saved hotkey preference")
	}
	return cfg.ToHotkeyConfiguration()
}

// Run serves until ctx is cancelled, a signal arrives or a client sends quit.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Close()

	if err := d.pidFile.CheckExisting(); err != nil {
		return err
	}
	if err := d.pidFile.Create(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer d.pidFile.Remove()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	if d.model != nil {
		d.model.Load()
	}

	if err := d.configMgr.StartWatching(ctx); err != nil {
		log.Printf("Daemon: config hot reload disabled: %v", err)
	}
	defer d.configMgr.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := d.detector.Run(gctx)
		if errors.Is(err, hotkey.ErrMonitorUnavailable) {
			log.Printf("Daemon: %v", err)
			d.presenter.Error(notify.MsgHotkeyUnavailable)
			return nil
		}
		return err
	})

	g.Go(func() error {
		return d.orchestrator.Run(gctx, d.detector.Events())
	})

	server := &bus.Server{Path: d.sockPath, Handler: d}
	g.Go(func() error {
		return server.Serve(gctx)
	})

	if d.provider != nil {
		listen := d.configMgr.GetConfig().Metrics.Listen
		g.Go(func() error {
			return observe.Serve(gctx, listen, d.provider.Handler())
		})
	}

	if d.model != nil {
		g.Go(func() error {
			if err := d.model.Wait(gctx); err != nil && gctx.Err() == nil {
				d.presenter.Error(fmt.Sprintf("Speech model failed to load: %v", err))
			}
			return nil
		})
	}

	log.Printf("Daemon started, listening on %s", d.sockPath)
	err := g.Wait()
	log.Printf("Daemon: shutting down")
	return err
}

// Quit stops a running daemon.
func (d *Daemon) Quit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// Close releases storage, the model and the metrics provider. Run calls it
// on return.
func (d *Daemon) Close() {
	if w, ok := d.injector.(interface{ Wait() }); ok {
		w.Wait()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Printf("Daemon: close error: %v", err)
		}
	}
	d.closers = nil
}

// onConfigChange applies what can change while running. The detector defers
// a new combination until the current press is released and the
// orchestrator picks up session settings on the next press.
func (d *Daemon) onConfigChange(old, cfg *config.Config) {
	if !reflect.DeepEqual(old.Hotkey, cfg.Hotkey) {
		if combo, err := cfg.ToHotkeyConfiguration(); err == nil {
			if err := d.detector.Reconfigure(combo); err != nil {
				log.Printf("Daemon: failed to apply hotkey: %v", err)
			}
		}
		if old.Hotkey.ConfirmDelay != cfg.Hotkey.ConfirmDelay {
			log.Printf("Daemon: hotkey.confirm_delay changed, restart to apply")
		}
	}

	d.corrector.SetThresholds(cfg.ToThresholds())
	d.orchestrator.SetConfig(cfg.ToSessionConfig())

	restart := map[string]bool{
		"recording":     !reflect.DeepEqual(old.Recording, cfg.Recording),
		"recognition":   !reflect.DeepEqual(old.Recognition, cfg.Recognition),
		"injection":     !reflect.DeepEqual(old.Injection, cfg.Injection),
		"notifications": old.Notifications != cfg.Notifications,
		"storage":       old.Storage != cfg.Storage,
		"metrics":       old.Metrics != cfg.Metrics,
	}
	for section, changed := range restart {
		if changed {
			log.Printf("Daemon: [%s] changed, restart to apply", section)
		}
	}
}

func (d *Daemon) user() string {
	return d.configMgr.GetConfig().General.User
}

func hotkeyFromPreference(p storage.HotkeyPreference) hotkey.Configuration {
	return hotkey.Configuration{
		Ctrl:   p.Ctrl,
		Alt:    p.Alt,
		Shift:  p.Shift,
		Win:    p.Win,
		Key:    hotkey.Key(p.Key),
		HasKey: p.HasKey,
	}
}

func preferenceFromHotkey(c hotkey.Configuration) storage.HotkeyPreference {
	return storage.HotkeyPreference{
		Ctrl:   c.Ctrl,
		Alt:    c.Alt,
		Shift:  c.Shift,
		Win:    c.Win,
		Key:    uint16(c.Key),
		HasKey: c.HasKey,
	}
}
