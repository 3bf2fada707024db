// Package main boots the recorder process: it loads configuration, wires
// the shared worker runtime, and spawns every satellite (logger, file
// reader, Redis/MQTT relays, command_interface listener) before waiting
// for an OS shutdown signal. The Application.Start/Shutdown split and
// the run()-returns-exit-code pattern follow cmd/consumer's style.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ibs-source/recorder/internal/command"
	"github.com/ibs-source/recorder/internal/config"
	"github.com/ibs-source/recorder/internal/filereader"
	"github.com/ibs-source/recorder/internal/logger"
	"github.com/ibs-source/recorder/internal/logqueue"
	"github.com/ibs-source/recorder/internal/message"
	"github.com/ibs-source/recorder/internal/registry"
	"github.com/ibs-source/recorder/internal/relay/mqttrelay"
	"github.com/ibs-source/recorder/internal/relay/redisrelay"
	"github.com/ibs-source/recorder/internal/runtimex"
	"github.com/ibs-source/recorder/internal/shutdown"
	"github.com/ibs-source/recorder/internal/worker"
)

// Version and GitCommit are stamped at build time via
// -ldflags "-X main.Version=... -X main.GitCommit=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const (
	loggerLabel           = "logger"
	fileReaderLabel       = "file_reader"
	redisRelayLabel       = "redis_relay"
	mqttRelayLabel        = "mqtt_relay"
	commandInterfaceLabel = "command_interface"
)

func main() {
	os.Exit(run())
}

// run contains the program logic and returns an exit code, so deferred
// cleanup always runs before the process actually exits.
func run() int {
	for _, a := range os.Args[1:] {
		if a == "-h" || a == "-help" || a == "--help" {
			config.RegisterFlags()
			config.Usage(banner())
			return 0
		}
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	sink, err := logger.New(cfg.App.LogLevel, cfg.App.LogFormat, cfg.Logger.FilePath, cfg.Logger.HexDumpBytesPerRow, cfg.Logger.HexDumpBytesPerCol)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}

	app := &application{config: cfg, sink: sink}
	return app.runProcess()
}

func banner() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}

// application bundles the process-wide collaborators, adapted from a
// Redis/MQTT/processor trio to the worker runtime's
// registry/log-queue/shutdown trio plus its own satellite set.
type application struct {
	config *config.Config
	sink   *logger.Sink

	shutdown *shutdown.Coordinator
	registry *registry.Registry
	logQueue *logqueue.Queue
	runtime  *worker.Runtime

	cmdServer *command.Server
}

// runProcess wires every collaborator, runs until shutdown, tears
// everything down, and returns the exit code per SPEC_FULL §4.H: 0 on
// clean shutdown, 1 on config/init failure, 2 on cleanup error.
func (app *application) runProcess() int {
	app.sink.Direct(message.LevelInfo, "app", fmt.Sprintf("starting recorder %s", banner()))

	app.shutdown = shutdown.New()
	if err := app.shutdown.Install(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to install signal handler: %v\n", err)
		return 1
	}

	app.registry = registry.New()
	if err := app.registry.Init(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialize registry: %v\n", err)
		return 1
	}

	app.logQueue = logqueue.New(logqueue.DefaultSize, app.sink)
	app.runtime = worker.New(app.shutdown, app.registry, app.logQueue)
	app.runtime.SetSuppressed(app.config.Debug.SuppressThreads)
	app.runtime.SetHexDumper(app.sink)

	app.applyCPUAffinityIfConfigured()

	if err := app.spawnWorkers(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to start workers: %v\n", err)
		return 1
	}

	app.shutdown.Wait(shutdown.Infinite)

	return app.teardown()
}

// applyCPUAffinityIfConfigured applies process CPU affinity if
// debug.cpu_affinity is set. Best-effort: logs a warning on failure
// rather than failing startup, since pinning is a debug convenience,
// not a correctness requirement.
func (app *application) applyCPUAffinityIfConfigured() {
	if len(app.config.Debug.CPUAffinity) == 0 {
		return
	}
	spec := runtimex.AffinitySpec{CPUSet: app.config.Debug.CPUAffinity}
	if err := runtimex.ApplyProcessAffinity(spec); err != nil {
		app.sink.Direct(message.LevelWarn, "app", fmt.Sprintf("failed to apply CPU affinity (best-effort): %v", err))
		return
	}
	app.sink.Direct(message.LevelInfo, "app", fmt.Sprintf("applied CPU affinity: %v", app.config.Debug.CPUAffinity))
}

// inboxOverrides maps a target worker's label to the inbox capacity its
// producer requested via its own config section (spec §4.D's
// max_queue_size, passed through init_queue). Only file_reader exposes
// this key today; relay targets use the registry's default capacity.
func (app *application) inboxOverrides() map[string]int {
	overrides := make(map[string]int)
	fr := app.config.FileReader
	if fr.Path != "" && fr.TargetWorker != "" && fr.MaxQueueSize > 0 {
		overrides[fr.TargetWorker] = fr.MaxQueueSize
	}
	return overrides
}

// spawnWorkers brings up the logger first (so every later worker's
// init-hook barrier can clear) and then every configured satellite.
func (app *application) spawnWorkers() error {
	overrides := app.inboxOverrides()

	if err := worker.Spawn(app.runtime, worker.Descriptor{
		Label:     loggerLabel,
		IsLogger:  true,
		MainFn:    app.sink.Run,
		InboxSize: overrides[loggerLabel],
	}); err != nil {
		return fmt.Errorf("spawning logger: %w", err)
	}
	app.runtime.MarkLoggerReady()

	if app.config.FileReader.Path != "" {
		reader := filereader.New(app.config.FileReader)
		if err := worker.Spawn(app.runtime, worker.Descriptor{
			Label:     fileReaderLabel,
			MainFn:    reader.Run,
			InboxSize: overrides[fileReaderLabel],
		}); err != nil {
			return fmt.Errorf("spawning file_reader: %w", err)
		}
	}

	if app.config.RedisRelay.Enabled {
		relay := redisrelay.New(app.config.RedisRelay)
		if err := worker.Spawn(app.runtime, worker.Descriptor{
			Label:     redisRelayLabel,
			MainFn:    relay.Run,
			InboxSize: overrides[redisRelayLabel],
		}); err != nil {
			return fmt.Errorf("spawning redis_relay: %w", err)
		}
	}

	if app.config.MQTTRelay.Enabled {
		relay := mqttrelay.New(app.config.MQTTRelay)
		if err := worker.Spawn(app.runtime, worker.Descriptor{
			Label:     mqttRelayLabel,
			MainFn:    relay.Run,
			InboxSize: overrides[mqttRelayLabel],
		}); err != nil {
			return fmt.Errorf("spawning mqtt_relay: %w", err)
		}
	}

	if err := worker.Spawn(app.runtime, worker.Descriptor{
		Label:     commandInterfaceLabel,
		MainFn:    app.runCommandInterface,
		InboxSize: overrides[commandInterfaceLabel],
	}); err != nil {
		return fmt.Errorf("spawning command_interface: %w", err)
	}

	return nil
}

// commandLogf routes the command dispatcher's own diagnostics (e.g. an
// unknown-verb warning) into the log queue directly, since the
// dispatcher runs inside a connection goroutine rather than a
// registered worker and so has no worker.Context to call Logf through.
func (app *application) commandLogf(level message.Level, text string) {
	idx := app.logQueue.NextIndex()
	app.logQueue.Push(message.NewLogEntry(idx, level, time.Now(), "command_interface", text))
}

// runCommandInterface implements worker.Descriptor.MainFn for
// command_interface: it blocks until either the TCP listener exits on
// its own (e.g. a bind failure) or the shutdown coordinator fires, in
// which case the listener is asked to close. Registering this as an
// ordinary worker (rather than a bare goroutine off main) gives it a
// registry entry like every other satellite: get_state reports it,
// debug.suppress_threads can disable it, and wait_all covers it.
func (app *application) runCommandInterface(wc *worker.Context) error {
	handler := command.NewHandler(app.sink, app.commandLogf, app.sink)
	addr := fmt.Sprintf(":%d", app.config.CommandInterface.ListeningPort)
	app.cmdServer = command.NewServer(addr, uint32(app.config.CommandInterface.MaxMessage), handler.Dispatch, app.shutdown, app.commandLogf)

	srvErrCh := make(chan error, 1)
	go func() { srvErrCh <- app.cmdServer.ListenAndServe() }()

	shutdownDone := make(chan struct{})
	go func() {
		app.shutdown.Wait(shutdown.Infinite)
		close(shutdownDone)
	}()

	select {
	case err := <-srvErrCh:
		if err != nil {
			wc.Logf(message.LevelError, fmt.Sprintf("listener stopped: %v", err))
		}
		app.shutdown.Signal()
		return err
	case <-shutdownDone:
		if err := app.cmdServer.Close(); err != nil {
			wc.Logf(message.LevelWarn, fmt.Sprintf("error closing listener: %v", err))
		}
		if err := <-srvErrCh; err != nil {
			wc.Logf(message.LevelWarn, fmt.Sprintf("listener error during shutdown: %v", err))
		}
		return nil
	}
}

// teardown waits for every worker to reach a terminal state, runs
// registry cleanup, and closes the logger, translating any failure
// along the way into exit code 2 per SPEC_FULL §4.H.
func (app *application) teardown() int {
	ok := app.registry.WaitAll(app.config.App.ShutdownTimeout)
	if !ok {
		app.sink.Direct(message.LevelError, "app", "timed out waiting for workers to stop")
	}

	app.registry.Cleanup()
	app.shutdown.Cleanup()

	app.sink.Direct(message.LevelInfo, "app", "recorder shutdown complete")
	if err := app.sink.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", err)
		return 2
	}

	if !ok {
		return 2
	}
	return 0
}
