/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command goicorn is both the arbiter and every worker it spawns: the same
// binary re-executes itself with GOICORN_WORKER_ID set in its environment
// to enter the worker runtime instead of the arbiter's Startup/Run pair.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nabbar/goicorn/arbiter"
	"github.com/nabbar/goicorn/gconfig"
	"github.com/nabbar/goicorn/glog"
	"github.com/nabbar/goicorn/heartbeat"
	"github.com/nabbar/goicorn/hooks"
	"github.com/nabbar/goicorn/httpparse"
	"github.com/nabbar/goicorn/worker"
)

// Exit codes per §6: 0 clean shutdown, 1 configuration error, 3
// worker-class misconfiguration, 4 failure to bind.
const (
	exitOK            = 0
	exitConfig        = 1
	exitWorkerClass   = 3
	exitBindFailure   = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if os.Getenv(arbiter.WorkerIDEnv) != "" {
		return runWorker()
	}

	return runCLI(args)
}

// runCLI defines the cobra-free flag surface bound straight onto a
// pflag.FlagSet, the same split load.go's Loader already expects: flags
// are parsed once here, then re-parsed inside gconfig against the merged
// precedence chain (defaults, file, GOICORN_CMD_ARGS, flags).
func runCLI(args []string) int {
	flags := pflag.NewFlagSet("goicorn", pflag.ContinueOnError)

	var (
		configFile   string
		checkConfig  bool
		dumpConfig   bool
	)

	flags.StringVar(&configFile, "config", "", "path to a YAML configuration file")
	flags.BoolVar(&checkConfig, "check-config", false, "validate configuration and exit")
	flags.BoolVar(&dumpConfig, "dump-config", false, "print the fully merged configuration as YAML and exit")

	flags.StringSlice("bind", nil, "address to bind, host:port or unix:/path, repeatable")
	flags.String("app", "echo", "application specifier: echo, static:<dir>")
	flags.Int("workers", 1, "number of worker processes")
	flags.String("worker-class", "sync", "worker concurrency model (only sync is implemented)")
	flags.Int("threads", 1, "threads per worker (sync worker ignores values above 1)")
	flags.Int64("timeout", 30, "worker silence timeout, seconds")
	flags.Int64("graceful-timeout", 30, "grace period for in-flight requests on stop, seconds")
	flags.Int64("keep-alive", 2, "seconds to wait for the next pipelined request")
	flags.Int("max-requests", 0, "requests served before a worker recycles itself, 0 disables")
	flags.Int("max-requests-jitter", 0, "random jitter added to max-requests")
	flags.Bool("preload", false, "load application code before forking workers")
	flags.Bool("reload", false, "watch the config file and the application for changes")
	flags.String("pid", "", "path to write the arbiter's pid file")
	flags.String("worker-tmp-dir", "", "directory for heartbeat files")
	flags.String("user", "", "drop privileges to this user after binding")
	flags.String("group", "", "drop privileges to this group after binding")
	flags.String("umask", "0", "umask applied before binding unix sockets")
	flags.Bool("daemon", false, "daemonize after startup")
	flags.String("chdir", "", "change to this directory before loading the application")
	flags.StringSlice("forwarded-allow-ips", nil, "peer addresses trusted to set forwarding headers")
	flags.StringSlice("forwarder-headers", nil, "header names trusted from forwarded-allow-ips peers")
	flags.String("header-map", "drop", "ambiguous header handling: drop, refuse, dangerous")
	flags.Int("limit-request-line", 4094, "maximum request line length")
	flags.Int("limit-request-fields", 100, "maximum number of header fields")
	flags.Int("limit-request-field-size", 8190, "maximum size of a single header field")
	flags.String("log-level", "info", "log level: panic, fatal, error, warn, info, debug")
	flags.String("log-file", "", "path to write arbiter/worker logs, stderr when empty")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	loader := gconfig.NewLoader(flags)
	if configFile != "" {
		loader.SetConfigFile(configFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfig
	}

	// The application specifier is positional, gunicorn-style ("goicorn
	// myapp:thing"), but also settable via --app for parity with every
	// other setting's file/env/flag precedence chain; a bare positional
	// argument wins over --app's default when both are absent from flags.
	if pos := flags.Args(); len(pos) > 0 {
		cfg.App = pos[0]
	} else if app := flags.Lookup("app"); app != nil && app.Changed {
		cfg.App = app.Value.String()
	} else if cfg.App == "" {
		cfg.App = "echo"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfig
	}

	if cfg.WorkerClass != "sync" {
		fmt.Fprintln(os.Stderr, "worker-class misconfiguration: only \"sync\" is implemented, got", cfg.WorkerClass)
		return exitWorkerClass
	}

	if checkConfig {
		return exitOK
	}

	if dumpConfig {
		out, err := cfg.Dump()
		if err != nil {
			fmt.Fprintln(os.Stderr, "could not dump configuration:", err)
			return exitConfig
		}
		os.Stdout.Write(out)
		return exitOK
	}

	return runArbiter(cfg)
}

func runArbiter(cfg *gconfig.Config) int {
	logOut, closeLog := openLogOutput(cfg.LogFile)
	defer closeLog()

	log := glog.New(glog.ParseLevel(cfg.LogLevel), logOut)

	binPath, binErr := os.Executable()
	if binErr != nil {
		binPath = os.Args[0]
	}

	a := arbiter.New(arbiter.Options{
		Config:     cfg,
		Hooks:      &hooks.Set{},
		Log:        log,
		BinaryPath: binPath,
		Args:       os.Args[1:],
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	os.Setenv("SERVER_SOFTWARE", "goicorn")
	os.Setenv("GOICORN_PID", strconv.Itoa(os.Getpid()))

	if err := a.Startup(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bind failure:", err)
		return exitBindFailure
	}

	if err := a.Run(ctx); err != nil && err != context.Canceled {
		log.Entry(glog.ErrorLevel, "arbiter exited with an error").ErrorAdd(err).Log()
	}

	return exitOK
}

// runWorker reconstructs a worker.Worker from the environment and inherited
// fds a spawnWorker call in the arbiter package laid out: fd 3 is the
// parent-liveness pipe, fd 4 the heartbeat file, fd 5 onward one listener
// per configured bind address, in order.
func runWorker() int {
	id, _ := strconv.Atoi(os.Getenv(arbiter.WorkerIDEnv))
	age, _ := strconv.Atoi(os.Getenv(arbiter.WorkerAgeEnv))
	fdCount, _ := strconv.Atoi(os.Getenv(arbiter.WorkerFdCountEnv))

	flags := pflag.NewFlagSet("goicorn-worker", pflag.ContinueOnError)
	bindFlagsOnly(flags)
	// The inherited argv may carry the process-level flags too; declare them
	// so parsing does not stop there, and load the same config file.
	configFile := flags.String("config", "", "")
	flags.Bool("check-config", false, "")
	flags.Bool("dump-config", false, "")
	_ = flags.Parse(os.Args[1:])

	loader := gconfig.NewLoader(flags)
	if *configFile != "" {
		loader.SetConfigFile(*configFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "worker configuration error:", err)
		return exitConfig
	}

	if pos := flags.Args(); len(pos) > 0 {
		cfg.App = pos[0]
	} else if app := flags.Lookup("app"); app != nil && app.Changed {
		cfg.App = app.Value.String()
	} else if cfg.App == "" {
		cfg.App = "echo"
	}

	logOut, closeLog := openLogOutput(cfg.LogFile)
	defer closeLog()
	log := glog.New(glog.ParseLevel(cfg.LogLevel), logOut)

	parentPipe := os.NewFile(3, "parent-pipe")
	hb := heartbeat.FromFd(4)

	listeners := make([]net.Listener, 0, fdCount)
	for i := 0; i < fdCount; i++ {
		fd := uintptr(arbiter.WorkerListenFdBase + i)
		f := os.NewFile(fd, "listener-"+strconv.Itoa(i))

		l, lerr := net.FileListener(f)
		if lerr != nil {
			log.Entry(glog.ErrorLevel, "worker could not adopt an inherited listener fd").ErrorAdd(lerr).Log()
			return exitBindFailure
		}

		listeners = append(listeners, l)
	}

	app := resolveApp(cfg.App, workerErrorWriter{log})

	wcfg := worker.Config{
		Timeout:               cfg.Timeout.AsDuration(),
		GracefulTimeout:       cfg.GracefulTimeout.AsDuration(),
		KeepAliveWindow:       cfg.KeepAlive.AsDuration(),
		MaxRequests:           cfg.MaxRequests,
		MaxRequestsJitter:     cfg.MaxRequestsJitter,
		ParseOptions: httpparse.Options{
			Limits: httpparse.Limits{
				RequestLine:  cfg.LimitRequestLine,
				HeaderFields: cfg.LimitRequestFields,
				HeaderField:  cfg.LimitRequestFieldSize,
			},
			HeaderMap:        httpparse.ParseHeaderMapPolicy(cfg.HeaderMap),
			ForwarderHeaders: cfg.ForwarderHeaders,
		},
		ForwardedAllowIPs: cfg.ForwardedAllowIPs,
		LogFile:           cfg.LogFile,
	}

	w := worker.New(id, age, wcfg, app, &hooks.Set{}, log, hb, listeners, parentPipe)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Entry(glog.ErrorLevel, "worker exited with an error").ErrorAdd(err).Log()
	}

	return exitOK
}

// bindFlagsOnly declares the same flag surface as runCLI's flags, minus
// the process-level-only ones (--check-config, --dump-config, --config),
// so a worker's gconfig.Loader can re-merge GOICORN_CMD_ARGS and its
// inherited argv identically to the arbiter that spawned it.
func bindFlagsOnly(flags *pflag.FlagSet) {
	flags.StringSlice("bind", nil, "")
	flags.String("app", "echo", "")
	flags.Int("workers", 1, "")
	flags.String("worker-class", "sync", "")
	flags.Int("threads", 1, "")
	flags.Int64("timeout", 30, "")
	flags.Int64("graceful-timeout", 30, "")
	flags.Int64("keep-alive", 2, "")
	flags.Int("max-requests", 0, "")
	flags.Int("max-requests-jitter", 0, "")
	flags.Bool("preload", false, "")
	flags.Bool("reload", false, "")
	flags.String("pid", "", "")
	flags.String("worker-tmp-dir", "", "")
	flags.String("user", "", "")
	flags.String("group", "", "")
	flags.String("umask", "0", "")
	flags.Bool("daemon", false, "")
	flags.String("chdir", "", "")
	flags.StringSlice("forwarded-allow-ips", nil, "")
	flags.StringSlice("forwarder-headers", nil, "")
	flags.String("header-map", "drop", "")
	flags.Int("limit-request-line", 4094, "")
	flags.Int("limit-request-fields", 100, "")
	flags.Int("limit-request-field-size", 8190, "")
	flags.String("log-level", "info", "")
	flags.String("log-file", "", "")
}

func openLogOutput(path string) (*os.File, func()) {
	if path == "" {
		return os.Stderr, func() {}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not open log file, falling back to stderr:", err)
		return os.Stderr, func() {}
	}

	return f, func() { _ = f.Close() }
}

// workerErrorWriter adapts glog.Logger to the io.Writer resolveApp expects
// for its "unrecognized application specifier" diagnostic.
type workerErrorWriter struct {
	log glog.Logger
}

func (w workerErrorWriter) Write(p []byte) (int, error) {
	w.log.Entry(glog.WarnLevel, strings.TrimRight(string(p), "\n")).Log()
	return len(p), nil
}
