package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"wifiwatchdog/internal/config"
	"wifiwatchdog/internal/lock"
	"wifiwatchdog/internal/logging"
	"wifiwatchdog/internal/monitor"
	"wifiwatchdog/internal/netif"
	"wifiwatchdog/internal/probe"
	"wifiwatchdog/internal/status"
	"wifiwatchdog/internal/storage"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitNoInterface = 3
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	envFile    string
	status     bool
	version    bool
	iface      string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("wifi-watchdog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "path to configuration file (YAML)")
	fs.StringVar(&opts.envFile, "env", config.DefaultEnvFile, "path to environment file")
	fs.BoolVar(&opts.status, "status", false, "probe once, merge with the logs, print a summary and exit")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: wifi-watchdog [flags] [interface]\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nexit status 3 means no wireless interface was found\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	switch fs.NArg() {
	case 0:
	case 1:
		opts.iface = fs.Arg(0)
	default:
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args()[1:])
		fs.Usage()
		return opts, errors.New("too many arguments")
	}
	return opts, nil
}

// host bundles the system capabilities run depends on.
type host struct {
	lister netif.LinkLister
	prober monitor.Prober
	radio  monitor.Radio
	exists func(iface string) bool
}

func systemHost(cfg config.Config) host {
	sys := netif.NewSystem(netif.DefaultResolvConf, cfg.ProbeTimeout())
	return host{
		lister: sys,
		prober: probe.New(sys, probe.Config{
			Hosts:    cfg.ProbeHosts,
			Timeout:  cfg.ProbeTimeout(),
			DNSCheck: cfg.DNSCheck,
			DNSHost:  cfg.DNSHost,
		}),
		radio:  sys,
		exists: sys.Exists,
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	return runWith(args, stdout, stderr, systemHost)
}

func runWith(args []string, stdout, stderr io.Writer, newHost func(config.Config) host) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		return exitUsage
	}
	if opts.version {
		fmt.Fprintf(stdout, "wifi-watchdog %s\n", version)
		return exitOK
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		fmt.Fprintf(stderr, "wifi-watchdog: %v\n", err)
		return exitFailure
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "wifi-watchdog: load config: %v\n", err)
		return exitFailure
	}
	if opts.iface != "" {
		cfg.Interface = opts.iface
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := newHost(cfg)

	if opts.status {
		iface, err := netif.ResolveInterface(cfg.InterfaceOverride, cfg.Interface, h.lister)
		if err != nil {
			fmt.Fprintf(stderr, "wifi-watchdog: %v\n", err)
			return exitNoInterface
		}
		snap := status.NewReporter(h.prober, cfg.SystemLog, cfg.SystemLogFallback, cfg.RecoveryLog).Report(ctx, iface)
		if err := snap.Render(stdout); err != nil {
			fmt.Fprintf(stderr, "wifi-watchdog: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	logger, closeSinks := openLogger(cfg, stderr)
	defer closeSinks()

	iface, err := netif.ResolveInterface(cfg.InterfaceOverride, cfg.Interface, h.lister)
	if err != nil {
		logger.Errorf("%v", err)
		return exitNoInterface
	}

	handle, err := lock.Acquire(cfg.LockPath)
	if errors.Is(err, lock.ErrAlreadyRunning) {
		logger.Infof("%v; exiting", err)
		return exitOK
	}
	if err != nil {
		logger.Errorf("%v", err)
		return exitFailure
	}
	defer func() {
		if err := handle.Release(); err != nil {
			logger.Warnf("release lock: %v", err)
		}
	}()
	logger.Debugf("lock held at %s", handle.Path())

	if h.exists != nil && !h.exists(iface) {
		logger.Warnf("interface %s does not exist yet; monitoring it anyway", iface)
	}

	ctrl := monitor.New(monitor.Config{
		Interface: iface,
		Threshold: cfg.FailureThreshold,
		Healthy:   cfg.HealthyInterval(),
		Retry:     cfg.RetryInterval(),
		Recovery:  cfg.RecoveryInterval(),
		Settle:    cfg.Settle(),
	}, h.prober, h.radio, logger)
	ctrl.Start(ctx)
	<-ctx.Done()
	ctrl.Stop()
	return exitOK
}

// openLogger opens both sinks. The detailed sink is mirrored to stderr; a
// sink that cannot be opened is reported and skipped.
func openLogger(cfg config.Config, stderr io.Writer) (*logging.Logger, func()) {
	var closers []io.Closer

	detail := stderr
	if f, path, err := storage.OpenAppend(cfg.SystemLog, cfg.SystemLogFallback); err != nil {
		fmt.Fprintf(stderr, "wifi-watchdog: system log unavailable: %v\n", err)
	} else {
		if path != cfg.SystemLog {
			fmt.Fprintf(stderr, "wifi-watchdog: logging to %s\n", path)
		}
		detail = logging.Tee(f, stderr)
		closers = append(closers, f)
	}

	var concise io.Writer
	if f, _, err := storage.OpenAppend(cfg.RecoveryLog); err != nil {
		fmt.Fprintf(stderr, "wifi-watchdog: recovery log unavailable: %v\n", err)
	} else {
		concise = f
		closers = append(closers, f)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), detail, concise)
	return logger, func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
}
