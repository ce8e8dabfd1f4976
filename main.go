package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/subtunnel/internal/cipher"
	"github.com/die-net/subtunnel/internal/dialer"
	"github.com/die-net/subtunnel/internal/logging"
	"github.com/die-net/subtunnel/internal/password"
	"github.com/die-net/subtunnel/internal/proxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		local      = pflag.Bool("local", false, "Run the local endpoint: accept SOCKS5 clients and tunnel them to --remote")
		server     = pflag.Bool("server", false, "Run the server endpoint: accept tunnels and connect to their destinations")
		configPath = pflag.String("config", "", "Optional ini file with [local] and [server] sections; flags given on the command line win")

		passwordB64 = pflag.String("password", "", "Shared password, base64 (default $"+passwordEnv+")")
		listen      = pflag.String("listen", "", "Listen address (default 127.0.0.1:1080 for --local, 0.0.0.0:8388 for --server)")
		remote      = pflag.String("remote", "", "Server address to tunnel to (--local only)")
		upstream    = pflag.String("upstream", defaultUpstream(), "How the local endpoint reaches the server: direct:// | socks5://[user:pass@]host:port | http://[user:pass@]host:port | https://[user:pass@]host:port")
		reusePort   = pflag.Bool("reuse-port", false, "Open the listener with SO_REUSEPORT so several processes can share it")

		debugListen        = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for protocol negotiation to set up connection")
		halfCloseTimeout   = pflag.Duration("half-close-timeout", 5*time.Second, "How long a relay direction may stay idle after the other side has finished")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		logLevel           = pflag.String("log-level", "info", "Log level: verbose|debug|info|warning|error")

		generatePassword = pflag.Bool("generate-password", false, "Print a new random password and exit")
	)

	if !proxy.ReusePortSupported {
		_ = pflag.CommandLine.MarkHidden("reuse-port")
	}

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *generatePassword {
		p, err := password.Random()
		if err != nil {
			return err
		}
		s, err := password.Dumps(p)
		if err != nil {
			return err
		}
		fmt.Println(s)
		return nil
	}

	if *local == *server {
		return errors.New("exactly one of --local or --server is required")
	}
	mode := "server"
	if *local {
		mode = "local"
	}

	opts := endpointOptions{
		Password: *passwordB64,
		Listen:   *listen,
		Remote:   *remote,
		Upstream: *upstream,
	}
	if *configPath != "" {
		if err := loadConfig(*configPath, mode, pflag.CommandLine, &opts); err != nil {
			return err
		}
	}
	if opts.Password == "" {
		opts.Password = os.Getenv(passwordEnv)
	}
	if opts.Listen == "" {
		opts.Listen = defaultListen(*local)
	}

	log, err := logging.New(*logLevel, os.Stderr)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	if opts.Password == "" {
		return fmt.Errorf("missing --password (or $%s); generate one with --generate-password", passwordEnv)
	}
	seed, err := password.Loads(opts.Password)
	if err != nil {
		return fmt.Errorf("invalid --password: %w", err)
	}
	c, err := cipher.New(seed)
	if err != nil {
		return err
	}

	cfg := proxy.Config{
		NegotiationTimeout: *negotiationTimeout,
		HalfCloseTimeout:   *halfCloseTimeout,
		Cipher:             c,
		Logger:             log,
	}

	dialCfg := dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		KeepAlive:          ka,
	}

	if *local {
		if opts.Remote == "" {
			return errors.New("--local requires --remote")
		}
		cfg.Dialer, err = dialer.New(dialCfg, opts.Upstream)
		if err != nil {
			return fmt.Errorf("invalid --upstream: %w", err)
		}
	} else {
		cfg.Dialer = dialer.NewDirectDialer(dialCfg)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Infof("debug listening on %s", *debugListen)
	}

	ln, err := proxy.ListenTCP("tcp", opts.Listen, ka, *reusePort)
	if err != nil {
		return fmt.Errorf("%s listen: %w", mode, err)
	}
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	var srv interface{ Serve(net.Listener) error }
	if *local {
		srv = proxy.NewLocalServer(ctx, cfg, opts.Remote)
		log.Infof("local listening on %s, tunneling to %s via %s", opts.Listen, opts.Remote, opts.Upstream)
	} else {
		srv = proxy.NewRemoteServer(ctx, cfg)
		log.Infof("server listening on %s", opts.Listen)
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("%s serve: %w", mode, err)
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	log.Infof("shutting down")
	return err
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return net.KeepAliveConfig{}, errors.New("empty")
	case "on":
		return net.KeepAliveConfig{Enable: true}, nil
	case "off":
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

// defaultUpstream honors ALL_PROXY so the local endpoint can reach its
// server through an existing proxy.
func defaultUpstream() string {
	for _, k := range []string{"ALL_PROXY", "all_proxy"} {
		if p := os.Getenv(k); p != "" {
			return p
		}
	}
	return "direct://"
}
