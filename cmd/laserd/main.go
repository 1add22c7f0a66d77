package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mastercactapus/lasersim/config"
	"github.com/mastercactapus/lasersim/hub"
	"github.com/mastercactapus/lasersim/machine"
	"github.com/mastercactapus/lasersim/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	addr     string
	httpAddr string
	speed    float64
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "laserd",
	Short: "Virtual laser plotter server",
	Long: `laserd emulates a two-axis laser plotter.

Clients send LF-terminated commands over TCP:
  MOVE <x> <y>
  SPEED <steps/s>
  LASER ON|OFF
  CLEAR
  GET_STATUS

Every state change is broadcast as JSON to all connected clients.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&cfgFile, "config", "", "Config file (.toml, .yaml or .yml).")
	f.StringVar(&addr, "addr", "", "Address to bind the command server to.")
	f.StringVar(&httpAddr, "http", "", "Address to bind the HTTP API to (empty disables).")
	f.Float64Var(&speed, "speed", 0, "Initial speed in steps per second.")
	f.StringVar(&logFile, "log-file", "", "Also write the log to this file, rotated.")
}

func main() {
	log.SetFlags(log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		c, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = *c
	}

	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr = addr
	}
	if f.Changed("http") {
		cfg.HTTPAddr = httpAddr
	}
	if f.Changed("speed") {
		cfg.Speed = speed
	}
	if f.Changed("log-file") {
		cfg.LogFile = logFile
	}

	return &cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closeLog, err := initLogRotator(*cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = serve(ctx, *cfg)
	if err != nil {
		log.Printf("ERROR: serve: %+v", err)
	}
	return err
}

// serve runs the daemon until ctx is done or a listener fails.
func serve(ctx context.Context, cfg config.Config) error {
	h := hub.New()
	defer h.Close()
	m := machine.NewMachine(h, cfg.Speed)
	defer m.Close()

	srv := server.New(m, h)
	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Serve(l) }()
	defer srv.Close()

	if cfg.HTTPAddr != "" {
		hl, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return err
		}
		a := newAPI(m, h)
		defer a.Close()
		hs := &http.Server{Handler: withLogging(a)}
		log.Println("HTTP API on", hl.Addr())
		go func() { errCh <- hs.Serve(hl) }()
		defer hs.Close()
	}

	select {
	case <-ctx.Done():
		log.Println("Shutting down.")
		return nil
	case err = <-errCh:
		if errors.Is(err, server.ErrServerClosed) || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
		h.ServeHTTP(w, req)
	})
}
