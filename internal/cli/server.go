package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loopfi/routerd/internal/logging"
	"github.com/loopfi/routerd/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the routerd daemon",
	Long: `Start the routerd daemon: the gRPC execution API, the websocket
event stream and, when enabled, the prometheus metrics endpoint.

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Running routerd with no subcommand starts the daemon.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, args)
	}

	serverCmd.Flags().String("grpc", "", "gRPC listen address (overrides config)")
	serverCmd.Flags().String("http", "", "HTTP listen address (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("grpc"); addr != "" {
		cfg.Server.GRPCAddress = addr
	}
	if addr, _ := cmd.Flags().GetString("http"); addr != "" {
		cfg.Server.HTTPAddress = addr
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	n, err := buildNode(cfg, log)
	if err != nil {
		return err
	}
	defer n.close()

	hub := server.NewHub(logging.Named(log, "events"))
	svc := server.NewService(n.engine, logging.Named(log, "rpc"),
		server.WithTraceStore(n.traces),
		server.WithJournal(n.journal),
		server.WithHub(hub),
		server.WithSignatureRequired(cfg.Auth.RequireSignature),
	)

	var metricsHandler http.Handler
	if cfg.Server.MetricsEnabled {
		metricsHandler = n.metrics.Handler()
	}
	srv := server.New(svc, hub, server.Options{
		GRPCAddress:    cfg.Server.GRPCAddress,
		HTTPAddress:    cfg.Server.HTTPAddress,
		MetricsHandler: metricsHandler,
	}, logging.Named(log, "server"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("routerd starting",
		"grpc", cfg.Server.GRPCAddress, "http", cfg.Server.HTTPAddress,
		"storage", cfg.Storage.Backend, "signatures", cfg.Auth.RequireSignature)

	return srv.Run(ctx)
}
