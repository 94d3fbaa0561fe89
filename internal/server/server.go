// Package server exposes the engine over gRPC and pushes execution
// events to websocket subscribers. RPC messages are hand-written
// structs on a cbor codec; there is no generated protobuf layer.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Server runs the gRPC listener and, when configured, the HTTP listener
// carrying the websocket event stream, health and metrics endpoints.
type Server struct {
	grpcAddress string
	httpAddress string

	grpcServer *grpc.Server
	httpServer *http.Server
	hub        *Hub
	log        *zap.SugaredLogger
}

// Options configure a Server.
type Options struct {
	GRPCAddress string
	HTTPAddress string

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler
}

// New assembles the listeners around a service.
func New(svc *Service, hub *Hub, opts Options, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	gs := grpc.NewServer(grpc.ForceServerCodec(cborCodec{}))
	gs.RegisterService(&routerServiceDesc, svc)

	s := &Server{
		grpcAddress: opts.GRPCAddress,
		httpAddress: opts.HTTPAddress,
		grpcServer:  gs,
		hub:         hub,
		log:         log,
	}

	if opts.HTTPAddress != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		if hub != nil {
			mux.HandleFunc("/ws", hub.ServeWS)
		}
		if opts.MetricsHandler != nil {
			mux.Handle("/metrics", opts.MetricsHandler)
		}
		s.httpServer = &http.Server{
			Addr:              opts.HTTPAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return s
}

// Run serves until ctx is cancelled, then shuts both listeners down.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	grpcLis, err := net.Listen("tcp", s.grpcAddress)
	if err != nil {
		return err
	}
	s.log.Infow("grpc listening", "address", grpcLis.Addr().String())
	g.Go(func() error {
		return s.grpcServer.Serve(grpcLis)
	})

	if s.httpServer != nil {
		httpLis, err := net.Listen("tcp", s.httpAddress)
		if err != nil {
			grpcLis.Close()
			return err
		}
		s.log.Infow("http listening", "address", httpLis.Addr().String())
		g.Go(func() error {
			if err := s.httpServer.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.shutdown()
		return ctx.Err()
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) shutdown() {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	s.grpcServer.GracefulStop()
}
