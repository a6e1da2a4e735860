package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bitvmbridge/bridged/internal/core/application"
	log "github.com/sirupsen/logrus"
)

// Service is the JSON-over-HTTP front of the verifier daemon.
type Service struct {
	server *http.Server
}

func NewService(port uint32, appSvc application.Service) *Service {
	return &Service{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(appSvc),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background, so the caller can
// keep handling signals.
func (s *Service) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %s", s.server.Addr, err)
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server exited")
		}
	}()

	log.Infof("started listening at %s", s.server.Addr)
	return nil
}

func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// nolint:all
	s.server.Shutdown(ctx)
	log.Info("stopped http server")
}
