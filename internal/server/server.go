package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"codedrop/internal/config"
	"codedrop/internal/share"
	"codedrop/internal/store"
)

const (
	allowRemoteEnvKey      = "CODEDROP_ALLOW_REMOTE"
	readHeaderTimeout      = 5 * time.Second
	readTimeout            = 2 * time.Minute
	writeTimeout           = 5 * time.Minute
	idleTimeout            = 60 * time.Second
	shutdownTimeout        = 15 * time.Second
	uploadConcurrencyLimit = 8
)

// InfoStore reports what the metadata store holds.
type InfoStore interface {
	StoreInfo(ctx context.Context) (*store.StoreInfo, error)
}

// Services bundles what the HTTP layer serves.
type Services struct {
	Store   InfoStore
	Uploads *share.UploadService
	Reads   *share.RetrievalService
	Deletes *share.DeletionService
	Sweeper *share.Sweeper
	Backend string
	// MultipartMaxMemory is how much of an upload is held in memory before
	// parts spill to temporary files.
	MultipartMaxMemory int64
}

// Server wraps HTTP handlers for the codedrop API.
type Server struct {
	addr               string
	store              InfoStore
	uploads            *share.UploadService
	reads              *share.RetrievalService
	deletes            *share.DeletionService
	sweeper            *share.Sweeper
	backend            string
	multipartMaxMemory int64
	logger             *slog.Logger
	uploadLimiter      chan struct{}
	codeLookups        *lookupThrottle
}

// New creates a new server instance.
func New(addr string, svc Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	memory := svc.MultipartMaxMemory
	if memory <= 0 {
		memory = config.DefaultMultipartMaxMemory
	}

	return &Server{
		addr:               addr,
		store:              svc.Store,
		uploads:            svc.Uploads,
		reads:              svc.Reads,
		deletes:            svc.Deletes,
		sweeper:            svc.Sweeper,
		backend:            svc.Backend,
		multipartMaxMemory: memory,
		logger:             logger,
		uploadLimiter:      make(chan struct{}, uploadConcurrencyLimit),
		codeLookups:        newLookupThrottle(codeMissLimit, codeMissWindow, codeMissBlock),
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe starts the HTTP server and shuts it down gracefully once
// ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "backend", s.backend)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
