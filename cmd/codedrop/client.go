package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"codedrop/internal/api"
	"codedrop/internal/config"
)

const (
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	noAutostartEnvKey  = "CODEDROP_NO_AUTOSTART"
)

// withClient runs fn against the configured server, starting a local one for
// the duration of the call when nothing answers.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	cleanup, err := ensureServer(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	return fn(api.NewClient(cfg.APIURL))
}

func ensureServer(cfg *config.Config) (func(), error) {
	client := api.NewClient(cfg.APIURL)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := client.Ping(ctx); err == nil {
		return nil, nil
	}
	if os.Getenv(noAutostartEnvKey) != "" {
		return nil, nil
	}

	cmd, err := startServerProcess(cfg)
	if err != nil {
		return nil, err
	}

	if err := waitForServer(client, serverStartTimeout); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	// The spawned server keeps running the sweeper only while this command lives.
	cleanup := func() {
		_ = cmd.Process.Signal(os.Interrupt)
		done := make(chan struct{})
		go func() {
			_ = cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(serverStartTimeout):
			_ = cmd.Process.Kill()
			<-done
		}
	}

	return cleanup, nil
}

// startServerProcess runs "codedrop srv" with this command's storage settings.
// Its log goes to srv.log under the data dir.
func startServerProcess(cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	var logOut io.Writer = io.Discard
	var logFile *os.File
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err == nil {
			logFile, err = os.OpenFile(filepath.Join(cfg.DataDir, "srv.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				logOut = logFile
			}
		}
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"CODEDROP_DB="+cfg.DBPath,
		"CODEDROP_API_URL="+cfg.APIURL,
		"CODEDROP_DATA_DIR="+cfg.DataDir,
		"CODEDROP_STORAGE_BACKEND="+cfg.Storage.Backend,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = logOut

	slog.Debug("starting local server", "exe", exe, "api_url", cfg.APIURL)
	err = cmd.Start()
	if logFile != nil {
		// The child holds its own descriptor once started.
		_ = logFile.Close()
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// waitForServer polls the health endpoint until it answers, timeout passes,
// or something other than a refused connection comes back.
func waitForServer(client *api.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()

	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, 200*time.Millisecond)
		err := client.Ping(pingCtx)
		pingCancel()
		if err == nil {
			return nil
		}
		if !isConnRefused(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.New("server did not start in time")
		case <-ticker.C:
		}
	}
}

func isConnRefused(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
