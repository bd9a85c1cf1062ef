package webdriver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	readyAttempts = 10
	readyInterval = 500 * time.Millisecond
)

// Driver is a locally spawned chromedriver process.
type Driver struct {
	cmd    *exec.Cmd
	logger *zap.Logger

	once     sync.Once
	closeErr error
}

// StartDriver launches path --port=<port> and waits for GET /status to report
// ready. The process is killed if it never becomes ready.
func StartDriver(ctx context.Context, path string, port int, client *Client, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, errors.New("chromedriver path is empty")
	}
	cmd := exec.Command(path, "--port="+strconv.Itoa(port))
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start chromedriver: %w", err)
	}
	d := &Driver{cmd: cmd, logger: logger}
	if err := client.WaitReady(ctx, readyAttempts, readyInterval); err != nil {
		_ = d.Close()
		return nil, err
	}
	logger.Info("chromedriver_started", zap.Int("pid", cmd.Process.Pid), zap.Int("port", port))
	return d, nil
}

// Close kills the process and reaps it.
func (d *Driver) Close() error {
	d.once.Do(func() {
		if d.cmd.Process == nil {
			return
		}
		_ = d.cmd.Process.Kill()
		err := d.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			d.closeErr = err
		}
		d.logger.Info("chromedriver_stopped")
	})
	return d.closeErr
}
