package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/custodia-labs/archivist/internal/logger"
)

// Runner executes external commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		logger.Warn("exec %s %s failed after %s: %v: %s",
			name, strings.Join(args, " "), time.Since(start).Round(time.Millisecond), err, truncate(errb.String(), 2048))
	} else {
		logger.Debug("exec %s %s ok in %s (%d bytes)",
			name, strings.Join(args, " "), time.Since(start).Round(time.Millisecond), out.Len())
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
