package artifact

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/peachmeow/peachmeow/pkg/utils"
	log "github.com/sirupsen/logrus"
)

// Runner runs external tools.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs tools as child processes and streams their output into the log.
type ExecRunner struct {
	Dir string
}

// secretFlags are flags whose value never reaches the log.
var secretFlags = map[string]bool{
	"--keystore-password":       true,
	"--keystore-entry-password": true,
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmdline := strings.Join(append([]string{name}, Redact(args)...), " ")
	log.Debugf("Running %s", cmdline)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &types.ToolError{Tool: cmdline, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &types.ToolError{Tool: cmdline, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &types.ToolError{Tool: cmdline, Err: err}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		utils.LogPipe(stdout, log.InfoLevel, name)
	}()
	go func() {
		defer wg.Done()
		utils.LogPipe(stderr, log.WarnLevel, name)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return &types.ToolError{Tool: cmdline, Err: err}
	}
	return nil
}

// Redact returns a copy of args with the values of secret flags masked.
func Redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if secretFlags[out[i]] {
			out[i+1] = "***"
			i++
		}
	}
	return out
}
