// Package trigger runs external notification scripts on cluster
// transitions. A trigger never blocks the supervision loop longer than
// its configured timeout, and it never surfaces an error to the caller:
// a broken or missing trigger script is a configuration problem to be
// found in the logs, not a reason to stop supervising.
package trigger

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/google/uuid"
	shellwords "github.com/mattn/go-shellwords"

	"github.com/dd0wney/pgsentry/pkg/logging"
)

// Dispatcher fires named triggers configured as shell command lines.
type Dispatcher struct {
	commands map[string]string
	timeout  time.Duration
	logger   logging.Logger
}

// New creates a Dispatcher. commands maps trigger name to a shell
// command line; a name absent from the map, or mapped to an empty
// string, is a configured no-op.
func New(commands map[string]string, timeout time.Duration, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Dispatcher{commands: commands, timeout: timeout, logger: logger}
}

// Configured reports whether name maps to a non-empty command.
func (d *Dispatcher) Configured(name string) bool {
	command, ok := d.commands[name]
	return ok && command != ""
}

// Fire runs the named trigger with payload written to its stdin. It
// never returns an error: failures are logged and otherwise swallowed.
// The returned bool is true only when a command was configured and ran
// to a zero exit within its timeout; callers that don't care about the
// outcome (most don't) can ignore it.
func (d *Dispatcher) Fire(name string, payload []byte) bool {
	command, ok := d.commands[name]
	if !ok || command == "" {
		return false
	}

	invocationID := uuid.New().String()

	args, err := shellwords.Parse(command)
	if err != nil || len(args) == 0 {
		d.logger.Error("could not parse trigger command",
			logging.Trigger(name), logging.String("invocation_id", invocationID),
			logging.String("command", command), logging.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		d.logger.Error("trigger timed out",
			logging.Trigger(name), logging.String("invocation_id", invocationID),
			logging.String("command", command))
		return false
	}
	if err != nil {
		d.logger.Error("trigger exited with an error",
			logging.Trigger(name), logging.String("invocation_id", invocationID),
			logging.String("command", command),
			logging.Error(err), logging.String("output", output.String()))
		return false
	}
	d.logger.Debug("trigger fired",
		logging.Trigger(name), logging.String("invocation_id", invocationID))
	return true
}
