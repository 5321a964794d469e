package coordinator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"transportagent/internal/agent"
)

// Process exit codes reported to the scheduler
const (
	ExitProcessed        = 0
	ExitError            = 1
	ExitNothingProcessed = 100
)

// Coordinator dispatches an action name to the agent serving it
type Coordinator struct {
	agents map[string]agent.Agent
	out    io.Writer
	log    *logrus.Entry
}

// New creates a new Coordinator with the given agents. The run summary is
// written to out.
func New(agents []agent.Agent, out io.Writer, log *logrus.Entry) *Coordinator {
	byName := make(map[string]agent.Agent, len(agents))
	for _, a := range agents {
		byName[strings.ToLower(a.Name())] = a
	}
	return &Coordinator{
		agents: byName,
		out:    out,
		log:    log,
	}
}

// Run executes the agent registered for action and prints its summary in
// the format "ACTION: processed=N deferred=N failed=N"
func (c *Coordinator) Run(ctx context.Context, action string) (agent.Result, error) {
	if len(c.agents) == 0 {
		return agent.Result{}, fmt.Errorf("no agents configured")
	}

	name := strings.ToLower(strings.TrimSpace(action))
	a, ok := c.agents[name]
	if !ok {
		return agent.Result{}, fmt.Errorf("unknown action %q", action)
	}

	c.log.WithField("action", name).Debug("dispatching action")
	res, err := a.Run(ctx)

	fmt.Fprintf(c.out, "%s: processed=%d deferred=%d failed=%d\n", name, res.Processed, res.Deferred, res.Failed)
	if err != nil {
		fmt.Fprintf(c.out, "%s: ERROR - %v\n", name, err)
	}

	return res, err
}

// ExitCode maps the outcome of a run to the process exit code
func ExitCode(res agent.Result, err error) int {
	switch {
	case err != nil:
		return ExitError
	case res.Processed > 0:
		return ExitProcessed
	default:
		return ExitNothingProcessed
	}
}
