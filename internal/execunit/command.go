package execunit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// wireEvent is one JSON line on an execution unit's stdout.
type wireEvent struct {
	Type    string  `json:"type"`
	Phase   string  `json:"phase,omitempty"`
	Message string  `json:"message,omitempty"`
	Result  *Result `json:"result,omitempty"`
}

// CommandLauncher runs each instruction as a subprocess. The instruction
// is written as JSON to the unit's stdin; the unit reports progress as
// JSON lines ({"type":"status",...}) and finishes with one
// {"type":"result","result":{...}} line.
type CommandLauncher struct {
	command []string
	logger  *slog.Logger
}

// NewCommandLauncher creates a launcher for the given binary and fixed
// arguments.
func NewCommandLauncher(command []string, logger *slog.Logger) (*CommandLauncher, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("execution unit command is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandLauncher{command: command, logger: logger}, nil
}

var _ Launcher = (*CommandLauncher)(nil)

// Submit starts the unit process and returns a handle following it.
func (l *CommandLauncher) Submit(ctx context.Context, instruction Instruction) (Handle, error) {
	payload, err := json.Marshal(instruction)
	if err != nil {
		return nil, types.WrapError(types.EXEC_UNIT_FAILED, "failed to serialize instruction", err)
	}

	cmd := exec.CommandContext(ctx, l.command[0], l.command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, types.WrapError(types.EXEC_UNIT_FAILED, "failed to open unit stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, types.WrapError(types.EXEC_UNIT_FAILED, "failed to open unit stdout", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, types.WrapError(types.EXEC_UNIT_UNAVAILABLE, "failed to start execution unit", err)
	}

	go func() {
		defer stdin.Close()
		if _, err := stdin.Write(append(payload, '\n')); err != nil {
			l.logger.Warn("failed to write instruction to unit",
				"step_id", instruction.StepID, "error", err)
		}
	}()

	h := &commandHandle{
		events: make(chan StatusEvent, 16),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.events)
		defer close(h.done)

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			var event wireEvent
			if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
				l.logger.Debug("ignoring non-JSON unit output", "line", scanner.Text())
				continue
			}
			switch event.Type {
			case "status":
				select {
				case h.events <- StatusEvent{Phase: event.Phase, Message: event.Message, At: time.Now().UTC()}:
				default:
				}
			case "result":
				h.result = event.Result
			}
		}

		waitErr := cmd.Wait()
		if h.result == nil {
			if ctx.Err() != nil {
				h.err = ctx.Err()
			} else if waitErr != nil {
				h.err = types.WrapError(types.EXEC_UNIT_FAILED,
					"execution unit exited without a result", waitErr)
			} else {
				h.err = types.NewError(types.EXEC_UNIT_FAILED,
					"execution unit exited without a result")
			}
		}
	}()

	return h, nil
}

type commandHandle struct {
	events chan StatusEvent
	done   chan struct{}

	// result and err are written by the reader goroutine before done
	// closes and read only afterwards.
	result *Result
	err    error
}

func (h *commandHandle) Status() <-chan StatusEvent {
	return h.events
}

func (h *commandHandle) Result(ctx context.Context) (*Result, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.result, nil
}
