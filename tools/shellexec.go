package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellExecTool implements the shell-exec capability: a sandboxed subprocess
// invocation bounded by an allow-list and a timeout.
type ShellExecTool struct {
	allowedCommands []string
	workingDir      string
	timeout         time.Duration
}

// NewShellExecTool builds the shell-exec tool. An empty allowedCommands
// disables the allow-list check (used only by tests); production wiring
// always supplies one.
func NewShellExecTool(allowedCommands []string, workingDir string, timeout time.Duration) *ShellExecTool {
	if workingDir == "" {
		workingDir = "."
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShellExecTool{allowedCommands: allowedCommands, workingDir: workingDir, timeout: timeout}
}

func (t *ShellExecTool) Info() ToolInfo {
	return ToolInfo{
		Name:         "shell-exec",
		Description:  "Executes a shell command from an allow-list and returns its combined output.",
		InputSchema:  `{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`,
		OutputSchema: `{"type":"object","properties":{"output":{"type":"string"}}}`,
		Idempotent:   false,
	}
}

func (t *ShellExecTool) Invoke(ctx context.Context, args map[string]any, onProgress ProgressFunc) (Result, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return Result{}, NewError("shell-exec", ErrorKindValidation, fmt.Errorf("command is required"))
	}

	if err := t.validateCommand(command); err != nil {
		return Result{}, NewError("shell-exec", ErrorKindValidation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if onProgress != nil {
		onProgress(ProgressEvent{Message: fmt.Sprintf("running: %s", command)})
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.workingDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, NewError("shell-exec", ErrorKindTimeout, err)
		}
		return Result{Content: string(output)}, NewError("shell-exec", ErrorKindPermanent, err)
	}
	return Result{Content: string(output)}, nil
}

func (t *ShellExecTool) validateCommand(command string) error {
	if len(t.allowedCommands) == 0 {
		return nil
	}
	base := firstWord(command)
	for _, allowed := range t.allowedCommands {
		if base == allowed {
			return nil
		}
	}
	return fmt.Errorf("command not allowed: %s", base)
}

func firstWord(command string) string {
	parts := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == '>' || r == '<' || r == ';'
	})
	if len(parts) == 0 {
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(parts[0]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
