package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// PythonExecTool implements the python-exec capability: writes the supplied
// source to a temp file and runs it under a bounded-timeout subprocess.
type PythonExecTool struct {
	interpreter string
	timeout     time.Duration
}

// NewPythonExecTool builds the python-exec tool. interpreter defaults to
// "python3".
func NewPythonExecTool(interpreter string, timeout time.Duration) *PythonExecTool {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PythonExecTool{interpreter: interpreter, timeout: timeout}
}

func (t *PythonExecTool) Info() ToolInfo {
	return ToolInfo{
		Name:         "python-exec",
		Description:  "Runs a Python snippet in a sandboxed subprocess and returns its combined output.",
		InputSchema:  `{"type":"object","properties":{"code":{"type":"string"}},"required":["code"]}`,
		OutputSchema: `{"type":"object","properties":{"output":{"type":"string"}}}`,
		Idempotent:   false,
	}
}

func (t *PythonExecTool) Invoke(ctx context.Context, args map[string]any, onProgress ProgressFunc) (Result, error) {
	code, _ := args["code"].(string)
	if code == "" {
		return Result{}, NewError("python-exec", ErrorKindValidation, fmt.Errorf("code is required"))
	}

	file, err := os.CreateTemp("", "medassist-python-*.py")
	if err != nil {
		return Result{}, NewError("python-exec", ErrorKindPermanent, err)
	}
	defer os.Remove(file.Name())

	if _, err := file.WriteString(code); err != nil {
		file.Close()
		return Result{}, NewError("python-exec", ErrorKindPermanent, err)
	}
	if err := file.Close(); err != nil {
		return Result{}, NewError("python-exec", ErrorKindPermanent, err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if onProgress != nil {
		onProgress(ProgressEvent{Message: "running python snippet"})
	}

	cmd := exec.CommandContext(ctx, t.interpreter, file.Name())
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, NewError("python-exec", ErrorKindTimeout, err)
		}
		return Result{Content: string(output)}, NewError("python-exec", ErrorKindPermanent, err)
	}
	return Result{Content: string(output)}, nil
}
