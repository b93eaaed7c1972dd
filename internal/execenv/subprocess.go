package execenv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rakunlabs/flowgraph/internal/render"
)

// defaultSandboxRoot is the default root directory used when Subprocess's
// SandboxRoot is empty.
const defaultSandboxRoot = "/tmp/flowgraph-sandbox"

// defaultSubprocessTimeout and maxSubprocessTimeout bound a single Execute
// call when Subprocess.Timeout is unset or too large.
const (
	defaultSubprocessTimeout = 60 * time.Second
	maxSubprocessTimeout     = 600 * time.Second
)

// Subprocess is an opt-in ExecutionEnv that runs a Code block's source as a
// shell command under a confined working directory, for hosts that need
// real OS-level isolation instead of the embedded JS VM. The command
// template is rendered with the input bindings before execution.
type Subprocess struct {
	SandboxRoot string
	Timeout     time.Duration
}

// Execute renders source as a shell command template against inputs, runs
// it under the sandbox root, and returns its stdout as the sole output
// (mapped to whichever single name was requested).
func (s *Subprocess) Execute(ctx context.Context, source string, inputs map[string]any, outputNames []string) (map[string]any, error) {
	root := s.SandboxRoot
	if root == "" {
		root = defaultSandboxRoot
	}

	sandboxAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("execenv: resolve sandbox root: %w", err)
	}
	if err := os.MkdirAll(sandboxAbs, 0o755); err != nil {
		return nil, fmt.Errorf("execenv: create sandbox dir: %w", err)
	}

	workDir := sandboxAbs
	if wd, ok := inputs["working_dir"].(string); ok && wd != "" {
		candidate, err := filepath.Abs(filepath.Join(sandboxAbs, wd))
		if err != nil {
			return nil, fmt.Errorf("execenv: resolve working dir: %w", err)
		}
		if !isInsideSandbox(candidate, sandboxAbs) {
			return nil, fmt.Errorf("execenv: working directory %q escapes sandbox %q", candidate, sandboxAbs)
		}
		if err := os.MkdirAll(candidate, 0o755); err != nil {
			return nil, fmt.Errorf("execenv: create working dir: %w", err)
		}
		workDir = candidate
	}

	command, err := renderTemplate(source, inputs)
	if err != nil {
		// Fall back to the literal source when it carries no template
		// syntax the input bindings can't satisfy.
		command = source
	}
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("execenv: command is empty after template resolution")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSubprocessTimeout
	}
	if timeout > maxSubprocessTimeout {
		timeout = maxSubprocessTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = []string{
		"HOME=" + sandboxAbs,
		"PATH=/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin",
		"TMPDIR=" + sandboxAbs,
		"SANDBOX_ROOT=" + sandboxAbs,
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("execenv: command failed: %w: %s", err, stderr.String())
	}

	raw := stdout.String()

	out := make(map[string]any, len(outputNames))
	for _, name := range outputNames {
		out[name] = parseOutput(raw)
	}

	return out, nil
}

// isInsideSandbox reports whether dir is inside (or equal to) root. Execute
// uses it to reject a "working_dir" input that escapes the sandbox root.
func isInsideSandbox(dir, root string) bool {
	dir = filepath.Clean(dir)
	root = filepath.Clean(root)
	if dir == root {
		return true
	}
	return strings.HasPrefix(dir, root+string(filepath.Separator))
}

// renderTemplate resolves {{.name}} references in a Go text/template
// command string against the input bindings.
func renderTemplate(s string, data map[string]any) (string, error) {
	out, err := render.ExecuteWithFuncs(s, data, nil)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// parseOutput tries to interpret stdout as JSON, falling back to the raw
// trimmed string.
func parseOutput(raw string) any {
	trimmed := strings.TrimSpace(raw)
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
		return parsed
	}
	return trimmed
}
