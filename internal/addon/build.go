package addon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
)

// BuiltPackage is the result of a package build
type BuiltPackage struct {
	Name    string
	Version string
	// Dir is the output directory handed to the build script
	Dir string
	// Path is the expected <name>-<version>.zip inside Dir
	Path string
}

// BuildError is returned when the build script exits non-zero
type BuildError struct {
	ExitCode int
	Stderr   string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build script failed with exit code %d: %s", e.ExitCode, e.Stderr)
}

// Builder runs the addon's create_package.py
type Builder struct {
	Python string
	Script string
	// Output receives the script's stdout and stderr once it exits
	Output func(string)
}

// Build runs `<python> <root>/<script> -o <outDir>`
func (b *Builder) Build(ctx context.Context, root, outDir string, info PackageInfo) (*BuiltPackage, error) {
	python := b.Python
	if python == "" {
		python = "python"
	}
	script := b.Script
	if script == "" {
		script = "create_package.py"
	}
	if !filepath.IsAbs(script) {
		script = filepath.Join(root, script)
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("build script not found: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, python, script, "-o", outDir)
	cmd.Dir = root
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start build script: %w", err)
	}

	// forward interrupts so an aborted test run does not leave the build behind
	sigChan := make(chan os.Signal, 1)
	registerSignals(sigChan)
	go func() {
		for sig := range sigChan {
			if cmd.Process != nil {
				_ = cmd.Process.Signal(sig)
			}
		}
	}()

	waitErr := cmd.Wait()
	signal.Stop(sigChan)
	close(sigChan)

	if b.Output != nil {
		b.Output(stdout.String())
		b.Output(stderr.String())
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, &BuildError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, waitErr
	}

	return &BuiltPackage{
		Name:    info.Name,
		Version: info.Version,
		Dir:     outDir,
		Path:    filepath.Join(outDir, fmt.Sprintf("%s-%s.zip", info.Name, info.Version)),
	}, nil
}
