// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// A Runner executes the simulation for one job, writing its output file.
type Runner interface {
	// Ensure is called once before the first job runs and reports whether
	// the simulation can be executed at all.
	Ensure(ctx context.Context) error
	// Run executes one job. It may be called concurrently for different jobs.
	Run(ctx context.Context, job JobDescriptor) error
}

// Command runs the simulation as an external program, passing it
// JobDescriptor.Args.
type Command struct {
	// Path of the program.
	Path string
	// Build, when set, is run once by Ensure if Path does not exist.
	Build []string
	// BuildDir is the working directory of the build command.
	BuildDir string

	once      sync.Once
	ensureErr error
}

var _ Runner = (*Command)(nil)

// Ensure checks that the program exists, building it first if necessary and
// possible. The check runs only once; later calls return the same result.
func (c *Command) Ensure(ctx context.Context) error {
	c.once.Do(func() {
		c.ensureErr = c.ensure(ctx)
	})
	return c.ensureErr
}

func (c *Command) ensure(ctx context.Context) error {
	if _, err := exec.LookPath(c.Path); err == nil {
		return nil
	}
	if len(c.Build) == 0 {
		return fmt.Errorf("%w: %s not found and no build command configured", ErrProgramUnavailable, c.Path)
	}
	build := exec.CommandContext(ctx, c.Build[0], c.Build[1:]...)
	build.Dir = c.BuildDir
	if out, err := build.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %q failed: %w\n%s", ErrProgramUnavailable, strings.Join(c.Build, " "), err, out)
	}
	if _, err := exec.LookPath(c.Path); err != nil {
		return fmt.Errorf("%w: %s still missing after build: %w", ErrProgramUnavailable, c.Path, err)
	}
	return nil
}

// Run executes the program for job and waits for it to exit. A non-zero exit
// is returned as an error that includes the last line the program wrote to
// stderr.
func (c *Command) Run(ctx context.Context, job JobDescriptor) error {
	cmd := exec.CommandContext(ctx, c.Path, job.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := lastLine(stderr.String())
		if msg == "" {
			return fmt.Errorf("running %s: %w", c.Path, err)
		}
		return fmt.Errorf("running %s: %w: %s", c.Path, err, msg)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
