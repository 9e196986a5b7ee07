// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package config loads sweep settings from TOML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/petenewcomb/sweep-go"
)

// Config holds all settings of a sweep run.
type Config struct {
	Sweep       SweepConfig       `toml:"sweep"`
	Output      OutputConfig      `toml:"output"`
	Program     ProgramConfig     `toml:"program"`
	Execution   ExecutionConfig   `toml:"execution"`
	Aggregation AggregationConfig `toml:"aggregation"`
	Present     PresentConfig     `toml:"present"`
}

// SweepConfig describes the parameter grid.
type SweepConfig struct {
	SystemSize  int     `toml:"system_size"`
	Samples     int     `toml:"samples"`
	EpsilonMin  float64 `toml:"epsilon_min"`
	EpsilonMax  float64 `toml:"epsilon_max"`
	EpsilonStep float64 `toml:"epsilon_step"`
	BaseSeed    uint64  `toml:"base_seed"`
}

type OutputConfig struct {
	DataDir string `toml:"data_dir"`
}

// ProgramConfig locates the simulation program and how to build it.
type ProgramConfig struct {
	Path     string   `toml:"path"`
	Build    []string `toml:"build"`
	BuildDir string   `toml:"build_dir"`
}

type ExecutionConfig struct {
	// Workers is the number of simulations run at once; 0 means one per CPU.
	Workers int `toml:"workers"`
}

type AggregationConfig struct {
	// OnError is "abort" or "skip".
	OnError string `toml:"on_error"`
}

type PresentConfig struct {
	// Plot is the path of the chart to write; empty prints a table instead.
	Plot  string `toml:"plot"`
	Title string `toml:"title"`
}

// Default returns the settings of the standard sweep: 1024 agents, 100
// samples per point and epsilon from 0 to 0.5 in steps of 0.01.
func Default() *Config {
	return &Config{
		Sweep: SweepConfig{
			SystemSize:  1024,
			Samples:     100,
			EpsilonMin:  0,
			EpsilonMax:  0.5,
			EpsilonStep: 0.01,
			BaseSeed:    0,
		},
		Output: OutputConfig{
			DataDir: "data",
		},
		Program: ProgramConfig{
			Path:  "target/release/hk",
			Build: []string{"cargo", "build", "--release"},
		},
		Aggregation: AggregationConfig{
			OnError: sweep.AbortOnError.String(),
		},
		Present: PresentConfig{
			Title: "Hegselmann-Krause",
		},
	}
}

// Load reads configuration from a TOML file on top of Default. A missing
// file yields the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that cannot be checked by the grid itself.
func (c *Config) Validate() error {
	if _, err := c.Grid().Points(); err != nil {
		return err
	}
	if _, err := c.ErrorPolicy(); err != nil {
		return err
	}
	switch {
	case c.Output.DataDir == "":
		return errors.New("output.data_dir must be set")
	case c.Program.Path == "":
		return errors.New("program.path must be set")
	case c.Execution.Workers < 0:
		return fmt.Errorf("execution.workers %d must not be negative", c.Execution.Workers)
	}
	return nil
}

// Grid returns the sweep grid described by c.
func (c *Config) Grid() sweep.Grid {
	return sweep.Grid{
		SystemSize:  c.Sweep.SystemSize,
		SampleCount: c.Sweep.Samples,
		EpsilonMin:  c.Sweep.EpsilonMin,
		EpsilonMax:  c.Sweep.EpsilonMax,
		EpsilonStep: c.Sweep.EpsilonStep,
		BaseSeed:    c.Sweep.BaseSeed,
		Dir:         c.Output.DataDir,
	}
}

func (c *Config) ErrorPolicy() (sweep.ErrorPolicy, error) {
	return sweep.ParseErrorPolicy(c.Aggregation.OnError)
}

// Command returns the runner for the configured simulation program.
func (c *Config) Command() *sweep.Command {
	return &sweep.Command{
		Path:     c.Program.Path,
		Build:    c.Program.Build,
		BuildDir: c.Program.BuildDir,
	}
}

// Encode writes c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
