// Copyright 2026 Overfit Lab

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/overfitlab/overfit"
	"github.com/overfitlab/overfit/config"
	"github.com/overfitlab/overfit/simulation"
)

type Flags struct {
	Config   string // required
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("overfit", flag.ExitOnError)
	fs.StringVar(&flags.Config, "conf", "", "configuration file (required)")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Config == "" {
		return nil, errors.Reason("missing required -conf")
	}
	return &flags, err
}

// experiment instantiates the implementation for an experiment config.
func experiment(cfg config.ExperimentConfig) (overfit.Experiment, error) {
	switch cfg.Name() {
	case "test":
		return &overfit.TestExperiment{}, nil
	case "backtest overfitting":
		return &simulation.Simulation{}, nil
	}
	return nil, errors.Reason("unsupported experiment: '%s'", cfg.Name())
}

func run(ctx context.Context, flags *Flags) error {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to load config '%s'", flags.Config)
	}
	for i, em := range cfg.Experiments {
		e, err := experiment(em.Config)
		if err != nil {
			return errors.Annotate(err, "experiment[%d]", i)
		}
		logging.Infof(ctx, "running experiment '%s'", em.Config.Name())
		if err := e.Run(ctx, em.Config); err != nil {
			return errors.Annotate(err, "failed to run experiment '%s'",
				em.Config.Name())
		}
	}

	values := overfit.GetValues(ctx)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %s\n", k, values[k])
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags:\n%s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))
	ctx = overfit.UseValues(ctx, make(overfit.Values))

	if err := run(ctx, flags); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
