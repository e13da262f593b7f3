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

// Package overfit is a research harness for measuring backtest overfitting.
//
// A grid of strategy and model configurations is evaluated under four
// cross-validation schemes (walk-forward, k-fold, purged k-fold and
// combinatorial purged), and the resulting panels of out-of-sample returns
// are scored chunk by chunk with the Probability of Backtest Overfitting and
// the deflated Sharpe ratio test statistic. The point is not to find a good
// strategy but to measure how much each scheme overstates one.
package overfit

import (
	"context"
	"fmt"

	"github.com/stockparfait/errors"

	"github.com/overfitlab/overfit/config"
)

type contextKey int

const (
	valuesContextKey contextKey = iota
)

type Values = map[string]string

// UseValues injects the values map into the context. It is intended to be
// used by Experiments to add key:value pairs to be printed on the terminal at
// the end of the run.
func UseValues(ctx context.Context, v Values) context.Context {
	return context.WithValue(ctx, valuesContextKey, v)
}

// GetValues previously injected by UseValues, or nil.
func GetValues(ctx context.Context) Values {
	v, ok := ctx.Value(valuesContextKey).(Values)
	if !ok {
		return nil
	}
	return v
}

// Prefix the string s with the experiment ID, when non-empty.
func Prefix(id, s string) string {
	if id == "" {
		return s
	}
	return id + " " + s
}

// AddValue adds (or overwrites) a key:value pair in the context Values,
// prefixing the key with the experiment ID. These pairs are intended to be
// printed on the terminal at the end of the run of all the experiments.
func AddValue(ctx context.Context, id, key, value string) error {
	v := GetValues(ctx)
	if v == nil {
		return errors.Reason("no values map in context")
	}
	v[Prefix(id, key)] = value
	return nil
}

// Experiment is a generic experiment interface. Each implementation is
// expected to add key:value pairs using AddValue or save data in files.
type Experiment interface {
	Run(ctx context.Context, cfg config.ExperimentConfig) error
}

// TestExperiment is a fake experiment used in tests. Define actual
// experiments in their own subpackages.
type TestExperiment struct {
	cfg *config.TestExperimentConfig
}

var _ Experiment = &TestExperiment{}

// Run implements Experiment.
func (t *TestExperiment) Run(ctx context.Context, cfg config.ExperimentConfig) error {
	var ok bool
	t.cfg, ok = cfg.(*config.TestExperimentConfig)
	if !ok {
		return errors.Reason("unexpected config type: %T", cfg)
	}
	if err := AddValue(ctx, t.cfg.ID, "grade",
		fmt.Sprintf("%g", t.cfg.Grade)); err != nil {
		return errors.Annotate(err, "cannot add grade value")
	}
	passed := "failed"
	if t.cfg.Passed {
		passed = "passed"
	}
	if err := AddValue(ctx, t.cfg.ID, "test", passed); err != nil {
		return errors.Annotate(err, "cannot add pass/fail value")
	}
	return nil
}
