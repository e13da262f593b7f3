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

// Package simulation implements the backtest overfitting experiment: a sweep
// of strategy and model configurations backtested under four cross-validation
// schemes, scored chunk by chunk with PBO and the deflated Sharpe statistic.
package simulation

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/stockparfait/table"

	"github.com/overfitlab/overfit"
	"github.com/overfitlab/overfit/config"
	"github.com/overfitlab/overfit/grid"
)

// Simulation is the backtest overfitting experiment.
type Simulation struct {
	config *config.Simulation
}

var _ overfit.Experiment = &Simulation{}

// strategyGrid converts the config sweep into realized strategy
// configurations. A nil or empty grid yields no configurations.
func strategyGrid(cfg *config.StrategyGrid) ([]grid.Config, error) {
	if cfg == nil || len(cfg.Axes) == 0 {
		return nil, nil
	}
	g := grid.Grid{Values: make(map[string][]float64)}
	for _, a := range cfg.Axes {
		g.Values[a.Name] = a.Values
	}
	for _, p := range cfg.Paired {
		g.Paired = append(g.Paired, grid.Group(p.Names))
	}
	configs, err := g.Enumerate()
	if err != nil {
		return nil, errors.Annotate(err, "invalid strategy grid")
	}
	return configs, nil
}

// modelSpecs converts the config model sweeps into realized specs.
func modelSpecs(cfgs []config.ModelGrid) ([]ModelSpec, error) {
	var specs []ModelSpec
	for _, m := range cfgs {
		g := grid.Grid{Values: make(map[string][]float64)}
		for _, a := range m.Axes {
			g.Values[a.Name] = a.Values
		}
		params, err := g.Enumerate()
		if err != nil {
			return nil, errors.Annotate(err, "invalid grid for model '%s'", m.Name)
		}
		specs = append(specs, ModelSpec{Name: m.Name, Kind: m.Kind, Params: params})
	}
	return specs, nil
}

func mean(data []float64) float64 {
	var sum float64
	var n int
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

type csvRow struct {
	Scheme     string
	Chunk      int
	PBO        float64
	DeflatedSR float64
}

func csvRowHeader() []string {
	return []string{"Scheme", "Chunk", "PBO", "Deflated SR"}
}

func (r csvRow) CSV() []string {
	return []string{
		r.Scheme,
		fmt.Sprintf("%d", r.Chunk),
		fmt.Sprintf("%f", r.PBO),
		fmt.Sprintf("%f", r.DeflatedSR),
	}
}

func (s *Simulation) writeTable(res *Result) error {
	if s.config.File == "" {
		return nil
	}
	t := table.NewTable(csvRowHeader()...)
	for _, name := range SchemeNames {
		for i := range res.PBO[name] {
			t.AddRow(csvRow{
				Scheme:     name,
				Chunk:      i,
				PBO:        res.PBO[name][i],
				DeflatedSR: res.DeflatedSR[name][i],
			})
		}
	}
	if s.config.File == "-" {
		if err := t.WriteText(os.Stdout, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to write table to stdout")
		}
		return nil
	}
	f, err := os.OpenFile(s.config.File, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Annotate(err, "failed to open output CSV file '%s'",
			s.config.File)
	}
	defer f.Close()
	if err = t.WriteCSV(f, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to write CSV file '%s'", s.config.File)
	}
	return nil
}

// Run implements overfit.Experiment.
func (s *Simulation) Run(ctx context.Context, cfg config.ExperimentConfig) error {
	var ok bool
	if s.config, ok = cfg.(*config.Simulation); !ok {
		return errors.Reason("unexpected config type: %T", cfg)
	}
	prices, err := overfit.Prices(ctx, s.config.Prices)
	if err != nil {
		return errors.Annotate(err, "failed to generate prices")
	}
	strategies, err := strategyGrid(s.config.Strategy)
	if err != nil {
		return errors.Annotate(err, "failed to enumerate strategies")
	}
	models, err := modelSpecs(s.config.Models)
	if err != nil {
		return errors.Annotate(err, "failed to enumerate models")
	}
	res, err := Run(ctx, prices, strategies, models, Options{
		RiskFree:            s.config.RiskFree,
		ChunkLength:         s.config.ChunkLength,
		Splits:              s.config.Splits,
		CombinatorialSplits: s.config.CombinatorialSplits,
		TestGroups:          s.config.TestGroups,
		Embargo:             s.config.Embargo,
		FilterThreshold:     s.config.FilterThreshold,
		VolatilitySpan:      s.config.VolatilitySpan,
		MaxHold:             s.config.MaxHold,
		ProfitTaking:        s.config.ProfitTaking,
		StopLoss:            s.config.StopLoss,
		MinReturn:           s.config.MinReturn,
		CSCVPartitions:      s.config.CSCVPartitions,
		Workers:             s.config.Workers,
	})
	if err != nil {
		return errors.Annotate(err, "failed to run the sweep")
	}
	for _, name := range SchemeNames {
		if err := overfit.AddValue(ctx, s.config.ID, name+" trials",
			fmt.Sprintf("%d", res.Trials[name])); err != nil {
			return errors.Annotate(err, "cannot add trials value")
		}
		if err := overfit.AddValue(ctx, s.config.ID, name+" mean PBO",
			fmt.Sprintf("%.4f", mean(res.PBO[name]))); err != nil {
			return errors.Annotate(err, "cannot add PBO value")
		}
		if err := overfit.AddValue(ctx, s.config.ID, name+" mean deflated SR",
			fmt.Sprintf("%.4f", mean(res.DeflatedSR[name]))); err != nil {
			return errors.Annotate(err, "cannot add deflated SR value")
		}
	}
	return errors.Annotate(s.writeTable(res), "failed to write results table")
}
