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

// Package config implements configuration schema for all the experiments.
package config

import (
	"runtime"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/stockparfait/message"
)

// ExperimentConfig is a custom configuration for an experiment.
type ExperimentConfig interface {
	message.Message
	Name() string
}

// TestExperimentConfig is only used in tests.
type TestExperimentConfig struct {
	ID     string  `json:"id"`
	Grade  float64 `json:"grade" default:"2.0"`
	Passed bool    `json:"passed"`
}

var _ ExperimentConfig = &TestExperimentConfig{}

// Name implements ExperimentConfig.
func (t *TestExperimentConfig) Name() string { return "test" }

// InitMessage implements message.Message.
func (t *TestExperimentConfig) InitMessage(js any) error {
	return errors.Annotate(message.Init(t, js), "failed to parse test config")
}

// AnalyticalDistribution configures the type and parameters of a distibution.
type AnalyticalDistribution struct {
	Name  string  `json:"name" required:"true" choices:"t,normal"`
	Mean  float64 `json:"mean" default:"0.0"`
	MAD   float64 `json:"MAD" default:"1.0"`
	Alpha float64 `json:"alpha" default:"3.0"` // T dist. parameter
}

var _ message.Message = &AnalyticalDistribution{}

func (d *AnalyticalDistribution) InitMessage(js any) error {
	if err := message.Init(d, js); err != nil {
		return errors.Annotate(err, "failed to init AnalyticalDistribution")
	}
	if d.Name == "t" && d.Alpha <= 1.0 {
		return errors.Reason("T-distribution requires alpha=%f > 1.0", d.Alpha)
	}
	if d.MAD <= 0.0 {
		return errors.Reason("MAD=%f must be positive", d.MAD)
	}
	return nil
}

// PriceSource configures a synthetic daily price series generated as a
// geometric random walk with i.i.d. log-profit increments.
type PriceSource struct {
	Source     *AnalyticalDistribution `json:"source" required:"true"`
	Days       int                     `json:"days" default:"1500"`
	StartPrice float64                 `json:"start price" default:"100.0"`
	StartDate  string                  `json:"start date" default:"1998-01-02"`
	Seed       int                     `json:"seed"` // deterministic series when > 0
}

var _ message.Message = &PriceSource{}

func (p *PriceSource) InitMessage(js any) error {
	if err := message.Init(p, js); err != nil {
		return errors.Annotate(err, "failed to parse price source")
	}
	if p.Days < 2 {
		return errors.Reason("days=%d must be >= 2", p.Days)
	}
	if p.StartPrice <= 0 {
		return errors.Reason("start price=%f must be positive", p.StartPrice)
	}
	if _, err := time.Parse("2006-01-02", p.StartDate); err != nil {
		return errors.Annotate(err, "invalid start date '%s'", p.StartDate)
	}
	if p.Seed < 0 {
		return errors.Reason("seed=%d must be non-negative", p.Seed)
	}
	return nil
}

// GridAxis is one named hyperparameter and the values it sweeps over.
type GridAxis struct {
	Name   string    `json:"name" required:"true"`
	Values []float64 `json:"values" required:"true"`
}

var _ message.Message = &GridAxis{}

func (a *GridAxis) InitMessage(js any) error {
	if err := message.Init(a, js); err != nil {
		return errors.Annotate(err, "failed to parse grid axis")
	}
	if len(a.Values) == 0 {
		return errors.Reason("axis '%s' must have at least one value", a.Name)
	}
	return nil
}

// PairedGroup names axes that advance in lockstep rather than by full cross
// product. All named axes must have the same number of values.
type PairedGroup struct {
	Names []string `json:"names" required:"true"`
}

var _ message.Message = &PairedGroup{}

func (g *PairedGroup) InitMessage(js any) error {
	if err := message.Init(g, js); err != nil {
		return errors.Annotate(err, "failed to parse paired group")
	}
	if len(g.Names) < 2 {
		return errors.Reason("a paired group needs at least 2 axes, got %d",
			len(g.Names))
	}
	return nil
}

// StrategyGrid configures the strategy hyperparameter sweep. An empty grid is
// valid and yields no trials.
type StrategyGrid struct {
	Axes   []GridAxis    `json:"axes"`
	Paired []PairedGroup `json:"paired"`
}

var _ message.Message = &StrategyGrid{}

func (s *StrategyGrid) InitMessage(js any) error {
	return errors.Annotate(message.Init(s, js), "failed to parse strategy grid")
}

// ModelGrid configures one classifier kind and its hyperparameter sweep.
type ModelGrid struct {
	Name string     `json:"name" required:"true"`
	Kind string     `json:"kind" required:"true" choices:"logistic,tree"`
	Axes []GridAxis `json:"axes"`
}

var _ message.Message = &ModelGrid{}

func (m *ModelGrid) InitMessage(js any) error {
	return errors.Annotate(message.Init(m, js), "failed to parse model grid")
}

// Simulation is the backtest overfitting experiment configuration.
type Simulation struct {
	ID       string        `json:"id"`
	Prices   *PriceSource  `json:"prices" required:"true"`
	Strategy *StrategyGrid `json:"strategy"`
	Models   []ModelGrid   `json:"models"`

	RiskFree    float64 `json:"risk free" default:"0.0"`
	ChunkLength int     `json:"chunk length" default:"100"`

	// Cross-validation parameters.
	Splits              int     `json:"splits" default:"4"`
	CombinatorialSplits int     `json:"combinatorial splits" default:"8"`
	TestGroups          int     `json:"test groups" default:"2"`
	Embargo             float64 `json:"embargo" default:"0.02"`

	// Event detection and labeling parameters.
	FilterThreshold float64 `json:"filter threshold" default:"1.8"`
	VolatilitySpan  int     `json:"volatility span" default:"100"`
	MaxHold         int     `json:"max hold" default:"20"`
	ProfitTaking    float64 `json:"profit taking" default:"0.5"`
	StopLoss        float64 `json:"stop loss" default:"1.5"`
	MinReturn       float64 `json:"min return" default:"0.0"`

	CSCVPartitions int    `json:"cscv partitions" default:"8"`
	Workers        int    `json:"workers"` // default: 2*NumCPU
	File           string `json:"file"`    // optional CSV output of the results table
}

var _ ExperimentConfig = &Simulation{}

// Name implements ExperimentConfig.
func (s *Simulation) Name() string { return "backtest overfitting" }

// InitMessage implements message.Message.
func (s *Simulation) InitMessage(js any) error {
	if err := message.Init(s, js); err != nil {
		return errors.Annotate(err, "failed to parse simulation config")
	}
	if s.ChunkLength < 2 {
		return errors.Reason("chunk length=%d must be >= 2", s.ChunkLength)
	}
	if s.Splits < 2 {
		return errors.Reason("splits=%d must be >= 2", s.Splits)
	}
	if s.TestGroups < 1 || s.TestGroups >= s.CombinatorialSplits {
		return errors.Reason("test groups=%d must be in [1, %d)",
			s.TestGroups, s.CombinatorialSplits)
	}
	if s.Embargo < 0 || s.Embargo >= 1 {
		return errors.Reason("embargo=%f must be in [0, 1)", s.Embargo)
	}
	if s.CSCVPartitions < 2 || s.CSCVPartitions%2 != 0 {
		return errors.Reason("cscv partitions=%d must be a positive even number",
			s.CSCVPartitions)
	}
	if s.MaxHold < 1 {
		return errors.Reason("max hold=%d must be >= 1", s.MaxHold)
	}
	if s.VolatilitySpan < 1 {
		return errors.Reason("volatility span=%d must be >= 1", s.VolatilitySpan)
	}
	if s.Workers <= 0 {
		s.Workers = 2 * runtime.NumCPU()
	}
	return nil
}

// ExpMap represents a Message which reads a single-element map {name:
// config} and populates the corresponding experiment config.
type ExpMap struct {
	Config ExperimentConfig `json:"-"` // populated directly in Init
}

var _ message.Message = &ExpMap{}

func (e *ExpMap) InitMessage(js any) error {
	m, ok := js.(map[string]any)
	if !ok || len(m) != 1 {
		return errors.Reason("experiment must be a single-element map: %v", js)
	}
	for name, jsConfig := range m {
		switch name { // add specific experiment implementations here
		case "test":
			e.Config = &TestExperimentConfig{}
		case "backtest overfitting":
			e.Config = &Simulation{}
		default:
			return errors.Reason("unknown experiment %s", name)
		}
		return errors.Annotate(e.Config.InitMessage(jsConfig),
			"failed to parse experiment config")
	}
	return nil
}

// Config is the top-level configuration of the app.
type Config struct {
	Experiments []*ExpMap `json:"experiments"`
}

var _ message.Message = &Config{}

func (c *Config) InitMessage(js any) error {
	return errors.Annotate(message.Init(c, js), "failed to parse top-level config")
}

func Load(configPath string) (*Config, error) {
	var c Config
	if err := message.FromFile(&c, configPath); err != nil {
		return nil, errors.Annotate(err, "cannot read config '%s'", configPath)
	}
	return &c, nil
}
