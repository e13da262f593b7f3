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

package simulation

import (
	"context"
	"math"
	"sort"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/stockparfait/db"
	"github.com/stockparfait/stockparfait/stats"

	"github.com/overfitlab/overfit/bets"
	"github.com/overfitlab/overfit/cv"
	"github.com/overfitlab/overfit/features"
	"github.com/overfitlab/overfit/grid"
	"github.com/overfitlab/overfit/labeling"
	"github.com/overfitlab/overfit/metrics"
	"github.com/overfitlab/overfit/model"
)

// SchemeNames lists the cross-validation schemes of the sweep, in report
// order. Every result map carries exactly these keys.
var SchemeNames = []string{
	"Walk-Forward",
	"K-Fold",
	"Purged K-Fold",
	"Combinatorial Purged",
}

// ModelSpec is one named classifier kind and its realized hyperparameter
// configurations.
type ModelSpec struct {
	Name   string
	Kind   string
	Params []grid.Config
}

// Options tune the sweep. Zero values are not defaulted here; the config
// layer is responsible for sensible settings.
type Options struct {
	RiskFree    float64
	ChunkLength int

	Splits              int // Walk-Forward, K-Fold and Purged K-Fold
	CombinatorialSplits int // Combinatorial Purged groups
	TestGroups          int
	Embargo             float64

	FilterThreshold float64
	VolatilitySpan  int
	MaxHold         int
	ProfitTaking    float64
	StopLoss        float64
	MinReturn       float64

	CSCVPartitions int
	Workers        int
}

// Result of the sweep: per-scheme, per-chunk overfitting metrics, plus the
// number of trials each scheme accumulated. All maps contain all of
// SchemeNames as keys, even when a scheme collected no trials.
type Result struct {
	PBO        map[string][]float64
	DeflatedSR map[string][]float64
	Trials     map[string]int
}

// strategyData is the per-strategy training set: the intersection of the
// feature matrix, meta-labels and sample weights over the strategy's events.
type strategyData struct {
	params grid.Config
	x      [][]float64
	y      []int
	w      []float64
	starts []db.Date
	ends   []db.Date
	sides  []float64
}

// buildStrategyData derives events, labels and weights for one strategy
// configuration and intersects them with the feature matrix.
func buildStrategyData(ctx context.Context, prices *stats.Timeseries,
	feats *features.Matrix, vol *stats.Timeseries,
	starts, ends []db.Date, params grid.Config, opts Options) *strategyData {
	fast, ok := params["fast window"]
	if !ok {
		logging.Warningf(ctx, "skipping strategy %v: no 'fast window'", params)
		return nil
	}
	slow, ok := params["slow window"]
	if !ok {
		logging.Warningf(ctx, "skipping strategy %v: no 'slow window'", params)
		return nil
	}
	sides := labeling.StrategySide(prices, int(fast), int(slow))
	events := labeling.MetaEvents(prices, starts, ends, opts.ProfitTaking,
		opts.StopLoss, vol, opts.MinReturn, sides)
	labels := labeling.MetaLabel(events)
	weights := labeling.SampleWeights(prices, events)

	d := &strategyData{params: params}
	for i, e := range events {
		row, ok := feats.Row(e.Start)
		if !ok || math.IsNaN(weights[i]) {
			continue
		}
		d.x = append(d.x, row)
		d.y = append(d.y, labels[i])
		d.w = append(d.w, weights[i])
		d.starts = append(d.starts, e.Start)
		d.ends = append(d.ends, e.End)
		d.sides = append(d.sides, e.Side)
	}
	if len(d.x) == 0 {
		logging.Warningf(ctx,
			"skipping strategy %v: no events with features and labels", params)
		return nil
	}
	return d
}

// schemes instantiates the four cross-validation schemes for one strategy's
// event intervals.
func schemes(d *strategyData, opts Options) []*cv.Scheme {
	return []*cv.Scheme{
		cv.NewWalkForward(opts.Splits),
		cv.NewKFold(opts.Splits),
		cv.NewPurgedKFold(opts.Splits, d.starts, d.ends, opts.Embargo),
		cv.NewCombinatorialPurged(opts.CombinatorialSplits, opts.TestGroups,
			d.starts, d.ends, opts.Embargo),
	}
}

// cell is one unit of sweep work: a strategy data set and a model
// configuration, backtested under all schemes.
type cell struct {
	index int // for deterministic merge order
	data  *strategyData
	model ModelSpec
	param grid.Config
}

type cellResult struct {
	index  int
	trials map[string]Trial // scheme name -> trial; failed schemes absent
}

type cellIter struct {
	cells []cell
	i     int
}

var _ iterator.Iterator[cell] = &cellIter{}

func (it *cellIter) Next() (cell, bool) {
	if it.i >= len(it.cells) {
		return cell{}, false
	}
	c := it.cells[it.i]
	it.i++
	return c, true
}

// trialReturns converts averaged out-of-sample probabilities into a return
// series: probabilities size positions over the price index, and each date's
// log-return is earned by the previous date's position.
func trialReturns(prices *stats.Timeseries, d *strategyData,
	preds map[int][]float64) *stats.Timeseries {
	var starts, ends []db.Date
	var sides, probs []float64
	for i := range d.starts {
		ps, ok := preds[i]
		if !ok || len(ps) == 0 {
			continue
		}
		var sum float64
		for _, p := range ps {
			sum += p
		}
		p := sum / float64(len(ps))
		if math.IsNaN(p) {
			continue
		}
		starts = append(starts, d.starts[i])
		ends = append(ends, d.ends[i])
		sides = append(sides, d.sides[i])
		probs = append(probs, p)
	}
	positions := bets.Size(prices.Dates(), starts, ends, sides, probs)

	dates := prices.Dates()
	data := prices.Data()
	pos := positions.Data()
	rets := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		rets[i-1] = math.Log(data[i]/data[i-1]) * pos[i-1]
	}
	return stats.NewTimeseries(dates[1:], rets)
}

// runCell backtests one cell under every scheme. A failing scheme is logged
// and skipped; it contributes no trial.
func runCell(ctx context.Context, prices *stats.Timeseries, c cell, opts Options) cellResult {
	res := cellResult{index: c.index, trials: make(map[string]Trial)}
	factory, err := model.NewFactory(c.model.Kind, c.param)
	if err != nil {
		logging.Warningf(ctx, "skipping model %s %v: %s",
			c.model.Name, c.param, err.Error())
		return res
	}
	for _, scheme := range schemes(c.data, opts) {
		preds, _, err := scheme.BacktestPredictions(
			ctx, factory, c.data.x, c.data.y, c.data.w, 1)
		if err != nil {
			logging.Warningf(ctx, "%s: skipping trial %v / %s %v: %s",
				scheme.Name(), c.data.params, c.model.Name, c.param, err.Error())
			continue
		}
		res.trials[scheme.Name()] = Trial{
			Strategy: c.data.params,
			Model:    c.model.Name,
			Params:   c.param,
			Returns:  trialReturns(prices, c.data, preds),
		}
	}
	return res
}

// Run sweeps strategies x models x schemes over the price series and scores
// each scheme's trial panel. Cells run in parallel; the result is
// deterministic for a fixed input.
func Run(ctx context.Context, prices *stats.Timeseries,
	strategies []grid.Config, models []ModelSpec, opts Options) (*Result, error) {
	if len(prices.Data()) < 2 {
		return nil, errors.Reason("price series has %d points, need at least 2",
			len(prices.Data()))
	}
	feats := features.Build(prices)
	vol := labeling.Volatility(prices, opts.VolatilitySpan)
	threshold := vol.MultC(opts.FilterThreshold)
	eventDates := labeling.CUSUMEvents(prices.Log(), threshold)
	starts, ends := labeling.VerticalBarriers(prices, eventDates, opts.MaxHold)
	logging.Infof(ctx, "%d events over %d prices, %d feature rows",
		len(starts), len(prices.Data()), len(feats.Rows()))

	var cells []cell
	for _, params := range strategies {
		d := buildStrategyData(ctx, prices, feats, vol, starts, ends, params, opts)
		if d == nil {
			continue
		}
		for _, spec := range models {
			for _, mp := range spec.Params {
				cells = append(cells, cell{
					index: len(cells),
					data:  d,
					model: spec,
					param: mp,
				})
			}
		}
	}
	logging.Infof(ctx, "sweeping %d cells with %d workers", len(cells), opts.Workers)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	f := func(c cell) cellResult { return runCell(ctx, prices, c, opts) }
	var it iterator.Iterator[cell] = &cellIter{cells: cells}
	pm := iterator.ParallelMap(ctx, workers, it, f)
	defer pm.Close()
	results := iterator.ToSlice[cellResult](pm)
	sort.Slice(results, func(a, b int) bool {
		return results[a].index < results[b].index
	})

	byScheme := make(map[string][]Trial)
	for _, r := range results {
		for _, name := range SchemeNames {
			if tr, ok := r.trials[name]; ok {
				byScheme[name] = append(byScheme[name], tr)
			}
		}
	}

	res := &Result{
		PBO:        make(map[string][]float64),
		DeflatedSR: make(map[string][]float64),
		Trials:     make(map[string]int),
	}
	deflator := &metrics.PSRDeflator{TestStatistic: true}
	for _, name := range SchemeNames {
		trials := byScheme[name]
		rep := Aggregate(trials, opts.RiskFree, opts.ChunkLength,
			opts.CSCVPartitions, deflator)
		res.PBO[name] = rep.PBO
		res.DeflatedSR[name] = rep.DeflatedSR
		res.Trials[name] = len(trials)
	}
	return res, nil
}
