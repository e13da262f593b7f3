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
	"math"
	"sort"

	"github.com/stockparfait/stockparfait/db"
	"github.com/stockparfait/stockparfait/stats"

	"github.com/overfitlab/overfit/grid"
	"github.com/overfitlab/overfit/metrics"
)

// Trial is one backtested cell of the sweep: a strategy configuration, a
// model configuration and the out-of-sample return series their backtest
// realized under one cross-validation scheme.
type Trial struct {
	Strategy grid.Config
	Model    string // model spec name
	Params   grid.Config
	Returns  *stats.Timeseries
}

// Panel is the column-wise alignment of all trial return series of one
// cross-validation scheme on the union of their dates. Cells missing from a
// trial are NaN and stay NaN.
type Panel struct {
	dates   []db.Date
	columns [][]float64 // columns[c][t], parallel to dates
}

// NewPanel outer-aligns the trials' return series.
func NewPanel(trials []Trial) *Panel {
	seen := make(map[db.Date]bool)
	var dates []db.Date
	for _, tr := range trials {
		for _, d := range tr.Returns.Dates() {
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })
	pos := make(map[db.Date]int, len(dates))
	for i, d := range dates {
		pos[d] = i
	}

	columns := make([][]float64, len(trials))
	for c, tr := range trials {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		for i, d := range tr.Returns.Dates() {
			col[pos[d]] = tr.Returns.Data()[i]
		}
		columns[c] = col
	}
	return &Panel{dates: dates, columns: columns}
}

// Dates of the panel rows.
func (p *Panel) Dates() []db.Date { return p.dates }

// Columns of aligned returns, one per trial.
func (p *Panel) Columns() [][]float64 { return p.columns }

// NumChunks for the given chunk length: ceil(rows / length). The last chunk
// may be shorter.
func (p *Panel) NumChunks(length int) int {
	return (len(p.dates) + length - 1) / length
}

// Chunk returns the row-major submatrix of chunk i: one row per date, one
// column per trial.
func (p *Panel) Chunk(i, length int) [][]float64 {
	lo := i * length
	hi := lo + length
	if hi > len(p.dates) {
		hi = len(p.dates)
	}
	rows := make([][]float64, 0, hi-lo)
	for t := lo; t < hi; t++ {
		row := make([]float64, len(p.columns))
		for c := range p.columns {
			row[c] = p.columns[c][t]
		}
		rows = append(rows, row)
	}
	return rows
}

// Report holds the per-chunk overfitting metrics of one cross-validation
// scheme: the Probability of Backtest Overfitting and the deflated Sharpe
// statistic of the chunk's best trial.
type Report struct {
	PBO        []float64
	DeflatedSR []float64
}

func column(rows [][]float64, c int) []float64 {
	out := make([]float64, len(rows))
	for t, row := range rows {
		out[t] = row[c]
	}
	return out
}

// bestSharpe is the stable argmax over the finite Sharpe ratios: the first
// column attaining the maximum wins. Returns -1 when no column is finite.
func bestSharpe(sharpes []float64) int {
	best := -1
	for c, sr := range sharpes {
		if math.IsNaN(sr) || math.IsInf(sr, 0) {
			continue
		}
		if best < 0 || sr > sharpes[best] {
			best = c
		}
	}
	return best
}

// Aggregate scores one scheme's trials chunk by chunk. Degenerate chunks
// yield NaN entries rather than being dropped, so the i-th entry always
// corresponds to the i-th chunk. No trials yield an empty report.
func Aggregate(trials []Trial, riskFree float64, chunkLength, partitions int,
	deflator metrics.Deflator) Report {
	if len(trials) == 0 {
		return Report{}
	}
	panel := NewPanel(trials)
	n := panel.NumChunks(chunkLength)
	rep := Report{
		PBO:        make([]float64, n),
		DeflatedSR: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		rows := panel.Chunk(i, chunkLength)
		sharpes := make([]float64, len(trials))
		for c := range trials {
			sharpes[c] = metrics.SharpeRatio(column(rows, c))
		}
		benchmark := metrics.BenchmarkSharpeRatio(sharpes)

		best := bestSharpe(sharpes)
		if best < 0 {
			rep.DeflatedSR[i] = math.NaN()
		} else {
			col := column(rows, best)
			rep.DeflatedSR[i] = deflator.Deflate(sharpes[best], benchmark,
				len(rows), metrics.Skew(col), metrics.ExKurtosis(col))
		}
		rep.PBO[i], _ = metrics.PBO(rows, riskFree, partitions)
	}
	return rep
}
