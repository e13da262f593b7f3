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

// Package features builds the per-date technical indicator matrix consumed
// by the classifiers: a fractionally differentiated log-price, volatility,
// several momentum oscillators and their discretized crossover signals.
package features

import (
	"math"

	"github.com/stockparfait/stockparfait/db"
	"github.com/stockparfait/stockparfait/stats"

	"github.com/overfitlab/overfit/labeling"
)

// Matrix is a feature matrix: one fixed-width row of indicator values per
// date. Rows with any undefined indicator (warm-up periods) are dropped.
type Matrix struct {
	dates []db.Date
	names []string
	rows  [][]float64
}

// Dates of the rows, strictly increasing.
func (m *Matrix) Dates() []db.Date { return m.dates }

// Names of the columns, in row order.
func (m *Matrix) Names() []string { return m.names }

// Rows of indicator values, parallel to Dates.
func (m *Matrix) Rows() [][]float64 { return m.rows }

// Row returns the feature row for the given date, if present.
func (m *Matrix) Row(d db.Date) ([]float64, bool) {
	lo, hi := 0, len(m.dates)
	for lo < hi {
		mid := (lo + hi) / 2
		if m.dates[mid].Before(d) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(m.dates) && m.dates[lo] == d {
		return m.rows[lo], true
	}
	return nil, false
}

// fracDiffWeights generates the fixed-window fractional differentiation
// weights for order d, truncated where they drop below cutoff.
func fracDiffWeights(d, cutoff float64) []float64 {
	w := []float64{1}
	for k := 1; ; k++ {
		next := -w[k-1] * (d - float64(k) + 1) / float64(k)
		if math.Abs(next) < cutoff {
			break
		}
		w = append(w, next)
	}
	return w
}

// fracDiff applies fixed-window fractional differentiation of order d to the
// series. The first len(weights)-1 values are NaN.
func fracDiff(data []float64, d, cutoff float64) []float64 {
	w := fracDiffWeights(d, cutoff)
	out := make([]float64, len(data))
	for t := range out {
		if t < len(w)-1 {
			out[t] = math.NaN()
			continue
		}
		var sum float64
		for k, wk := range w {
			sum += wk * data[t-k]
		}
		out[t] = sum
	}
	return out
}

// rollingMean is a simple moving average; NaN until the window fills.
func rollingMean(data []float64, window int) []float64 {
	out := make([]float64, len(data))
	var sum float64
	for i, x := range data {
		sum += x
		if i >= window {
			sum -= data[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// rollingStd is the sample standard deviation over a moving window; NaN
// until the window fills.
func rollingStd(data []float64, window int) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		var mean float64
		for j := i - window + 1; j <= i; j++ {
			mean += data[j]
		}
		mean /= float64(window)
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			ss += (data[j] - mean) * (data[j] - mean)
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// rsi is Wilder's relative strength index; NaN until the window fills.
func rsi(data []float64, window int) []float64 {
	out := make([]float64, len(data))
	var avgGain, avgLoss float64
	for i := range data {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		change := data[i] - data[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		if i <= window {
			avgGain += gain / float64(window)
			avgLoss += loss / float64(window)
		} else {
			avgGain = (avgGain*float64(window-1) + gain) / float64(window)
			avgLoss = (avgLoss*float64(window-1) + loss) / float64(window)
		}
		if i < window {
			out[i] = math.NaN()
			continue
		}
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+avgGain/avgLoss)
	}
	return out
}

// roc is the rate of change in percent over the given period.
func roc(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		out[i] = (data[i] - data[i-period]) / data[i-period] * 100
	}
	return out
}

// crossSign is +1 on or above the zero line, -1 below.
func crossSign(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v >= 0:
		return 1
	}
	return -1
}

func sign3(v, hi, lo float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v > hi:
		return 1
	case v < lo:
		return -1
	}
	return 0
}

// Column names of Build, in order.
var columnNames = []string{
	"FracDiff",
	"Volatility",
	"Z-Score",
	"Log MACD Histogram",
	"RSI",
	"ROC",
	"Log DPO",
	"MACD Position",
	"RSI Signal",
	"ROC Momentum",
}

// Build computes the feature matrix from a price series. Dates where any
// indicator is still warming up are dropped, so the matrix typically starts
// later than the price series.
func Build(prices *stats.Timeseries) *Matrix {
	dates := prices.Dates()
	data := prices.Data()
	n := len(data)

	logP := make([]float64, n)
	for i, p := range data {
		logP[i] = math.Log(p)
	}

	fd := fracDiff(logP, 0.4, 1e-4)

	// Volatility is indexed from the second date; shift into place.
	vol := make([]float64, n)
	vol[0] = math.NaN()
	copy(vol[1:], labeling.Volatility(prices, 100).Data())

	mean20 := rollingMean(data, 20)
	std20 := rollingStd(data, 20)
	zScore := make([]float64, n)
	for i := range zScore {
		zScore[i] = (data[i] - mean20[i]) / std20[i]
	}

	ewm12 := labeling.EWMA(data, 12)
	ewm26 := labeling.EWMA(data, 26)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = math.Log(ewm12[i] / ewm26[i])
	}
	signal := labeling.EWMA(macd, 9)
	macdHist := make([]float64, n)
	for i := range macdHist {
		macdHist[i] = macd[i] - signal[i]
	}

	rsi14 := rsi(data, 14)
	roc12 := roc(data, 12)

	mean11 := rollingMean(data, 11)
	logDPO := make([]float64, n)
	for i := range logDPO {
		logDPO[i] = math.Log(mean11[i] / mean20[i])
	}

	m := &Matrix{names: columnNames}
	for i := 0; i < n; i++ {
		row := []float64{
			fd[i],
			vol[i],
			zScore[i],
			macdHist[i],
			rsi14[i],
			roc12[i],
			logDPO[i],
			crossSign(macdHist[i]),
			sign3(rsi14[i], 70, 30),
			sign3(roc12[i], 0, 0),
		}
		ok := true
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		m.dates = append(m.dates, dates[i])
		m.rows = append(m.rows, row)
	}
	return m
}
