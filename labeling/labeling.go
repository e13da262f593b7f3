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

// Package labeling derives trading events and their labels from a price
// series: CUSUM event filtering, vertical barriers, triple-barrier
// meta-events with a strategy side, meta-labels and sample weights.
package labeling

import (
	"math"

	"github.com/stockparfait/stockparfait/db"
	"github.com/stockparfait/stockparfait/stats"
)

// EWMA is an exponentially weighted moving average with the given span,
// where more recent values carry progressively more weight as the window
// warms up.
func EWMA(data []float64, span int) []float64 {
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(data))
	var num, den float64
	for i, x := range data {
		num = x + (1-alpha)*num
		den = 1 + (1-alpha)*den
		out[i] = num / den
	}
	return out
}

// EWMStd is the bias-corrected exponentially weighted standard deviation
// with the given span. The first value is NaN: a single observation has no
// spread.
func EWMStd(data []float64, span int) []float64 {
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(data))
	var sumW, sumW2, mean, s float64
	for i, x := range data {
		newSumW := (1-alpha)*sumW + 1
		sumW2 = (1-alpha)*(1-alpha)*sumW2 + 1
		newMean := ((1-alpha)*sumW*mean + x) / newSumW
		s = (1-alpha)*s + (1-alpha)*sumW*(x-mean)*(x-newMean)
		sumW, mean = newSumW, newMean

		denom := sumW - sumW2/sumW
		if denom <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Sqrt(s / denom)
	}
	return out
}

func logReturns(prices *stats.Timeseries) ([]db.Date, []float64) {
	dates := prices.Dates()
	data := prices.Data()
	if len(data) < 2 {
		return nil, nil
	}
	rets := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		rets[i-1] = math.Log(data[i] / data[i-1])
	}
	return dates[1:], rets
}

// Volatility estimates the per-date return volatility as the exponentially
// weighted standard deviation of log-returns with the given span. The result
// is indexed from the second price date.
func Volatility(prices *stats.Timeseries, span int) *stats.Timeseries {
	dates, rets := logReturns(prices)
	return stats.NewTimeseries(dates, EWMStd(rets, span))
}

// CUSUMEvents runs a symmetric CUSUM filter over the log-price series with a
// per-date threshold, and returns the dates where either cumulative sum
// breaches its threshold. Dates missing from the threshold series are
// accumulated but cannot fire.
func CUSUMEvents(logPrices, threshold *stats.Timeseries) []db.Date {
	th := make(map[db.Date]float64, len(threshold.Dates()))
	for i, d := range threshold.Dates() {
		th[d] = threshold.Data()[i]
	}
	dates := logPrices.Dates()
	data := logPrices.Data()
	var events []db.Date
	var sPos, sNeg float64
	for i := 1; i < len(data); i++ {
		diff := data[i] - data[i-1]
		sPos = math.Max(0, sPos+diff)
		sNeg = math.Min(0, sNeg+diff)
		h, ok := th[dates[i]]
		if !ok || math.IsNaN(h) {
			continue
		}
		if sNeg < -h {
			sNeg = 0
			events = append(events, dates[i])
		} else if sPos > h {
			sPos = 0
			events = append(events, dates[i])
		}
	}
	return events
}

// dateIndex returns the position of d in dates, or -1.
func dateIndex(dates []db.Date, d db.Date) int {
	lo, hi := 0, len(dates)
	for lo < hi {
		mid := (lo + hi) / 2
		if dates[mid].Before(d) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(dates) && dates[lo] == d {
		return lo
	}
	return -1
}

// VerticalBarriers assigns each event a time barrier maxHold price dates
// after it. Events too close to the end of the series to have a barrier are
// dropped. Returns the kept events and their parallel barriers.
func VerticalBarriers(prices *stats.Timeseries, events []db.Date, maxHold int) ([]db.Date, []db.Date) {
	dates := prices.Dates()
	var starts, ends []db.Date
	for _, e := range events {
		i := dateIndex(dates, e)
		if i < 0 || i+maxHold >= len(dates) {
			continue
		}
		starts = append(starts, e)
		ends = append(ends, dates[i+maxHold])
	}
	return starts, ends
}

// StrategySide computes the side of an EMA crossover strategy: +1 when the
// fast average is above the slow one, -1 when below, 0 when equal.
func StrategySide(prices *stats.Timeseries, fastWindow, slowWindow int) *stats.Timeseries {
	fast := EWMA(prices.Data(), fastWindow)
	slow := EWMA(prices.Data(), slowWindow)
	sides := make([]float64, len(fast))
	for i := range sides {
		switch {
		case fast[i] > slow[i]:
			sides[i] = 1
		case fast[i] < slow[i]:
			sides[i] = -1
		}
	}
	return stats.NewTimeseries(prices.Dates(), sides)
}

// Event is a triple-barrier trading event: the side-adjusted return realized
// between Start and End, where End is the earliest of the profit-taking
// barrier, the stop-loss barrier and the vertical barrier.
type Event struct {
	Start db.Date
	End   db.Date
	Ret   float64 // side-adjusted simple return at End
	Side  float64 // strategy side at Start, in {-1, 0, +1}
}

// MetaEvents applies the triple-barrier method to each event. The
// profit-taking and stop-loss barriers are ptProfit and ptStop multiples of
// the target volatility at the event start, applied to the side-adjusted
// return path. Events whose target is missing, NaN or below minRet are
// dropped.
func MetaEvents(prices *stats.Timeseries, starts, barriers []db.Date,
	ptProfit, ptStop float64, target *stats.Timeseries, minRet float64,
	sides *stats.Timeseries) []Event {
	dates := prices.Dates()
	data := prices.Data()
	var out []Event
	for k, start := range starts {
		if k >= len(barriers) {
			break
		}
		t0 := dateIndex(dates, start)
		t1 := dateIndex(dates, barriers[k])
		if t0 < 0 || t1 < 0 || t1 <= t0 {
			continue
		}
		ti := dateIndex(target.Dates(), start)
		if ti < 0 {
			continue
		}
		trgt := target.Data()[ti]
		if math.IsNaN(trgt) || trgt < minRet {
			continue
		}
		si := dateIndex(sides.Dates(), start)
		if si < 0 {
			continue
		}
		side := sides.Data()[si]

		upper := ptProfit * trgt
		lower := -ptStop * trgt
		end := t1
		for t := t0 + 1; t <= t1; t++ {
			adj := (data[t]/data[t0] - 1) * side
			if adj >= upper || adj <= lower {
				end = t
				break
			}
		}
		out = append(out, Event{
			Start: start,
			End:   dates[end],
			Ret:   (data[end]/data[t0] - 1) * side,
			Side:  side,
		})
	}
	return out
}

// MetaLabel converts events into binary meta-labels: 1 when taking the bet
// paid off, 0 otherwise.
func MetaLabel(events []Event) []int {
	out := make([]int, len(events))
	for i, e := range events {
		if e.Ret > 0 {
			out[i] = 1
		}
	}
	return out
}

// SampleWeights weighs each event by the absolute log-return it uniquely
// attributes: each per-date log-return is split evenly among the events
// active on that date, and an event's weight is the absolute sum of its
// shares. Weights are non-negative; an event overlapping nothing keeps its
// full absolute return.
func SampleWeights(prices *stats.Timeseries, events []Event) []float64 {
	retDates, rets := logReturns(prices)
	concurrency := make([]float64, len(retDates))
	active := func(e Event, d db.Date) bool {
		return e.Start.Before(d) && !e.End.Before(d)
	}
	for _, e := range events {
		for t, d := range retDates {
			if active(e, d) {
				concurrency[t]++
			}
		}
	}
	out := make([]float64, len(events))
	for i, e := range events {
		var sum float64
		for t, d := range retDates {
			if active(e, d) && concurrency[t] > 0 {
				sum += rets[t] / concurrency[t]
			}
		}
		out[i] = math.Abs(sum)
	}
	return out
}
