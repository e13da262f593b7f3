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

// Package cv implements the cross-validation schemes used to backtest a
// strategy: plain walk-forward and k-fold splits, and their purged variants
// which remove training samples whose event interval overlaps the test set.
package cv

import (
	"context"
	"math"
	"sort"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/stockparfait/db"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/overfitlab/overfit/model"
)

// Fold is a single train/test split over row indices [0..n).
type Fold struct {
	ID    int
	Train []int
	Test  []int
}

type schemeKind int

const (
	walkForward schemeKind = iota
	kFold
	purgedKFold
	combinatorialPurged
)

// Scheme generates the folds of one cross-validation method. It is a closed
// set: use one of the New* constructors.
type Scheme struct {
	kind         schemeKind
	nSplits      int
	nTestGroups  int
	starts, ends []db.Date // per-row event intervals for the purged variants
	embargo      float64
}

// NewWalkForward splits the rows into nSplits+1 contiguous blocks and trains
// on an expanding window: fold i trains on blocks [0..i] and tests on block
// i+1.
func NewWalkForward(nSplits int) *Scheme {
	return &Scheme{kind: walkForward, nSplits: nSplits}
}

// NewKFold splits the rows into nSplits contiguous blocks; each fold tests on
// one block and trains on all others.
func NewKFold(nSplits int) *Scheme {
	return &Scheme{kind: kFold, nSplits: nSplits}
}

// NewPurgedKFold is NewKFold plus purging and embargo. A training row is
// purged when its event interval [starts[i], ends[i]] overlaps the test
// block's interval, and the ceil(embargo*n) rows immediately after the test
// block are embargoed.
func NewPurgedKFold(nSplits int, starts, ends []db.Date, embargo float64) *Scheme {
	return &Scheme{
		kind:    purgedKFold,
		nSplits: nSplits,
		starts:  starts,
		ends:    ends,
		embargo: embargo,
	}
}

// NewCombinatorialPurged splits the rows into nSplits contiguous groups and
// generates one fold per choice of nTestGroups of them; the test set is the
// union of the chosen groups, and the remaining rows are purged and embargoed
// against each chosen group separately.
func NewCombinatorialPurged(nSplits, nTestGroups int, starts, ends []db.Date, embargo float64) *Scheme {
	return &Scheme{
		kind:        combinatorialPurged,
		nSplits:     nSplits,
		nTestGroups: nTestGroups,
		starts:      starts,
		ends:        ends,
		embargo:     embargo,
	}
}

// Name returns the scheme's display name, stable across runs.
func (s *Scheme) Name() string {
	switch s.kind {
	case walkForward:
		return "Walk-Forward"
	case kFold:
		return "K-Fold"
	case purgedKFold:
		return "Purged K-Fold"
	case combinatorialPurged:
		return "Combinatorial Purged"
	}
	return "unknown"
}

// blocks partitions [0..n) into k contiguous blocks; the first n%k blocks are
// one row longer.
func blocks(n, k int) [][2]int {
	out := make([][2]int, k)
	size := n / k
	rem := n % k
	start := 0
	for i := 0; i < k; i++ {
		end := start + size
		if i < rem {
			end++
		}
		out[i] = [2]int{start, end}
		start = end
	}
	return out
}

func indexRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

// purge drops from train all rows whose event interval overlaps the test
// block [t0, t1) in event time, plus the embargoed rows right after it.
func (s *Scheme) purge(train []int, t0, t1, n int) []int {
	minStart := s.starts[t0]
	maxEnd := s.ends[t0]
	for i := t0 + 1; i < t1; i++ {
		if maxEnd.Before(s.ends[i]) {
			maxEnd = s.ends[i]
		}
	}
	embargoed := int(math.Ceil(s.embargo * float64(n)))
	out := train[:0]
	for _, i := range train {
		if i >= t1 && i < t1+embargoed {
			continue
		}
		overlaps := !s.ends[i].Before(minStart) && !maxEnd.Before(s.starts[i])
		if overlaps && !(i >= t0 && i < t1) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (s *Scheme) checkEvents(n int) error {
	if len(s.starts) != n || len(s.ends) != n {
		return errors.Reason(
			"%s: %d rows require %d event intervals, got %d starts and %d ends",
			s.Name(), n, n, len(s.starts), len(s.ends))
	}
	if s.embargo < 0 || s.embargo >= 1 {
		return errors.Reason("%s: embargo=%g must be in [0, 1)", s.Name(), s.embargo)
	}
	return nil
}

// Folds generates the train/test splits for n rows.
func (s *Scheme) Folds(n int) ([]Fold, error) {
	if s.nSplits < 1 {
		return nil, errors.Reason("%s: n_splits=%d must be >= 1", s.Name(), s.nSplits)
	}
	switch s.kind {
	case walkForward:
		if n < s.nSplits+1 {
			return nil, errors.Reason("%s: %d rows cannot form %d blocks",
				s.Name(), n, s.nSplits+1)
		}
		bs := blocks(n, s.nSplits+1)
		folds := make([]Fold, s.nSplits)
		for i := 0; i < s.nSplits; i++ {
			folds[i] = Fold{
				ID:    i,
				Train: indexRange(0, bs[i][1]),
				Test:  indexRange(bs[i+1][0], bs[i+1][1]),
			}
		}
		return folds, nil

	case kFold, purgedKFold:
		if s.nSplits < 2 {
			return nil, errors.Reason("%s: n_splits=%d must be >= 2", s.Name(), s.nSplits)
		}
		if n < s.nSplits {
			return nil, errors.Reason("%s: %d rows cannot form %d blocks",
				s.Name(), n, s.nSplits)
		}
		if s.kind == purgedKFold {
			if err := s.checkEvents(n); err != nil {
				return nil, err
			}
		}
		bs := blocks(n, s.nSplits)
		folds := make([]Fold, s.nSplits)
		for i, b := range bs {
			train := append(indexRange(0, b[0]), indexRange(b[1], n)...)
			if s.kind == purgedKFold {
				train = s.purge(train, b[0], b[1], n)
			}
			folds[i] = Fold{ID: i, Train: train, Test: indexRange(b[0], b[1])}
		}
		return folds, nil

	case combinatorialPurged:
		if s.nTestGroups < 1 || s.nTestGroups >= s.nSplits {
			return nil, errors.Reason("%s: n_test_groups=%d must be in [1, %d)",
				s.Name(), s.nTestGroups, s.nSplits)
		}
		if n < s.nSplits {
			return nil, errors.Reason("%s: %d rows cannot form %d groups",
				s.Name(), n, s.nSplits)
		}
		if err := s.checkEvents(n); err != nil {
			return nil, err
		}
		bs := blocks(n, s.nSplits)
		combos := combin.Combinations(s.nSplits, s.nTestGroups)
		folds := make([]Fold, len(combos))
		for ci, combo := range combos {
			inTest := make([]bool, s.nSplits)
			for _, g := range combo {
				inTest[g] = true
			}
			var train, test []int
			for g, b := range bs {
				if inTest[g] {
					test = append(test, indexRange(b[0], b[1])...)
				} else {
					train = append(train, indexRange(b[0], b[1])...)
				}
			}
			for _, g := range combo {
				train = s.purge(train, bs[g][0], bs[g][1], n)
			}
			folds[ci] = Fold{ID: ci, Train: train, Test: test}
		}
		return folds, nil
	}
	return nil, errors.Reason("unknown scheme kind: %d", s.kind)
}

type foldIter struct {
	folds []Fold
	i     int
}

var _ iterator.Iterator[Fold] = &foldIter{}

func (it *foldIter) Next() (Fold, bool) {
	if it.i >= len(it.folds) {
		return Fold{}, false
	}
	f := it.folds[it.i]
	it.i++
	return f, true
}

type foldResult struct {
	fold  Fold
	probs []float64
	err   error
}

// BacktestPredictions fits a fresh classifier per fold in parallel and
// returns the out-of-sample probability predictions, keyed by row index. A
// row covered by several folds accumulates one prediction per covering fold,
// in fold ID order. Rows never in a test set are absent from the map. Any
// fold failing to fit aborts the whole backtest.
func (s *Scheme) BacktestPredictions(ctx context.Context, factory model.Factory,
	x [][]float64, y []int, w []float64, workers int) (map[int][]float64, []Fold, error) {
	folds, err := s.Folds(len(x))
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to generate folds")
	}
	if workers < 1 {
		workers = 1
	}

	f := func(fold Fold) foldResult {
		c, err := factory()
		if err != nil {
			return foldResult{fold: fold, err: errors.Annotate(err, "fold %d", fold.ID)}
		}
		xt := make([][]float64, len(fold.Train))
		yt := make([]int, len(fold.Train))
		wt := make([]float64, len(fold.Train))
		for i, r := range fold.Train {
			xt[i] = x[r]
			yt[i] = y[r]
			wt[i] = w[r]
		}
		if err := c.Fit(xt, yt, wt); err != nil {
			return foldResult{fold: fold, err: errors.Annotate(err,
				"%s: failed to fit fold %d", s.Name(), fold.ID)}
		}
		xs := make([][]float64, len(fold.Test))
		for i, r := range fold.Test {
			xs[i] = x[r]
		}
		return foldResult{fold: fold, probs: c.PredictProb(xs)}
	}
	var it iterator.Iterator[Fold] = &foldIter{folds: folds}
	pm := iterator.ParallelMap(ctx, workers, it, f)
	defer pm.Close()

	results := iterator.ToSlice[foldResult](pm)
	sort.Slice(results, func(a, b int) bool {
		return results[a].fold.ID < results[b].fold.ID
	})
	preds := make(map[int][]float64)
	for _, res := range results {
		if res.err != nil {
			return nil, nil, res.err
		}
		for i, r := range res.fold.Test {
			preds[r] = append(preds[r], res.probs[i])
		}
	}
	return preds, folds, nil
}
