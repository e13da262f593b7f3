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

package cv

import (
	"context"
	"fmt"
	"testing"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/stockparfait/db"

	"github.com/overfitlab/overfit/grid"
	"github.com/overfitlab/overfit/model"

	. "github.com/smartystreets/goconvey/convey"
)

func dt(date string) db.Date {
	d, err := db.NewDateFromString(date)
	if err != nil {
		panic(err)
	}
	return d
}

func days(n int) []db.Date {
	out := make([]db.Date, n)
	for i := range out {
		out[i] = dt(fmt.Sprintf("2020-01-%02d", i+1))
	}
	return out
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func TestSchemes(t *testing.T) {
	t.Parallel()

	Convey("Names are stable", t, func() {
		index := days(10)
		So(NewWalkForward(4).Name(), ShouldEqual, "Walk-Forward")
		So(NewKFold(4).Name(), ShouldEqual, "K-Fold")
		So(NewPurgedKFold(4, index, index, 0).Name(), ShouldEqual, "Purged K-Fold")
		So(NewCombinatorialPurged(4, 2, index, index, 0).Name(),
			ShouldEqual, "Combinatorial Purged")
	})

	Convey("Walk-Forward works", t, func() {
		folds, err := NewWalkForward(4).Folds(10)
		So(err, ShouldBeNil)
		So(len(folds), ShouldEqual, 4)

		Convey("training window expands and always precedes the test", func() {
			for i, f := range folds {
				So(len(f.Train), ShouldBeGreaterThan, 0)
				So(len(f.Test), ShouldBeGreaterThan, 0)
				maxTrain := f.Train[len(f.Train)-1]
				So(maxTrain, ShouldBeLessThan, f.Test[0])
				if i > 0 {
					So(len(f.Train), ShouldBeGreaterThan, len(folds[i-1].Train))
				}
			}
		})

		Convey("too few rows is an error", func() {
			_, err := NewWalkForward(4).Folds(3)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("K-Fold works", t, func() {
		folds, err := NewKFold(5).Folds(10)
		So(err, ShouldBeNil)
		So(len(folds), ShouldEqual, 5)

		Convey("test blocks are disjoint and cover all rows", func() {
			seen := make(map[int]int)
			for _, f := range folds {
				So(len(f.Train), ShouldEqual, 8)
				So(len(f.Test), ShouldEqual, 2)
				for _, r := range f.Test {
					seen[r]++
				}
				for _, r := range f.Test {
					So(contains(f.Train, r), ShouldBeFalse)
				}
			}
			So(len(seen), ShouldEqual, 10)
			for _, c := range seen {
				So(c, ShouldEqual, 1)
			}
		})

		Convey("a single split is an error", func() {
			_, err := NewKFold(1).Folds(10)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Purged K-Fold works", t, func() {
		index := days(12)

		Convey("overlapping events are purged from the training set", func() {
			// Each event spans two extra days past its start.
			starts := days(10)
			ends := make([]db.Date, 10)
			for i := range ends {
				ends[i] = index[i+2]
			}
			folds, err := NewPurgedKFold(2, starts, ends, 0).Folds(10)
			So(err, ShouldBeNil)
			So(len(folds), ShouldEqual, 2)

			// Fold 0 tests on rows [0..4]; events 5 and 6 start before the
			// last test event ends on day 7, so they are purged.
			f := folds[0]
			So(f.Test, ShouldResemble, []int{0, 1, 2, 3, 4})
			So(f.Train, ShouldResemble, []int{7, 8, 9})
		})

		Convey("embargo drops rows right after the test block", func() {
			// Point events: no purge, only the embargo applies.
			starts := days(10)
			folds, err := NewPurgedKFold(2, starts, starts, 0.21).Folds(10)
			So(err, ShouldBeNil)
			So(folds[0].Train, ShouldResemble, []int{8, 9}) // ceil(0.21*10)=3 embargoed
			So(folds[1].Train, ShouldResemble, []int{0, 1, 2, 3, 4})
		})

		Convey("mismatched event intervals are an error", func() {
			_, err := NewPurgedKFold(2, days(5), days(5), 0).Folds(10)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Combinatorial Purged works", t, func() {
		starts := days(10)

		Convey("generates one fold per group combination", func() {
			folds, err := NewCombinatorialPurged(4, 2, starts, starts, 0).Folds(10)
			So(err, ShouldBeNil)
			So(len(folds), ShouldEqual, 6) // C(4, 2)

			// Each row is in the test set of exactly C(3, 1) = 3 folds.
			seen := make(map[int]int)
			for _, f := range folds {
				for _, r := range f.Test {
					seen[r]++
					So(contains(f.Train, r), ShouldBeFalse)
				}
			}
			So(len(seen), ShouldEqual, 10)
			for _, c := range seen {
				So(c, ShouldEqual, 3)
			}
		})

		Convey("invalid group counts are an error", func() {
			_, err := NewCombinatorialPurged(4, 4, starts, starts, 0).Folds(10)
			So(err, ShouldNotBeNil)
			_, err = NewCombinatorialPurged(4, 0, starts, starts, 0).Folds(10)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestBacktestPredictions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	trainingSet := func(n int) (x [][]float64, y []int, w []float64) {
		for i := 0; i < n; i++ {
			x = append(x, []float64{float64(i%2)*2 - 1})
			y = append(y, i%2)
			w = append(w, 1)
		}
		return
	}

	Convey("BacktestPredictions works", t, func() {
		x, y, w := trainingSet(20)
		factory, err := model.NewFactory(model.KindLogistic,
			grid.Config{"epochs": 50, "learning rate": 1})
		So(err, ShouldBeNil)

		Convey("K-Fold covers every row exactly once", func() {
			preds, folds, err := NewKFold(4).BacktestPredictions(
				ctx, factory, x, y, w, 2)
			So(err, ShouldBeNil)
			So(len(folds), ShouldEqual, 4)
			So(len(preds), ShouldEqual, 20)
			for _, ps := range preds {
				So(len(ps), ShouldEqual, 1)
			}
		})

		Convey("Combinatorial Purged covers every row several times", func() {
			starts := days(20)
			preds, folds, err := NewCombinatorialPurged(4, 2, starts, starts, 0).
				BacktestPredictions(ctx, factory, x, y, w, 2)
			So(err, ShouldBeNil)
			So(len(folds), ShouldEqual, 6)
			So(len(preds), ShouldEqual, 20)
			for _, ps := range preds {
				So(len(ps), ShouldEqual, 3)
			}
		})

		Convey("predictions are deterministic across runs", func() {
			one, _, err := NewWalkForward(3).BacktestPredictions(
				ctx, factory, x, y, w, 4)
			So(err, ShouldBeNil)
			two, _, err := NewWalkForward(3).BacktestPredictions(
				ctx, factory, x, y, w, 1)
			So(err, ShouldBeNil)
			So(two, ShouldResemble, one)
		})

		Convey("a failing factory aborts the backtest", func() {
			bad := model.Factory(func() (model.Classifier, error) {
				return nil, errors.Reason("no model for you")
			})
			_, _, err := NewKFold(4).BacktestPredictions(ctx, bad, x, y, w, 2)
			So(err, ShouldNotBeNil)
		})
	})
}
