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

package metrics

import (
	"math"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSharpe(t *testing.T) {
	t.Parallel()

	Convey("SharpeRatio works", t, func() {
		Convey("known value", func() {
			// mean=0.02, sample std=0.02*sqrt(2).
			So(SharpeRatio([]float64{0.0, 0.04}), ShouldAlmostEqual, 1/math.Sqrt2)
		})

		Convey("degenerate inputs are NaN", func() {
			So(math.IsNaN(SharpeRatio(nil)), ShouldBeTrue)
			So(math.IsNaN(SharpeRatio([]float64{0.1})), ShouldBeTrue)
			So(math.IsNaN(SharpeRatio([]float64{0.1, 0.1, 0.1})), ShouldBeTrue)
			So(math.IsNaN(SharpeRatio([]float64{0.1, math.NaN()})), ShouldBeTrue)
		})
	})

	Convey("BenchmarkSharpeRatio works", t, func() {
		Convey("grows with trial dispersion", func() {
			narrow := BenchmarkSharpeRatio([]float64{0.1, 0.11, 0.09, 0.1})
			wide := BenchmarkSharpeRatio([]float64{-1, 1, -0.5, 0.5})
			So(narrow, ShouldBeGreaterThan, 0)
			So(wide, ShouldBeGreaterThan, narrow)
		})

		Convey("NaN members are ignored", func() {
			srs := []float64{0.1, 0.2, 0.3, 0.4}
			withNaN := append([]float64{math.NaN()}, srs...)
			So(BenchmarkSharpeRatio(withNaN), ShouldAlmostEqual,
				BenchmarkSharpeRatio(srs))
		})

		Convey("too few trials are NaN", func() {
			So(math.IsNaN(BenchmarkSharpeRatio([]float64{0.5})), ShouldBeTrue)
		})
	})
}

func TestDeflator(t *testing.T) {
	t.Parallel()

	Convey("PSRDeflator works", t, func() {
		d := PSRDeflator{TestStatistic: true}

		Convey("observed above benchmark gives a positive statistic", func() {
			So(d.Deflate(0.3, 0.1, 100, 0, 0), ShouldBeGreaterThan, 0)
			So(d.Deflate(0.1, 0.3, 100, 0, 0), ShouldBeLessThan, 0)
		})

		Convey("probability form is the CDF of the statistic", func() {
			p := PSRDeflator{}.Deflate(0.3, 0.1, 100, 0, 0)
			So(p, ShouldBeGreaterThan, 0.5)
			So(p, ShouldBeLessThan, 1)
		})

		Convey("NaN inputs propagate", func() {
			So(math.IsNaN(d.Deflate(math.NaN(), 0.1, 100, 0, 0)), ShouldBeTrue)
			So(math.IsNaN(d.Deflate(0.3, 0.1, 1, 0, 0)), ShouldBeTrue)
			So(math.IsNaN(d.Deflate(0.3, 0.1, 100, math.NaN(), 0)), ShouldBeTrue)
		})

		Convey("heavy tails shrink the statistic", func() {
			thin := d.Deflate(0.3, 0.1, 100, 0, 0)
			fat := d.Deflate(0.3, 0.1, 100, 0, 6)
			So(fat, ShouldBeLessThan, thin)
		})
	})

	Convey("Skew and ExKurtosis are NaN-guarded", t, func() {
		So(math.IsNaN(Skew([]float64{1, 1, 1})), ShouldBeTrue)
		So(math.IsNaN(ExKurtosis([]float64{1, 2, 3})), ShouldBeTrue)
		So(math.IsNaN(Skew([]float64{1, 2, 3, 4})), ShouldBeFalse)
		So(math.IsNaN(ExKurtosis([]float64{1, 2, 3, 4})), ShouldBeFalse)
	})
}

func TestPBO(t *testing.T) {
	t.Parallel()

	Convey("PBO works", t, func() {
		rng := rand.New(rand.NewSource(42))
		rows, cols := 64, 10
		values := make([][]float64, rows)
		for r := range values {
			values[r] = make([]float64, cols)
			for c := range values[r] {
				values[r][c] = rng.NormFloat64() * 0.01
			}
		}

		Convey("pure noise lands in [0, 1] and is deterministic", func() {
			pbo, logits := PBO(values, 0, 8)
			So(pbo, ShouldBeBetweenOrEqual, 0, 1)
			So(len(logits), ShouldEqual, 70)
			pbo2, _ := PBO(values, 0, 8)
			So(pbo2, ShouldEqual, pbo)
		})

		Convey("a genuinely dominant trial lowers PBO", func() {
			skilled := make([][]float64, rows)
			for r := range skilled {
				skilled[r] = append([]float64(nil), values[r]...)
				skilled[r][3] = 0.05 + rng.NormFloat64()*0.001
			}
			pboSkilled, _ := PBO(skilled, 0, 8)
			pboNoise, _ := PBO(values, 0, 8)
			So(pboSkilled, ShouldBeLessThanOrEqualTo, pboNoise)
			So(pboSkilled, ShouldBeLessThan, 0.5)
		})

		Convey("degenerate shapes are NaN", func() {
			pbo, logits := PBO(values[:4], 0, 8)
			So(math.IsNaN(pbo), ShouldBeTrue)
			So(logits, ShouldBeNil)
			pbo, _ = PBO([][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}, 0, 8)
			So(math.IsNaN(pbo), ShouldBeTrue)
			pbo, _ = PBO(values, 0, 7)
			So(math.IsNaN(pbo), ShouldBeTrue)
		})

		Convey("NaN cells are skipped, not fatal", func() {
			withNaN := make([][]float64, rows)
			for r := range withNaN {
				withNaN[r] = append([]float64(nil), values[r]...)
			}
			for r := 0; r < rows; r += 3 {
				withNaN[r][1] = math.NaN()
			}
			pbo, _ := PBO(withNaN, 0, 8)
			So(pbo, ShouldBeBetweenOrEqual, 0, 1)
		})
	})
}
