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

package overfit

import (
	"context"
	"testing"

	"github.com/stockparfait/stockparfait/db"

	"github.com/overfitlab/overfit/config"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValues(t *testing.T) {
	t.Parallel()

	Convey("context Values work", t, func() {
		Convey("AddValue requires an injected map", func() {
			So(AddValue(context.Background(), "id", "k", "v"), ShouldNotBeNil)
		})

		Convey("AddValue prefixes keys with the experiment ID", func() {
			values := make(Values)
			ctx := UseValues(context.Background(), values)
			So(GetValues(ctx), ShouldNotBeNil)
			So(AddValue(ctx, "exp", "answer", "42"), ShouldBeNil)
			So(AddValue(ctx, "", "plain", "7"), ShouldBeNil)
			So(values, ShouldResemble, Values{"exp answer": "42", "plain": "7"})
		})

		Convey("Prefix", func() {
			So(Prefix("", "key"), ShouldEqual, "key")
			So(Prefix("id", "key"), ShouldEqual, "id key")
		})
	})

	Convey("TestExperiment works", t, func() {
		values := make(Values)
		ctx := UseValues(context.Background(), values)
		var e TestExperiment
		So(e.Run(ctx, &config.TestExperimentConfig{ID: "t", Grade: 3.5, Passed: true}),
			ShouldBeNil)
		So(values["t test"], ShouldEqual, "passed")
		So(values["t grade"], ShouldEqual, "3.5")
	})
}

func TestPrices(t *testing.T) {
	t.Parallel()

	Convey("Prices works", t, func() {
		ctx := context.Background()

		Convey("generates a positive series of the configured length", func() {
			c := &config.PriceSource{
				Source:     &config.AnalyticalDistribution{Name: "t", MAD: 0.02, Alpha: 3},
				Days:       100,
				StartPrice: 50,
				StartDate:  "2010-06-01",
			}
			ts, err := Prices(ctx, c)
			So(err, ShouldBeNil)
			So(len(ts.Data()), ShouldEqual, 100)
			So(ts.Data()[0], ShouldEqual, 50.0)
			first, err := db.NewDateFromString("2010-06-01")
			So(err, ShouldBeNil)
			So(ts.Dates()[0], ShouldResemble, first)
			for i, v := range ts.Data() {
				So(v, ShouldBeGreaterThan, 0)
				if i > 0 {
					So(ts.Dates()[i-1].Before(ts.Dates()[i]), ShouldBeTrue)
				}
			}
		})

		Convey("a fixed seed reproduces the series", func() {
			c := &config.PriceSource{
				Source:     &config.AnalyticalDistribution{Name: "normal", MAD: 0.02},
				Days:       50,
				StartPrice: 100,
				StartDate:  "2010-06-01",
				Seed:       42,
			}
			ts1, err := Prices(ctx, c)
			So(err, ShouldBeNil)
			ts2, err := Prices(ctx, c)
			So(err, ShouldBeNil)
			So(ts1.Data(), ShouldResemble, ts2.Data())

			c.Seed = 43
			ts3, err := Prices(ctx, c)
			So(err, ShouldBeNil)
			So(ts3.Data(), ShouldNotResemble, ts1.Data())
		})

		Convey("normal distribution source works", func() {
			c := &config.PriceSource{
				Source:     &config.AnalyticalDistribution{Name: "normal", MAD: 0.01},
				Days:       10,
				StartPrice: 100,
				StartDate:  "2010-06-01",
			}
			ts, err := Prices(ctx, c)
			So(err, ShouldBeNil)
			So(len(ts.Data()), ShouldEqual, 10)
		})

		Convey("nil and unknown sources are errors", func() {
			_, err := Prices(ctx, nil)
			So(err, ShouldNotBeNil)
			_, err = Prices(ctx, &config.PriceSource{
				Source: &config.AnalyticalDistribution{Name: "cauchy"},
				Days:   10, StartPrice: 100, StartDate: "2010-06-01",
			})
			So(err, ShouldNotBeNil)
		})
	})
}
