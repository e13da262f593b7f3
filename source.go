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
	"math"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/stockparfait/db"
	"github.com/stockparfait/stockparfait/stats"

	"github.com/overfitlab/overfit/config"
)

// Prices generates a synthetic price series whose log-profits are sampled
// from the configured analytical distribution. The result is a strictly
// positive series over consecutive calendar days.
func Prices(ctx context.Context, c *config.PriceSource) (*stats.Timeseries, error) {
	if c == nil {
		return nil, errors.Reason("price source config is nil")
	}
	var dist stats.Distribution
	switch c.Source.Name {
	case "t":
		dist = stats.NewStudentsTDistribution(c.Source.Alpha, c.Source.Mean, c.Source.MAD)
	case "normal":
		dist = stats.NewNormalDistribution(c.Source.Mean, c.Source.MAD)
	default:
		return nil, errors.Reason("unsupported distribution type: '%s'", c.Source.Name)
	}
	if c.Seed > 0 {
		dist.Seed(uint64(c.Seed))
	}
	start, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse start date '%s'", c.StartDate)
	}
	dates := make([]db.Date, c.Days)
	data := make([]float64, c.Days)
	logPrice := math.Log(c.StartPrice)
	for i := 0; i < c.Days; i++ {
		d, err := db.NewDateFromString(start.AddDate(0, 0, i).Format("2006-01-02"))
		if err != nil {
			return nil, errors.Annotate(err, "failed to create date for day %d", i)
		}
		dates[i] = d
		if i > 0 {
			logPrice += dist.Rand()
		}
		data[i] = math.Exp(logPrice)
	}
	return stats.NewTimeseries(dates, data), nil
}
