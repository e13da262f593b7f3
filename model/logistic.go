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

package model

import (
	"math"

	"github.com/stockparfait/errors"

	"github.com/overfitlab/overfit/grid"
)

// Logistic is a weighted logistic regression trained by full-batch gradient
// descent with L2 regularization. Deterministic: no random initialization,
// samples visited in input order.
type Logistic struct {
	LearnRate float64 // "learning rate", default 0.1
	L2        float64 // "l2", default 1e-4
	Epochs    int     // "epochs", default 200

	w []float64
	b float64
}

var _ Classifier = &Logistic{}

func newLogistic(params grid.Config) *Logistic {
	return &Logistic{
		LearnRate: paramOr(params, "learning rate", 0.1),
		L2:        paramOr(params, "l2", 1e-4),
		Epochs:    int(paramOr(params, "epochs", 200)),
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func (m *Logistic) raw(row []float64) float64 {
	z := m.b
	for i := 0; i < len(m.w) && i < len(row); i++ {
		z += m.w[i] * row[i]
	}
	return z
}

// Fit implements Classifier.
func (m *Logistic) Fit(x [][]float64, y []int, w []float64) error {
	if err := checkTrainingSet(x, y, w); err != nil {
		return errors.Annotate(err, "logistic fit")
	}
	dim := len(x[0])
	m.w = make([]float64, dim)
	m.b = 0

	var wSum float64
	for _, wi := range w {
		wSum += wi
	}
	if wSum == 0 {
		return errors.Reason("all sample weights are zero")
	}

	gw := make([]float64, dim)
	for epoch := 0; epoch < m.Epochs; epoch++ {
		for i := range gw {
			gw[i] = 0
		}
		gb := 0.0
		for i, row := range x {
			err := (sigmoid(m.raw(row)) - float64(y[i])) * w[i] / wSum
			for j := 0; j < dim && j < len(row); j++ {
				gw[j] += err * row[j]
			}
			gb += err
		}
		for j := 0; j < dim; j++ {
			m.w[j] -= m.LearnRate * (gw[j] + m.L2*m.w[j])
		}
		m.b -= m.LearnRate * gb
	}
	return nil
}

// PredictProb implements Classifier.
func (m *Logistic) PredictProb(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = sigmoid(m.raw(row))
	}
	return out
}
