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

// Package model defines the classifier contract used by the cross-validation
// schemes, and a small registry of trainable classifiers. Classifiers must
// support per-sample weights and binary labels in {0, 1}, and are expected
// to be cheap to construct: the schemes build a fresh instance per fold.
package model

import (
	"github.com/stockparfait/errors"

	"github.com/overfitlab/overfit/grid"
)

// Classifier is a binary probabilistic classifier.
type Classifier interface {
	// Fit the classifier on feature rows x with labels y in {0, 1} and
	// non-negative sample weights w. len(x) == len(y) == len(w).
	Fit(x [][]float64, y []int, w []float64) error
	// PredictProb returns the predicted probability of the positive class
	// for each row of x. Must be called after a successful Fit.
	PredictProb(x [][]float64) []float64
}

// Factory creates a fresh, unfitted classifier.
type Factory func() (Classifier, error)

// Kinds of classifiers known to New.
const (
	KindLogistic = "logistic"
	KindTree     = "tree"
)

// New builds a classifier of the given kind from realized hyperparameters.
// Unknown hyperparameters are ignored; unknown kinds are an error.
func New(kind string, params grid.Config) (Classifier, error) {
	switch kind {
	case KindLogistic:
		return newLogistic(params), nil
	case KindTree:
		return newTree(params), nil
	}
	return nil, errors.Reason("unknown model kind: '%s'", kind)
}

// NewFactory binds a kind and hyperparameters into a Factory, validating the
// kind eagerly.
func NewFactory(kind string, params grid.Config) (Factory, error) {
	if _, err := New(kind, params); err != nil {
		return nil, errors.Annotate(err, "invalid model spec")
	}
	p := params.Copy()
	return func() (Classifier, error) { return New(kind, p) }, nil
}

func paramOr(params grid.Config, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}

func checkTrainingSet(x [][]float64, y []int, w []float64) error {
	if len(x) == 0 {
		return errors.Reason("empty training set")
	}
	if len(y) != len(x) || len(w) != len(x) {
		return errors.Reason("inconsistent training set: %d rows, %d labels, %d weights",
			len(x), len(y), len(w))
	}
	for i, wi := range w {
		if wi < 0 {
			return errors.Reason("negative sample weight %g at row %d", wi, i)
		}
	}
	return nil
}
