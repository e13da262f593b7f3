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
	"sort"

	"github.com/stockparfait/errors"

	"github.com/overfitlab/overfit/grid"
)

// Tree is a weighted binary classification tree split on Gini impurity.
// Deterministic: features are scanned in order and ties keep the first best
// split.
type Tree struct {
	MaxDepth int // "max depth", default 3
	MinLeaf  int // "min leaf", minimum samples per leaf, default 5

	root *treeNode
}

var _ Classifier = &Tree{}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	prob      float64
	leaf      bool
}

func newTree(params grid.Config) *Tree {
	return &Tree{
		MaxDepth: int(paramOr(params, "max depth", 3)),
		MinLeaf:  int(paramOr(params, "min leaf", 5)),
	}
}

// posFraction is the weighted share of positive labels among idx.
func posFraction(y []int, w []float64, idx []int) float64 {
	var pos, total float64
	for _, i := range idx {
		total += w[i]
		if y[i] == 1 {
			pos += w[i]
		}
	}
	if total == 0 {
		// All-zero weights: fall back to unweighted counts.
		for _, i := range idx {
			total++
			if y[i] == 1 {
				pos++
			}
		}
	}
	if total == 0 {
		return 0.5
	}
	return pos / total
}

func gini(pos, total float64) float64 {
	if total == 0 {
		return 0
	}
	p := pos / total
	return 2 * p * (1 - p)
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
	ok        bool
}

func (m *Tree) bestSplit(x [][]float64, y []int, w []float64, idx []int) split {
	best := split{}
	dim := len(x[idx[0]])
	order := make([]int, len(idx))
	for f := 0; f < dim; f++ {
		copy(order, idx)
		f := f
		sort.SliceStable(order, func(a, b int) bool {
			return x[order[a]][f] < x[order[b]][f]
		})
		var totalPos, total float64
		for _, i := range order {
			total += w[i]
			if y[i] == 1 {
				totalPos += w[i]
			}
		}
		var leftPos, left float64
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			left += w[i]
			if y[i] == 1 {
				leftPos += w[i]
			}
			if x[order[k]][f] == x[order[k+1]][f] {
				continue // not a valid cut point
			}
			if k+1 < m.MinLeaf || len(order)-k-1 < m.MinLeaf {
				continue
			}
			right := total - left
			imp := left*gini(leftPos, left) + right*gini(totalPos-leftPos, right)
			if !best.ok || imp < best.impurity {
				best = split{
					feature:   f,
					threshold: (x[order[k]][f] + x[order[k+1]][f]) / 2,
					impurity:  imp,
					ok:        true,
				}
			}
		}
	}
	return best
}

func (m *Tree) grow(x [][]float64, y []int, w []float64, idx []int, depth int) *treeNode {
	prob := posFraction(y, w, idx)
	if depth >= m.MaxDepth || len(idx) < 2*m.MinLeaf || prob == 0 || prob == 1 {
		return &treeNode{leaf: true, prob: prob}
	}
	s := m.bestSplit(x, y, w, idx)
	if !s.ok {
		return &treeNode{leaf: true, prob: prob}
	}
	var left, right []int
	for _, i := range idx {
		if x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{leaf: true, prob: prob}
	}
	return &treeNode{
		feature:   s.feature,
		threshold: s.threshold,
		left:      m.grow(x, y, w, left, depth+1),
		right:     m.grow(x, y, w, right, depth+1),
	}
}

// Fit implements Classifier.
func (m *Tree) Fit(x [][]float64, y []int, w []float64) error {
	if err := checkTrainingSet(x, y, w); err != nil {
		return errors.Annotate(err, "tree fit")
	}
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	m.root = m.grow(x, y, w, idx, 0)
	return nil
}

// PredictProb implements Classifier.
func (m *Tree) PredictProb(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		n := m.root
		for n != nil && !n.leaf {
			if row[n.feature] <= n.threshold {
				n = n.left
			} else {
				n = n.right
			}
		}
		if n == nil {
			out[i] = 0.5
			continue
		}
		out[i] = n.prob
	}
	return out
}
