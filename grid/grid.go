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

// Package grid enumerates hyperparameter grids.
//
// A Grid is a set of named axes, each with a list of candidate values. By
// default Enumerate produces the full Cartesian product of the axes. Axes
// may be declared as a paired Group, in which case their candidate lists are
// zipped positionally instead of producted: candidate i of one axis only
// ever appears together with candidate i of the others in the group. This
// models a caller who supplies matched parameter tuples (e.g. a fast window
// that belongs with a particular slow window) rather than a free product.
package grid

import (
	"sort"

	"github.com/stockparfait/errors"
)

// Config is a single realized parameter assignment.
type Config map[string]float64

// Copy returns an independent copy of the config.
func (c Config) Copy() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Group names a set of axes whose candidate lists are zipped together. All
// lists in a group must have equal length.
type Group []string

// Grid is a set of candidate values per parameter name, with optional paired
// groups.
type Grid struct {
	Values map[string][]float64
	Paired []Group
}

// axis is a unit of enumeration: either a single free parameter or a paired
// group advancing in lockstep.
type axis struct {
	names  []string
	length int
	value  func(i int) []float64
}

func (g Grid) axes() ([]axis, error) {
	paired := make(map[string]bool)
	var axes []axis
	for _, group := range g.Paired {
		if len(group) < 2 {
			return nil, errors.Reason("paired group must name at least 2 parameters, got %d", len(group))
		}
		length := -1
		for _, name := range group {
			vs, ok := g.Values[name]
			if !ok {
				return nil, errors.Reason("paired parameter '%s' has no values", name)
			}
			if paired[name] {
				return nil, errors.Reason("parameter '%s' appears in more than one paired group", name)
			}
			paired[name] = true
			if length < 0 {
				length = len(vs)
			} else if len(vs) != length {
				return nil, errors.Reason(
					"paired parameter '%s' has %d values, expected %d", name, len(vs), length)
			}
		}
		group := group
		axes = append(axes, axis{
			names:  group,
			length: length,
			value: func(i int) []float64 {
				vs := make([]float64, len(group))
				for j, name := range group {
					vs[j] = g.Values[name][i]
				}
				return vs
			},
		})
	}
	var free []string
	for name := range g.Values {
		if !paired[name] {
			free = append(free, name)
		}
	}
	sort.Strings(free)
	for _, name := range free {
		name := name
		axes = append(axes, axis{
			names:  []string{name},
			length: len(g.Values[name]),
			value:  func(i int) []float64 { return []float64{g.Values[name][i]} },
		})
	}
	return axes, nil
}

// Enumerate realizes all valid configurations: the Cartesian product over
// free axes times the positional zip over each paired group. A grid with no
// axes yields a single empty config; an axis with no candidate values yields
// no configs at all.
func (g Grid) Enumerate() ([]Config, error) {
	axes, err := g.axes()
	if err != nil {
		return nil, errors.Annotate(err, "invalid grid")
	}
	configs := []Config{{}}
	for _, a := range axes {
		var next []Config
		for _, c := range configs {
			for i := 0; i < a.length; i++ {
				nc := c.Copy()
				vs := a.value(i)
				for j, name := range a.names {
					nc[name] = vs[j]
				}
				next = append(next, nc)
			}
		}
		configs = next
	}
	return configs, nil
}

// Size returns the number of configs Enumerate will produce.
func (g Grid) Size() (int, error) {
	axes, err := g.axes()
	if err != nil {
		return 0, err
	}
	n := 1
	for _, a := range axes {
		n *= a.length
	}
	return n, nil
}
