package state

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Var is a single augmented state entry: a named scalar with optional bounds.
type Var struct {
	// Name is the entry name
	Name string
	// Val is the current entry value
	Val float64
	// Min is the lower bound; -Inf when unconstrained
	Min float64
	// Max is the upper bound; +Inf when unconstrained
	Max float64
}

// NewVar creates a new unconstrained Var and returns it
func NewVar(name string, val float64) Var {
	return Var{
		Name: name,
		Val:  val,
		Min:  math.Inf(-1),
		Max:  math.Inf(1),
	}
}

// WithBounds returns a copy of v constrained to the interval [min, max]
func (v Var) WithBounds(min, max float64) Var {
	v.Min, v.Max = min, max
	return v
}

// WithMin returns a copy of v constrained from below
func (v Var) WithMin(min float64) Var {
	v.Min = min
	return v
}

// WithMax returns a copy of v constrained from above
func (v Var) WithMax(max float64) Var {
	v.Max = max
	return v
}

// Bounded returns true if v carries at least one finite bound
func (v Var) Bounded() bool {
	return !math.IsInf(v.Min, -1) || !math.IsInf(v.Max, 1)
}

// Augmented is the augmented state of a filtered system: the dynamic
// state entries concatenated with the estimated parameter entries.
// The entry order is frozen at construction and never changes over the
// lifetime of a filter run, so an index is a stable handle to an entry.
type Augmented struct {
	// vars holds the state block followed by the parameter block
	vars []Var
	// nx is the state block size
	nx int
	// index maps entry names to their positions
	index map[string]int
}

// NewAugmented creates a new augmented state from state and parameter entries.
// It returns error if no entries are given, if any entry name is duplicated
// or if any entry has an empty interval between its bounds.
func NewAugmented(states, params []Var) (*Augmented, error) {
	n := len(states) + len(params)
	if n == 0 {
		return nil, fmt.Errorf("at least one state or parameter entry is required")
	}

	vars := make([]Var, 0, n)
	vars = append(vars, states...)
	vars = append(vars, params...)

	index := make(map[string]int, n)
	for i, v := range vars {
		if v.Name == "" {
			return nil, fmt.Errorf("empty name for entry %d", i)
		}
		if _, ok := index[v.Name]; ok {
			return nil, fmt.Errorf("duplicate entry name: %s", v.Name)
		}
		if v.Min > v.Max {
			return nil, fmt.Errorf("invalid bounds for %s: [%v, %v]", v.Name, v.Min, v.Max)
		}
		index[v.Name] = i
	}

	return &Augmented{
		vars:  vars,
		nx:    len(states),
		index: index,
	}, nil
}

// Len returns the augmented state dimension
func (a *Augmented) Len() int { return len(a.vars) }

// StateLen returns the state block size
func (a *Augmented) StateLen() int { return a.nx }

// ParamLen returns the parameter block size
func (a *Augmented) ParamLen() int { return len(a.vars) - a.nx }

// Vector returns a copy of the current augmented state values
func (a *Augmented) Vector() *mat.VecDense {
	vals := make([]float64, len(a.vars))
	for i, v := range a.vars {
		vals[i] = v.Val
	}

	return mat.NewVecDense(len(vals), vals)
}

// StateVector returns a copy of the state block values
func (a *Augmented) StateVector() *mat.VecDense {
	vals := make([]float64, a.nx)
	for i := 0; i < a.nx; i++ {
		vals[i] = a.vars[i].Val
	}

	return mat.NewVecDense(a.nx, vals)
}

// ParamVector returns a copy of the parameter block values
func (a *Augmented) ParamVector() *mat.VecDense {
	np := a.ParamLen()
	vals := make([]float64, np)
	for i := 0; i < np; i++ {
		vals[i] = a.vars[a.nx+i].Val
	}

	return mat.NewVecDense(np, vals)
}

// Set updates the augmented state values from x.
// It returns error if x dimension does not match the state.
func (a *Augmented) Set(x mat.Vector) error {
	if x.Len() != len(a.vars) {
		return fmt.Errorf("invalid state vector length: %d != %d", x.Len(), len(a.vars))
	}

	for i := range a.vars {
		a.vars[i].Val = x.AtVec(i)
	}

	return nil
}

// Clamp projects x onto the entry bounds in place and returns per-entry
// flags indicating which entries were clamped. The covariance associated
// with the state is left untouched by clamping; the projection is a
// known approximation in constrained filtering.
// It panics if x dimension does not match the state.
func (a *Augmented) Clamp(x *mat.VecDense) []bool {
	if x.Len() != len(a.vars) {
		panic(fmt.Sprintf("invalid state vector length: %d != %d", x.Len(), len(a.vars)))
	}

	active := make([]bool, len(a.vars))
	for i, v := range a.vars {
		val := x.AtVec(i)
		if val < v.Min {
			x.SetVec(i, v.Min)
			active[i] = true
		}
		if val > v.Max {
			x.SetVec(i, v.Max)
			active[i] = true
		}
	}

	return active
}

// Index returns the position of the named entry
func (a *Augmented) Index(name string) (int, bool) {
	i, ok := a.index[name]
	return i, ok
}

// Names returns the entry names in index order
func (a *Augmented) Names() []string {
	names := make([]string, len(a.vars))
	for i, v := range a.vars {
		names[i] = v.Name
	}

	return names
}

// Bounds returns the bounds of entry i
func (a *Augmented) Bounds(i int) (min, max float64) {
	return a.vars[i].Min, a.vars[i].Max
}

// String implements the Stringer interface.
func (a *Augmented) String() string {
	return fmt.Sprintf("Augmented{states=%d, params=%d}", a.nx, a.ParamLen())
}
