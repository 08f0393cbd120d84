package supermode

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/interp"
)

// ITRToSlice maps ITR values to the nearest lower step index by linear interpolation
// of the step number against the sweep's ITR. The ITR sequence must be strictly
// monotonic for the map to exist.
func (s *Set) ITRToSlice(itr ...float64) (slices []int, err error) {
	var (
		ns   = s.NSteps()
		xs   = make([]float64, ns)
		ys   = make([]float64, ns)
		incr = ns < 2 || s.ITR[1] > s.ITR[0]
	)
	if ns == 1 {
		slices = make([]int, len(itr))
		for _, v := range itr {
			if v != s.ITR[0] {
				return nil, fmt.Errorf("ITR %g is not in the sweep [%g]", v, s.ITR[0])
			}
		}
		return
	}
	for i := 0; i < ns; i++ {
		ii := i
		if !incr {
			ii = ns - 1 - i
		}
		xs[i], ys[i] = s.ITR[ii], float64(ii)
		if i > 0 && !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("ITR sequence is not strictly monotonic at step %d", ii)
		}
	}
	var pl interp.PiecewiseLinear
	if err = pl.Fit(xs, ys); err != nil {
		return
	}
	slices = make([]int, len(itr))
	for i, v := range itr {
		if v < xs[0] || v > xs[ns-1] {
			return nil, fmt.Errorf("ITR %g is outside the sweep range [%g, %g]", v, xs[0], xs[ns-1])
		}
		slices[i] = int(math.Floor(pl.Predict(v) + 1e-9))
	}
	return
}

func (s *Set) SliceToITR(slices ...int) (itr []float64, err error) {
	itr = make([]float64, len(slices))
	for i, sl := range slices {
		if sl < 0 || sl >= s.NSteps() {
			return nil, fmt.Errorf("slice %d out of range [0, %d)", sl, s.NSteps())
		}
		itr[i] = s.ITR[sl]
	}
	return
}

// NameModes labels modes in order, extra names are an error
func (s *Set) NameModes(names ...string) (err error) {
	if len(names) > s.NModes() {
		return fmt.Errorf("%d names for %d modes", len(names), s.NModes())
	}
	for i, name := range names {
		s.Modes[i].Name = name
	}
	return
}

func (s *Set) Mode(name string) (m *SuperMode, err error) {
	for _, m = range s.Modes {
		if m.Name == name {
			return
		}
	}
	return nil, fmt.Errorf("no mode named %q", name)
}

// Ordered returns the modes by decreasing beta at the last completed step. The Set's
// own mode numbering is unchanged.
func (s *Set) Ordered() (modes []*SuperMode) {
	modes = make([]*SuperMode, len(s.Modes))
	copy(modes, s.Modes)
	last := s.CompletedSteps - 1
	if last < 0 {
		return
	}
	sort.SliceStable(modes, func(i, j int) bool {
		return modes[i].Beta(last) > modes[j].Beta(last)
	})
	return
}

type Selection uint8

const (
	SelectAll      Selection = iota // Every pair in the set
	SelectPairs                     // Every pair among the given modes
	SelectSpecific                  // Each given mode with every other mode in the set
)

var selectionNames = map[string]Selection{
	"all":      SelectAll,
	"pairs":    SelectPairs,
	"specific": SelectSpecific,
}

func ParseSelection(label string) (sel Selection, err error) {
	var ok bool
	if sel, ok = selectionNames[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown mode selection %q", label)
	}
	return
}

// Combinations lists unordered mode pairs in ascending mode number order
func (s *Set) Combinations(sel Selection, modes ...*SuperMode) (pairs [][2]*SuperMode, err error) {
	for _, m := range modes {
		if m == nil || m.set != s {
			return nil, fmt.Errorf("mode %s does not belong to this set", m)
		}
	}
	var (
		nm   = s.NModes()
		want = make([]bool, nm*nm)
		mark = func(i, j int) {
			if i == j {
				return
			}
			if i > j {
				i, j = j, i
			}
			want[i*nm+j] = true
		}
	)
	switch sel {
	case SelectAll:
		for i := 0; i < nm; i++ {
			for j := i + 1; j < nm; j++ {
				mark(i, j)
			}
		}
	case SelectPairs:
		for _, a := range modes {
			for _, b := range modes {
				mark(a.ModeNumber, b.ModeNumber)
			}
		}
	case SelectSpecific:
		for _, a := range modes {
			for j := 0; j < nm; j++ {
				mark(a.ModeNumber, j)
			}
		}
	default:
		return nil, fmt.Errorf("unknown mode selection %d", sel)
	}
	for i := 0; i < nm; i++ {
		for j := i + 1; j < nm; j++ {
			if want[i*nm+j] {
				pairs = append(pairs, [2]*SuperMode{s.Modes[i], s.Modes[j]})
			}
		}
	}
	return
}
