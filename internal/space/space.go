// Package space enumerates the cartesian product of discrete parameter
// domains in a fixed order.
package space

import (
	"fmt"
	"iter"
	"math"
	"regexp"
	"slices"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Space is a validated, fixed set of parameter domains.
type Space struct {
	names   []string
	domains [][]int64
}

func New(params []types.Parameter) (*Space, error) {
	s := &Space{
		names:   make([]string, 0, len(params)),
		domains: make([][]int64, 0, len(params)),
	}
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if !namePattern.MatchString(p.Name) {
			return nil, fmt.Errorf("invalid parameter name %q", p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %s", p.Name)
		}
		seen[p.Name] = struct{}{}
		s.names = append(s.names, p.Name)
		s.domains = append(s.domains, slices.Clone(p.Values))
	}
	return s, nil
}

func (s *Space) Names() []string { return slices.Clone(s.names) }

// Size is the product of domain sizes, saturating at math.MaxInt. A space
// with no parameters has exactly one, empty, configuration.
func (s *Space) Size() int {
	n := 1
	for _, d := range s.domains {
		if len(d) == 0 {
			return 0
		}
		if n > math.MaxInt/len(d) {
			return math.MaxInt
		}
		n *= len(d)
	}
	return n
}

// All yields every configuration with the first parameter varying slowest.
// Each call starts a fresh enumeration.
func (s *Space) All() iter.Seq[types.Configuration] {
	return func(yield func(types.Configuration) bool) {
		if s.Size() == 0 {
			return
		}
		idx := make([]int, len(s.domains))
		values := make([]int64, len(s.domains))
		for {
			for i, d := range s.domains {
				values[i] = d[idx[i]]
			}
			cfg, err := types.NewConfiguration(s.names, values)
			if err != nil {
				// names are validated in New
				panic(err)
			}
			if !yield(cfg) {
				return
			}
			i := len(idx) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(s.domains[i]) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}
