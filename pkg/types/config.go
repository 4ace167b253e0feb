package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Parameter is one tunable knob and its ordered domain of candidate values.
type Parameter struct {
	Name   string  `json:"name" yaml:"name"`
	Values []int64 `json:"values" yaml:"values"`
}

// Configuration assigns one value to every parameter of a search space.
// It is immutable; accessors return copies. JSON encoding keeps parameter order.
type Configuration struct {
	names  []string
	values []int64
}

func NewConfiguration(names []string, values []int64) (Configuration, error) {
	if len(names) != len(values) {
		return Configuration{}, fmt.Errorf("configuration has %d names but %d values", len(names), len(values))
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return Configuration{}, fmt.Errorf("duplicate parameter %s in configuration", n)
		}
		seen[n] = struct{}{}
	}
	return Configuration{names: slices.Clone(names), values: slices.Clone(values)}, nil
}

func (c Configuration) Len() int { return len(c.names) }

func (c Configuration) Names() []string { return slices.Clone(c.names) }

func (c Configuration) Values() []int64 { return slices.Clone(c.values) }

func (c Configuration) Value(name string) (int64, bool) {
	i := slices.Index(c.names, name)
	if i < 0 {
		return 0, false
	}
	return c.values[i], true
}

// Overrides renders the configuration as KEY=value pairs in parameter order.
func (c Configuration) Overrides() []string {
	out := make([]string, 0, len(c.names))
	for i, n := range c.names {
		out = append(out, n+"="+strconv.FormatInt(c.values[i], 10))
	}
	return out
}

func (c Configuration) String() string {
	return strings.Join(c.Overrides(), " ")
}

func (c Configuration) Equal(other Configuration) bool {
	return slices.Equal(c.names, other.names) && slices.Equal(c.values, other.values)
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, n := range c.names {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(c.values[i], 10))
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode configuration: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode configuration: expected object, got %v", tok)
	}
	var names []string
	var values []int64
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode configuration: %w", err)
		}
		name, _ := tok.(string)
		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("decode configuration %s: %w", name, err)
		}
		num, ok := tok.(json.Number)
		if !ok {
			return fmt.Errorf("decode configuration %s: expected integer, got %v", name, tok)
		}
		v, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("decode configuration %s: %w", name, err)
		}
		names = append(names, name)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode configuration: %w", err)
	}
	cfg, err := NewConfiguration(names, values)
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}
