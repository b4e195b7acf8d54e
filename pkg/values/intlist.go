// Package values parses the flexible list-valued options accepted by the
// autotune commands: comma-separated positive integers, bare scalars, and
// (for some options) the literal sentinel "auto".
package values

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/NVIDIA/dgxc-autotune/pkg/errors"
)

const autoSentinel = "auto"

// ParseIntList converts a raw option value into an ordered list of positive
// integers. An empty or all-whitespace input is unset and yields nil.
// A bare scalar becomes a one-element list. Order is preserved.
func ParseIntList(input string) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	var out []int
	for _, tok := range strings.Split(input, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, errors.Newf(errors.ErrCodeParse, "invalid integer %q in %q", tok, input)
		}
		if n <= 0 {
			return nil, errors.Newf(errors.ErrCodeRange, "all values must be positive integers, got: %d", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// ListOrAuto is either an ordered list of positive integers, the sentinel
// Auto, or unset. It never mixes the sentinel with explicit values.
type ListOrAuto struct {
	Auto   bool
	Values []int
}

// ParseIntListOrAuto behaves like ParseIntList but additionally accepts the
// case-insensitive sentinel "auto" as the entire value. Mixing "auto" into a
// comma list is rejected.
func ParseIntListOrAuto(input string) (ListOrAuto, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ListOrAuto{}, nil
	}
	if strings.EqualFold(trimmed, autoSentinel) {
		return ListOrAuto{Auto: true}, nil
	}
	for _, tok := range strings.Split(trimmed, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), autoSentinel) {
			return ListOrAuto{}, errors.Newf(errors.ErrCodeMixedSentinel,
				"cannot mix 'auto' with specific values in %q", trimmed)
		}
	}
	vals, err := ParseIntList(trimmed)
	if err != nil {
		return ListOrAuto{}, err
	}
	return ListOrAuto{Values: vals}, nil
}

// IsUnset reports whether neither the sentinel nor any value is present.
func (l ListOrAuto) IsUnset() bool {
	return !l.Auto && len(l.Values) == 0
}

// MarshalJSON encodes the sentinel as the string "auto", unset as null, and
// values as a plain array, matching the persisted args.json layout.
func (l ListOrAuto) MarshalJSON() ([]byte, error) {
	if l.Auto {
		return json.Marshal(autoSentinel)
	}
	if l.Values == nil {
		return []byte("null"), nil
	}
	return json.Marshal(l.Values)
}

// UnmarshalJSON accepts "auto", null, or an integer array.
func (l *ListOrAuto) UnmarshalJSON(data []byte) error {
	*l = ListOrAuto{}
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(str), autoSentinel) {
			return errors.Newf(errors.ErrCodeParse, "invalid list value %q", str)
		}
		l.Auto = true
		return nil
	}
	return json.Unmarshal(data, &l.Values)
}

func (l ListOrAuto) String() string {
	if l.Auto {
		return autoSentinel
	}
	if len(l.Values) == 0 {
		return ""
	}
	parts := make([]string, len(l.Values))
	for i, v := range l.Values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
