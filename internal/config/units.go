package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Units is a count that is either a positive integer or "auto", meaning
// the value is derived from the hardware at init time.
type Units uint64

// UnitsAuto is the zero value.
const UnitsAuto Units = 0

const autoName = "auto"

// ParseUnits accepts "auto" or a positive decimal integer.
func ParseUnits(s string) (Units, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, autoName) {
		return UnitsAuto, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return UnitsAuto, errors.Errorf("invalid value %q: want %q or a positive integer", s, autoName)
	}
	return Units(n), nil
}

func (u Units) IsAuto() bool { return u == UnitsAuto }

func (u Units) String() string {
	if u.IsAuto() {
		return autoName
	}
	return strconv.FormatUint(uint64(u), 10)
}

func (u *Units) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: units must be a scalar", value.Line)
	}
	parsed, err := ParseUnits(value.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*u = parsed
	return nil
}

func (u Units) MarshalYAML() (interface{}, error) {
	if u.IsAuto() {
		return autoName, nil
	}
	return uint64(u), nil
}
