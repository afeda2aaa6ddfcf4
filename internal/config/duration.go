package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML duration strings ("2s", "500ms") into a
// time.Duration; yaml.v3 has no built-in support for time.Duration since
// its scalar form isn't numeric.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
