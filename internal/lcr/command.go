// Package lcr encodes actuator intensities into the fixed 12-character
// command understood by the microcontroller, L###C###R###, and parses it
// back.
package lcr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/wayfinder/internal/intensity"
	"github.com/banshee-data/wayfinder/internal/sensor"
)

// TokenLen is the length of an encoded command, without the line terminator.
const TokenLen = 12

// IdleToken switches every actuator off.
const IdleToken = "L000C000R000"

// ErrMalformed is returned by Parse for anything that is not a command token.
var ErrMalformed = errors.New("malformed LCR command")

var tokenPattern = regexp.MustCompile(`^L(\d{3})C(\d{3})R(\d{3})$`)

// Command holds the intensity of the left, center and right actuators.
type Command struct {
	Left   int
	Center int
	Right  int
}

// FromIntensities builds a command from per-zone intensities.
func FromIntensities(z sensor.ZoneIntensities) Command {
	return Command{Left: z[sensor.Left], Center: z[sensor.Center], Right: z[sensor.Right]}
}

// Uniform returns a command with the same intensity on every zone.
func Uniform(v int) Command {
	return Command{Left: v, Center: v, Right: v}
}

// Clamped returns c with every zone limited to [0,100].
func (c Command) Clamped() Command {
	return Command{
		Left:   intensity.Clamp(c.Left),
		Center: intensity.Clamp(c.Center),
		Right:  intensity.Clamp(c.Right),
	}
}

// IsIdle reports whether every actuator is off.
func (c Command) IsIdle() bool {
	return c.Clamped() == Command{}
}

// String renders the command token. Values are clamped first, so the result
// is always TokenLen characters long.
func (c Command) String() string {
	c = c.Clamped()
	return fmt.Sprintf("L%03dC%03dR%03d", c.Left, c.Center, c.Right)
}

// Parse decodes a token produced by Command.String. Surrounding whitespace,
// including the transport's trailing newline, is ignored.
func Parse(token string) (Command, error) {
	m := tokenPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformed, token)
	}
	var vals [3]int
	for i := range vals {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q: %v", ErrMalformed, token, err)
		}
		if v > intensity.Max {
			return Command{}, fmt.Errorf("%w: %q: intensity %d out of range", ErrMalformed, token, v)
		}
		vals[i] = v
	}
	return Command{Left: vals[0], Center: vals[1], Right: vals[2]}, nil
}
