package units

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	dunits "github.com/docker/go-units"
)

var (
	// ErrUnrecognizedUnit is returned when a magnitude uses a unit outside
	// the known table.
	ErrUnrecognizedUnit = errors.New("unrecognized unit")

	// ErrMalformedMagnitude is returned when a value is neither a bare
	// percentage nor a "<number> <unit>" pair.
	ErrMalformedMagnitude = errors.New("malformed magnitude")
)

// multipliers maps the units printed by IOR's HumanReadable() and
// ShowFileSystemSize() to their byte multipliers.
var multipliers = map[string]float64{
	"-":     1,
	"bytes": 1,
	"Mi":    1 << 20,
	"MiB":   1 << 20,
	"GiB":   1 << 30,
	"TiB":   1 << 40,
	"MB":    1e6,
	"GB":    1e9,
}

// Multiplier returns the byte multiplier for unit. Decode and Encode
// accept exactly the units it knows.
func Multiplier(unit string) (float64, bool) {
	m, ok := multipliers[unit]

	return m, ok
}

// Decode converts a human-readable magnitude back into a number. A bare
// percentage ("45%") decodes to its numeric value; everything else must be
// "<number> <unit>" and decodes to the value in bytes.
func Decode(s string) (float64, error) {
	fields := strings.Fields(s)

	if len(fields) == 1 && strings.HasSuffix(fields[0], "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedMagnitude, s)
		}

		return v, nil
	}

	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedMagnitude, s)
	}

	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedMagnitude, s)
	}

	mult, ok := Multiplier(fields[1])
	if !ok {
		return 0, fmt.Errorf("%w %q in %q", ErrUnrecognizedUnit, fields[1], s)
	}

	return v * mult, nil
}

// Encode renders value (in bytes) using unit. Decode(Encode(v, u)) == v
// within floating-point tolerance for every known unit.
func Encode(value float64, unit string) (string, error) {
	mult, ok := Multiplier(unit)
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnrecognizedUnit, unit)
	}

	return strconv.FormatFloat(value/mult, 'g', -1, 64) + " " + unit, nil
}

// HumanBytes renders a byte count with binary prefixes for tables.
func HumanBytes(b float64) string {
	return dunits.BytesSize(b)
}
