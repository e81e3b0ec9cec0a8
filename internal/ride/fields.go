package ride

import (
	"bytes"
	"fmt"
	"strconv"
)

// Flag is a boolean the API encodes either as true/false or as 0/1.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "null", "0", "false", `""`, `"0"`, `"false"`:
		*f = false
	case "1", "true", `"1"`, `"true"`:
		*f = true
	default:
		return fmt.Errorf("invalid flag value %s", s)
	}
	return nil
}

// Coord is an optional coordinate component. The API sends numbers, numeric
// strings, empty strings or null.
type Coord struct {
	Value float64
	Valid bool
}

// NewCoord returns a present coordinate.
func NewCoord(v float64) Coord { return Coord{Value: v, Valid: true} }

func (c Coord) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, c.Value, 'f', -1, 64), nil
}

func (c *Coord) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "null" {
		*c = Coord{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		if s == "" {
			*c = Coord{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", data, err)
	}
	*c = Coord{Value: v, Valid: true}
	return nil
}
