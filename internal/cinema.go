package internal

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"unicode/utf8"
)

// ErrInvalidCinema wraps every cinema validation failure.
var ErrInvalidCinema = errors.New("invalid cinema")

var cinemaIDPattern = regexp.MustCompile(`^[A-Z]\d{4}$`)

const (
	maxCinemaNameLen = 191
	maxCinemaTextLen = 255
)

// Validate checks the cinema against the relational constraints of the cinemas table.
// All violations are reported together, wrapped in ErrInvalidCinema.
func (c Cinema) Validate() error {
	var errs []error
	if !cinemaIDPattern.MatchString(c.ID) {
		errs = append(errs, fmt.Errorf("cinema_id %q must be one uppercase letter followed by four digits", c.ID))
	}
	if n := utf8.RuneCountInString(c.Name); n < 2 || n > maxCinemaNameLen {
		errs = append(errs, fmt.Errorf("name must be 2..%d characters, got %d", maxCinemaNameLen, n))
	}
	if n := utf8.RuneCountInString(c.Town); n < 3 || n > maxCinemaNameLen {
		errs = append(errs, fmt.Errorf("town must be 3..%d characters, got %d", maxCinemaNameLen, n))
	}
	if n := utf8.RuneCountInString(c.Address); n > maxCinemaTextLen {
		errs = append(errs, fmt.Errorf("address must be at most %d characters, got %d", maxCinemaTextLen, n))
	}
	if n := utf8.RuneCountInString(c.Info); n > maxCinemaTextLen {
		errs = append(errs, fmt.Errorf("info must be at most %d characters, got %d", maxCinemaTextLen, n))
	}
	if c.Coord != nil {
		if err := c.Coord.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidCinema, errors.Join(errs...))
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return errors.New("gps values must be finite")
	}
	if math.Abs(c.Lat) > 90 {
		return fmt.Errorf("gps latitude %v out of range", c.Lat)
	}
	if math.Abs(c.Lon) > 180 {
		return fmt.Errorf("gps longitude %v out of range", c.Lon)
	}
	return nil
}

// CoordinateFromPair builds a Coordinate from a [lat, lon] pair. Anything but
// exactly two values is rejected.
func CoordinateFromPair(pair []float64) (*Coordinate, error) {
	if len(pair) == 0 {
		return nil, nil
	}
	if len(pair) != 2 {
		return nil, fmt.Errorf("%w: gps must have exactly 2 values, got %d", ErrInvalidCinema, len(pair))
	}
	c := &Coordinate{Lat: pair[0], Lon: pair[1]}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCinema, err)
	}
	return c, nil
}
