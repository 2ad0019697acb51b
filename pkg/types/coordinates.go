package types

import "fmt"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the pair is inside the WGS-84 envelope.
func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range", c.Lon)
	}
	return nil
}

// IsZero reports whether the pair was never set. (0,0) is open ocean, so the
// zero value doubles as "missing".
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}
