package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/haivivi/noisemap/pkg/errs"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64
	Lng float64
}

// String renders the pair as "lat, lng", or "unknown" for nil.
func (l *Location) String() string {
	if l == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.6f, %.6f", l.Lat, l.Lng)
}

// NewLocation validates a coordinate pair.
func NewLocation(lat, lng float64) (*Location, error) {
	const op = "api.location"
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, errs.Newf(errs.KindInvalidInput, op, "latitude %v out of range", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return nil, errs.Newf(errs.KindInvalidInput, op, "longitude %v out of range", lng)
	}
	return &Location{Lat: lat, Lng: lng}, nil
}

// ParseLocation parses optional form values. Both empty (or "unknown")
// yields nil; exactly one present is an error.
func ParseLocation(lat, lng string) (*Location, error) {
	const op = "api.location"
	lat, lng = normCoord(lat), normCoord(lng)
	if lat == "" && lng == "" {
		return nil, nil
	}
	if lat == "" || lng == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "latitude and longitude must be sent together")
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, errs.Newf(errs.KindInvalidInput, op, "invalid latitude %q", lat)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, errs.Newf(errs.KindInvalidInput, op, "invalid longitude %q", lng)
	}
	return NewLocation(la, ln)
}

func normCoord(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "unknown") {
		return ""
	}
	return s
}
