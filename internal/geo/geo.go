package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// Coordinates = a WGS84 position
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether the coordinates are within WGS84 bounds
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lng)
}

// Distance returns the great-circle distance between a and b in kilometers (haversine)
func Distance(a, b Coordinates) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// ErrorCode classifies geolocation failures
type ErrorCode int

const (
	PermissionDenied ErrorCode = iota + 1
	PositionUnavailable
	Timeout
)

func (c ErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// PositionError is the typed failure of a position request
type PositionError struct {
	Code ErrorCode
	Err  error // underlying cause, may be nil
}

func (e *PositionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geolocation %s: %v", e.Code, e.Err)
	}
	return "geolocation " + e.Code.String()
}

func (e *PositionError) Unwrap() error { return e.Err }

// UserMessage returns the category specific text shown to the user
func (e *PositionError) UserMessage() string {
	switch e.Code {
	case PermissionDenied:
		return "Location access was denied. Showing channels around the default location."
	case PositionUnavailable:
		return "Your position is currently unavailable. Showing channels around the default location."
	case Timeout:
		return "Locating you took too long. Showing channels around the default location."
	default:
		return "Could not determine your position."
	}
}

// AsPositionError classifies err. Context deadline errors map to Timeout and anything
// else unclassified maps to PositionUnavailable.
func AsPositionError(err error) *PositionError {
	if err == nil {
		return nil
	}
	var pe *PositionError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PositionError{Code: Timeout, Err: err}
	}
	return &PositionError{Code: PositionUnavailable, Err: err}
}

// Provider answers one-shot position requests
type Provider interface {
	CurrentPosition(ctx context.Context) (Coordinates, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) (Coordinates, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context) (Coordinates, error) { return f(ctx) }

// StaticProvider always reports the same position; a nil position means permission denied
type StaticProvider struct {
	Position *Coordinates
}

func (p StaticProvider) CurrentPosition(ctx context.Context) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, AsPositionError(err)
	}
	if p.Position == nil {
		return Coordinates{}, &PositionError{Code: PermissionDenied}
	}
	if !p.Position.Valid() {
		return Coordinates{}, &PositionError{Code: PositionUnavailable, Err: fmt.Errorf("invalid coordinates %s", p.Position)}
	}
	return *p.Position, nil
}
