package dto

import "geochat/internal/geo"

// ClientConfigResponse: server defaults clients fall back to
type ClientConfigResponse struct {
	DefaultCenter      geo.Coordinates `json:"default_center"`
	NearbyRadiusKm     float64         `json:"nearby_radius_km"`
	GroupWindowSeconds float64         `json:"group_window_seconds"`
	MapProviderKey     string          `json:"map_provider_key,omitempty"`
}
