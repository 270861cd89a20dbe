package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig_Public(t *testing.T) {
	api := newTestAPI()
	api.router = NewRouter(RouterDeps{
		Auth:     api.auth,
		Channels: api.channels,
		Messages: api.messages,
		Users:    api.users,
		ClientConfig: dto.ClientConfigResponse{
			DefaultCenter:      geo.Coordinates{Lat: 45.76, Lng: 4.83},
			NearbyRadiusKm:     10,
			GroupWindowSeconds: 300,
			MapProviderKey:     "pk.test",
		},
	})

	w := doJSON(api, http.MethodGet, "/api/config", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	var got dto.ClientConfigResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 45.76, got.DefaultCenter.Lat)
	assert.Equal(t, 4.83, got.DefaultCenter.Lng)
	assert.Equal(t, 10.0, got.NearbyRadiusKm)
	assert.Equal(t, 300.0, got.GroupWindowSeconds)
	assert.Equal(t, "pk.test", got.MapProviderKey)
}
