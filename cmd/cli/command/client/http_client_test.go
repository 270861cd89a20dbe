package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mux *http.ServeMux) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	c := NewHTTPClient(server.URL + "/")
	c.SetToken("tok")
	return c
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
			return
		}
		writeJSON(w, http.StatusOK, dto.AuthResponse{AccessToken: "a", RefreshToken: "r", UserID: "u1", Username: req.Username, ExpiresIn: 900})
	})
	c := newTestServer(t, mux)

	resp, err := c.Login(context.Background(), &dto.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AccessToken)
	assert.Equal(t, "alice", resp.Username)

	_, err = c.Login(context.Background(), &dto.LoginRequest{Username: "alice", Password: "nope"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid username or password", apiErr.Message)
}

func TestLookupAuthor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}/author", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.PathValue("id") {
		case "u2":
			writeJSON(w, http.StatusOK, map[string]any{"user_id": "u2", "username": "bob", "avatar_url": nil})
		case "gone":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "author not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
	})
	c := newTestServer(t, mux)

	author, err := c.LookupAuthor(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "bob", author.Username)

	author, err = c.LookupAuthor(context.Background(), "gone")
	assert.NoError(t, err)
	assert.Nil(t, author)

	_, err = c.LookupAuthor(context.Background(), "boom")
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
}

func TestListMessages(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/channels/c1/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
			{"id": "m1", "channel_id": "c1", "content": "hi", "created_at": created, "user_id": "u1",
				"user": map[string]any{"user_id": "u1", "username": "alice"}},
			{"id": "m2", "channel_id": "c1", "content": "orphan", "created_at": created, "user_id": "u9", "user": nil},
		}})
	})
	c := newTestServer(t, mux)

	messages, err := c.ListMessages(context.Background(), "c1")

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "alice", messages[0].Author.Username)
	assert.True(t, messages[0].CreatedAt.Equal(created))
	assert.Nil(t, messages[1].Author)
}

func TestNearbyChannels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/channels/nearby", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "48.85", q.Get("lat"))
		assert.Equal(t, "2.35", q.Get("lng"))
		d := 0.4
		writeJSON(w, http.StatusOK, map[string]any{"data": []dto.ChannelResponse{{ID: "c1", Name: "Canal", DistanceKm: &d}}})
	})
	c := newTestServer(t, mux)

	channels, err := c.NearbyChannels(context.Background(), geo.Coordinates{Lat: 48.85, Lng: 2.35}, 0)

	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, 0.4, *channels[0].DistanceKm)
}

func TestUpdateLocation(t *testing.T) {
	var got dto.UpdateLocationRequest
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/users/me/location", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]float64{"lat": *got.Latitude, "lng": *got.Longitude})
	})
	c := newTestServer(t, mux)

	require.NoError(t, c.UpdateLocation(context.Background(), geo.Coordinates{Lat: 45.76, Lng: 4.83}))
	assert.Equal(t, 45.76, *got.Latitude)
	assert.Equal(t, 4.83, *got.Longitude)
}

func TestUpdateAvatar_EmptyClears(t *testing.T) {
	var got dto.UpdateAvatarRequest
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/users/me/avatar", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestServer(t, mux)

	require.NoError(t, c.UpdateAvatar(context.Background(), ""))
	assert.Nil(t, got.AvatarURL)
}

func TestClientConfig(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"default_center":   map[string]float64{"latitude": 45.76, "longitude": 4.83},
			"nearby_radius_km": 10,
		})
	})
	c := newTestServer(t, mux)

	cfg, err := c.ClientConfig(context.Background())

	require.NoError(t, err)
	assert.Equal(t, geo.Coordinates{Lat: 45.76, Lng: 4.83}, cfg.DefaultCenter)
	assert.Equal(t, 10.0, cfg.NearbyRadiusKm)
}
