package handler

import (
	"errors"
	"net/http"
	"testing"

	"geochat/internal/chat"
	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/models"
	"geochat/internal/microservices/http-api/service"

	"github.com/stretchr/testify/assert"
)

func TestUsers_Me(t *testing.T) {
	api := newTestAPI()
	api.users.On("Me", "u1").Return(&models.User{ID: "u1", Username: "alice", Password: "hash"}, nil)

	w := doJSON(api, http.MethodGet, "/api/users/me", nil, "good")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.NotContains(t, w.Body.String(), "hash")
}

func TestUsers_UpdateLocation(t *testing.T) {
	api := newTestAPI()
	api.users.On("UpdateLocation", "u1", geo.Coordinates{Lat: 45.76, Lng: 4.83}).Return(nil)

	w := doJSON(api, http.MethodPut, "/api/users/me/location", map[string]float64{"latitude": 45.76, "longitude": 4.83}, "good")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(api, http.MethodPut, "/api/users/me/location", map[string]float64{"latitude": 95, "longitude": 4.83}, "good")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	api.users.AssertNumberOfCalls(t, "UpdateLocation", 1)
}

func TestUsers_Author(t *testing.T) {
	api := newTestAPI()
	api.users.On("Author", "u2").Return(&chat.Author{UserID: "u2", Username: "bob"}, nil)
	api.users.On("Author", "gone").Return(nil, service.ErrAuthorNotFound)
	api.users.On("Author", "boom").Return(nil, errors.New("db down"))

	w := doJSON(api, http.MethodGet, "/api/users/u2/author", nil, "good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"bob"`)

	w = doJSON(api, http.MethodGet, "/api/users/gone/author", nil, "good")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(api, http.MethodGet, "/api/users/boom/author", nil, "good")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}
