package client

// http_client.go = REST side of the geochat CLI: auth, channels, messages, location.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"geochat/internal/chat"
	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/dto"
)

// APIError is a non-2xx answer of the API server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// HTTPClient talks to the REST API.
// It serves as the message store, author store and location sink of the CLI chat view.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// constructor for HTTP client
func NewHTTPClient(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// set token for HTTP client
func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) Token() string { return c.token }

func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) Register(ctx context.Context, request *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	var result dto.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Login(ctx context.Context, request *dto.LoginRequest) (*dto.AuthResponse, error) {
	var result dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (*dto.RefreshResponse, error) {
	var result dto.RefreshResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh", dto.RefreshTokenRequest{RefreshToken: refreshToken}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout revokes the refresh token server side
func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", dto.RefreshTokenRequest{RefreshToken: refreshToken}, nil)
}

// ClientConfig fetches the server defaults; no login needed
func (c *HTTPClient) ClientConfig(ctx context.Context) (*dto.ClientConfigResponse, error) {
	var result dto.ClientConfigResponse
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*dto.UserResponse, error) {
	var result dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateLocation stores the last known position of the logged in user
func (c *HTTPClient) UpdateLocation(ctx context.Context, pos geo.Coordinates) error {
	lat, lng := pos.Lat, pos.Lng
	return c.do(ctx, http.MethodPut, "/api/users/me/location", dto.UpdateLocationRequest{
		Latitude:  &lat,
		Longitude: &lng,
	}, nil)
}

func (c *HTTPClient) UpdateAvatar(ctx context.Context, avatarURL string) error {
	var req dto.UpdateAvatarRequest
	if avatarURL != "" {
		req.AvatarURL = &avatarURL
	}
	return c.do(ctx, http.MethodPut, "/api/users/me/avatar", req, nil)
}

// LookupAuthor resolves a user id to display info; nil, nil when the user does not exist
func (c *HTTPClient) LookupAuthor(ctx context.Context, userID string) (*chat.Author, error) {
	var author chat.Author
	err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/author", nil, &author)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (c *HTTPClient) ListChannels(ctx context.Context) ([]dto.ChannelResponse, error) {
	var result struct {
		Data []dto.ChannelResponse `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/channels", nil, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// NearbyChannels lists channels around center, closest first. radiusKm <= 0 uses the server default.
func (c *HTTPClient) NearbyChannels(ctx context.Context, center geo.Coordinates, radiusKm float64) ([]dto.ChannelResponse, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(center.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(center.Lng, 'f', -1, 64))
	if radiusKm > 0 {
		q.Set("radius_km", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	}

	var result struct {
		Data []dto.ChannelResponse `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/channels/nearby?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (c *HTTPClient) CreateChannel(ctx context.Context, request *dto.CreateChannelRequest) (*dto.ChannelResponse, error) {
	var result dto.ChannelResponse
	if err := c.do(ctx, http.MethodPost, "/api/channels", request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) GetChannel(ctx context.Context, channelID string) (*dto.ChannelResponse, error) {
	var result dto.ChannelResponse
	if err := c.do(ctx, http.MethodGet, "/api/channels/"+url.PathEscape(channelID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, channelID, content string) (*dto.ChatMessageResponse, error) {
	var result dto.ChatMessageResponse
	path := "/api/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, dto.SendMessageRequest{Content: content}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListMessages is the bulk read of a channel, authors already joined
func (c *HTTPClient) ListMessages(ctx context.Context, channelID string) ([]chat.Message, error) {
	var result struct {
		Data []dto.ChatMessageResponse `json:"data"`
	}
	path := "/api/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	out := make([]chat.Message, 0, len(result.Data))
	for _, m := range result.Data {
		out = append(out, chat.Message{
			ID:        m.ID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Author:    m.User,
		})
	}
	return out, nil
}
