package handler

import (
	"context"
	"time"

	"geochat/internal/chat"
	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/models"
	"geochat/internal/microservices/http-api/repository"
	"geochat/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

// MockAuthService mocks the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	args := m.Called(username, password, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (string, string, *models.User, error) {
	args := m.Called(username, password)
	user, _ := args.Get(2).(*models.User)
	return args.String(0), args.String(1), user, args.Error(3)
}

func (m *MockAuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(refreshToken)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) RevokeToken(ctx context.Context, refreshToken string) error {
	args := m.Called(refreshToken)
	return args.Error(0)
}

func (m *MockAuthService) ValidateToken(tokenString string) (*service.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Claims), args.Error(1)
}

func (m *MockAuthService) AccessTokenTTL() time.Duration { return 15 * time.Minute }

// MockChannelService mocks the ChannelService interface
type MockChannelService struct {
	mock.Mock
}

func (m *MockChannelService) List(ctx context.Context) ([]models.Channel, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Channel), args.Error(1)
}

func (m *MockChannelService) Nearby(ctx context.Context, center geo.Coordinates, radiusKm float64) ([]repository.NearbyChannel, error) {
	args := m.Called(center, radiusKm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.NearbyChannel), args.Error(1)
}

func (m *MockChannelService) Create(ctx context.Context, in service.CreateChannelInput) (*models.Channel, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Channel), args.Error(1)
}

func (m *MockChannelService) Get(ctx context.Context, id string) (*models.Channel, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Channel), args.Error(1)
}

// MockMessageService mocks the MessageService interface
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, channelID, userID, content string) (*models.Message, error) {
	args := m.Called(channelID, userID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) List(ctx context.Context, channelID string) ([]models.Message, error) {
	args := m.Called(channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) ListMessages(ctx context.Context, channelID string) ([]chat.Message, error) {
	args := m.Called(channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.Message), args.Error(1)
}

func (m *MockMessageService) Grouped(ctx context.Context, channelID string) ([]chat.MessageGroup, error) {
	args := m.Called(channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.MessageGroup), args.Error(1)
}

func (m *MockMessageService) GroupWindow() time.Duration { return 5 * time.Minute }

// MockUserService mocks the UserService interface
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Me(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateLocation(ctx context.Context, userID string, position geo.Coordinates) error {
	args := m.Called(userID, position)
	return args.Error(0)
}

func (m *MockUserService) UpdateAvatar(ctx context.Context, userID string, avatarURL *string) error {
	args := m.Called(userID, avatarURL)
	return args.Error(0)
}

func (m *MockUserService) Author(ctx context.Context, userID string) (*chat.Author, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Author), args.Error(1)
}

type testAPI struct {
	auth     *MockAuthService
	channels *MockChannelService
	messages *MockMessageService
	users    *MockUserService
	router   *gin.Engine
}

// newTestAPI builds the full router; "Bearer good" authenticates as u1/alice
func newTestAPI() *testAPI {
	gin.SetMode(gin.TestMode)
	api := &testAPI{
		auth:     new(MockAuthService),
		channels: new(MockChannelService),
		messages: new(MockMessageService),
		users:    new(MockUserService),
	}
	api.auth.On("ValidateToken", "good").Return(&service.Claims{UserID: "u1", Username: "alice"}, nil).Maybe()
	api.auth.On("ValidateToken", mock.Anything).Return(nil, service.ErrInvalidToken).Maybe()
	api.router = NewRouter(RouterDeps{
		Auth:     api.auth,
		Channels: api.channels,
		Messages: api.messages,
		Users:    api.users,
	})
	return api
}
