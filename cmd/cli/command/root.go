package command

// root.go defines the root command of the geochat CLI and its global flags.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"geochat/cmd/cli/authentication"
	"geochat/cmd/cli/command/client"
	"geochat/internal/chat"
	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/dto"

	"github.com/spf13/cobra"
)

// refreshSkew renews the access token slightly before it expires
const refreshSkew = 30 * time.Second

var (
	apiURL      string        // API server URL
	groupWindow time.Duration // max gap between grouped messages
	defaultLat  float64       // fallback map center
	defaultLng  float64
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "geochat",
	Short: "geochat - location based chat channels from the terminal",
	Long: `geochat lets you find chat channels around a position and talk in them live.

- Register and login with "geochat auth"
- Find channels near you with "geochat channel nearby"
- Open a channel and chat with "geochat channel open <id>"

Flags default to GEOCHAT_API_URL, GEOCHAT_GROUP_WINDOW, GEOCHAT_DEFAULT_LAT and
GEOCHAT_DEFAULT_LNG when those are set.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envString("GEOCHAT_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().DurationVar(&groupWindow, "group-window", envDuration("GEOCHAT_GROUP_WINDOW", chat.DefaultGroupWindow), "max gap between messages rendered in one group")
	rootCmd.PersistentFlags().Float64Var(&defaultLat, "default-lat", envFloat("GEOCHAT_DEFAULT_LAT", 48.8566), "latitude used when no position is available")
	rootCmd.PersistentFlags().Float64Var(&defaultLng, "default-lng", envFloat("GEOCHAT_DEFAULT_LNG", 2.3522), "longitude used when no position is available")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func defaultCenter() geo.Coordinates {
	return geo.Coordinates{Lat: defaultLat, Lng: defaultLng}
}

// configProvider is the part of the API client fallbackCenter needs
type configProvider interface {
	ClientConfig(ctx context.Context) (*dto.ClientConfigResponse, error)
}

// fallbackCenter is the center used when no position is available: --default-lat/lng
// when given, otherwise the server's DEFAULT_LAT/DEFAULT_LNG, otherwise the built-in default
func fallbackCenter(ctx context.Context, api configProvider) geo.Coordinates {
	flags := rootCmd.PersistentFlags()
	if flags.Changed("default-lat") || flags.Changed("default-lng") ||
		os.Getenv("GEOCHAT_DEFAULT_LAT") != "" || os.Getenv("GEOCHAT_DEFAULT_LNG") != "" {
		return defaultCenter()
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	cfg, err := api.ClientConfig(ctx)
	if err != nil || !cfg.DefaultCenter.Valid() {
		slog.Debug("server_default_center_unavailable", "error", err)
		return defaultCenter()
	}
	return cfg.DefaultCenter
}

// session returns a client authenticated with the stored tokens, refreshing the access
// token first when it is about to expire
func session(ctx context.Context) (*client.HTTPClient, *authentication.StoredCredentials, error) {
	creds, err := authentication.GetTokens()
	if err != nil {
		return nil, nil, err
	}

	base := apiURL
	if creds.APIURL != "" && !rootCmd.PersistentFlags().Changed("api") && os.Getenv("GEOCHAT_API_URL") == "" {
		base = creds.APIURL
	}
	c := client.NewHTTPClient(base)

	if creds.Expired(time.Now(), refreshSkew) {
		resp, err := c.RefreshToken(ctx, creds.RefreshToken)
		if err != nil {
			return nil, nil, fmt.Errorf("session expired, run 'geochat auth login': %w", err)
		}
		creds.AccessToken = resp.AccessToken
		creds.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
		if err := authentication.StoreTokens(creds); err != nil {
			slog.Warn("token_store_failed", "error", err)
		}
	}

	c.SetToken(creds.AccessToken)
	return c, creds, nil
}

// runCtx is the context of one command; interrupt cancels it
func runCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func isNotLoggedIn(err error) bool {
	return errors.Is(err, authentication.ErrNotLoggedIn)
}
