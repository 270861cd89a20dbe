package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"geochat/internal/geo"

	"github.com/spf13/cobra"
)

// location.go resolves the user position for the map-like commands and stores it server side.

// positionProvider reads --lat/--lng; missing flags act as a denied location permission
func positionProvider(cmd *cobra.Command) geo.Provider {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
		return geo.StaticProvider{}
	}
	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")
	return geo.StaticProvider{Position: &geo.Coordinates{Lat: lat, Lng: lng}}
}

// locate runs the one-shot position lifecycle and returns the center to use.
// A failed request falls back to the default center after telling the user why.
func locate(ctx context.Context, provider geo.Provider, sink geo.LocationSink, fallback geo.Coordinates, out io.Writer) (geo.Coordinates, error) {
	tracker := geo.NewTracker(geo.TrackerOptions{
		Provider:      provider,
		Sink:          sink,
		DefaultCenter: fallback,
		Logger:        slog.Default(),
		OnError: func(err error) {
			var perr *geo.PositionError
			if errors.As(err, &perr) {
				printNotice(out, "%s", perr.UserMessage())
				return
			}
			printError(out, err)
		},
	})
	defer tracker.Release()

	center, err := tracker.Locate(ctx)
	var perr *geo.PositionError
	if err != nil && !errors.As(err, &perr) {
		return geo.Coordinates{}, err
	}
	return center, nil
}

func addPositionFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("lat", 0, "your latitude")
	cmd.Flags().Float64("lng", 0, "your longitude")
}

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage your stored position",
}

var locationSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store your current position",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runCtx(cmd)
		httpClient, _, err := session(ctx)
		if err != nil {
			return err
		}

		var sinkErr error
		pos, err := geo.NewTracker(geo.TrackerOptions{
			Provider: positionProvider(cmd),
			Sink:     httpClient,
			Logger:   slog.Default(),
			OnError:  func(err error) { sinkErr = err },
		}).Locate(ctx)
		if err != nil {
			var perr *geo.PositionError
			if errors.As(err, &perr) {
				return fmt.Errorf("%s", perr.UserMessage())
			}
			return err
		}
		// sink failures only reach OnError
		if sinkErr != nil {
			return describeError(sinkErr)
		}
		printNotice(cmd.OutOrStdout(), "✓ Location set to %s", pos)
		return nil
	},
}

var avatarCmd = &cobra.Command{
	Use:   "avatar [url]",
	Short: "Set your avatar image, no argument clears it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runCtx(cmd)
		httpClient, _, err := session(ctx)
		if err != nil {
			return err
		}
		url := ""
		if len(args) == 1 {
			url = args[0]
		}
		if err := httpClient.UpdateAvatar(ctx, url); err != nil {
			return describeError(err)
		}
		if url == "" {
			printNotice(cmd.OutOrStdout(), "✓ Avatar cleared")
		} else {
			printNotice(cmd.OutOrStdout(), "✓ Avatar updated")
		}
		return nil
	},
}

func init() {
	addPositionFlags(locationSetCmd)
	locationSetCmd.MarkFlagRequired("lat")
	locationSetCmd.MarkFlagRequired("lng")
	locationCmd.AddCommand(locationSetCmd)
	rootCmd.AddCommand(locationCmd)
	rootCmd.AddCommand(avatarCmd)
}
