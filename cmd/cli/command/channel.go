package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"geochat/cmd/cli/command/client"
	"geochat/internal/chat"
	"geochat/internal/microservices/http-api/dto"

	"github.com/spf13/cobra"
)

var channelCmd = &cobra.Command{
	Use:     "channel",
	Aliases: []string{"ch"},
	Short:   "Find, create and chat in channels",
}

var channelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runCtx(cmd)
		httpClient, _, err := session(ctx)
		if err != nil {
			return err
		}
		channels, err := httpClient.ListChannels(ctx)
		if err != nil {
			return describeError(err)
		}
		printChannels(cmd.OutOrStdout(), channels)
		return nil
	},
}

var channelNearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List channels around your position, closest first",
	Long: `List channels around your position, closest first.

Without --lat/--lng the position is unavailable and the default center is used.
A resolved position is stored as your last known location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runCtx(cmd)
		httpClient, _, err := session(ctx)
		if err != nil {
			return err
		}

		center, err := locate(ctx, positionProvider(cmd), httpClient, fallbackCenter(ctx, httpClient), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		radius, _ := cmd.Flags().GetFloat64("radius")

		channels, err := httpClient.NearbyChannels(ctx, center, radius)
		if err != nil {
			return describeError(err)
		}
		printNotice(cmd.OutOrStdout(), "channels around %s", center)
		printChannels(cmd.OutOrStdout(), channels)
		return nil
	},
}

var channelCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a channel at your position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runCtx(cmd)
		httpClient, _, err := session(ctx)
		if err != nil {
			return err
		}

		center, err := locate(ctx, positionProvider(cmd), httpClient, fallbackCenter(ctx, httpClient), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		radius, _ := cmd.Flags().GetFloat64("radius")

		channel, err := httpClient.CreateChannel(ctx, &dto.CreateChannelRequest{
			Name:        args[0],
			Description: description,
			Latitude:    &center.Lat,
			Longitude:   &center.Lng,
			RadiusKm:    radius,
		})
		if err != nil {
			return describeError(err)
		}
		printNotice(cmd.OutOrStdout(), "✓ Channel %s created (id %s)", channel.Name, channel.ID)
		return nil
	},
}

var channelSendCmd = &cobra.Command{
	Use:   "send <channel-id> <message...>",
	Short: "Post one message to a channel",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runCtx(cmd)
		httpClient, _, err := session(ctx)
		if err != nil {
			return err
		}
		if _, err := httpClient.SendMessage(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			return describeError(err)
		}
		return nil
	},
}

var channelOpenCmd = &cobra.Command{
	Use:   "open <channel-id>",
	Short: "Open a channel: show its history, follow new messages and chat",
	Long: `Open a channel: show its history, follow new messages and chat.

Every line typed on stdin is posted to the channel. /quit or Ctrl-C leaves.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(runCtx(cmd), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		httpClient, _, err := session(ctx)
		if err != nil {
			return err
		}
		channel, err := httpClient.GetChannel(ctx, args[0])
		if err != nil {
			return describeError(err)
		}
		stream, err := client.NewWSStream(httpClient.BaseURL(), httpClient.Token(), slog.Default())
		if err != nil {
			return err
		}

		printNotice(cmd.OutOrStdout(), "# %s", channel.Name)
		return chatLoop(ctx, httpClient, stream, channel.ID, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// chatLoop mounts a channel view until ctx ends, stdin closes, the user quits or the
// notification stream is lost
func chatLoop(ctx context.Context, api *client.HTTPClient, stream chat.NotificationStream, channelID string, in io.Reader, out, errOut io.Writer) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	renderer := newGroupRenderer(out)
	var live atomic.Bool
	view := chat.NewChannelView(api, api, stream, chat.ViewOptions{
		Grouper:  chat.NewGrouper(groupWindow),
		Logger:   slog.Default(),
		OnChange: renderer.Render,
		OnError: func(err error) {
			switch {
			case errors.Is(err, client.ErrStreamClosed):
				cancel(err)
			case live.Load():
				// a failed author lookup drops one message, the channel stays open
				printError(errOut, err)
			}
		},
	})
	defer view.Close()

	if err := view.Open(ctx, channelID); err != nil {
		return describeError(err)
	}
	live.Store(true)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
				return fmt.Errorf("channel closed: %w", cause)
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "/quit":
				return nil
			}
			if _, err := api.SendMessage(ctx, channelID, line); err != nil {
				printError(errOut, describeError(err))
			}
		}
	}
}

func init() {
	addPositionFlags(channelNearbyCmd)
	channelNearbyCmd.Flags().Float64("radius", 0, "search radius in km (server default when unset)")

	addPositionFlags(channelCreateCmd)
	channelCreateCmd.Flags().String("description", "", "channel description")
	channelCreateCmd.Flags().Float64("radius", 0, "channel radius in km (server default when unset)")

	channelCmd.AddCommand(channelListCmd, channelNearbyCmd, channelCreateCmd, channelSendCmd, channelOpenCmd)
	rootCmd.AddCommand(channelCmd)
}
