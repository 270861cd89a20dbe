package command

import (
	"fmt"
	"time"

	"geochat/cmd/cli/authentication"
	"geochat/cmd/cli/command/client"
	"geochat/internal/microservices/http-api/dto"

	"github.com/spf13/cobra"
)

// auth.go handles the account commands: register, login, logout, whoami.

// authCmd represents the auth command for authentication related subcommands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  `Authenticate with the geochat API server. Supports login, registration, logout.`,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new geochat account",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req dto.RegisterRequest
		req.Username, _ = cmd.Flags().GetString("username")
		req.Password, _ = cmd.Flags().GetString("password")
		req.Email, _ = cmd.Flags().GetString("email")

		httpClient := client.NewHTTPClient(apiURL)
		response, err := httpClient.Register(runCtx(cmd), &req)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		printNotice(cmd.OutOrStdout(), "✓ Registration successful! Please login to continue.")
		fmt.Fprintf(cmd.OutOrStdout(), "UserID: %s\n", response.UserID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to your geochat account",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req dto.LoginRequest
		req.Username, _ = cmd.Flags().GetString("username")
		req.Password, _ = cmd.Flags().GetString("password")

		httpClient := client.NewHTTPClient(apiURL)
		response, err := httpClient.Login(runCtx(cmd), &req)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		err = authentication.StoreTokens(&authentication.StoredCredentials{
			APIURL:       httpClient.BaseURL(),
			AccessToken:  response.AccessToken,
			RefreshToken: response.RefreshToken,
			UserID:       response.UserID,
			Username:     response.Username,
			ExpiresAt:    time.Now().Add(time.Duration(response.ExpiresIn) * time.Second).Unix(),
		})
		if err != nil {
			return fmt.Errorf("save session: %w", err)
		}

		printNotice(cmd.OutOrStdout(), "✓ Logged in as %s", response.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout from your geochat account",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := authentication.GetTokens()
		if isNotLoggedIn(err) {
			printNotice(cmd.OutOrStdout(), "not logged in")
			return nil
		}
		if err != nil {
			return err
		}

		// revoke server side while the access token still works; local logout happens regardless
		httpClient := client.NewHTTPClient(apiURL)
		httpClient.SetToken(creds.AccessToken)
		if err := httpClient.Logout(runCtx(cmd), creds.RefreshToken); err != nil {
			printError(cmd.ErrOrStderr(), fmt.Errorf("revoke refresh token: %w", err))
		}

		if err := authentication.DeleteTokens(); err != nil {
			return err
		}
		printNotice(cmd.OutOrStdout(), "✓ Successfully logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, _, err := session(runCtx(cmd))
		if err != nil {
			return err
		}
		me, err := httpClient.Me(runCtx(cmd))
		if err != nil {
			return describeError(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s <%s>\n", avatarColor.Sprintf(" %s ", initialOf(me.Username)), nameColor.Sprint(me.Username), me.Email)
		fmt.Fprintf(out, "id:       %s\n", me.ID)
		if me.AvatarURL != nil {
			fmt.Fprintf(out, "avatar:   %s\n", *me.AvatarURL)
		}
		if me.Latitude != nil && me.Longitude != nil {
			fmt.Fprintf(out, "location: %.5f, %.5f\n", *me.Latitude, *me.Longitude)
		}
		return nil
	},
}

func init() {
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(whoamiCmd)

	registerCmd.Flags().StringP("username", "u", "", "Username for the new account")
	registerCmd.Flags().StringP("password", "p", "", "Password for the new account")
	registerCmd.Flags().StringP("email", "e", "", "Email address for the new account")
	registerCmd.MarkFlagRequired("username")
	registerCmd.MarkFlagRequired("password")
	registerCmd.MarkFlagRequired("email")

	loginCmd.Flags().StringP("username", "u", "", "Username for the account")
	loginCmd.Flags().StringP("password", "p", "", "Password for the account")
	loginCmd.MarkFlagRequired("username")
	loginCmd.MarkFlagRequired("password")
}
