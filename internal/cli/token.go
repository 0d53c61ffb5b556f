package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trendpush/trendpush/internal/auth"
	"github.com/trendpush/trendpush/internal/mobile"
)

func newDevTokenCmd(root *rootOptions) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Mint an access token signed with the configured key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to mint tokens for a production config")
			}

			token, expiresAt, err := newJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience).
				GenerateAccessToken(userID, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			logger := root.logger(cmd.ErrOrStderr())
			logger.Debug().Time("expires_at", expiresAt).Msg("token minted")
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenExpiry, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newRegisterTokenCmd(root *rootOptions) *cobra.Command {
	var (
		apiURL      string
		userID      string
		token       string
		accessToken string
	)

	cmd := &cobra.Command{
		Use:   "register-token",
		Short: "Register a device push token for a user through the API",
		Long: `Hands a newly issued device token to the token refresh handler, the way
the mobile app does. Without --user the device is signed out and nothing is
stored. Without --access-token a token is minted from the config.

Failures are logged and do not change the exit status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if accessToken == "" && userID != "" {
				cfg, err := root.loadConfig()
				if err != nil {
					return err
				}
				accessToken, _, err = newJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience).
					GenerateAccessToken(userID, 5*time.Minute)
				if err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			registry, err := mobile.NewAPIRegistry(ctx, mobile.APIRegistryConfig{
				BaseURL:     apiURL,
				AccessToken: accessToken,
			})
			if err != nil {
				return err
			}

			writer := &observedWriter{next: registry}
			handler := mobile.NewTokenRefreshHandler(writer, root.logger(cmd.ErrOrStderr()))

			var session *mobile.Session
			if userID != "" {
				session = &mobile.Session{UserID: userID, AccessToken: accessToken}
			}
			_ = handler.OnTokenIssued(ctx, session, token)

			out := cmd.OutOrStdout()
			switch {
			case !writer.called:
				fmt.Fprintln(out, "no signed-in user, token not registered")
			case writer.err != nil:
				fmt.Fprintf(out, "token not registered for %s\n", userID)
			default:
				fmt.Fprintf(out, "registered token for %s\n", userID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "trendpush API base URL")
	cmd.Flags().StringVar(&userID, "user", "", "signed-in user id; empty means signed out")
	cmd.Flags().StringVar(&token, "token", "", "device push token (required)")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "bearer token; minted from config when empty")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

// observedWriter records the outcome of the last write for the command summary.
type observedWriter struct {
	next   mobile.TokenWriter
	called bool
	err    error
}

func (w *observedWriter) SetToken(ctx context.Context, userID, token string) error {
	w.called = true
	w.err = w.next.SetToken(ctx, userID, token)
	return w.err
}

func newJWTService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}
