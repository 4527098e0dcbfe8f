package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pedroasavelar91/nexus-familiar/pkg/auth"
)

type mintedToken struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// newTokenCommand mints development tokens signed with the local JWT secret.
func newTokenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Development token helpers",
	}

	var (
		userID string
		email  string
		name   string
		ttl    time.Duration
	)
	cfg := opts.jwt
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint an access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			id := uuid.New()
			if userID != "" {
				parsed, err := parseID(userID, "user")
				if err != nil {
					return report(out, WrapExitError(ExitCommandError, "invalid --user-id", err))
				}
				id = parsed
			}
			if ttl > 0 {
				cfg.ExpirationMinutes = int(ttl / time.Minute)
			}

			now := opts.now()
			token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{UserID: id, Email: email, Name: name})
			if err != nil {
				return report(out, WrapExitError(ExitCommandError, "mint token", err))
			}
			minted := mintedToken{
				Token:     token,
				UserID:    id,
				ExpiresAt: now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute).UTC(),
			}
			return out.Success(minted, func(w io.Writer) { fmt.Fprintln(w, minted.Token) })
		},
	}
	mint.Flags().StringVar(&userID, "user-id", "", "user id (random when empty)")
	mint.Flags().StringVar(&email, "email", "", "email claim")
	mint.Flags().StringVar(&name, "name", "", "display name claim")
	mint.Flags().StringVar(&cfg.Secret, "secret", cfg.Secret, "signing secret (defaults to $NEXUS_JWT_SECRET)")
	mint.Flags().StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "issuer claim")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, whole minutes (defaults to $NEXUS_JWT_EXPIRATION_MINUTES)")

	cmd.AddCommand(mint)
	return cmd
}
