package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/web"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API access token",
	Long: `Mint a bearer token for the HTTP API, signed with auth.jwt_secret.

Pass it as "Authorization: Bearer <token>" or, for websockets,
as the access_token query parameter.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "netmap-cli", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default from config)")
}

func runToken(cmd *cobra.Command, args []string) error {
	if !cfg.Auth.Enabled() {
		return fmt.Errorf("auth.jwt_secret is not set; the API accepts unauthenticated requests")
	}
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}
	token, err := web.IssueToken(cfg.Auth.JWTSecret, tokenSubject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
