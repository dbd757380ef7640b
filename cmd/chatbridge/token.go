package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

var (
	tokenTTL    time.Duration
	tokenTier   string
	tokenScopes []string
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a bearer token for the HTTP surface",
	Long: `Sign a token with auth.jwt.secret for use with auth.type "jwt".

Examples:
  chatbridge token alice
  chatbridge token ci-bot --tier batch --ttl 720h
  chatbridge token ide --scope chat,models`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.Flags().StringVar(&tokenTier, "tier", "", "Rate limit tier claim")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", nil, "Scopes to grant (chat, models, keys); all when omitted")
}

func runToken(cmd *cobra.Command, args []string) error {
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret is not configured")
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", tokenTTL)
	}
	scopes, err := keyScopes(tokenScopes)
	if err != nil {
		return fmt.Errorf("--scope: %w", err)
	}
	authn, err := newJWT(cfg.Auth.JWT)
	if err != nil {
		return err
	}

	userClaim := cfg.Auth.JWT.UserClaim
	if userClaim == "" {
		userClaim = "sub"
	}
	now := time.Now()
	claims := jwtlib.MapClaims{
		userClaim: args[0],
		"iat":     now.Unix(),
		"exp":     now.Add(tokenTTL).Unix(),
	}
	if tokenTier != "" {
		claims["tier"] = tokenTier
	}
	if scopes != nil {
		claims["scope"] = strings.Join(scopes, " ")
	}

	signed, err := authn.Sign(claims)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), signed)
	return nil
}
