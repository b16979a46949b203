package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func main() {
	subject := flag.String("subject", "", "operator identity, usually an email")
	role := flag.String("role", string(enums.AdminRoleOperator), "admin or operator")
	ttl := flag.Duration("ttl", 0, "override STOREFRONT_JWT_EXPIRATION_MINUTES")
	flag.Parse()

	cfg, logg, err := bootstrap.Load("admin-token")
	if err != nil {
		logg.Error(context.Background(), "admin_token.config_invalid", err)
		os.Exit(1)
	}
	if err := mint(os.Stdout, cfg.JWT, *subject, *role, *ttl, time.Now().UTC()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mint(out io.Writer, jwtCfg config.JWTConfig, subject, role string, ttl time.Duration, now time.Time) error {
	parsed, err := enums.ParseAdminRole(role)
	if err != nil {
		return err
	}
	if ttl > 0 {
		jwtCfg.ExpirationMinutes = int(ttl.Round(time.Minute) / time.Minute)
	}
	token, err := auth.MintAdminToken(jwtCfg, now, auth.AdminTokenPayload{Subject: subject, Role: parsed})
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
