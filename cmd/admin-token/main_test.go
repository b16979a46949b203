package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 60}

func TestMintPrintsVerifiableToken(t *testing.T) {
	var out bytes.Buffer
	now := time.Now().UTC()
	require.NoError(t, mint(&out, jwtCfg, "ops@shop.test", " Admin ", 15*time.Minute, now))

	claims, err := auth.ParseAdminToken(jwtCfg, strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops@shop.test", claims.Subject)
	assert.Equal(t, enums.AdminRoleAdmin, claims.Role)
	assert.WithinDuration(t, now.Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintRejectsBadInput(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, mint(&out, jwtCfg, "ops@shop.test", "superuser", 0, time.Now()))
	assert.Error(t, mint(&out, jwtCfg, "", "operator", 0, time.Now()))
	assert.Empty(t, out.String())
}
