package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "contactgraph/internal/jwt_token"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SIGNING_KEY", "test-key")

	out, err := runCLI(t, "token", "--owner", "acme", "--subject", "ops")
	require.NoError(t, err)

	claims, err := jwttoken.NewJWTService("test-key", "contactgraph", "contactgraph").
		ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.OwnerScope)
	assert.Equal(t, "ops", claims.Subject)
}

func TestTokenCommandRejectsBlankOwner(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	_, err := runCLI(t, "token", "--owner", "   ")
	require.Error(t, err)
}

func TestIdentifyCommand(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	out, err := runCLI(t, "identify", "--owner", "acme", "--email", "doc@hillvalley.edu", "--phone", "555")
	require.NoError(t, err)

	var identity struct {
		PrimaryContactID    int64    `json:"primaryContactId"`
		Emails              []string `json:"emails"`
		PhoneNumbers        []string `json:"phoneNumbers"`
		SecondaryContactIDs []int64  `json:"secondaryContactIds"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &identity))
	assert.Equal(t, int64(1), identity.PrimaryContactID)
	assert.Equal(t, []string{"doc@hillvalley.edu"}, identity.Emails)
	assert.Equal(t, []string{"555"}, identity.PhoneNumbers)
	assert.Empty(t, identity.SecondaryContactIDs)
}

func TestIdentifyCommandValidation(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	_, err := runCLI(t, "identify", "--owner", "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one of email or phoneNumber is required")
}

func TestInvalidConfigurationFailsFast(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "cassandra")
	_, err := runCLI(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
}
