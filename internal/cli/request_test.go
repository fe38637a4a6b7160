package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/siwf/internal/output"
	"github.com/mrz1836/siwf/internal/siwf"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

func TestRequestInspect_DefaultJSON(t *testing.T) {
	env := newTestEnv(t, output.FormatJSON)

	require.NoError(t, runRequestInspect(env.command(), nil))

	var s requestSummary
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &s))
	assert.Equal(t, testProviderKey, s.Provider)
	assert.Equal(t, "http://localhost:3000/login/callback", s.Callback)
	assert.Equal(t, []int{6, 7, 8, 9, 10}, s.Permissions)
	require.NotNil(t, s.ProviderPrefix)
	assert.Equal(t, uint16(90), *s.ProviderPrefix)
	assert.Len(t, s.ProviderKeyHex, 66)
	assert.NotNil(t, s.CredentialTypes)
}

func TestRequestInspect_ExplicitToken(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.cc.Cfg.SIWF.SignedRequest = "not-used"

	require.NoError(t, runRequestInspect(env.command(), []string{siwf.DefaultSignedRequest}))
	assert.Contains(t, env.out.String(), "Provider:")
	assert.Contains(t, env.out.String(), testProviderKey)
	assert.Contains(t, env.out.String(), "6, 7, 8, 9, 10")
	assert.Contains(t, env.out.String(), "SS58 prefix:  90")
}

func TestRequestInspect_InvalidToken(t *testing.T) {
	env := newTestEnv(t, output.FormatText)

	err := runRequestInspect(env.command(), []string{"%%%not-base64%%%"})
	require.ErrorIs(t, err, siwferr.ErrInvalidSignedRequest)

	env.cc.Cfg.SIWF.SignedRequest = "e30"
	err = runRequestInspect(env.command(), nil)
	require.ErrorIs(t, err, siwferr.ErrInvalidSignedRequest)
}
