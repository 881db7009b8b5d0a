package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProvider_GetSecret(t *testing.T) {
	t.Setenv("SECRET_FUNCTIONS_SIGNING_KEY", "hex-key")

	provider := NewEnvProvider("SECRET_")

	value, err := provider.GetSecret(context.Background(), "functions/signing-key")
	require.NoError(t, err)
	assert.Equal(t, "hex-key", value)
}

func TestEnvProvider_GetSecret_Missing(t *testing.T) {
	provider := NewEnvProvider("SECRET_")

	_, err := provider.GetSecret(context.Background(), "no/such/secret")
	assert.Error(t, err)
}
