package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

// envProvider reads secrets from environment variables. Development only;
// production deployments use the AWS provider.
type envProvider struct {
	prefix string
}

// NewEnvProvider maps a secret name like "functions/signing-key" to the
// environment variable SECRET_FUNCTIONS_SIGNING_KEY (given prefix "SECRET_")
func NewEnvProvider(prefix string) ports.SecretProvider {
	return &envProvider{prefix: prefix}
}

func (p *envProvider) GetSecret(ctx context.Context, name string) (string, error) {
	key := p.prefix + envKey(name)
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret not found: %s (env %s)", name, key)
	}
	return value, nil
}

func envKey(name string) string {
	replaced := strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(name)
	return strings.ToUpper(replaced)
}
