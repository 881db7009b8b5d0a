package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

func TestClassify_UserCancellation(t *testing.T) {
	n := Classify(domain.ErrUserCancelled)

	assert.Equal(t, ClassUserCancelled, n.Class)
	assert.True(t, n.Silent, "cancellations never show a failure message")
	assert.True(t, n.Retryable)
}

func TestClassify_AuthExpired(t *testing.T) {
	n := Classify(domain.ErrAuthExpired)

	assert.Equal(t, ClassAuthExpired, n.Class)
	assert.True(t, n.Silent)
	assert.False(t, n.Retryable)
	assert.Equal(t, "Authentication expired", n.Message)
}

func TestClassify_WrappedAuthExpired(t *testing.T) {
	wrapped := fmt.Errorf("processing payment: %w", domain.ErrAuthExpired)
	n := Classify(wrapped)

	assert.Equal(t, ClassAuthExpired, n.Class)
}

func TestClassify_Retryable(t *testing.T) {
	for _, err := range []error{
		domain.ErrPaymentUnclear,
		domain.ErrProcessorError,
		domain.ErrProcessorTimeout,
		domain.ErrWalletTimeout,
		domain.ErrCheckoutCooldown,
	} {
		n := Classify(err)
		assert.Equal(t, ClassRetryable, n.Class, "%v", err)
		assert.True(t, n.Retryable)
		assert.False(t, n.Silent, "retryable failures are shown to the user")
	}
}

func TestClassify_DeclineIsFatal(t *testing.T) {
	n := Classify(domain.NewDomainError(domain.ErrorCodeProcessorDeclined, "card declined"))

	assert.Equal(t, ClassFatal, n.Class)
	assert.False(t, n.Retryable)
	assert.Equal(t, "card declined", n.Message)
}

func TestClassify_UnknownErrorIsFatal(t *testing.T) {
	n := Classify(fmt.Errorf("some unexpected failure"))

	assert.Equal(t, ClassFatal, n.Class)
	assert.False(t, n.Retryable, "unrecognized errors must not be blindly retried")
	assert.Equal(t, genericMessage, n.Message)
}
