package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

func TestFeeAdapter_QuoteFee_Instrument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/calculate-service-fee", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Wire field names are load-bearing
		assert.Equal(t, float64(10000), req["baseAmountCents"])
		assert.Equal(t, "inst-1", req["paymentInstrumentId"])
		assert.Nil(t, req["paymentMethodType"])
		assert.Equal(t, "merch-1", req["merchantId"])

		json.NewEncoder(w).Encode(map[string]any{
			"serviceFee":  300,
			"totalAmount": 10300,
			"basisPoints": 300,
			"isCard":      true,
		})
	}))
	defer server.Close()

	adapter := NewFeeAdapter(newTestClient(server.URL), zap.NewNop())
	instrumentID := "inst-1"
	quote, err := adapter.QuoteFee(context.Background(), ports.FeeRequest{
		BaseAmountCents: 10000,
		InstrumentID:    &instrumentID,
		MerchantID:      "merch-1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, quote.ID)
	assert.Equal(t, int64(10000), quote.BaseAmountCents)
	assert.Equal(t, int64(300), quote.ServiceFeeCents)
	assert.Equal(t, int64(10300), quote.TotalAmountCents)
	assert.Equal(t, int64(300), quote.BasisPoints)
	assert.True(t, quote.IsCard)
	assert.Equal(t, "$103.00", quote.DisplayTotal())
}

func TestFeeAdapter_QuoteFee_WalletPricedAsGenericCard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Wallets have no stored instrument: priced as a generic card
		assert.Nil(t, req["paymentInstrumentId"])
		assert.Equal(t, "card", req["paymentMethodType"])

		json.NewEncoder(w).Encode(map[string]any{
			"serviceFee":  250,
			"totalAmount": 10250,
			"basisPoints": 250,
			"isCard":      true,
		})
	}))
	defer server.Close()

	adapter := NewFeeAdapter(newTestClient(server.URL), zap.NewNop())
	methodType := "card"
	quote, err := adapter.QuoteFee(context.Background(), ports.FeeRequest{
		BaseAmountCents: 10000,
		MethodType:      &methodType,
		MerchantID:      "merch-1",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(10250), quote.TotalAmountCents)
	assert.Nil(t, quote.InstrumentID)
}

func TestFeeAdapter_QuoteFee_RejectsInconsistentTotal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"serviceFee":  300,
			"totalAmount": 103, // dollars instead of cents
		})
	}))
	defer server.Close()

	adapter := NewFeeAdapter(newTestClient(server.URL), zap.NewNop())
	instrumentID := "inst-1"
	_, err := adapter.QuoteFee(context.Background(), ports.FeeRequest{
		BaseAmountCents: 10000,
		InstrumentID:    &instrumentID,
		MerchantID:      "merch-1",
	})

	assert.Error(t, err, "a total below the base amount cannot be charged")
}
