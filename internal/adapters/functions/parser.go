package functions

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// The processing functions have drifted across service versions: some return
// {"success": true}, some {"success": "true"}, some only a transfer or
// transaction id, some a status enum, and at least one version wraps the
// whole object in a JSON-encoded string. ParsePaymentResponse accepts all of
// them. Heuristics are applied in priority order:
//
//  1. an explicit success field (boolean or string boolean)
//  2. a transaction/transfer/payment id with no error field
//  3. a recognized status enum
//  4. an error field
//
// A body matching none of these is an unknown outcome, not a failure: the
// charge may have settled even though the response is unreadable, and
// reporting a false failure on moved money is the worse mistake.
func ParsePaymentResponse(body []byte) *domain.PaymentResponse {
	obj := decodeResponseObject(body)
	if obj == nil {
		return unknownResponse()
	}

	txnID := stringField(obj, "transaction_id", "transfer_id", "transactionId", "transferId")
	paymentID := stringField(obj, "payment_id", "paymentId")
	status := stringField(obj, "status", "state")
	errMsg := errorField(obj)

	if explicit, ok := successField(obj); ok {
		if explicit {
			return successResponse(txnID, paymentID, status)
		}
		return failureResponse(txnID, paymentID, status, errMsg)
	}

	if (txnID != "" || paymentID != "") && errMsg == "" {
		return successResponse(txnID, paymentID, status)
	}

	switch strings.ToLower(status) {
	case "success", "succeeded", "completed", "complete", "approved", "paid", "captured":
		return successResponse(txnID, paymentID, status)
	case "failed", "failure", "declined", "error", "rejected", "cancelled", "canceled":
		return failureResponse(txnID, paymentID, status, errMsg)
	}

	if errMsg != "" {
		return failureResponse(txnID, paymentID, status, errMsg)
	}

	return unknownResponse()
}

// decodeResponseObject unwraps the body into a JSON object, tolerating a
// JSON-string-encoded body and a single data envelope
func decodeResponseObject(body []byte) map[string]any {
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	// Some versions double-encode the response as a JSON string
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil
		}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	// Envelope shape: {"data": {...}} with the payment fields nested
	if nested, ok := obj["data"].(map[string]any); ok && !hasPaymentFields(obj) {
		return nested
	}

	return obj
}

func hasPaymentFields(obj map[string]any) bool {
	for _, key := range []string{"success", "error", "status", "transaction_id", "transfer_id", "payment_id"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

// successField reads the explicit success flag, accepting both a boolean
// and a string boolean
func successField(obj map[string]any) (value, present bool) {
	raw, ok := obj["success"]
	if !ok {
		return false, false
	}
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// errorField reads the error message, which may be a string or an object
// with a message field
func errorField(obj map[string]any) string {
	raw, ok := obj["error"]
	if !ok {
		return stringField(obj, "error_message", "errorMessage")
	}
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		if msg := stringField(v, "message", "detail"); msg != "" {
			return msg
		}
		return "payment failed"
	case bool:
		if v {
			return "payment failed"
		}
	}
	return ""
}

func successResponse(txnID, paymentID, status string) *domain.PaymentResponse {
	return &domain.PaymentResponse{
		Outcome:       domain.OutcomeSucceeded,
		TransactionID: txnID,
		PaymentID:     paymentID,
		Status:        status,
	}
}

func failureResponse(txnID, paymentID, status, errMsg string) *domain.PaymentResponse {
	if errMsg == "" {
		errMsg = "payment failed"
	}
	return &domain.PaymentResponse{
		Outcome:       domain.OutcomeFailed,
		TransactionID: txnID,
		PaymentID:     paymentID,
		Status:        status,
		ErrorMessage:  errMsg,
	}
}

func unknownResponse() *domain.PaymentResponse {
	return &domain.PaymentResponse{
		Outcome:      domain.OutcomeUnknown,
		Retryable:    true,
		ErrorMessage: "payment status could not be determined",
	}
}
