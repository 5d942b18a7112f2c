package public

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/checkout-next/internal/http/response"
	"github.com/checkout-next/internal/service"

	"github.com/gin-gonic/gin"
)

func TestRespondCheckoutErrorMapsSentinels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{err: fmt.Errorf("%w: card drained", service.ErrCheckoutNotFullyPaid), code: response.CodeBadRequest},
		{err: service.ErrVoucherUsageExhausted, code: response.CodeBadRequest},
		{err: service.ErrCheckoutNotFound, code: response.CodeNotFound},
		{err: fmt.Errorf("%w: db down", service.ErrCheckoutFetchFailed), code: response.CodeInternal},
		{err: errors.New("boom"), code: response.CodeInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/checkouts/tok/complete", nil)
		respondCheckoutError(c, tc.err)

		var resp envelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal envelope failed: %v", err)
		}
		if resp.StatusCode != tc.code {
			t.Fatalf("%v: expected status_code %d, got %d", tc.err, tc.code, resp.StatusCode)
		}
	}
	for _, rule := range checkoutErrorRules {
		if rule.target == nil || rule.msg == "" {
			t.Fatalf("incomplete mapping rule: %+v", rule)
		}
	}
}
