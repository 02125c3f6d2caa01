package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
)

type depositBody struct {
	AccountID string          `json:"account_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"amount"`
}

func postBody(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidAmount(t *testing.T) {
	var dest depositBody
	err := DecodeJSONBody(postBody(`{"account_id":"3f1b8a7e-3a43-4d4f-9d1e-2f0c6a1f9b10","amount":"125.50"}`), &dest)
	require.NoError(t, err)
	assert.True(t, dest.Amount.Equal(decimal.RequireFromString("125.5")))
}

func TestDecodeJSONBodyRejectsBadAmounts(t *testing.T) {
	for name, amount := range map[string]string{
		"zero":           `"0"`,
		"negative":       `"-4"`,
		"three decimals": `"10.005"`,
	} {
		t.Run(name, func(t *testing.T) {
			var dest depositBody
			err := DecodeJSONBody(postBody(`{"account_id":"3f1b8a7e-3a43-4d4f-9d1e-2f0c6a1f9b10","amount":`+amount+`}`), &dest)
			require.Error(t, err)

			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			fields, ok := typed.Details().(map[string]string)
			require.True(t, ok)
			assert.Contains(t, fields["amount"], "positive amount")
		})
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"trailing json": `{"account_id":"3f1b8a7e-3a43-4d4f-9d1e-2f0c6a1f9b10","amount":"1"} {}`,
		"unknown field": `{"account_id":"3f1b8a7e-3a43-4d4f-9d1e-2f0c6a1f9b10","amount":"1","note":"x"}`,
		"oversized":     `{"account_id":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dest depositBody
			err := DecodeJSONBody(postBody(body), &dest)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}

func TestQueryInt(t *testing.T) {
	bounds := IntRange{Default: 20, Min: 1, Max: 100}

	n, err := QueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", bounds)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	n, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?limit=7", nil), "limit", bounds)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?limit=0", nil), "limit", bounds)
	assert.Error(t, err)
	_, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?limit=x", nil), "limit", bounds)
	assert.Error(t, err)
}

func TestQueryCursor(t *testing.T) {
	cursor, err := QueryCursor(httptest.NewRequest(http.MethodGet, "/?cursor=+abc+", nil), "cursor")
	require.NoError(t, err)
	assert.Equal(t, "abc", cursor)

	_, err = QueryCursor(httptest.NewRequest(http.MethodGet, "/?cursor="+strings.Repeat("c", 300), nil), "cursor")
	assert.Error(t, err)
}
