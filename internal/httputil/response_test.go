package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperrors.NotFound("box", "b1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, "NOT_FOUND", gjson.Get(body, "error.code").String())
	assert.NotEmpty(t, gjson.Get(body, "error.message").String())
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
		Qty  int    `json:"qty"`
	}

	cases := []struct {
		name   string
		body   string
		limit  int64
		status int
	}{
		{"ok", `{"name":"fox","qty":2}`, 0, 0},
		{"empty", ``, 0, 400},
		{"unknown field", `{"nope":1}`, 0, 400},
		{"wrong type", `{"qty":"two"}`, 0, 400},
		{"trailing data", `{"qty":1}{"qty":2}`, 0, 400},
		{"too large", `{"name":"` + strings.Repeat("x", 64) + `"}`, 16, 413},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			var p payload
			err := DecodeJSON(req, &p, tc.limit)
			if tc.status == 0 {
				require.NoError(t, err)
				assert.Equal(t, payload{Name: "fox", Qty: 2}, p)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.status, apperrors.HTTPStatus(err))
		})
	}
}

func TestDecodeJSONRejectsOtherContentTypes(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	var v map[string]interface{}
	assert.Equal(t, 400, apperrors.HTTPStatus(DecodeJSON(req, &v, 0)))
}
