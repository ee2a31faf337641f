package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("x: %w", shared.Classify(shared.ErrNotFound, "thing: not found")), http.StatusNotFound},
		{shared.Classify(shared.ErrInvalidState, "bad state"), http.StatusConflict},
		{shared.Classify(shared.ErrMissingConfiguration, "no account"), http.StatusUnprocessableEntity},
		{shared.Classify(shared.ErrValidation, "bad"), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("pg: connection refused"))

	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Empty(t, body.Detail)
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required"`
	}
	v := validator.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))
	var p payload
	err := DecodeAndValidate(req, v, &p)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	RespondInvalid(rec, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "required", body.Fields["Name"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	err = DecodeAndValidate(req, v, &p)
	require.ErrorIs(t, err, shared.ErrValidation)
}
