package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/stockflow_backend/models"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, err)
	return w
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", models.NewValidationError("bad input"), http.StatusBadRequest},
		{"insufficient stock", &models.StockInsufficientError{ProductId: 3, Available: 1, Requested: 5}, http.StatusConflict},
		{"not found", &models.NotFoundError{Resource: "product", Id: 9}, http.StatusNotFound},
		{"already cancelled", models.ErrAlreadyCancelled, http.StatusConflict},
		{"lock contention", fmt.Errorf("%w: Error 1213: deadlock found", models.ErrConflict), http.StatusConflict},
		{"not deletable", models.ErrNotDeletable, http.StatusConflict},
		{"record not found", utils.ErrorRecordNotFound, http.StatusNotFound},
		{"unknown", errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := recordError(t, tc.err)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRespondErrorInsufficientStockBody(t *testing.T) {
	w := recordError(t, &models.StockInsufficientError{
		ProductId:   7,
		Designation: "Office Chair",
		Available:   2,
		Requested:   6,
	})

	require.Equal(t, http.StatusConflict, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"productId":7`)
	assert.Contains(t, body, `"available":2`)
	assert.Contains(t, body, `"requested":6`)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	w := recordError(t, errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestPathId(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, raw := range []string{"abc", "0", "-4", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: raw}}
		_, ok := pathId(c)
		assert.False(t, ok, "raw id %q should be rejected", raw)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := pathId(c)
	require.True(t, ok)
	assert.Equal(t, 42, id)
}
