package handlerUtil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"eyescreen/pkg/response"
	"eyescreen/pkg/tracking"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func TestErrorHandler_Handle(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := New(logger)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "domain error", err: response.NewError(http.StatusNotFound, "report not found"), status: http.StatusNotFound},
		{name: "wrapped domain error", err: response.Wrap(response.NewError(http.StatusBadGateway, "vision backend unavailable"), "dial"), status: http.StatusBadGateway},
		{name: "fiber error", err: fiber.ErrRequestEntityTooLarge, status: http.StatusRequestEntityTooLarge},
		{name: "empty video", err: fmt.Errorf("analyse: %w", tracking.ErrSourceClosed), status: http.StatusUnprocessableEntity, code: "UNREADABLE_VIDEO"},
		{name: "bad config", err: tracking.ErrInvalidConfig, status: http.StatusBadRequest, code: "INVALID_ANALYSIS_CONFIG"},
		{name: "deadline", err: context.DeadlineExceeded, status: http.StatusRequestTimeout},
		{name: "unexpected", err: errors.New("disk on fire"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return h.Handle(c, "req-1", tc.err, c.Path(), "test")
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tc.code, body.Code)
		})
	}
}
