package jwtPkg

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secretKey = "TEST_JWT_SECRET"

func verify(t *testing.T, header string) (Reader, error) {
	t.Helper()

	var (
		reader Reader
		verr   error
	)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		token, err := VerifyTokenHeader(c, secretKey)
		if err != nil {
			verr = err
			return c.SendStatus(http.StatusUnauthorized)
		}
		reader, verr = ReaderFromToken(token)
		return c.SendStatus(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	_, err := app.Test(req)
	require.NoError(t, err)

	return reader, verr
}

func TestVerifyTokenHeader(t *testing.T) {
	t.Setenv(secretKey, "s3cret")

	good, _, err := Sign(map[string]interface{}{"sub": "clinician-7", "role": "reviewer"}, time.Hour, secretKey)
	require.NoError(t, err)

	noSub, _, err := Sign(map[string]interface{}{"role": "reviewer"}, time.Hour, secretKey)
	require.NoError(t, err)

	expired, _, err := Sign(map[string]interface{}{"sub": "clinician-7"}, -time.Minute, secretKey)
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "x", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other"))
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		reader, err := verify(t, "Bearer "+good)
		require.NoError(t, err)
		assert.Equal(t, Reader{Subject: "clinician-7", Role: "reviewer"}, reader)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := verify(t, "")
		assert.ErrorIs(t, err, ErrEmptyHeader)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		_, err := verify(t, "Basic "+good)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := verify(t, "Bearer "+noSub)
		assert.ErrorIs(t, err, ErrMissingClaims)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := verify(t, "Bearer "+expired)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("foreign signature", func(t *testing.T) {
		_, err := verify(t, "Bearer "+foreign)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})
}
