package leukocoria

import (
	"net/http"

	"eyescreen/pkg/response"
)

var (
	ErrNoImageFile        = response.NewError(http.StatusBadRequest, "no image file provided (expected 'photo' or 'file')")
	ErrInvalidImage       = response.NewError(http.StatusBadRequest, "invalid image format")
	ErrImageTooLarge      = response.NewError(http.StatusRequestEntityTooLarge, "image too large")
	ErrNoBackend          = response.NewError(http.StatusServiceUnavailable, "no photo analysis backend available")
	ErrBackendFailed      = response.NewError(http.StatusBadGateway, "photo analysis failed")
	ErrUnparseableVerdict = response.NewError(http.StatusBadGateway, "could not parse analysis verdict")
)
