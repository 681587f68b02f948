package screening

import (
	"net/http"

	"eyescreen/pkg/response"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrNoVideoFile         = response.NewError(http.StatusBadRequest, "no video file provided")
	ErrNoFileSelected      = response.NewError(http.StatusBadRequest, "no file selected")
	ErrInvalidFileType     = response.NewError(http.StatusBadRequest, "invalid file type, allowed: webm, mp4, avi, mov")
	ErrFileTooLarge        = response.NewError(http.StatusRequestEntityTooLarge, "file too large")
	ErrUnreadableVideo     = response.NewError(http.StatusUnprocessableEntity, "could not read any frame from video")
	ErrVisionUnavailable   = response.NewError(http.StatusBadGateway, "vision backend unavailable")
	ErrInvalidPolicy       = response.NewError(http.StatusBadRequest, "invalid window policy")
	ErrReportNotFound      = response.NewError(http.StatusNotFound, "report not found")
	ErrInvalidReportID     = response.NewError(http.StatusBadRequest, "invalid report id")
	ErrStorageDisabled     = response.NewError(http.StatusServiceUnavailable, "report storage is not configured")
	ErrSessionNotStarted   = response.NewError(http.StatusBadRequest, "live session not started")
)
