package leukocoriaService

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"eyescreen/internal/api/leukocoria"
	contextPkg "eyescreen/pkg/context"
	"eyescreen/pkg/metrics"
	"eyescreen/pkg/reflex"
	"eyescreen/pkg/response"
	"eyescreen/pkg/utils"
	"eyescreen/pkg/vision"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const geminiPrompt = `You are screening a flash photograph of a child's face for leukocoria.
For every visible eye, look at the pupil reflex. A white or yellow reflex
(low colour saturation, high brightness) instead of a red reflex is positive.
Answer only with JSON of the form:
{"leukocoria": true|false, "faces": <number of faces>, "eyes_checked": <number of eyes with a visible pupil>, "reason": "<one sentence>"}`

func (s *leukocoriaService) Detect(ctx context.Context, file *multipart.FileHeader) (*leukocoria.DetectResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if err := s.utils.ValidateImageFile(file); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Rejected photo upload")
		return nil, mapFileError(err)
	}

	image, err := readAll(file)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to read photo")
		return nil, leukocoria.ErrInvalidImage
	}
	mimeType := file.Header.Get("Content-Type")

	if s.visionClient == nil && s.geminiClient == nil {
		return nil, leukocoria.ErrNoBackend
	}

	var resp *leukocoria.DetectResponse
	if s.visionClient != nil {
		resp, err = s.detectWithVision(ctx, image)
		if err == nil || errors.Is(err, leukocoria.ErrInvalidImage) || s.geminiClient == nil {
			return s.finish(ctx, resp, err)
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Vision photo analysis failed, falling back to Gemini")
	}

	resp, err = s.detectWithGemini(ctx, image, mimeType)
	return s.finish(ctx, resp, err)
}

func (s *leukocoriaService) finish(ctx context.Context, resp *leukocoria.DetectResponse, err error) (*leukocoria.DetectResponse, error) {
	if err != nil {
		return nil, err
	}

	result := "negative"
	if resp.Leukocoria {
		result = "positive"
	}
	metrics.LeukocoriaChecks.WithLabelValues(resp.Backend, result).Inc()

	s.log.WithFields(logrus.Fields{
		"request_id":   contextPkg.GetRequestID(ctx),
		"backend":      resp.Backend,
		"faces":        resp.Faces,
		"eyes_checked": resp.EyesChecked,
		"leukocoria":   resp.Leukocoria,
	}).Info("Leukocoria check completed")

	return resp, nil
}

func (s *leukocoriaService) detectWithVision(ctx context.Context, image []byte) (*leukocoria.DetectResponse, error) {
	analysis, err := s.visionClient.AnalyzePhoto(ctx, image)
	if errors.Is(err, vision.ErrImageRejected) {
		return nil, response.Wrap(leukocoria.ErrInvalidImage, "%v", err)
	}
	if err != nil {
		return nil, response.Wrap(leukocoria.ErrBackendFailed, "%v", err)
	}

	checked := 0
	for _, eye := range analysis.Eyes {
		if eye.PupilFound {
			checked++
		}
	}

	detected := reflex.Detect(analysis.Eyes)
	return &leukocoria.DetectResponse{
		Leukocoria:  detected,
		Success:     true,
		Message:     leukocoria.Message(detected),
		Faces:       analysis.Faces,
		EyesChecked: checked,
		Backend:     leukocoria.BackendVision,
	}, nil
}

func (s *leukocoriaService) detectWithGemini(ctx context.Context, image []byte, mimeType string) (*leukocoria.DetectResponse, error) {
	reply, err := s.geminiClient.AnalyzeImage(ctx, image, mimeType, geminiPrompt)
	if err != nil {
		return nil, response.Wrap(leukocoria.ErrBackendFailed, "%v", err)
	}

	verdict, err := ParseVerdict(reply)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Unparseable Gemini verdict")
		return nil, response.Wrap(leukocoria.ErrUnparseableVerdict, "%v", err)
	}
	if err := s.validator.Struct(verdict); err != nil {
		return nil, response.Wrap(leukocoria.ErrUnparseableVerdict, "%v", err)
	}

	return &leukocoria.DetectResponse{
		Leukocoria:  *verdict.Leukocoria,
		Success:     true,
		Message:     leukocoria.Message(*verdict.Leukocoria),
		Faces:       verdict.Faces,
		EyesChecked: verdict.EyesChecked,
		Backend:     leukocoria.BackendGemini,
	}, nil
}

// ParseVerdict decodes a model reply, tolerating a surrounding markdown code
// fence.
func ParseVerdict(reply string) (leukocoria.GeminiVerdict, error) {
	var verdict leukocoria.GeminiVerdict

	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	err := json.UnmarshalFromString(strings.TrimSpace(text), &verdict)
	return verdict, err
}

func readAll(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func mapFileError(err error) error {
	switch {
	case errors.Is(err, utils.ErrNoFile):
		return leukocoria.ErrNoImageFile
	case errors.Is(err, utils.ErrFileTooLarge):
		return leukocoria.ErrImageTooLarge
	}
	return leukocoria.ErrInvalidImage
}
