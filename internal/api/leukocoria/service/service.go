package leukocoriaService

import (
	"mime/multipart"

	"eyescreen/internal/api/leukocoria"
	"eyescreen/pkg/gemini"
	"eyescreen/pkg/utils"
	"eyescreen/pkg/vision"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ILeukocoriaService interface {
	Detect(ctx context.Context, file *multipart.FileHeader) (*leukocoria.DetectResponse, error)
}

type leukocoriaService struct {
	log          *logrus.Logger
	validator    *validator.Validate
	visionClient vision.IVision
	geminiClient gemini.IGemini
	utils        utils.IUtils
}

// NewLeukocoriaService builds the photo check. Either backend may be nil;
// Gemini only runs when the vision sidecar is missing or fails.
func NewLeukocoriaService(
	log *logrus.Logger,
	validate *validator.Validate,
	visionClient vision.IVision,
	geminiClient gemini.IGemini,
	utils utils.IUtils,
) ILeukocoriaService {
	return &leukocoriaService{
		log:          log,
		validator:    validate,
		visionClient: visionClient,
		geminiClient: geminiClient,
		utils:        utils,
	}
}
