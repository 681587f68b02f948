package screeningService

import (
	"mime/multipart"
	"time"

	"eyescreen/internal/api/screening"
	screeningRepository "eyescreen/internal/api/screening/repository"
	"eyescreen/pkg/redis"
	"eyescreen/pkg/s3"
	"eyescreen/pkg/tracking"
	"eyescreen/pkg/utils"
	"eyescreen/pkg/vision"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IScreeningService interface {
	AnalyzeUpload(ctx context.Context, file *multipart.FileHeader, policy string) (*screening.UploadResponse, error)
	AnalyzeLandmarks(ctx context.Context, req screening.LandmarksRequest) (*screening.AnalysisResponse, error)
	StartLive(ctx context.Context, start screening.StreamInbound) (*LiveSession, error)
	FinishLive(ctx context.Context, live *LiveSession) (*screening.AnalysisResponse, error)
	GetReport(ctx context.Context, id string) (*screening.ReportDetailResponse, error)
	ListReports(ctx context.Context, query screening.ListReportsQuery) (*screening.ReportListResponse, error)
}

// Options tunes the screening service. Zero values fall back to defaults.
type Options struct {
	Tracking       tracking.Config
	UploadDir      string
	Deployment     string
	ArchiveEnabled bool
	CacheTTL       time.Duration
}

type screeningService struct {
	log          *logrus.Logger
	screenRepo   screeningRepository.Repository
	redisClient  redis.IRedis
	s3Client     s3.ItfS3
	visionClient vision.IVision
	utils        utils.IUtils
	opts         Options
}

// NewScreeningService wires the screening service. screenRepo, redisClient
// and s3Client may be nil, which disables persistence, caching and
// archiving respectively.
func NewScreeningService(
	log *logrus.Logger,
	screenRepo screeningRepository.Repository,
	redisClient redis.IRedis,
	s3Client s3.ItfS3,
	visionClient vision.IVision,
	utils utils.IUtils,
	opts Options,
) IScreeningService {
	if opts.Tracking == (tracking.Config{}) {
		opts.Tracking = tracking.DefaultConfig()
	}
	if opts.Deployment == "" {
		opts.Deployment = "local"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = redis.DefaultReportTTL
	}

	return &screeningService{
		log:          log,
		screenRepo:   screenRepo,
		redisClient:  redisClient,
		s3Client:     s3Client,
		visionClient: visionClient,
		utils:        utils,
		opts:         opts,
	}
}
