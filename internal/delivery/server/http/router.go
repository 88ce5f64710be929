package http

import (
	"context"
	"net/http"
	"time"

	appsubmission "repverse/internal/app/submission"
	"repverse/internal/domain/marketplace"
	"repverse/internal/domain/ports"
	"repverse/internal/shared/logging"

	"github.com/gin-gonic/gin"
)

// SubmissionService is the workflow surface the API exposes.
type SubmissionService interface {
	SubmitWork(ctx context.Context, req appsubmission.SubmitWorkRequest) (appsubmission.SubmitWorkResult, error)
	QualityCheck(ctx context.Context, req appsubmission.QualityCheckRequest) (marketplace.QualityCheckResult, error)
	EmployerAction(ctx context.Context, req appsubmission.EmployerActionRequest) (appsubmission.EmployerActionResult, error)
	Review(ctx context.Context, req appsubmission.ReviewRequest) (marketplace.AgentReviewResponse, error)
	ListSubmissions(ctx context.Context, jobID, freelancerAddress string) ([]marketplace.WorkSubmission, error)
}

// JobService covers job authoring helpers.
type JobService interface {
	ExtractJobDetails(ctx context.Context, blurb string) (marketplace.JobSpec, error)
	GenerateGigImage(ctx context.Context, title, description string) (*ports.GeneratedImage, error)
}

// RouterDeps holds everything NewRouter wires together.
type RouterDeps struct {
	Submissions SubmissionService
	Jobs        JobService
	Logger      logging.Logger

	// Recorder receives request metrics; MetricsHandler, when set, is
	// served on /metrics.
	Recorder       RequestRecorder
	MetricsHandler http.Handler
	// Tracer opens a span per request when set.
	Tracer SpanStarter

	AllowedOrigins []string
	RequestTimeout time.Duration
	Debug          bool
}

// NewRouter builds the gin engine serving the marketplace API.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !deps.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.OrNop(deps.Logger)

	engine := gin.New()
	engine.Use(
		recoveryMiddleware(logger),
		corsMiddleware(deps.AllowedOrigins),
		logIDMiddleware(),
		tracingMiddleware(deps.Tracer),
		loggingMiddleware(logger, deps.Recorder),
		timeoutMiddleware(deps.RequestTimeout),
	)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not Found"})
	})

	handler := &APIHandler{submissions: deps.Submissions, jobs: deps.Jobs, logger: logger}

	engine.GET("/health", handler.HandleHealth)
	if deps.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	api := engine.Group("/api")
	{
		api.POST("/submitWork", handler.HandleSubmitWork)
		api.POST("/employerAction", handler.HandleEmployerAction)
		api.POST("/getQualityCheck", handler.HandleGetQualityCheck)
		api.POST("/getReview", handler.HandleGetReview)
		api.GET("/getWorkSubmissions", handler.HandleGetWorkSubmissions)
		api.POST("/extractJobDetails", handler.HandleExtractJobDetails)
		api.POST("/generateImage", handler.HandleGenerateImage)
	}
	return engine
}
