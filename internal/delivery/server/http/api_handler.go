package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	appsubmission "repverse/internal/app/submission"
	"repverse/internal/domain/marketplace"
	jsonx "repverse/internal/shared/json"
	"repverse/internal/shared/logging"

	"github.com/gin-gonic/gin"
)

const messageInvalidBody = "Invalid request body"

// APIHandler serves the marketplace JSON endpoints.
type APIHandler struct {
	submissions SubmissionService
	jobs        JobService
	logger      logging.Logger
}

// flexibleID accepts a JSON string or number. Job ids arrive as either.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	var text string
	if err := jsonx.Unmarshal(data, &text); err == nil {
		*f = flexibleID(strings.TrimSpace(text))
		return nil
	}
	var number jsonx.Number
	if err := jsonx.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(number.String(), 64); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexibleID(number.String())
	return nil
}

type submitWorkRequest struct {
	JobID             flexibleID          `json:"jobId"`
	FreelancerAddress string              `json:"freelancerAddress"`
	Work              string              `json:"work"`
	JobDetails        marketplace.JobSpec `json:"jobDetails"`
}

type feedbackBody struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

type submitWorkResponse struct {
	Success      bool                        `json:"success"`
	Message      string                      `json:"message"`
	QualityScore float64                     `json:"qualityScore"`
	Feedback     feedbackBody                `json:"feedback"`
	Submission   *marketplace.WorkSubmission `json:"submission,omitempty"`
}

// HandleSubmitWork runs the quality gate and records the submission.
func (h *APIHandler) HandleSubmitWork(c *gin.Context) {
	var body submitWorkRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, messageInvalidBody)
		return
	}
	result, err := h.submissions.SubmitWork(c.Request.Context(), appsubmission.SubmitWorkRequest{
		JobID:             string(body.JobID),
		FreelancerAddress: body.FreelancerAddress,
		Work:              body.Work,
		Job:               body.JobDetails,
	})
	if err != nil {
		writeError(c, h.logger, err, messageInternal)
		return
	}
	status := http.StatusOK
	if !result.Accepted {
		status = http.StatusBadRequest
	}
	c.JSON(status, submitWorkResponse{
		Success:      result.Accepted,
		Message:      result.Message,
		QualityScore: result.QualityScore,
		Feedback:     feedbackBody{Positive: result.Feedback.Positive, Negative: result.Feedback.Negative},
		Submission:   result.Submission,
	})
}

type employerActionRequest struct {
	JobID             flexibleID          `json:"jobId"`
	FreelancerAddress string              `json:"freelancerAddress"`
	Action            string              `json:"action"`
	RejectionReason   string              `json:"rejectionReason"`
	JobDetails        marketplace.JobSpec `json:"jobDetails"`
}

// HandleEmployerAction approves or rejects a pending submission.
func (h *APIHandler) HandleEmployerAction(c *gin.Context) {
	var body employerActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, messageInvalidBody)
		return
	}
	result, err := h.submissions.EmployerAction(c.Request.Context(), appsubmission.EmployerActionRequest{
		JobID:             string(body.JobID),
		FreelancerAddress: body.FreelancerAddress,
		Action:            body.Action,
		RejectionReason:   body.RejectionReason,
		Job:               body.JobDetails,
	})
	if err != nil {
		writeError(c, h.logger, err, messageInternal)
		return
	}

	response := gin.H{"success": result.Success, "message": result.Message}
	if result.Review != nil {
		response["action"] = result.Action
		response["reviewResult"] = result.Review
		response["canReject"] = result.CanReject
		if result.RetriesLeft != nil {
			response["retriesLeft"] = *result.RetriesLeft
		}
	}
	c.JSON(http.StatusOK, response)
}

type qualityCheckRequest struct {
	JobID             flexibleID          `json:"jobId"`
	FreelancerAddress string              `json:"freelancerAddress"`
	Work              string              `json:"work"`
	JobDetails        marketplace.JobSpec `json:"jobDetails"`
}

// HandleGetQualityCheck runs a standalone quality check.
func (h *APIHandler) HandleGetQualityCheck(c *gin.Context) {
	var body qualityCheckRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, messageInvalidBody)
		return
	}
	result, err := h.submissions.QualityCheck(c.Request.Context(), appsubmission.QualityCheckRequest{
		JobID:             string(body.JobID),
		FreelancerAddress: body.FreelancerAddress,
		Work:              body.Work,
		Job:               body.JobDetails,
	})
	if err != nil {
		writeError(c, h.logger, err, messageInternal)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reviewRequest struct {
	JobID             flexibleID          `json:"jobId"`
	FreelancerAddress string              `json:"freelancerAddress"`
	RejectionReason   string              `json:"rejectionReason"`
	JobDetails        marketplace.JobSpec `json:"jobDetails"`
}

// HandleGetReview scores a rejection reason without changing any state.
func (h *APIHandler) HandleGetReview(c *gin.Context) {
	var body reviewRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, messageInvalidBody)
		return
	}
	result, err := h.submissions.Review(c.Request.Context(), appsubmission.ReviewRequest{
		JobID:             string(body.JobID),
		FreelancerAddress: body.FreelancerAddress,
		RejectionReason:   body.RejectionReason,
		Job:               body.JobDetails,
	})
	if err != nil {
		writeError(c, h.logger, err, messageInternal)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleGetWorkSubmissions lists submissions for a job, newest first.
func (h *APIHandler) HandleGetWorkSubmissions(c *gin.Context) {
	submissions, err := h.submissions.ListSubmissions(c.Request.Context(), c.Query("jobId"), c.Query("freelancerAddress"))
	if err != nil {
		writeError(c, h.logger, err, messageInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submissions": submissions})
}

type extractJobDetailsRequest struct {
	Blurb string `json:"blurb"`
}

// HandleExtractJobDetails turns a free-form job blurb into a JobSpec.
func (h *APIHandler) HandleExtractJobDetails(c *gin.Context) {
	var body extractJobDetailsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, messageInvalidBody)
		return
	}
	job, err := h.jobs.ExtractJobDetails(c.Request.Context(), body.Blurb)
	if err != nil {
		writeError(c, h.logger, err, "Failed to extract job details")
		return
	}
	c.JSON(http.StatusOK, job)
}

type generateImageRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// HandleGenerateImage returns a gig illustration as raw image bytes.
func (h *APIHandler) HandleGenerateImage(c *gin.Context) {
	var body generateImageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, messageInvalidBody)
		return
	}
	image, err := h.jobs.GenerateGigImage(c.Request.Context(), body.Title, body.Description)
	if err != nil {
		writeError(c, h.logger, err, "Failed to generate image")
		return
	}
	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	c.Data(http.StatusOK, mimeType, image.Data)
}

// HandleHealth reports liveness.
func (h *APIHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
