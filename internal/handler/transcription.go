package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/voxscribe/api/internal/middleware"
	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/service"
	"github.com/voxscribe/api/internal/storage"
	"github.com/voxscribe/api/pkg/response"
)

type TranscriptionHandler struct {
	admission *service.AdmissionService
	storage   storage.ObjectStorage
	validator *validator.Validate
}

func NewTranscriptionHandler(admission *service.AdmissionService, store storage.ObjectStorage, v *validator.Validate) *TranscriptionHandler {
	return &TranscriptionHandler{
		admission: admission,
		storage:   store,
		validator: v,
	}
}

// Presign handles POST /api/v1/transcription/presign
func (h *TranscriptionHandler) Presign(c *fiber.Ctx) error {
	var req model.PresignRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if !strings.HasPrefix(req.MimeType, "audio/") {
		return response.ValidationError(c, "Only audio files are accepted", nil)
	}

	userID := middleware.GetUserID(c)

	// Check quota up front so the user doesn't upload a file they can't
	// afford to transcribe.
	if _, err := h.admission.CheckQuota(c.Context(), userID, req.DurationSeconds); err != nil {
		return mapAdmissionError(c, err)
	}

	key := storage.BuildObjectKey(userID, req.FileName, req.MimeType, time.Now())
	url, err := h.storage.PresignedPutURL(c.Context(), key, req.MimeType)
	if err != nil {
		return response.ServiceError(c, "Could not generate pre-signed URL")
	}

	return response.OK(c, model.PresignResponse{
		PresignedURL: url,
		AudioFileKey: key,
	})
}

// QueueJob handles POST /api/v1/transcription/queue-job
func (h *TranscriptionHandler) QueueJob(c *fiber.Ctx) error {
	var req model.QueueJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)
	result, err := h.admission.Submit(c.Context(), userID, req.AudioFileKey, req.DurationSeconds)
	if err != nil {
		return mapAdmissionError(c, err)
	}

	return response.Accepted(c, result)
}

// GetJob handles GET /api/v1/transcription/job/:jobId
func (h *TranscriptionHandler) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	userID := middleware.GetUserID(c)
	job, err := h.admission.GetJobForUser(c.Context(), userID, jobID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, model.ErrJobNotOwned):
			return response.Forbidden(c, "This job does not belong to you")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	resp := model.JobStatusResponse{
		JobID:             job.ID,
		Status:            job.Status,
		TranscriptionText: job.TranscriptionText,
		Error:             job.Error,
	}
	if job.Status == model.JobStatusQueued {
		if link, err := h.storage.PresignedGetURL(c.Context(), job.AudioFileKey); err == nil {
			resp.AudioFileLink = link
		}
	}

	return response.OK(c, resp)
}

func mapAdmissionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrQuotaExceeded):
		// The wrapped message carries the remaining-minutes context.
		return response.QuotaExceeded(c, "Not enough minutes remaining for this file", err.Error())
	case errors.Is(err, model.ErrDuplicateJob):
		return response.DuplicateJob(c, "A job already exists for this file")
	case errors.Is(err, model.ErrInvalidDuration):
		return response.ValidationError(c, "Duration must be positive", nil)
	case errors.Is(err, model.ErrAccountNotFound):
		return response.NotFound(c, "No active subscription account")
	default:
		return response.ServiceError(c, err.Error())
	}
}
