package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videoserver/internal/models"
	"videoserver/internal/service"
)

type ThumbnailsHandler struct {
	service  *service.Service
	validate *validator.Validate
	log      *logrus.Logger
}

func NewThumbnailsHandler(svc *service.Service, log *logrus.Logger) *ThumbnailsHandler {
	return &ThumbnailsHandler{
		service:  svc,
		validate: validator.New(),
		log:      log,
	}
}

// Request answers GET /projects/:id/thumbnails. A timeline request whose
// amount matches the stored set, or a preview request at an already-captured
// position, returns 200 with the stored thumbnails; anything else queues a
// job and returns 202.
func (h *ThumbnailsHandler) Request(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}

	var req models.ThumbnailsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "query", Message: "invalid query parameters"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "query", Message: err.Error()})
		return
	}

	switch req.Type {
	case "timeline":
		h.timeline(c, id, req)
	case "preview":
		h.preview(c, id, req)
	}
}

func (h *ThumbnailsHandler) timeline(c *gin.Context, id uuid.UUID, req models.ThumbnailsRequest) {
	result, err := h.service.RequestTimelineThumbnails(c.Request.Context(), id, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	if !result.Started {
		existing := make([]models.ThumbnailResponse, 0, len(result.Existing))
		for _, ref := range result.Existing {
			existing = append(existing, models.NewThumbnailResponse(ref))
		}
		c.JSON(http.StatusOK, models.AcceptedResponse{Processing: false, Thumbnails: existing})
		return
	}
	c.JSON(http.StatusAccepted, models.AcceptedResponse{Processing: true})
}

func (h *ThumbnailsHandler) preview(c *gin.Context, id uuid.UUID, req models.ThumbnailsRequest) {
	position := 0.0
	if req.Position != nil {
		position = *req.Position
	}
	crop, ok := req.CropSpec()
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "crop", Message: "x, y, width and height must be supplied together",
		})
		return
	}

	result, err := h.service.RequestPreviewThumbnail(c.Request.Context(), id, position, crop, req.Rotate)
	if err != nil {
		writeError(c, err)
		return
	}
	if !result.Started {
		cached := models.NewThumbnailResponse(*result.Existing)
		c.JSON(http.StatusOK, models.AcceptedResponse{
			Processing: false,
			Thumbnails: []models.ThumbnailResponse{cached},
		})
		return
	}
	c.JSON(http.StatusAccepted, models.AcceptedResponse{Processing: true})
}

// UploadPreview replaces the preview thumbnail with a client-supplied image.
func (h *ThumbnailsHandler) UploadPreview(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "file", Message: "multipart field is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "file", Message: "could not read upload"})
		return
	}

	project, err := h.service.UploadPreviewThumbnail(c.Request.Context(), id, content, header.Filename)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewProjectResponse(project))
}
