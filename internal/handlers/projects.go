package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videoserver/internal/models"
	"videoserver/internal/service"
)

type ProjectsHandler struct {
	service  *service.Service
	validate *validator.Validate
	log      *logrus.Logger
}

func NewProjectsHandler(svc *service.Service, log *logrus.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		service:  svc,
		validate: validator.New(),
		log:      log,
	}
}

func projectID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "id", Message: "must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProjectsHandler) Upload(c *gin.Context) {
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

	project, err := h.service.Upload(c.Request.Context(), content,
		header.Filename, header.Header.Get("Content-Type"), c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewProjectResponse(project))
}

func (h *ProjectsHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	projects, total, err := h.service.List(c.Request.Context(), page)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]models.ProjectResponse, 0, len(projects))
	for i := range projects {
		items = append(items, models.NewProjectResponse(&projects[i]))
	}
	c.JSON(http.StatusOK, models.ProjectListResponse{
		Items: items,
		Meta: models.ListMeta{
			Page:       page,
			MaxResults: h.service.PerPage(),
			Total:      total,
		},
	})
}

func (h *ProjectsHandler) Get(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	project, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

// Edit accepts an edit request and returns 202 while the job runs.
func (h *ProjectsHandler) Edit(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}

	var req models.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "body", Message: "invalid JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "body", Message: err.Error()})
		return
	}

	if _, err := h.service.RequestEdit(c.Request.Context(), id, req.Spec()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, models.AcceptedResponse{Processing: true})
}

func (h *ProjectsHandler) Duplicate(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	child, err := h.service.Duplicate(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewProjectResponse(child))
}

func (h *ProjectsHandler) Delete(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
