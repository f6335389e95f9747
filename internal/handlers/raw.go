package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"videoserver/internal/models"
	"videoserver/internal/service"
)

type RawHandler struct {
	service *service.Service
	log     *logrus.Logger
}

func NewRawHandler(svc *service.Service, log *logrus.Logger) *RawHandler {
	return &RawHandler{service: svc, log: log}
}

var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// Video serves the raw video bytes, honoring a single bytes range.
func (h *RawHandler) Video(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		blob, err := h.service.VideoContent(ctx, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, blob.Mimetype, blob.Content)
		return
	}

	m := rangePattern.FindStringSubmatch(rangeHeader)
	if m == nil {
		c.JSON(http.StatusRequestedRangeNotSatisfiable, models.ErrorResponse{
			Error: "range", Message: "unsupported Range header",
		})
		return
	}
	start, _ := strconv.ParseInt(m[1], 10, 64)

	var length int64 = 1 << 20
	if m[2] != "" {
		end, _ := strconv.ParseInt(m[2], 10, 64)
		if end < start {
			c.JSON(http.StatusRequestedRangeNotSatisfiable, models.ErrorResponse{
				Error: "range", Message: "range end before start",
			})
			return
		}
		length = end - start + 1
	}

	blob, err := h.service.VideoRange(ctx, id, start, length)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(blob.Content) == 0 {
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	end := start + int64(len(blob.Content)) - 1
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, blob.Total))
	c.Header("Accept-Ranges", "bytes")
	c.Data(http.StatusPartialContent, blob.Mimetype, blob.Content)
}

// Preview serves the preview thumbnail bytes.
func (h *RawHandler) Preview(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	blob, err := h.service.PreviewContent(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, blob.Mimetype, blob.Content)
}

// Timeline serves one timeline thumbnail by index.
func (h *RawHandler) Timeline(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "index", Message: "must be a non-negative integer"})
		return
	}
	blob, err := h.service.TimelineContent(c.Request.Context(), id, index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, blob.Mimetype, blob.Content)
}
