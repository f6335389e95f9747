// Package service is the orchestration core: it validates requests against
// current project state, manages the processing flags, and hands work to the
// job pool. Handlers call into here and translate errors to HTTP.
package service

import (
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"videoserver/internal/activity"
	"videoserver/internal/config"
	"videoserver/internal/jobs"
	"videoserver/internal/registry"
	"videoserver/internal/storage"
	"videoserver/internal/transcode"
	"videoserver/internal/validation"
)

type Service struct {
	registry registry.Registry
	storage  storage.Storage
	editor   transcode.Editor
	pool     *jobs.Pool
	events   activity.Publisher
	log      *logrus.Logger

	limits          validation.Limits
	videoCodecs     []string
	imageCodecs     []string
	itemsPerPage    int
	defaultTimeline int

	now func() time.Time
}

func New(reg registry.Registry, store storage.Storage, editor transcode.Editor,
	pool *jobs.Pool, events activity.Publisher, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		registry:        reg,
		storage:         store,
		editor:          editor,
		pool:            pool,
		events:          events,
		log:             log,
		limits:          validation.LimitsFromConfig(cfg),
		videoCodecs:     cfg.VideoCodecs,
		imageCodecs:     cfg.ImageCodecs,
		itemsPerPage:    cfg.ItemsPerPage,
		defaultTimeline: cfg.DefaultTimelineThumbnails,
		now:             time.Now,
	}
}

func (s *Service) publish(event activity.Event) {
	event.Time = s.now().UTC()
	s.events.Publish(event)
}

func codecSupported(codecs []string, name string) bool {
	for _, c := range codecs {
		if c == name {
			return true
		}
	}
	return false
}

func extOf(filename string) string {
	if ext := path.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	return ".mp4"
}
