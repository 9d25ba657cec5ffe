package handler

import (
	"net/http"
	"time"

	"github.com/teampulse/teampulse/internal/api/response"
	"github.com/teampulse/teampulse/internal/engine"
)

type jobInfo struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Schedule      string        `json:"schedule"`
	Scope         string        `json:"scope"`
	DefaultConfig engine.Config `json:"default_config"`
	NextRun       *time.Time    `json:"next_run,omitempty"`
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(registry *engine.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		jobs := registry.All()

		out := make([]jobInfo, 0, len(jobs))
		for _, job := range jobs {
			info := jobInfo{
				ID:            job.ID(),
				Name:          job.Name(),
				Description:   job.Description(),
				Schedule:      job.Schedule(),
				Scope:         job.Scope().String(),
				DefaultConfig: job.DefaultConfig(),
			}
			if next, err := registry.NextRun(job.ID(), now); err == nil {
				info.NextRun = &next
			}
			out = append(out, info)
		}

		response.JSON(w, out)
	}
}
