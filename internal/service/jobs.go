package service

import (
	"strings"

	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/dto"
	"eventhub/internal/repo"
)

func (s *service) ListJobs(ctx *ginext.Context) {
	page, n, size, ok := pageParams(ctx)
	if !ok {
		return
	}
	f := repo.JobFilter{
		Search:   strings.TrimSpace(ctx.Query("search")),
		Ordering: ctx.DefaultQuery("ordering", "-created_at"),
		Page:     page,
	}
	switch f.Ordering {
	case "created_at", "-created_at", "title", "-title":
	default:
		dto.FieldIncorrectError(ctx, "ordering")
		return
	}
	if raw := ctx.Query("tags"); raw != "" {
		f.Tags = strings.Split(raw, ",")
	}

	jobs, total, err := s.store.ListJobs(ctx.Request.Context(), f)
	if err != nil {
		s.fail(ctx, err, "failed to list jobs")
		return
	}
	dto.SuccessResponse(ctx, pageOf(jobs, total, n, size))
}

func (s *service) GetJob(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	job, err := s.store.GetJob(ctx.Request.Context(), id)
	if err != nil {
		s.fail(ctx, err, "failed to get job")
		return
	}
	dto.SuccessResponse(ctx, job)
}
