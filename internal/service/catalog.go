package service

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/repo"
	"eventhub/internal/shop"
)

func (s *service) ListEvents(ctx *ginext.Context) {
	page, n, size, ok := pageParams(ctx)
	if !ok {
		return
	}
	events, total, err := s.store.ListEvents(ctx.Request.Context(), page)
	if err != nil {
		s.fail(ctx, err, "failed to list events")
		return
	}
	dto.SuccessResponse(ctx, pageOf(events, total, n, size))
}

func (s *service) GetEvent(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	event, err := s.store.GetEventDetail(ctx.Request.Context(), id)
	if err != nil {
		s.fail(ctx, err, "failed to get event")
		return
	}
	dto.SuccessResponse(ctx, event)
}

func (s *service) ListPresentations(ctx *ginext.Context) {
	page, n, size, ok := pageParams(ctx)
	if !ok {
		return
	}
	f := repo.PresentationFilter{Page: page, Type: ctx.Query("type")}
	switch f.Type {
	case "", model.PresentationCourse, model.PresentationTalk, model.PresentationWorkshop:
	default:
		dto.FieldIncorrectError(ctx, "type")
		return
	}
	if f.EventID, ok = queryInt64(ctx, "event"); !ok {
		return
	}
	if f.IsOnline, ok = queryBool(ctx, "is_online"); !ok {
		return
	}
	if f.IsPaid, ok = queryBool(ctx, "is_paid"); !ok {
		return
	}

	list, total, err := s.store.ListPresentations(ctx.Request.Context(), f)
	if err != nil {
		s.fail(ctx, err, "failed to list presentations")
		return
	}
	dto.SuccessResponse(ctx, pageOf(list, total, n, size))
}

func (s *service) GetPresentation(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	p, err := s.store.GetPresentation(ctx.Request.Context(), id)
	if err == nil && !p.IsActive {
		err = repo.ErrPresentationNotFound
	}
	if err != nil {
		s.fail(ctx, err, "failed to get presentation")
		return
	}
	dto.SuccessResponse(ctx, p)
}

func competitionFilter(ctx *ginext.Context) (repo.CompetitionFilter, int, int, bool) {
	page, n, size, ok := pageParams(ctx)
	if !ok {
		return repo.CompetitionFilter{}, 0, 0, false
	}
	f := repo.CompetitionFilter{Page: page}
	if f.EventID, ok = queryInt64(ctx, "event"); !ok {
		return f, 0, 0, false
	}
	if f.IsPaid, ok = queryBool(ctx, "is_paid"); !ok {
		return f, 0, 0, false
	}
	return f, n, size, true
}

func (s *service) ListSoloCompetitions(ctx *ginext.Context) {
	f, n, size, ok := competitionFilter(ctx)
	if !ok {
		return
	}
	list, total, err := s.store.ListSoloCompetitions(ctx.Request.Context(), f)
	if err != nil {
		s.fail(ctx, err, "failed to list solo competitions")
		return
	}
	dto.SuccessResponse(ctx, pageOf(list, total, n, size))
}

func (s *service) GetSoloCompetition(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	c, err := s.store.GetSoloCompetition(ctx.Request.Context(), id)
	if err == nil && !c.IsActive {
		err = repo.ErrCompetitionNotFound
	}
	if err != nil {
		s.fail(ctx, err, "failed to get solo competition")
		return
	}
	dto.SuccessResponse(ctx, c)
}

func (s *service) ListGroupCompetitions(ctx *ginext.Context) {
	f, n, size, ok := competitionFilter(ctx)
	if !ok {
		return
	}
	list, total, err := s.store.ListGroupCompetitions(ctx.Request.Context(), f)
	if err != nil {
		s.fail(ctx, err, "failed to list group competitions")
		return
	}
	dto.SuccessResponse(ctx, pageOf(list, total, n, size))
}

func (s *service) GetGroupCompetition(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	c, err := s.store.GetGroupCompetition(ctx.Request.Context(), id)
	if err == nil && !c.IsActive {
		err = repo.ErrCompetitionNotFound
	}
	if err != nil {
		s.fail(ctx, err, "failed to get group competition")
		return
	}
	dto.SuccessResponse(ctx, c)
}

func (s *service) EnrollPresentation(ctx *ginext.Context) {
	s.enroll(ctx, model.ItemPresentation)
}

func (s *service) RegisterSolo(ctx *ginext.Context) {
	s.enroll(ctx, model.ItemSoloCompetition)
}

// enroll signs the caller up for a free item directly and puts a paid one in the cart.
func (s *service) enroll(ctx *ginext.Context, itemType string) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	rctx := ctx.Request.Context()

	it, err := s.store.GetItem(rctx, itemType, id)
	if err != nil {
		s.fail(ctx, err, "failed to load item")
		return
	}
	if !shop.Available(it) {
		s.fail(ctx, shop.ErrItemUnavailable, "")
		return
	}
	status, err := s.store.GetEnrollmentStatus(rctx, itemType, id, u.ID)
	if err != nil {
		s.fail(ctx, err, "failed to get enrollment status")
		return
	}
	if status == model.EnrollmentCompleted {
		dto.SuccessResponse(ctx, dto.EnrollmentResult{Message: "You are already enrolled.", Status: status})
		return
	}
	if it.Remaining != nil && *it.Remaining <= 0 && status != model.EnrollmentPendingPayment {
		s.fail(ctx, repo.ErrCapacityFull, "")
		return
	}

	if shop.IsFree(it) {
		created, err := s.store.EnrollFree(rctx, itemType, id, u.ID)
		if errors.Is(err, repo.ErrAlreadyEnrolled) {
			dto.SuccessResponse(ctx, dto.EnrollmentResult{Message: "You are already enrolled.", Status: model.EnrollmentCompleted})
			return
		}
		if err != nil {
			s.fail(ctx, err, "failed to enroll")
			return
		}
		s.log.Info().Str("item_type", itemType).Int64("item_id", id).Int64("user_id", u.ID).Msg("enrolled for free")
		res := dto.EnrollmentResult{Message: "Enrolled successfully.", Status: model.EnrollmentCompleted}
		if created {
			dto.SuccessCreatedResponse(ctx, res)
			return
		}
		dto.SuccessResponse(ctx, res)
		return
	}

	if _, _, err := s.store.AddCartItem(rctx, u.ID, itemType, id); err != nil {
		s.fail(ctx, err, "failed to add item to cart")
		return
	}
	dto.SuccessMessage(ctx, http.StatusOK, "Item added to your cart. Complete checkout to finish enrollment.")
}

func (s *service) MyEnrollments(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	eventID, ok := queryInt64(ctx, "event")
	if !ok {
		return
	}
	list, err := s.store.ListUserEnrollments(ctx.Request.Context(), u.ID, eventID)
	if err != nil {
		s.fail(ctx, err, "failed to list enrollments")
		return
	}
	dto.SuccessResponse(ctx, list)
}

func (s *service) MySoloRegistrations(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	eventID, ok := queryInt64(ctx, "event")
	if !ok {
		return
	}
	list, err := s.store.ListUserSoloRegistrations(ctx.Request.Context(), u.ID, eventID)
	if err != nil {
		s.fail(ctx, err, "failed to list solo registrations")
		return
	}
	dto.SuccessResponse(ctx, list)
}
