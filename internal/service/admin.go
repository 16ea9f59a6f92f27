package service

import (
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/auth"
	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/shop"
)

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	e := &model.Event{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		IsActive:    req.IsActive,
		LandingURL:  req.LandingURL,
	}
	if uid := ctx.GetInt64(auth.CtxUserID); uid != 0 {
		e.ManagerID = &uid
	}
	id, err := s.store.CreateEvent(ctx.Request.Context(), e)
	if err != nil {
		s.fail(ctx, err, "failed to create event")
		return
	}
	s.log.Info().Int64("event_id", id).Msg("event created")
	dto.SuccessCreatedResponse(ctx, e)
}

func (s *service) CreatePresentation(ctx *ginext.Context) {
	var req dto.CreatePresentationRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	p := &model.Presentation{
		EventID:      req.EventID,
		Title:        req.Title,
		Description:  req.Description,
		Type:         req.Type,
		Level:        req.Level,
		IsOnline:     req.IsOnline,
		Location:     req.Location,
		OnlineLink:   req.OnlineLink,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		IsPaid:       req.IsPaid,
		Price:        req.Price,
		Capacity:     req.Capacity,
		IsActive:     req.IsActive,
		Requirements: req.Requirements,
	}
	id, err := s.store.CreatePresentation(ctx.Request.Context(), p)
	if err != nil {
		s.fail(ctx, err, "failed to create presentation")
		return
	}
	s.log.Info().Int64("presentation_id", id).Int64("event_id", p.EventID).Msg("presentation created")
	dto.SuccessCreatedResponse(ctx, p)
}

func competitionInfo(f dto.CompetitionFields) model.CompetitionInfo {
	return model.CompetitionInfo{
		EventID:       f.EventID,
		Title:         f.Title,
		Description:   f.Description,
		StartDatetime: f.StartDatetime,
		EndDatetime:   f.EndDatetime,
		Rules:         f.Rules,
		IsPaid:        f.IsPaid,
		PrizeDetails:  f.PrizeDetails,
		IsActive:      f.IsActive,
	}
}

func (s *service) CreateSoloCompetition(ctx *ginext.Context) {
	var req dto.CreateSoloCompetitionRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	c := &model.SoloCompetition{
		CompetitionInfo:     competitionInfo(req.CompetitionFields),
		PricePerParticipant: req.PricePerParticipant,
		MaxParticipants:     req.MaxParticipants,
	}
	id, err := s.store.CreateSoloCompetition(ctx.Request.Context(), c)
	if err != nil {
		s.fail(ctx, err, "failed to create solo competition")
		return
	}
	s.log.Info().Int64("competition_id", id).Msg("solo competition created")
	dto.SuccessCreatedResponse(ctx, c)
}

func (s *service) CreateGroupCompetition(ctx *ginext.Context) {
	var req dto.CreateGroupCompetitionRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	c := &model.GroupCompetition{
		CompetitionInfo:                competitionInfo(req.CompetitionFields),
		PricePerGroup:                  req.PricePerGroup,
		MinGroupSize:                   req.MinGroupSize,
		MaxGroupSize:                   req.MaxGroupSize,
		MaxTeams:                       req.MaxTeams,
		RequiresAdminApproval:          req.RequiresAdminApproval,
		MemberVerificationInstructions: req.MemberVerificationInstructions,
	}
	id, err := s.store.CreateGroupCompetition(ctx.Request.Context(), c)
	if err != nil {
		s.fail(ctx, err, "failed to create group competition")
		return
	}
	s.log.Info().Int64("competition_id", id).Bool("verified", c.RequiresAdminApproval).Msg("group competition created")
	dto.SuccessCreatedResponse(ctx, c)
}

// SetCatalogActive returns a handler toggling is_active on one catalog table.
func (s *service) SetCatalogActive(catalog string) func(*ginext.Context) {
	return func(ctx *ginext.Context) {
		id, ok := paramID(ctx, "id")
		if !ok {
			return
		}
		var req dto.SetActiveRequest
		if !s.bindJSON(ctx, &req) {
			return
		}
		if err := s.store.SetActive(ctx.Request.Context(), catalog, id, *req.IsActive); err != nil {
			s.fail(ctx, err, "failed to update is_active")
			return
		}
		s.log.Info().Str("catalog", catalog).Int64("id", id).Bool("is_active", *req.IsActive).Msg("catalog entry toggled")
		dto.SuccessResponse(ctx, map[string]any{"id": id, "is_active": *req.IsActive})
	}
}

func (s *service) CreateDiscountCode(ctx *ginext.Context) {
	var req dto.CreateDiscountCodeRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	dc := &model.DiscountCode{
		Code:           shop.NormalizeCode(req.Code),
		IsActive:       req.IsActive,
		Percentage:     req.Percentage,
		Amount:         req.Amount,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		MinOrderAmount: req.MinOrderAmount,
		MaxUses:        req.MaxUses,
		MaxUsesPerUser: req.MaxUsesPerUser,
		TargetType:     req.TargetType,
		TargetID:       req.TargetID,
	}
	if err := shop.CheckDiscountShape(dc); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
		return
	}
	if (dc.TargetType == nil) != (dc.TargetID == nil) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "target_type and target_id must be set together.")
		return
	}
	id, err := s.store.CreateDiscountCode(ctx.Request.Context(), dc)
	if err != nil {
		s.fail(ctx, err, "failed to create discount code")
		return
	}
	dc.ID = id
	s.log.Info().Int64("discount_id", id).Str("code", dc.Code).Msg("discount code created")
	dto.SuccessCreatedResponse(ctx, dc)
}

func (s *service) CreatePaymentApp(ctx *ginext.Context) {
	var req dto.CreatePaymentAppRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	app := &model.PaymentApp{Slug: req.Slug, Name: req.Name, IsActive: true}
	if req.IsActive != nil {
		app.IsActive = *req.IsActive
	}
	id, err := s.store.CreatePaymentApp(ctx.Request.Context(), app)
	if err != nil {
		s.fail(ctx, err, "failed to create payment app")
		return
	}
	app.ID = id
	app.CreatedAt = s.now()
	dto.SuccessCreatedResponse(ctx, app)
}

func (s *service) ListPaymentApps(ctx *ginext.Context) {
	apps, err := s.store.ListPaymentApps(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, err, "failed to list payment apps")
		return
	}
	dto.SuccessResponse(ctx, apps)
}

func (s *service) ListTeamsForReview(ctx *ginext.Context) {
	status := ctx.Query("status")
	switch status {
	case "", model.TeamPendingAdminVerification, model.TeamRejectedByAdmin, model.TeamApprovedAwaitingPayment:
	default:
		dto.FieldIncorrectError(ctx, "status")
		return
	}
	teams, err := s.store.ListTeamsForReview(ctx.Request.Context(), status)
	if err != nil {
		s.fail(ctx, err, "failed to list teams for review")
		return
	}
	dto.SuccessResponse(ctx, teams)
}

func (s *service) ApproveTeam(ctx *ginext.Context) {
	s.reviewTeam(ctx, true)
}

func (s *service) RejectTeam(ctx *ginext.Context) {
	s.reviewTeam(ctx, false)
}

func (s *service) reviewTeam(ctx *ginext.Context, approve bool) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req dto.ReviewRequest
	if !s.bindOptionalJSON(ctx, &req) {
		return
	}
	remarks := strings.TrimSpace(req.Remarks)

	var team *model.CompetitionTeam
	var err error
	if approve {
		team, err = s.store.ApproveTeam(ctx.Request.Context(), id, remarks)
	} else {
		team, err = s.store.RejectTeam(ctx.Request.Context(), id, remarks)
	}
	if err != nil {
		s.fail(ctx, err, "failed to review team")
		return
	}
	s.log.Info().Int64("team_id", id).Str("status", team.Status).Msg("team reviewed")
	dto.SuccessResponse(ctx, team)
}

func (s *service) ApproveGovernmentID(ctx *ginext.Context) {
	s.reviewGovernmentID(ctx, true)
}

func (s *service) RejectGovernmentID(ctx *ginext.Context) {
	s.reviewGovernmentID(ctx, false)
}

func (s *service) reviewGovernmentID(ctx *ginext.Context, approve bool) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	m, err := s.store.ReviewGovernmentID(ctx.Request.Context(), id, approve)
	if err != nil {
		s.fail(ctx, err, "failed to review government id")
		return
	}
	s.log.Info().Int64("membership_id", id).Str("status", m.GovernmentIDStatus).Msg("government id reviewed")
	dto.SuccessResponse(ctx, m)
}

func (s *service) VerifyCertificate(ctx *ginext.Context) {
	kind := ctx.Param("kind")
	if kind != model.CertificatePresentation && kind != model.CertificateCompetition {
		dto.FieldIncorrectError(ctx, "kind")
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req dto.VerifyCertificateRequest
	if !s.bindOptionalJSON(ctx, &req) {
		return
	}
	if err := s.store.VerifyCertificate(ctx.Request.Context(), kind, id, req.Ranking); err != nil {
		s.fail(ctx, err, "failed to verify certificate")
		return
	}
	s.log.Info().Str("kind", kind).Int64("certificate_id", id).Msg("certificate verified")
	dto.SuccessMessage(ctx, http.StatusOK, "Certificate verified.")
}

func (s *service) CreateTag(ctx *ginext.Context) {
	var req dto.CreateTagRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	tag := &model.Tag{Name: strings.TrimSpace(req.Name), Color: req.Color}
	id, err := s.store.CreateTag(ctx.Request.Context(), tag)
	if err != nil {
		s.fail(ctx, err, "failed to create tag")
		return
	}
	tag.ID = id
	dto.SuccessCreatedResponse(ctx, tag)
}

func (s *service) CreateJob(ctx *ginext.Context) {
	var req dto.CreateJobRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	job := &model.Job{
		Title:           req.Title,
		Excerpt:         req.Excerpt,
		Description:     req.Description,
		CompanyURL:      req.CompanyURL,
		ResumeURL:       req.ResumeURL,
		CompanyImageURL: req.CompanyImageURL,
		IsActive:        true,
	}
	if req.IsActive != nil {
		job.IsActive = *req.IsActive
	}
	id, err := s.store.CreateJob(ctx.Request.Context(), job, req.TagIDs)
	if err != nil {
		s.fail(ctx, err, "failed to create job")
		return
	}
	job.ID = id
	job.CreatedAt = s.now()
	s.log.Info().Int64("job_id", id).Msg("job created")
	dto.SuccessCreatedResponse(ctx, job)
}

// Reconcile runs one reconciliation pass on demand.
func (s *service) Reconcile(ctx *ginext.Context) {
	report, err := s.pay.RunOnce(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, err, "reconciliation failed")
		return
	}
	dto.SuccessResponse(ctx, report)
}
