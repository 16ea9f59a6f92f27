package service

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/repo"
	"eventhub/internal/shop"
)

const governmentIDDir = "government_ids"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

func (s *service) RegisterTeam(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	gcID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req dto.RegisterTeamRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	rctx := ctx.Request.Context()

	gc, err := s.store.GetGroupCompetition(rctx, gcID)
	if err != nil {
		s.fail(ctx, err, "failed to get group competition")
		return
	}
	if !gc.IsActive {
		s.fail(ctx, shop.ErrItemUnavailable, "")
		return
	}

	emails := make([]string, 0, len(req.MemberEmails))
	seen := make(map[string]bool, len(req.MemberEmails))
	for _, e := range req.MemberEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == strings.ToLower(u.Email) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "The team leader must not be listed among the members.")
			return
		}
		if seen[e] {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Member emails must be unique: "+e)
			return
		}
		seen[e] = true
		emails = append(emails, e)
	}

	size := len(emails) + 1
	if size < gc.MinGroupSize || size > gc.MaxGroupSize {
		dto.BadResponseError(ctx, dto.FieldIncorrect,
			fmt.Sprintf("Team size including the leader must be between %d and %d.", gc.MinGroupSize, gc.MaxGroupSize))
		return
	}

	memberIDs := make([]int64, 0, len(emails))
	if len(emails) > 0 {
		users, err := s.store.GetUsersByEmails(rctx, emails)
		if err != nil {
			s.fail(ctx, err, "failed to look up team members")
			return
		}
		found := make(map[string]int64, len(users))
		for _, m := range users {
			found[strings.ToLower(m.Email)] = m.ID
		}
		var missing []string
		for _, e := range emails {
			id, ok := found[e]
			if !ok {
				missing = append(missing, e)
				continue
			}
			memberIDs = append(memberIDs, id)
		}
		if len(missing) > 0 {
			dto.BadResponseDetails(ctx, dto.FieldIncorrect, "Some member emails are not registered.", missing)
			return
		}
	}

	team, err := s.store.CreateTeam(rctx, repo.NewTeam{
		Name:               req.Name,
		LeaderID:           u.ID,
		GroupCompetitionID: gc.ID,
		MemberIDs:          memberIDs,
	})
	if err != nil {
		s.fail(ctx, err, "failed to register team")
		return
	}
	team.Role = "leader"
	s.log.Info().Int64("team_id", team.ID).Int64("competition_id", gc.ID).Str("status", team.Status).Msg("team registered")
	dto.SuccessCreatedResponse(ctx, team)
}

func (s *service) MyTeams(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	eventID, ok := queryInt64(ctx, "event")
	if !ok {
		return
	}
	teams, err := s.store.ListUserTeams(ctx.Request.Context(), u.ID, eventID)
	if err != nil {
		s.fail(ctx, err, "failed to list teams")
		return
	}
	dto.SuccessResponse(ctx, teams)
}

// userTeam loads a team the caller leads or belongs to. Other teams are reported as missing.
func (s *service) userTeam(ctx *ginext.Context, u *model.User) (*model.CompetitionTeam, bool) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return nil, false
	}
	team, err := s.store.GetTeam(ctx.Request.Context(), id)
	if err != nil {
		s.fail(ctx, err, "failed to get team")
		return nil, false
	}
	if team.LeaderID == u.ID {
		team.Role = "leader"
		return team, true
	}
	for _, m := range team.Members {
		if m.UserID == u.ID {
			team.Role = "member"
			return team, true
		}
	}
	s.fail(ctx, repo.ErrTeamNotFound, "")
	return nil, false
}

func (s *service) GetMyTeam(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	team, ok := s.userTeam(ctx, u)
	if !ok {
		return
	}
	dto.SuccessResponse(ctx, team)
}

func (s *service) DeleteTeam(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	team, ok := s.userTeam(ctx, u)
	if !ok {
		return
	}
	if team.LeaderID != u.ID {
		dto.ForbiddenError(ctx, "Only the team leader can delete the team.")
		return
	}
	rctx := ctx.Request.Context()
	if team.Status == model.TeamActive {
		gc, err := s.store.GetGroupCompetition(rctx, team.GroupCompetitionID)
		if err != nil {
			s.fail(ctx, err, "failed to get group competition")
			return
		}
		if !gc.IsFree() {
			dto.BadResponseError(ctx, dto.InvalidState, "An active team of a paid competition cannot be deleted.")
			return
		}
	}
	if err := s.store.DeleteTeam(rctx, team.ID); err != nil {
		s.fail(ctx, err, "failed to delete team")
		return
	}
	s.log.Info().Int64("team_id", team.ID).Int64("user_id", u.ID).Msg("team deleted")
	dto.SuccessMessage(ctx, http.StatusOK, "Team deleted.")
}

// AddTeamToCart puts an approved team of a paid verified competition in the leader's cart.
func (s *service) AddTeamToCart(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	team, ok := s.userTeam(ctx, u)
	if !ok {
		return
	}
	if team.LeaderID != u.ID {
		s.fail(ctx, shop.ErrNotTeamLeader, "")
		return
	}
	rctx := ctx.Request.Context()
	gc, err := s.store.GetGroupCompetition(rctx, team.GroupCompetitionID)
	if err != nil {
		s.fail(ctx, err, "failed to get group competition")
		return
	}
	if !gc.RequiresAdminApproval || gc.IsFree() || team.Status != model.TeamApprovedAwaitingPayment {
		s.fail(ctx, shop.ErrTeamNotApproved, "")
		return
	}

	ci, created, err := s.store.AddCartItem(rctx, u.ID, model.ItemCompetitionTeam, team.ID)
	if err != nil {
		s.fail(ctx, err, "failed to add team to cart")
		return
	}
	if created {
		dto.SuccessCreatedResponse(ctx, ci)
		return
	}
	dto.SuccessResponse(ctx, ci)
}

func (s *service) UploadGovernmentID(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	team, ok := s.userTeam(ctx, u)
	if !ok {
		return
	}
	membershipID, ok := paramID(ctx, "membershipId")
	if !ok {
		return
	}
	rctx := ctx.Request.Context()

	m, err := s.store.GetMembership(rctx, membershipID)
	if err == nil && m.TeamID != team.ID {
		err = repo.ErrMembershipNotFound
	}
	if err != nil {
		s.fail(ctx, err, "failed to get membership")
		return
	}
	if m.UserID != u.ID && team.LeaderID != u.ID {
		dto.ForbiddenError(ctx, "Only the member or the team leader can upload this document.")
		return
	}
	switch m.GovernmentIDStatus {
	case model.GovIDNotRequired:
		dto.BadResponseError(ctx, dto.InvalidState, "This competition does not require identity documents.")
		return
	case model.GovIDApproved:
		dto.BadResponseError(ctx, dto.InvalidState, "The identity document is already approved.")
		return
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		dto.FieldIncorrectError(ctx, "file")
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("File must not exceed %d MB.", s.cfg.MaxUploadBytes>>20))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(ctx, err, "failed to open uploaded file")
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		dto.FieldIncorrectError(ctx, "file")
		return
	}
	ext, ok := imageExtensions[http.DetectContentType(head[:n])]
	if !ok {
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Only JPEG and PNG images are accepted.")
		return
	}

	name := fmt.Sprintf("%d_%s%s", m.ID, uuid.NewString(), ext)
	url, err := s.files.Save(rctx, governmentIDDir, name, io.MultiReader(bytes.NewReader(head[:n]), f))
	if err != nil {
		s.fail(ctx, err, "failed to store government id")
		return
	}
	if err := s.store.SetGovernmentID(rctx, m.ID, url); err != nil {
		s.fail(ctx, err, "failed to save government id")
		return
	}
	m.GovernmentIDURL = &url
	m.GovernmentIDStatus = model.GovIDPending

	s.log.Info().Int64("membership_id", m.ID).Int64("team_id", team.ID).Msg("government id uploaded")
	dto.SuccessResponse(ctx, m)
}
