package service

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/auth"
	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/reconciler"
	"eventhub/internal/repo"
	"eventhub/internal/shop"
	"eventhub/pkg/validator"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type errorClass struct {
	status int
	code   string
	errs   []error
}

var errorClasses = []errorClass{
	{http.StatusNotFound, dto.NotFound, []error{
		repo.ErrUserNotFound, repo.ErrEventNotFound, repo.ErrPresentationNotFound, repo.ErrCompetitionNotFound,
		repo.ErrItemNotFound, repo.ErrEnrollmentNotFound, repo.ErrRegistrationNotFound, repo.ErrTeamNotFound,
		repo.ErrMembershipNotFound, repo.ErrCartItemNotFound, repo.ErrOrderNotFound, repo.ErrBatchNotFound,
		repo.ErrPaymentAppNotFound, repo.ErrCertificateNotFound, repo.ErrJobNotFound, repo.ErrTagNotFound,
	}},
	{http.StatusBadRequest, dto.CapacityFull, []error{repo.ErrCapacityFull}},
	{http.StatusBadRequest, dto.Duplicate, []error{
		repo.ErrEmailTaken, repo.ErrTeamNameTaken, repo.ErrMemberInAnotherTeam, repo.ErrAlreadyOwned,
		repo.ErrAlreadyEnrolled, repo.ErrDiscountCodeTaken, repo.ErrSlugTaken, repo.ErrCertificateExists,
		repo.ErrTagTaken,
	}},
	{http.StatusBadRequest, dto.DiscountInvalid, []error{
		repo.ErrDiscountNotFound, shop.ErrDiscountInactive, shop.ErrDiscountNotStarted, shop.ErrDiscountExpired,
		shop.ErrDiscountMinAmount, shop.ErrDiscountExhausted, shop.ErrDiscountUserLimit, shop.ErrDiscountNotEligible,
		shop.ErrDiscountMisconfigure,
	}},
	{http.StatusForbidden, dto.Forbidden, []error{shop.ErrNotTeamLeader}},
	{http.StatusBadRequest, dto.PaymentFailed, []error{reconciler.ErrGatewayRejected}},
	{http.StatusBadRequest, dto.InvalidState, []error{
		repo.ErrItemNotFree, repo.ErrTeamLocked, repo.ErrGovIDsNotApproved, repo.ErrTeamNotReviewable,
		repo.ErrCartEmpty, repo.ErrPendingOrder, repo.ErrReservedByOrder, repo.ErrNothingPayable,
		repo.ErrInvalidOrderState, repo.ErrOrderInBatch, repo.ErrNotEnded,
		shop.ErrItemUnavailable, shop.ErrItemFree, shop.ErrTeamNotApproved, shop.ErrTeamNotPayable,
		shop.ErrUnknownItemType,
		reconciler.ErrOrderNotPayable, reconciler.ErrNothingToPay, reconciler.ErrPaymentInProgress,
		reconciler.ErrNoOrders,
	}},
	{http.StatusUnauthorized, dto.Unauthorized, []error{repo.ErrTokenRevoked}},
}

// fail writes the error response that matches err. Unknown errors are logged and hidden.
func (s *service) fail(ctx *ginext.Context, err error, msg string) {
	var unavailable *repo.UnavailableItemsError
	if errors.As(err, &unavailable) {
		dto.BadResponseDetails(ctx, dto.ItemsUnavailable, "Some items are no longer available", unavailable.Items)
		return
	}
	var owned *reconciler.OwnedItemsError
	if errors.As(err, &owned) {
		dto.BadResponseDetails(ctx, dto.Duplicate, repo.ErrAlreadyOwned.Error(), owned.Items)
		return
	}
	var full *repo.CapacityError
	if errors.As(err, &full) {
		dto.BadResponseDetails(ctx, dto.CapacityFull, err.Error(), map[string]any{
			"item_type": full.ItemType, "item_id": full.ItemID,
		})
		return
	}

	for _, class := range errorClasses {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				dto.ErrorResponse(ctx, class.status, class.code, err.Error(), nil)
				return
			}
		}
	}

	s.log.Error().Err(err).Msg(msg)
	dto.InternalServerError(ctx)
}

func (s *service) bindJSON(ctx *ginext.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return false
	}
	return s.validate(ctx, dst)
}

// bindOptionalJSON accepts an empty body.
func (s *service) bindOptionalJSON(ctx *ginext.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return false
	}
	return s.validate(ctx, dst)
}

func (s *service) validate(ctx *ginext.Context, dst any) bool {
	if verr := validator.Validate(ctx.Request.Context(), dst); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return false
	}
	return true
}

// currentUser loads the caller set by the auth middleware.
func (s *service) currentUser(ctx *ginext.Context) (*model.User, bool) {
	id := ctx.GetInt64(auth.CtxUserID)
	if id == 0 {
		dto.UnauthorizedError(ctx, "Authentication credentials were not provided")
		return nil, false
	}
	u, err := s.store.GetUserByID(ctx.Request.Context(), id)
	if errors.Is(err, repo.ErrUserNotFound) {
		dto.UnauthorizedError(ctx, "User not found")
		return nil, false
	}
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", id).Msg("failed to load current user")
		dto.InternalServerError(ctx)
		return nil, false
	}
	if !u.IsActive {
		dto.UnauthorizedError(ctx, "User is inactive")
		return nil, false
	}
	return u, true
}

func paramID(ctx *ginext.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		dto.FieldIncorrectError(ctx, name)
		return 0, false
	}
	return id, true
}

func queryInt64(ctx *ginext.Context, name string) (*int64, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		dto.FieldIncorrectError(ctx, name)
		return nil, false
	}
	return &v, true
}

func queryBool(ctx *ginext.Context, name string) (*bool, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		dto.FieldIncorrectError(ctx, name)
		return nil, false
	}
	return &v, true
}

// pageParams reads page and page_size. Page numbers start at 1.
func pageParams(ctx *ginext.Context) (repo.Page, int, int, bool) {
	page, size := 1, defaultPageSize
	if raw := ctx.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			dto.FieldIncorrectError(ctx, "page")
			return repo.Page{}, 0, 0, false
		}
		page = v
	}
	if raw := ctx.Query("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			dto.FieldIncorrectError(ctx, "page_size")
			return repo.Page{}, 0, 0, false
		}
		size = min(v, maxPageSize)
	}
	return repo.Page{Limit: size, Offset: (page - 1) * size}, page, size, true
}

func pageOf(results any, count, page, size int) dto.Page {
	return dto.Page{Count: count, Page: page, PageSize: size, Results: results}
}
