package shop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"eventhub/internal/model"
)

func intPtr(v int) *int       { return &v }
func pctPtr(whole int64) *model.Percent {
	p := model.Percent(whole * model.PercentScale)
	return &p
}
func i64Ptr(v int64) *int64   { return &v }
func strPtr(v string) *string { return &v }

func paidItem(typ string, id, price int64) *model.Item {
	return &model.Item{Type: typ, ID: id, IsPaid: true, Price: price, Active: true, EventActive: true}
}

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name string
		item model.Item
		want int64
	}{
		{"paid", model.Item{IsPaid: true, Price: 500}, 500},
		{"not paid ignores price", model.Item{IsPaid: false, Price: 500}, 0},
		{"paid with zero price", model.Item{IsPaid: true, Price: 0}, 0},
		{"negative price", model.Item{IsPaid: true, Price: -10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectivePrice(&tt.item))
			assert.Equal(t, tt.want == 0, IsFree(&tt.item))
		})
	}
}

func TestCheckAddToCart(t *testing.T) {
	team := func(status string, approval bool) *model.Item {
		it := paidItem(model.ItemCompetitionTeam, 9, 1000)
		it.LeaderID = 1
		it.TeamStatus = status
		it.RequiresApproval = approval
		return it
	}
	inactiveEvent := paidItem(model.ItemPresentation, 1, 100)
	inactiveEvent.EventActive = false

	tests := []struct {
		name string
		item *model.Item
		user int64
		want error
	}{
		{"paid presentation", paidItem(model.ItemPresentation, 1, 100), 1, nil},
		{"inactive event", inactiveEvent, 1, ErrItemUnavailable},
		{"free item", &model.Item{Type: model.ItemSoloCompetition, Active: true, EventActive: true}, 1, ErrItemFree},
		{"team by non leader", team(model.TeamInCart, false), 2, ErrNotTeamLeader},
		{"unverified team in cart", team(model.TeamInCart, false), 1, nil},
		{"unverified team already active", team(model.TeamActive, false), 1, ErrTeamNotPayable},
		{"verified team pending review", team(model.TeamPendingAdminVerification, true), 1, ErrTeamNotApproved},
		{"verified team approved", team(model.TeamApprovedAwaitingPayment, true), 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, CheckAddToCart(tt.item, tt.user), tt.want)
		})
	}
}

func TestDiscountAmount(t *testing.T) {
	pct := func(p int64) *model.DiscountCode { return &model.DiscountCode{Percentage: pctPtr(p)} }
	hundredths := func(p int64) *model.DiscountCode {
		v := model.Percent(p)
		return &model.DiscountCode{Percentage: &v}
	}
	fixed := func(a int64) *model.DiscountCode { return &model.DiscountCode{Amount: i64Ptr(a)} }

	tests := []struct {
		name string
		dc   *model.DiscountCode
		base int64
		want int64
	}{
		{"zero base", pct(10), 0, 0},
		{"exact", pct(10), 1000, 100},
		{"2.25 rounds down", pct(15), 15, 2},
		{"2.5 rounds to even", pct(10), 25, 2},
		{"3.5 rounds to even", pct(10), 35, 4},
		{"0.5 rounds to zero", pct(5), 10, 0},
		{"1.5 rounds up", pct(15), 10, 2},
		{"fractional percentage", hundredths(1250), 1000, 125},
		{"fractional percentage tie", hundredths(1250), 20, 2},
		{"full price", pct(100), 150, 150},
		{"fixed", fixed(300), 1000, 300},
		{"fixed capped at base", fixed(300), 200, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscountAmount(tt.dc, tt.base))
		})
	}
}

func TestValidateDiscount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	base := func() *model.DiscountCode {
		return &model.DiscountCode{IsActive: true, Percentage: pctPtr(10)}
	}

	dc := base()
	assert.NoError(t, ValidateDiscount(dc, 100, now))

	dc = base()
	dc.IsActive = false
	assert.ErrorIs(t, ValidateDiscount(dc, 100, now), ErrDiscountInactive)

	dc = base()
	dc.ValidFrom = &future
	assert.ErrorIs(t, ValidateDiscount(dc, 100, now), ErrDiscountNotStarted)

	dc = base()
	dc.ValidTo = &past
	assert.ErrorIs(t, ValidateDiscount(dc, 100, now), ErrDiscountExpired)

	dc = base()
	dc.MinOrderAmount = 500
	assert.ErrorIs(t, ValidateDiscount(dc, 499, now), ErrDiscountMinAmount)
	assert.NoError(t, ValidateDiscount(dc, 500, now))

	dc = base()
	dc.MaxUses = intPtr(3)
	dc.TimesUsed = 3
	assert.ErrorIs(t, ValidateDiscount(dc, 100, now), ErrDiscountExhausted)

	dc = base()
	dc.MaxUsesPerUser = intPtr(1)
	assert.NoError(t, CheckUserQuota(dc, 0))
	assert.ErrorIs(t, CheckUserQuota(dc, 1), ErrDiscountUserLimit)
}

func TestCheckDiscountShape(t *testing.T) {
	assert.ErrorIs(t, CheckDiscountShape(&model.DiscountCode{}), ErrDiscountMisconfigure)
	assert.ErrorIs(t, CheckDiscountShape(&model.DiscountCode{Percentage: pctPtr(5), Amount: i64Ptr(5)}), ErrDiscountMisconfigure)
	assert.ErrorIs(t, CheckDiscountShape(&model.DiscountCode{Percentage: pctPtr(120)}), ErrDiscountMisconfigure)
	assert.NoError(t, CheckDiscountShape(&model.DiscountCode{Amount: i64Ptr(5)}))
}

func TestCartTotals(t *testing.T) {
	now := time.Now()
	lines := []Line{
		{CartItemID: 1, Item: paidItem(model.ItemPresentation, 10, 1000), Price: 1000},
		{CartItemID: 2, Item: paidItem(model.ItemSoloCompetition, 20, 500), Price: 500},
	}

	got := CartTotals(lines, nil, now)
	assert.Equal(t, Totals{Subtotal: 1500, Total: 1500}, got)

	all := &model.DiscountCode{IsActive: true, Percentage: pctPtr(10)}
	got = CartTotals(lines, all, now)
	assert.Equal(t, int64(1500), got.EligibleSubtotal)
	assert.Equal(t, int64(150), got.Discount)
	assert.Equal(t, int64(1350), got.Total)

	targeted := &model.DiscountCode{
		IsActive:   true,
		Amount:     i64Ptr(800),
		TargetType: strPtr(model.ItemSoloCompetition),
		TargetID:   i64Ptr(20),
	}
	got = CartTotals(lines, targeted, now)
	assert.Equal(t, int64(500), got.EligibleSubtotal)
	assert.Equal(t, int64(500), got.Discount, "capped at the eligible subtotal")
	assert.Equal(t, int64(1000), got.Total)

	expired := &model.DiscountCode{IsActive: false, Percentage: pctPtr(50)}
	got = CartTotals(lines, expired, now)
	assert.Equal(t, int64(0), got.Discount)
	assert.Equal(t, int64(1500), got.Total)
}

func TestLineDiscount(t *testing.T) {
	now := time.Now()
	line := Line{Item: paidItem(model.ItemPresentation, 10, 1000), Price: 1000}

	dc := &model.DiscountCode{IsActive: true, Percentage: pctPtr(20)}
	assert.Equal(t, int64(200), LineDiscount(line, dc, now))

	dc.TargetType = strPtr(model.ItemPresentation)
	dc.TargetID = i64Ptr(11)
	assert.Equal(t, int64(0), LineDiscount(line, dc, now))

	dc = &model.DiscountCode{IsActive: true, Percentage: pctPtr(20), MinOrderAmount: 5000}
	assert.Equal(t, int64(0), LineDiscount(line, dc, now))
}

func TestTeamStates(t *testing.T) {
	verifiedPaid := &model.GroupCompetition{RequiresAdminApproval: true, PricePerGroup: 100}
	verifiedPaid.IsPaid = true
	verifiedFree := &model.GroupCompetition{RequiresAdminApproval: true}
	openPaid := &model.GroupCompetition{PricePerGroup: 100}
	openPaid.IsPaid = true
	openFree := &model.GroupCompetition{}

	status, pay := InitialTeamState(verifiedPaid)
	assert.Equal(t, model.TeamPendingAdminVerification, status)
	assert.Equal(t, model.PaymentPending, pay)

	status, pay = InitialTeamState(verifiedFree)
	assert.Equal(t, model.TeamPendingAdminVerification, status)
	assert.Equal(t, model.PaymentNotApplicable, pay)

	status, pay = InitialTeamState(openPaid)
	assert.Equal(t, model.TeamInCart, status)
	assert.Equal(t, model.PaymentPending, pay)

	status, pay = InitialTeamState(openFree)
	assert.Equal(t, model.TeamActive, status)
	assert.Equal(t, model.PaymentNotApplicable, pay)

	status, pay = ApprovedTeamState(verifiedPaid)
	assert.Equal(t, model.TeamApprovedAwaitingPayment, status)
	assert.Equal(t, model.PaymentPending, pay)

	status, pay = ApprovedTeamState(verifiedFree)
	assert.Equal(t, model.TeamActive, status)
	assert.Equal(t, model.PaymentNotApplicable, pay)

	assert.Equal(t, model.GovIDMissing, InitialGovIDStatus(verifiedPaid))
	assert.Equal(t, model.GovIDNotRequired, InitialGovIDStatus(openPaid))
}

func TestReleasedStatuses(t *testing.T) {
	assert.Equal(t, model.TeamApprovedAwaitingPayment, ReleasedTeamStatus(true, OutcomeFailed))
	assert.Equal(t, model.TeamApprovedAwaitingPayment, ReleasedTeamStatus(true, OutcomeRemoved))
	assert.Equal(t, model.TeamPaymentFailed, ReleasedTeamStatus(false, OutcomeFailed))
	assert.Equal(t, model.TeamInCart, ReleasedTeamStatus(false, OutcomeCancelled))
	assert.Equal(t, model.TeamCancelled, ReleasedTeamStatus(false, OutcomeRemoved))

	assert.Equal(t, model.EnrollmentPaymentFailed, ReleasedEnrollmentStatus(OutcomeFailed))
	assert.Equal(t, model.EnrollmentCancelled, ReleasedEnrollmentStatus(OutcomeCancelled))

	assert.Equal(t, model.PaymentPaid, FinalPaymentStatus(1))
	assert.Equal(t, model.PaymentNotApplicable, FinalPaymentStatus(0))
}

func TestRemaining(t *testing.T) {
	assert.Nil(t, Remaining(nil, 5))
	assert.Equal(t, 3, *Remaining(intPtr(5), 2))
	assert.Equal(t, 0, *Remaining(intPtr(5), 9))
	assert.True(t, HasRoom(nil, 100))
	assert.True(t, HasRoom(intPtr(2), 1))
	assert.False(t, HasRoom(intPtr(2), 2))
}
