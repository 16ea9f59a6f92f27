package service

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/dto"
	"eventhub/internal/model"
)

func intPtr(v int) *int { return &v }

func presentation(id, price int64) *model.Item {
	return &model.Item{
		Type: model.ItemPresentation, ID: id, EventID: 1, Title: "Go in production",
		IsPaid: price > 0, Price: price, Active: true, EventActive: true,
	}
}

func TestEnrollPresentation(t *testing.T) {
	const route, target = "/presentations/:id/enroll", "/presentations/3/enroll"

	t.Run("free item enrolls", func(t *testing.T) {
		h := newHarness(t)
		h.store.items[key(model.ItemPresentation, 3)] = presentation(3, 0)
		h.store.enrollCreated = true

		w := h.do(h.svc.EnrollPresentation, http.MethodPost, route, target, nil, 1)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, model.EnrollmentCompleted, data[dto.EnrollmentResult](t, w).Status)
		assert.Equal(t, []string{"presentation:3"}, h.store.enrolled)
		assert.Empty(t, h.store.cartAdds)
	})

	t.Run("paid item goes to cart", func(t *testing.T) {
		h := newHarness(t)
		h.store.items[key(model.ItemPresentation, 3)] = presentation(3, 50000)

		w := h.do(h.svc.EnrollPresentation, http.MethodPost, route, target, nil, 1)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, []string{"presentation:3"}, h.store.cartAdds)
		assert.Empty(t, h.store.enrolled)
	})

	t.Run("already enrolled", func(t *testing.T) {
		h := newHarness(t)
		h.store.items[key(model.ItemPresentation, 3)] = presentation(3, 50000)
		h.store.statuses[key(model.ItemPresentation, 3)] = model.EnrollmentCompleted

		w := h.do(h.svc.EnrollPresentation, http.MethodPost, route, target, nil, 1)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, h.store.cartAdds)
	})

	t.Run("capacity full", func(t *testing.T) {
		h := newHarness(t)
		it := presentation(3, 0)
		it.Remaining = intPtr(0)
		h.store.items[key(model.ItemPresentation, 3)] = it

		w := h.do(h.svc.EnrollPresentation, http.MethodPost, route, target, nil, 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.CapacityFull, errorCode(t, w))
	})

	t.Run("pending payment keeps its seat", func(t *testing.T) {
		h := newHarness(t)
		it := presentation(3, 50000)
		it.Remaining = intPtr(0)
		h.store.items[key(model.ItemPresentation, 3)] = it
		h.store.statuses[key(model.ItemPresentation, 3)] = model.EnrollmentPendingPayment

		w := h.do(h.svc.EnrollPresentation, http.MethodPost, route, target, nil, 1)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("inactive event", func(t *testing.T) {
		h := newHarness(t)
		it := presentation(3, 0)
		it.EventActive = false
		h.store.items[key(model.ItemPresentation, 3)] = it

		w := h.do(h.svc.EnrollPresentation, http.MethodPost, route, target, nil, 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.InvalidState, errorCode(t, w))
	})

	t.Run("unknown item", func(t *testing.T) {
		h := newHarness(t)
		w := h.do(h.svc.EnrollPresentation, http.MethodPost, route, target, nil, 1)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		h := newHarness(t)
		w := h.do(h.svc.EnrollPresentation, http.MethodPost, route, target, nil, 0)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func teamHarness(t *testing.T) *harness {
	h := newHarness(t)
	h.store.users[2] = &model.User{ID: 2, Email: "ali@example.com", IsActive: true}
	h.store.users[3] = &model.User{ID: 3, Email: "sara@example.com", IsActive: true}
	h.store.groups[4] = &model.GroupCompetition{
		ID:              4,
		CompetitionInfo: model.CompetitionInfo{EventID: 1, Title: "CTF", IsPaid: true, IsActive: true},
		PricePerGroup:   90000,
		MinGroupSize:    2,
		MaxGroupSize:    3,
	}
	return h
}

func TestRegisterTeam(t *testing.T) {
	const route, target = "/group-competitions/:id/register", "/group-competitions/4/register"
	body := func(emails ...string) map[string]any {
		return map[string]any{"name": "gophers", "member_emails": emails}
	}

	t.Run("creates team", func(t *testing.T) {
		h := teamHarness(t)
		w := h.do(h.svc.RegisterTeam, http.MethodPost, route, target, body("ALI@example.com", "sara@example.com"), 1)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NotNil(t, h.store.createdTeam)
		assert.Equal(t, int64(1), h.store.createdTeam.LeaderID)
		assert.ElementsMatch(t, []int64{2, 3}, h.store.createdTeam.MemberIDs)
		assert.Equal(t, "leader", data[model.CompetitionTeam](t, w).Role)
	})

	t.Run("leader listed as member", func(t *testing.T) {
		h := teamHarness(t)
		w := h.do(h.svc.RegisterTeam, http.MethodPost, route, target, body("leader@example.com", "ali@example.com"), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, h.store.createdTeam)
	})

	t.Run("duplicate member", func(t *testing.T) {
		h := teamHarness(t)
		w := h.do(h.svc.RegisterTeam, http.MethodPost, route, target, body("ali@example.com", "Ali@example.com"), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, h.store.createdTeam)
	})

	t.Run("size out of range", func(t *testing.T) {
		h := teamHarness(t)
		w := h.do(h.svc.RegisterTeam, http.MethodPost, route, target, body(), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = h.do(h.svc.RegisterTeam, http.MethodPost, route, target,
			body("ali@example.com", "sara@example.com", "reza@example.com"), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, h.store.createdTeam)
	})

	t.Run("unregistered members are listed", func(t *testing.T) {
		h := teamHarness(t)
		w := h.do(h.svc.RegisterTeam, http.MethodPost, route, target, body("ali@example.com", "ghost@example.com"), 1)
		require.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, []any{"ghost@example.com"}, env.Error.Details)
	})

	t.Run("inactive competition", func(t *testing.T) {
		h := teamHarness(t)
		h.store.groups[4].IsActive = false
		w := h.do(h.svc.RegisterTeam, http.MethodPost, route, target, body("ali@example.com"), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.InvalidState, errorCode(t, w))
	})
}

func TestDeleteTeam(t *testing.T) {
	const route, target = "/my-teams/:id", "/my-teams/5"
	setup := func(t *testing.T, status string) *harness {
		h := teamHarness(t)
		h.store.teams[5] = &model.CompetitionTeam{
			ID: 5, LeaderID: 1, GroupCompetitionID: 4, Status: status,
			Members: []model.TeamMembership{{ID: 8, TeamID: 5, UserID: 2}},
		}
		return h
	}

	t.Run("member cannot delete", func(t *testing.T) {
		h := setup(t, model.TeamInCart)
		w := h.do(h.svc.DeleteTeam, http.MethodDelete, route, target, nil, 2)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, h.store.deletedTeams)
	})

	t.Run("outsider sees nothing", func(t *testing.T) {
		h := setup(t, model.TeamInCart)
		w := h.do(h.svc.DeleteTeam, http.MethodDelete, route, target, nil, 3)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("active paid team stays", func(t *testing.T) {
		h := setup(t, model.TeamActive)
		w := h.do(h.svc.DeleteTeam, http.MethodDelete, route, target, nil, 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, h.store.deletedTeams)
	})

	t.Run("leader deletes", func(t *testing.T) {
		h := setup(t, model.TeamInCart)
		w := h.do(h.svc.DeleteTeam, http.MethodDelete, route, target, nil, 1)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []int64{5}, h.store.deletedTeams)
	})
}

func uploadRequest(t *testing.T, target string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "scan")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadGovernmentID(t *testing.T) {
	const route = "/my-teams/:id/memberships/:membershipId/government-id"
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	setup := func(t *testing.T, govStatus string) *harness {
		h := teamHarness(t)
		h.store.teams[5] = &model.CompetitionTeam{
			ID: 5, LeaderID: 1, GroupCompetitionID: 4, Status: model.TeamPendingAdminVerification,
			Members: []model.TeamMembership{{ID: 8, TeamID: 5, UserID: 2}},
		}
		h.store.memberships[8] = &model.TeamMembership{ID: 8, TeamID: 5, UserID: 2, GovernmentIDStatus: govStatus}
		h.store.memberships[9] = &model.TeamMembership{ID: 9, TeamID: 6, UserID: 3, GovernmentIDStatus: govStatus}
		return h
	}

	t.Run("stores png", func(t *testing.T) {
		h := setup(t, model.GovIDMissing)
		w := h.doRequest(h.svc.UploadGovernmentID, route, uploadRequest(t, "/my-teams/5/memberships/8/government-id", png), 2)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		url := h.store.govIDs[8]
		assert.True(t, strings.HasPrefix(url, "/media/government_ids/8_"), url)
		assert.True(t, strings.HasSuffix(url, ".png"), url)
		assert.Equal(t, png, h.files.saved[url])
		assert.Equal(t, model.GovIDPending, data[model.TeamMembership](t, w).GovernmentIDStatus)
	})

	t.Run("rejects other formats", func(t *testing.T) {
		h := setup(t, model.GovIDMissing)
		w := h.doRequest(h.svc.UploadGovernmentID, route,
			uploadRequest(t, "/my-teams/5/memberships/8/government-id", []byte("plain text, not an image")), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.FieldBadFormat, errorCode(t, w))
		assert.Empty(t, h.store.govIDs)
	})

	t.Run("membership of another team", func(t *testing.T) {
		h := setup(t, model.GovIDMissing)
		w := h.doRequest(h.svc.UploadGovernmentID, route, uploadRequest(t, "/my-teams/5/memberships/9/government-id", png), 1)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("not required", func(t *testing.T) {
		h := setup(t, model.GovIDNotRequired)
		w := h.doRequest(h.svc.UploadGovernmentID, route, uploadRequest(t, "/my-teams/5/memberships/8/government-id", png), 2)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.InvalidState, errorCode(t, w))
	})
}
