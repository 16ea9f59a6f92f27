package service

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

const verificationID = "0b7c3f7a-2d4e-4c8f-9d61-5a2e1f3b4c5d"

func certHarness(t *testing.T, verified bool) *harness {
	h := newHarness(t)
	h.store.certs[verificationID] = &model.Certificate{
		ID:                1,
		NameOnCertificate: "Sara & Ali",
		IsVerified:        verified,
		VerificationID:    verificationID,
		PresentationTitle: "Go in production",
		PresentationType:  model.PresentationWorkshop,
		EventTitle:        "DevFest",
		EventEndDate:      time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
	}
	return h
}

func TestGetCertificate(t *testing.T) {
	const route = "/certificates/:kind/:verificationId"
	target := "/certificates/presentation/" + verificationID

	t.Run("verified", func(t *testing.T) {
		h := certHarness(t, true)
		w := h.do(h.svc.GetCertificate, http.MethodGet, route, target, nil, 0)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		view := data[dto.CertificateView](t, w)
		assert.Equal(t, model.CertificatePresentation, view.Kind)
		assert.Equal(t, "https://api.example/v1/certificates/presentation/"+verificationID+"/download", view.DownloadURL)
	})

	t.Run("unverified", func(t *testing.T) {
		h := certHarness(t, false)
		w := h.do(h.svc.GetCertificate, http.MethodGet, route, target, nil, 0)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		h := certHarness(t, true)
		w := h.do(h.svc.GetCertificate, http.MethodGet, route, "/certificates/presentation/not-a-uuid", nil, 0)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		h := certHarness(t, true)
		w := h.do(h.svc.GetCertificate, http.MethodGet, route, "/certificates/poster/"+verificationID, nil, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDownloadCertificate(t *testing.T) {
	h := certHarness(t, true)
	w := h.do(h.svc.DownloadCertificate, http.MethodGet, "/certificates/:kind/:verificationId/download",
		"/certificates/presentation/"+verificationID+"/download", nil, 0)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), verificationID)
	assert.Contains(t, w.Body.String(), "Sara &amp; Ali")
	assert.Contains(t, w.Body.String(), "Go in production")
}

func TestListJobs(t *testing.T) {
	h := newHarness(t)

	w := h.do(h.svc.ListJobs, http.MethodGet, "/jobs", "/jobs?tags=go,3&page=2&page_size=500&search=+backend+", nil, 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"go", "3"}, h.store.jobFilter.Tags)
	assert.Equal(t, "backend", h.store.jobFilter.Search)
	assert.Equal(t, "-created_at", h.store.jobFilter.Ordering)
	assert.Equal(t, repo.Page{Limit: 100, Offset: 100}, h.store.jobFilter.Page)
	page := data[dto.Page](t, w)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 100, page.PageSize)

	w = h.do(h.svc.ListJobs, http.MethodGet, "/jobs", "/jobs?ordering=salary", nil, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(h.svc.ListJobs, http.MethodGet, "/jobs", "/jobs?page=0", nil, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobErrors(t *testing.T) {
	h := newHarness(t)

	h.store.jobErr = repo.ErrJobNotFound
	w := h.do(h.svc.GetJob, http.MethodGet, "/jobs/:id", "/jobs/9", nil, 0)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.NotFound, errorCode(t, w))

	h.store.jobErr = errors.New("pq: relation does not exist")
	w = h.do(h.svc.GetJob, http.MethodGet, "/jobs/:id", "/jobs/9", nil, 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ServiceUnavailable, errorCode(t, w))

	w = h.do(h.svc.GetJob, http.MethodGet, "/jobs/:id", "/jobs/abc", nil, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
