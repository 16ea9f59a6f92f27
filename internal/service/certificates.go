package service

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/certificate"
	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

func (s *service) EligiblePresentationCertificates(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	list, err := s.store.EligiblePresentations(ctx.Request.Context(), u.ID, s.now())
	if err != nil {
		s.fail(ctx, err, "failed to list eligible presentations")
		return
	}
	dto.SuccessResponse(ctx, list)
}

func (s *service) RequestPresentationCertificate(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	enrollmentID, ok := paramID(ctx, "enrollmentId")
	if !ok {
		return
	}
	var req dto.CertificateNameRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	cert, err := s.store.RequestPresentationCertificate(ctx.Request.Context(), u.ID, enrollmentID,
		strings.TrimSpace(req.NameOnCertificate), s.now())
	if err != nil {
		s.fail(ctx, err, "failed to request certificate")
		return
	}
	s.log.Info().Int64("certificate_id", cert.ID).Int64("enrollment_id", enrollmentID).Msg("certificate requested")
	dto.SuccessCreatedResponse(ctx, cert)
}

func (s *service) EligibleSoloCertificates(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	list, err := s.store.EligibleSolo(ctx.Request.Context(), u.ID, s.now())
	if err != nil {
		s.fail(ctx, err, "failed to list eligible solo registrations")
		return
	}
	dto.SuccessResponse(ctx, list)
}

func (s *service) RequestSoloCertificate(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	var req dto.SoloCertificateRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	cert, err := s.store.RequestSoloCertificate(ctx.Request.Context(), u.ID, req.RegistrationID,
		strings.TrimSpace(req.NameOnCertificate), s.now())
	if err != nil {
		s.fail(ctx, err, "failed to request certificate")
		return
	}
	s.log.Info().Int64("certificate_id", cert.ID).Int64("registration_id", req.RegistrationID).Msg("certificate requested")
	dto.SuccessCreatedResponse(ctx, cert)
}

func (s *service) EligibleGroupCertificates(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	list, err := s.store.EligibleGroup(ctx.Request.Context(), u.ID, s.now())
	if err != nil {
		s.fail(ctx, err, "failed to list eligible teams")
		return
	}
	dto.SuccessResponse(ctx, list)
}

// RequestGroupCertificate issues the certificate of the caller's team, named after the team.
func (s *service) RequestGroupCertificate(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	competitionID, ok := paramID(ctx, "competitionId")
	if !ok {
		return
	}
	cert, err := s.store.RequestGroupCertificate(ctx.Request.Context(), u.ID, competitionID, s.now())
	if err != nil {
		s.fail(ctx, err, "failed to request certificate")
		return
	}
	s.log.Info().Int64("certificate_id", cert.ID).Int64("competition_id", competitionID).Msg("certificate requested")
	dto.SuccessCreatedResponse(ctx, cert)
}

// loadCertificate resolves a verified certificate by kind and verification id.
func (s *service) loadCertificate(ctx *ginext.Context) (string, any, certificate.Data, bool) {
	kind, vid := ctx.Param("kind"), ctx.Param("verificationId")
	if _, err := uuid.Parse(vid); err != nil {
		s.fail(ctx, repo.ErrCertificateNotFound, "")
		return "", nil, certificate.Data{}, false
	}
	rctx := ctx.Request.Context()
	switch kind {
	case model.CertificatePresentation:
		c, err := s.store.GetPresentationCertificate(rctx, vid)
		if err != nil {
			s.fail(ctx, err, "failed to get certificate")
			return "", nil, certificate.Data{}, false
		}
		if !c.IsVerified {
			dto.ForbiddenError(ctx, "The certificate has not been verified yet.")
			return "", nil, certificate.Data{}, false
		}
		return kind, c, certificate.ForPresentation(c), true
	case model.CertificateCompetition:
		c, err := s.store.GetCompetitionCertificate(rctx, vid)
		if err != nil {
			s.fail(ctx, err, "failed to get certificate")
			return "", nil, certificate.Data{}, false
		}
		if !c.IsVerified {
			dto.ForbiddenError(ctx, "The certificate has not been verified yet.")
			return "", nil, certificate.Data{}, false
		}
		return kind, c, certificate.ForCompetition(c), true
	}
	dto.FieldIncorrectError(ctx, "kind")
	return "", nil, certificate.Data{}, false
}

func (s *service) GetCertificate(ctx *ginext.Context) {
	kind, cert, data, ok := s.loadCertificate(ctx)
	if !ok {
		return
	}
	dto.SuccessResponse(ctx, dto.CertificateView{
		Kind:        kind,
		Certificate: cert,
		DownloadURL: strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/v1/certificates/" + kind + "/" + data.VerificationID + "/download",
	})
}

func (s *service) DownloadCertificate(ctx *ginext.Context) {
	_, _, data, ok := s.loadCertificate(ctx)
	if !ok {
		return
	}
	body, err := certificate.Render(data)
	if err != nil {
		s.fail(ctx, err, "failed to render certificate")
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="certificate-`+data.VerificationID+`.svg"`)
	ctx.Data(http.StatusOK, "image/svg+xml", body)
}
