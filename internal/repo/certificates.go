package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eventhub/internal/model"
)

type CertificateStore interface {
	EligiblePresentations(ctx context.Context, userID int64, now time.Time) ([]model.EligibleCertificate, error)
	RequestPresentationCertificate(ctx context.Context, userID, enrollmentID int64, name string, now time.Time) (*model.Certificate, error)
	EligibleSolo(ctx context.Context, userID int64, now time.Time) ([]model.EligibleCertificate, error)
	RequestSoloCertificate(ctx context.Context, userID, registrationID int64, name string, now time.Time) (*model.CompetitionCertificate, error)
	EligibleGroup(ctx context.Context, userID int64, now time.Time) ([]model.EligibleCertificate, error)
	RequestGroupCertificate(ctx context.Context, userID, competitionID int64, now time.Time) (*model.CompetitionCertificate, error)
	GetPresentationCertificate(ctx context.Context, verificationID string) (*model.Certificate, error)
	GetCompetitionCertificate(ctx context.Context, verificationID string) (*model.CompetitionCertificate, error)
	VerifyCertificate(ctx context.Context, kind string, id int64, ranking *int) error
}

func scanEligible(rows *sql.Rows, withTeam bool) ([]model.EligibleCertificate, error) {
	defer rows.Close()
	list := make([]model.EligibleCertificate, 0)
	for rows.Next() {
		var e model.EligibleCertificate
		var name sql.NullString
		dest := []any{&e.ID, &e.Title, &e.EventTitle, &e.EndedAt, &name}
		if withTeam {
			dest = append(dest, &e.CompetitionID, &e.TeamName)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan eligible certificate: %w", err)
		}
		e.AlreadyIssued = name.Valid
		e.CertificateName = name.String
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *repository) EligiblePresentations(ctx context.Context, userID int64, now time.Time) ([]model.EligibleCertificate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pe.id, p.title, e.title, p.end_time, c.name_on_certificate
		FROM presentation_enrollments pe
		JOIN presentations p ON p.id = pe.presentation_id
		JOIN events e ON e.id = p.event_id
		LEFT JOIN certificates c ON c.enrollment_id = pe.id
		WHERE pe.user_id = $1 AND pe.status = $2 AND p.end_time < $3
		ORDER BY p.end_time DESC
	`, userID, model.EnrollmentCompleted, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get eligible presentations: %w", err)
	}
	return scanEligible(rows, false)
}

func (r *repository) RequestPresentationCertificate(ctx context.Context, userID, enrollmentID int64, name string, now time.Time) (*model.Certificate, error) {
	var ended time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT p.end_time FROM presentation_enrollments pe JOIN presentations p ON p.id = pe.presentation_id
		WHERE pe.id = $1 AND pe.user_id = $2 AND pe.status = $3
	`, enrollmentID, userID, model.EnrollmentCompleted).Scan(&ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !ended.Before(now) {
		return nil, ErrNotEnded
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO certificates (enrollment_id, name_on_certificate, verification_id)
		VALUES ($1, $2, $3) RETURNING id
	`, enrollmentID, name, uuid.New().String()).Scan(&id)
	if isUniqueViolation(err) {
		return nil, ErrCertificateExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert certificate: %w", err)
	}
	return r.getPresentationCertificate(ctx, `c.id = $1`, id)
}

func (r *repository) EligibleSolo(ctx context.Context, userID int64, now time.Time) ([]model.EligibleCertificate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sr.id, sc.title, e.title, e.end_date, cc.name_on_certificate
		FROM solo_registrations sr
		JOIN solo_competitions sc ON sc.id = sr.solo_competition_id
		JOIN events e ON e.id = sc.event_id
		LEFT JOIN competition_certificates cc ON cc.solo_registration_id = sr.id
		WHERE sr.user_id = $1 AND sr.status = $2 AND e.end_date < $3
		ORDER BY e.end_date DESC
	`, userID, model.EnrollmentCompleted, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get eligible solo registrations: %w", err)
	}
	return scanEligible(rows, false)
}

func (r *repository) RequestSoloCertificate(ctx context.Context, userID, registrationID int64, name string, now time.Time) (*model.CompetitionCertificate, error) {
	var ended time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT e.end_date FROM solo_registrations sr
		JOIN solo_competitions sc ON sc.id = sr.solo_competition_id
		JOIN events e ON e.id = sc.event_id
		WHERE sr.id = $1 AND sr.user_id = $2 AND sr.status = $3
	`, registrationID, userID, model.EnrollmentCompleted).Scan(&ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	if !ended.Before(now) {
		return nil, ErrNotEnded
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO competition_certificates (registration_type, solo_registration_id, name_on_certificate, verification_id)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, model.RegistrationSolo, registrationID, name, uuid.New().String()).Scan(&id)
	if isUniqueViolation(err) {
		return nil, ErrCertificateExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert certificate: %w", err)
	}
	return r.getCompetitionCertificate(ctx, `cc.id = $1`, id)
}

func (r *repository) EligibleGroup(ctx context.Context, userID int64, now time.Time) ([]model.EligibleCertificate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, g.title, e.title, e.end_date, cc.name_on_certificate, g.id, t.name
		FROM competition_teams t
		JOIN group_competitions g ON g.id = t.group_competition_id
		JOIN events e ON e.id = g.event_id
		LEFT JOIN competition_certificates cc ON cc.team_id = t.id
		WHERE t.status = $2 AND e.end_date < $3
		  AND (t.leader_id = $1 OR EXISTS (SELECT 1 FROM team_memberships m WHERE m.team_id = t.id AND m.user_id = $1))
		ORDER BY e.end_date DESC
	`, userID, model.TeamActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get eligible teams: %w", err)
	}
	return scanEligible(rows, true)
}

// RequestGroupCertificate issues one certificate per team, named after the team.
func (r *repository) RequestGroupCertificate(ctx context.Context, userID, competitionID int64, now time.Time) (*model.CompetitionCertificate, error) {
	var teamID int64
	var teamName string
	var ended time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, e.end_date FROM competition_teams t
		JOIN group_competitions g ON g.id = t.group_competition_id
		JOIN events e ON e.id = g.event_id
		WHERE g.id = $2 AND t.status = $3
		  AND (t.leader_id = $1 OR EXISTS (SELECT 1 FROM team_memberships m WHERE m.team_id = t.id AND m.user_id = $1))
	`, userID, competitionID, model.TeamActive).Scan(&teamID, &teamName, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	if !ended.Before(now) {
		return nil, ErrNotEnded
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO competition_certificates (registration_type, team_id, name_on_certificate, verification_id)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, model.RegistrationGroup, teamID, teamName, uuid.New().String()).Scan(&id)
	if isUniqueViolation(err) {
		return nil, ErrCertificateExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert certificate: %w", err)
	}
	return r.getCompetitionCertificate(ctx, `cc.id = $1`, id)
}

func (r *repository) GetPresentationCertificate(ctx context.Context, verificationID string) (*model.Certificate, error) {
	return r.getPresentationCertificate(ctx, `c.verification_id::text = $1`, verificationID)
}

func (r *repository) getPresentationCertificate(ctx context.Context, where string, arg any) (*model.Certificate, error) {
	var c model.Certificate
	err := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.enrollment_id, pe.user_id, c.name_on_certificate, c.is_verified, c.verification_id,
		       p.title, p.type, e.title, e.end_date, c.requested_at
		FROM certificates c
		JOIN presentation_enrollments pe ON pe.id = c.enrollment_id
		JOIN presentations p ON p.id = pe.presentation_id
		JOIN events e ON e.id = p.event_id
		WHERE `+where, arg).Scan(&c.ID, &c.EnrollmentID, &c.UserID, &c.NameOnCertificate, &c.IsVerified,
		&c.VerificationID, &c.PresentationTitle, &c.PresentationType, &c.EventTitle, &c.EventEndDate, &c.RequestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCertificateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return &c, nil
}

func (r *repository) GetCompetitionCertificate(ctx context.Context, verificationID string) (*model.CompetitionCertificate, error) {
	return r.getCompetitionCertificate(ctx, `cc.verification_id::text = $1`, verificationID)
}

func (r *repository) getCompetitionCertificate(ctx context.Context, where string, arg any) (*model.CompetitionCertificate, error) {
	var c model.CompetitionCertificate
	err := r.db.QueryRowContext(ctx, `
		SELECT cc.id, cc.registration_type, cc.solo_registration_id, cc.team_id, cc.name_on_certificate, cc.ranking,
		       cc.is_verified, cc.verification_id, COALESCE(sc.title, g.title), e.title, e.end_date, cc.requested_at
		FROM competition_certificates cc
		LEFT JOIN solo_registrations sr ON sr.id = cc.solo_registration_id
		LEFT JOIN solo_competitions sc ON sc.id = sr.solo_competition_id
		LEFT JOIN competition_teams t ON t.id = cc.team_id
		LEFT JOIN group_competitions g ON g.id = t.group_competition_id
		JOIN events e ON e.id = COALESCE(sc.event_id, g.event_id)
		WHERE `+where, arg).Scan(&c.ID, &c.RegistrationType, &c.SoloRegistrationID, &c.TeamID, &c.NameOnCertificate,
		&c.Ranking, &c.IsVerified, &c.VerificationID, &c.CompetitionTitle, &c.EventTitle, &c.EventEndDate, &c.RequestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCertificateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	if c.TeamID != nil {
		members, err := r.teamMembers(ctx, r.db, *c.TeamID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			c.TeamMembers = append(c.TeamMembers, m.FullName)
		}
	}
	return &c, nil
}

// VerifyCertificate marks a certificate verified. Ranking applies to competition certificates only.
func (r *repository) VerifyCertificate(ctx context.Context, kind string, id int64, ranking *int) error {
	switch kind {
	case model.CertificatePresentation:
		return r.execOne(ctx, ErrCertificateNotFound, `UPDATE certificates SET is_verified = TRUE WHERE id = $1`, id)
	case model.CertificateCompetition:
		return r.execOne(ctx, ErrCertificateNotFound, `
			UPDATE competition_certificates SET is_verified = TRUE, ranking = COALESCE($2, ranking) WHERE id = $1
		`, id, ranking)
	}
	return ErrCertificateNotFound
}
