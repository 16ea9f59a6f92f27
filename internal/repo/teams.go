package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"eventhub/internal/model"
	"eventhub/internal/shop"
)

// NewTeam carries what RegisterTeam needs to persist a team.
type NewTeam struct {
	Name               string
	LeaderID           int64
	GroupCompetitionID int64
	MemberIDs          []int64
}

type TeamStore interface {
	CreateTeam(ctx context.Context, nt NewTeam) (*model.CompetitionTeam, error)
	GetTeam(ctx context.Context, id int64) (*model.CompetitionTeam, error)
	ListUserTeams(ctx context.Context, userID int64, eventID *int64) ([]model.CompetitionTeam, error)
	DeleteTeam(ctx context.Context, id int64) error
	GetMembership(ctx context.Context, id int64) (*model.TeamMembership, error)
	SetGovernmentID(ctx context.Context, membershipID int64, url string) error
	ReviewGovernmentID(ctx context.Context, membershipID int64, approved bool) (*model.TeamMembership, error)
	ApproveTeam(ctx context.Context, teamID int64, remarks string) (*model.CompetitionTeam, error)
	RejectTeam(ctx context.Context, teamID int64, remarks string) (*model.CompetitionTeam, error)
	ListTeamsForReview(ctx context.Context, status string) ([]model.CompetitionTeam, error)
}

const teamColumns = `t.id, t.name, t.leader_id, t.group_competition_id, g.title, g.event_id, t.status,
	t.payment_status, t.is_approved_by_admin, t.admin_remarks, t.created_at`

const teamFrom = ` FROM competition_teams t JOIN group_competitions g ON g.id = t.group_competition_id`

func scanTeam(row interface{ Scan(...any) error }) (*model.CompetitionTeam, error) {
	var t model.CompetitionTeam
	if err := row.Scan(&t.ID, &t.Name, &t.LeaderID, &t.GroupCompetitionID, &t.CompetitionTitle, &t.EventID,
		&t.Status, &t.PaymentStatus, &t.IsApprovedByAdmin, &t.AdminRemarks, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTeam locks the competition, checks slots and membership conflicts, then inserts the
// team, its memberships and, for paid open competitions, the leader's cart entry.
func (r *repository) CreateTeam(ctx context.Context, nt NewTeam) (*model.CompetitionTeam, error) {
	var team *model.CompetitionTeam
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		gc, err := getGroupCompetition(ctx, tx, nt.GroupCompetitionID, true)
		if err != nil {
			return err
		}
		if gc.RemainingCapacity != nil && *gc.RemainingCapacity <= 0 {
			return ErrCapacityFull
		}

		everyone := append([]int64{nt.LeaderID}, nt.MemberIDs...)
		var busy int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM team_memberships m JOIN competition_teams t ON t.id = m.team_id
			WHERE t.group_competition_id = $1 AND m.user_id = ANY($2) AND t.status = ANY($3)
		`, gc.ID, pq.Array(everyone), pq.Array(model.LiveTeamStatuses)).Scan(&busy); err != nil {
			return fmt.Errorf("failed to check existing memberships: %w", err)
		}
		if busy > 0 {
			return ErrMemberInAnotherTeam
		}

		status, paymentStatus := shop.InitialTeamState(gc)
		team = &model.CompetitionTeam{
			Name:               strings.TrimSpace(nt.Name),
			LeaderID:           nt.LeaderID,
			GroupCompetitionID: gc.ID,
			CompetitionTitle:   gc.Title,
			EventID:            gc.EventID,
			Status:             status,
			PaymentStatus:      paymentStatus,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO competition_teams (name, leader_id, group_competition_id, status, payment_status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, team.Name, team.LeaderID, team.GroupCompetitionID, team.Status, team.PaymentStatus,
		).Scan(&team.ID, &team.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrTeamNameTaken
			}
			return fmt.Errorf("failed to insert team: %w", err)
		}

		govStatus := shop.InitialGovIDStatus(gc)
		for _, uid := range everyone {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO team_memberships (team_id, user_id, government_id_status) VALUES ($1, $2, $3)
			`, team.ID, uid, govStatus); err != nil {
				return fmt.Errorf("failed to insert membership: %w", err)
			}
		}

		if status == model.TeamInCart {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cart_items (cart_id, item_type, item_id, event_id)
				SELECT id, $2, $3, $4 FROM carts WHERE user_id = $1
				ON CONFLICT (cart_id, item_type, item_id) DO NOTHING
			`, nt.LeaderID, model.ItemCompetitionTeam, team.ID, gc.EventID); err != nil {
				return fmt.Errorf("failed to add team to cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	team.Members, err = r.teamMembers(ctx, r.db, team.ID)
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (r *repository) GetTeam(ctx context.Context, id int64) (*model.CompetitionTeam, error) {
	t, err := scanTeam(r.db.QueryRowContext(ctx, `SELECT `+teamColumns+teamFrom+` WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	if t.Members, err = r.teamMembers(ctx, r.db, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) teamMembers(ctx context.Context, q querier, teamID int64) ([]model.TeamMembership, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.id, m.team_id, m.user_id, u.email, TRIM(u.first_name || ' ' || u.last_name),
		       m.government_id_url, m.government_id_status, m.joined_at
		FROM team_memberships m JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1
		ORDER BY m.id
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team members: %w", err)
	}
	defer rows.Close()

	var members []model.TeamMembership
	for rows.Next() {
		var m model.TeamMembership
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.UserEmail, &m.FullName,
			&m.GovernmentIDURL, &m.GovernmentIDStatus, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListUserTeams returns teams the user leads or belongs to, each once, with Role set.
func (r *repository) ListUserTeams(ctx context.Context, userID int64, eventID *int64) ([]model.CompetitionTeam, error) {
	var c conds
	c.add("(t.leader_id = ? OR EXISTS (SELECT 1 FROM team_memberships m WHERE m.team_id = t.id AND m.user_id = $1))", userID)
	if eventID != nil {
		c.add("g.event_id = ?", *eventID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+teamColumns+teamFrom+c.where()+` ORDER BY t.created_at DESC`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get user teams: %w", err)
	}
	defer rows.Close()

	teams := make([]model.CompetitionTeam, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		t.Role = "member"
		if t.LeaderID == userID {
			t.Role = "leader"
		}
		teams = append(teams, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range teams {
		if teams[i].Members, err = r.teamMembers(ctx, r.db, teams[i].ID); err != nil {
			return nil, err
		}
	}
	return teams, nil
}

// DeleteTeam removes a team that is not tied up in a payment.
func (r *repository) DeleteTeam(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		if err := tx.QueryRowContext(ctx,
			`SELECT status FROM competition_teams WHERE id = $1 FOR UPDATE`, id).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTeamNotFound
			}
			return fmt.Errorf("failed to lock team: %w", err)
		}
		if status == model.TeamAwaitingPaymentConfirmation {
			return ErrTeamLocked
		}

		var pending int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM order_items oi JOIN orders o ON o.id = oi.order_id
			WHERE oi.item_type = $1 AND oi.item_id = $2 AND o.status = ANY($3)
		`, model.ItemCompetitionTeam, id, pq.Array(model.UnpaidOrderStatuses)).Scan(&pending); err != nil {
			return fmt.Errorf("failed to check team orders: %w", err)
		}
		if pending > 0 {
			return ErrTeamLocked
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE item_type = $1 AND item_id = $2`, model.ItemCompetitionTeam, id); err != nil {
			return fmt.Errorf("failed to remove team cart items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM competition_teams WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete team: %w", err)
		}
		return nil
	})
}

func (r *repository) GetMembership(ctx context.Context, id int64) (*model.TeamMembership, error) {
	var m model.TeamMembership
	err := r.db.QueryRowContext(ctx, `
		SELECT m.id, m.team_id, m.user_id, u.email, TRIM(u.first_name || ' ' || u.last_name),
		       m.government_id_url, m.government_id_status, m.joined_at
		FROM team_memberships m JOIN users u ON u.id = m.user_id
		WHERE m.id = $1
	`, id).Scan(&m.ID, &m.TeamID, &m.UserID, &m.UserEmail, &m.FullName,
		&m.GovernmentIDURL, &m.GovernmentIDStatus, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (r *repository) SetGovernmentID(ctx context.Context, membershipID int64, url string) error {
	return r.execOne(ctx, ErrMembershipNotFound, `
		UPDATE team_memberships SET government_id_url = $1, government_id_status = $2 WHERE id = $3
	`, url, model.GovIDPending, membershipID)
}

func (r *repository) ReviewGovernmentID(ctx context.Context, membershipID int64, approved bool) (*model.TeamMembership, error) {
	status := model.GovIDRejected
	if approved {
		status = model.GovIDApproved
	}
	if err := r.execOne(ctx, ErrMembershipNotFound, `
		UPDATE team_memberships SET government_id_status = $1
		WHERE id = $2 AND government_id_url IS NOT NULL
	`, status, membershipID); err != nil {
		return nil, err
	}
	return r.GetMembership(ctx, membershipID)
}

// ApproveTeam moves a verified-competition team out of review once every member ID is approved.
func (r *repository) ApproveTeam(ctx context.Context, teamID int64, remarks string) (*model.CompetitionTeam, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		var gcID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT status, group_competition_id FROM competition_teams WHERE id = $1 FOR UPDATE`, teamID,
		).Scan(&status, &gcID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTeamNotFound
			}
			return fmt.Errorf("failed to lock team: %w", err)
		}
		if status != model.TeamPendingAdminVerification && status != model.TeamRejectedByAdmin {
			return ErrTeamNotReviewable
		}

		gc, err := getGroupCompetition(ctx, tx, gcID, false)
		if err != nil {
			return err
		}
		if !gc.RequiresAdminApproval {
			return ErrTeamNotReviewable
		}

		var unapproved int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM team_memberships WHERE team_id = $1 AND government_id_status <> $2
		`, teamID, model.GovIDApproved).Scan(&unapproved); err != nil {
			return fmt.Errorf("failed to check member IDs: %w", err)
		}
		if unapproved > 0 {
			return ErrGovIDsNotApproved
		}

		newStatus, paymentStatus := shop.ApprovedTeamState(gc)
		if _, err := tx.ExecContext(ctx, `
			UPDATE competition_teams
			SET status = $1, payment_status = $2, is_approved_by_admin = TRUE, admin_remarks = $3
			WHERE id = $4
		`, newStatus, paymentStatus, remarks, teamID); err != nil {
			return fmt.Errorf("failed to approve team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetTeam(ctx, teamID)
}

func (r *repository) RejectTeam(ctx context.Context, teamID int64, remarks string) (*model.CompetitionTeam, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE competition_teams
		SET status = $1, is_approved_by_admin = FALSE, admin_remarks = $2
		WHERE id = $3 AND status IN ($4, $5)
	`, model.TeamRejectedByAdmin, remarks, teamID, model.TeamPendingAdminVerification, model.TeamApprovedAwaitingPayment)
	if err != nil {
		return nil, fmt.Errorf("failed to reject team: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetTeam(ctx, teamID); err != nil {
			return nil, err
		}
		return nil, ErrTeamNotReviewable
	}
	return r.GetTeam(ctx, teamID)
}

func (r *repository) ListTeamsForReview(ctx context.Context, status string) ([]model.CompetitionTeam, error) {
	if status == "" {
		status = model.TeamPendingAdminVerification
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+teamColumns+teamFrom+`
		WHERE g.requires_admin_approval AND t.status = $1
		ORDER BY t.created_at
	`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams for review: %w", err)
	}
	defer rows.Close()

	teams := make([]model.CompetitionTeam, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range teams {
		if teams[i].Members, err = r.teamMembers(ctx, r.db, teams[i].ID); err != nil {
			return nil, err
		}
	}
	return teams, nil
}
