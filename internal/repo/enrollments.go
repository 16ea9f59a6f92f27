package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventhub/internal/model"
	"eventhub/internal/shop"
)

// enrollmentTable maps a direct-enrollment item type to its table and foreign key.
func enrollmentTable(itemType string) (table, column string, err error) {
	switch itemType {
	case model.ItemPresentation:
		return "presentation_enrollments", "presentation_id", nil
	case model.ItemSoloCompetition:
		return "solo_registrations", "solo_competition_id", nil
	}
	return "", "", shop.ErrUnknownItemType
}

func (r *repository) GetItem(ctx context.Context, itemType string, id int64) (*model.Item, error) {
	return getItem(ctx, r.db, itemType, id, false)
}

// getItem resolves a purchasable item. With lock the item row is held FOR UPDATE.
func getItem(ctx context.Context, q querier, itemType string, id int64, lock bool) (*model.Item, error) {
	it := &model.Item{Type: itemType}
	var capacity *int
	var query string

	switch itemType {
	case model.ItemPresentation:
		query = `
			SELECT p.id, p.event_id, p.title, p.is_paid, p.price, p.is_active, e.is_active, p.capacity
			FROM presentations p JOIN events e ON e.id = p.event_id
			WHERE p.id = $1`
		if lock {
			query += ` FOR UPDATE OF p`
		}
		if err := q.QueryRowContext(ctx, query, id).Scan(
			&it.ID, &it.EventID, &it.Title, &it.IsPaid, &it.Price, &it.Active, &it.EventActive, &capacity,
		); err != nil {
			return nil, itemErr(err)
		}
	case model.ItemSoloCompetition:
		query = `
			SELECT c.id, c.event_id, c.title, c.is_paid, c.price_per_participant, c.is_active, e.is_active,
			       c.max_participants
			FROM solo_competitions c JOIN events e ON e.id = c.event_id
			WHERE c.id = $1`
		if lock {
			query += ` FOR UPDATE OF c`
		}
		if err := q.QueryRowContext(ctx, query, id).Scan(
			&it.ID, &it.EventID, &it.Title, &it.IsPaid, &it.Price, &it.Active, &it.EventActive, &capacity,
		); err != nil {
			return nil, itemErr(err)
		}
	case model.ItemCompetitionTeam:
		query = `
			SELECT t.id, g.event_id, t.name || ' - ' || g.title, g.is_paid, g.price_per_group, g.is_active,
			       e.is_active, t.leader_id, t.status, g.requires_admin_approval
			FROM competition_teams t
			JOIN group_competitions g ON g.id = t.group_competition_id
			JOIN events e ON e.id = g.event_id
			WHERE t.id = $1`
		if lock {
			query += ` FOR UPDATE OF t`
		}
		if err := q.QueryRowContext(ctx, query, id).Scan(
			&it.ID, &it.EventID, &it.Title, &it.IsPaid, &it.Price, &it.Active, &it.EventActive,
			&it.LeaderID, &it.TeamStatus, &it.RequiresApproval,
		); err != nil {
			return nil, itemErr(err)
		}
		return it, nil
	default:
		return nil, shop.ErrUnknownItemType
	}

	table, column, _ := enrollmentTable(itemType)
	var taken int
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM `+table+`
		WHERE `+column+` = $1 AND status IN ('completed_or_free', 'pending_payment')
	`, id).Scan(&taken); err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}
	it.Remaining = shop.Remaining(capacity, taken)
	return it, nil
}

func itemErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrItemNotFound
	}
	return fmt.Errorf("failed to load item: %w", err)
}

func (r *repository) GetEnrollmentStatus(ctx context.Context, itemType string, itemID, userID int64) (string, error) {
	table, column, err := enrollmentTable(itemType)
	if err != nil {
		return "", err
	}
	var status string
	err = r.db.QueryRowContext(ctx,
		`SELECT status FROM `+table+` WHERE `+column+` = $1 AND user_id = $2`, itemID, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get enrollment status: %w", err)
	}
	return status, nil
}

// EnrollFree records a completed enrollment for a free item. It reports whether a new row was created.
func (r *repository) EnrollFree(ctx context.Context, itemType string, itemID, userID int64) (bool, error) {
	table, column, err := enrollmentTable(itemType)
	if err != nil {
		return false, err
	}

	var created bool
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		it, err := getItem(ctx, tx, itemType, itemID, true)
		if err != nil {
			return err
		}
		if !shop.Available(it) {
			return shop.ErrItemUnavailable
		}
		if !shop.IsFree(it) {
			return ErrItemNotFree
		}

		var status string
		err = tx.QueryRowContext(ctx,
			`SELECT status FROM `+table+` WHERE `+column+` = $1 AND user_id = $2 FOR UPDATE`,
			itemID, userID).Scan(&status)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check enrollment: %w", err)
		}
		if status == model.EnrollmentCompleted {
			return ErrAlreadyEnrolled
		}
		if it.Remaining != nil && *it.Remaining <= 0 && status != model.EnrollmentPendingPayment {
			return ErrCapacityFull
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO `+table+` (user_id, `+column+`, status, payment_status)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, `+column+`) DO UPDATE
			SET status = EXCLUDED.status, payment_status = EXCLUDED.payment_status, order_item_id = NULL
			RETURNING (xmax = 0)
		`, userID, itemID, model.EnrollmentCompleted, model.PaymentNotApplicable).Scan(&created)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *repository) ListUserEnrollments(ctx context.Context, userID int64, eventID *int64) ([]model.PresentationEnrollment, error) {
	var c conds
	c.add("pe.user_id = ?", userID)
	if eventID != nil {
		c.add("p.event_id = ?", *eventID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT pe.id, pe.user_id, pe.presentation_id, p.title, p.event_id, pe.status, pe.payment_status,
		       pe.order_item_id, p.end_time, pe.enrolled_at
		FROM presentation_enrollments pe JOIN presentations p ON p.id = pe.presentation_id`+
		c.where()+` ORDER BY pe.enrolled_at DESC`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollments: %w", err)
	}
	defer rows.Close()

	list := make([]model.PresentationEnrollment, 0)
	for rows.Next() {
		var e model.PresentationEnrollment
		if err := rows.Scan(&e.ID, &e.UserID, &e.PresentationID, &e.PresentationTitle, &e.EventID, &e.Status,
			&e.PaymentStatus, &e.OrderItemID, &e.EndTime, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *repository) ListUserSoloRegistrations(ctx context.Context, userID int64, eventID *int64) ([]model.SoloRegistration, error) {
	var c conds
	c.add("sr.user_id = ?", userID)
	if eventID != nil {
		c.add("c.event_id = ?", *eventID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT sr.id, sr.user_id, sr.solo_competition_id, c.title, c.event_id, sr.status, sr.payment_status,
		       sr.order_item_id, e.end_date, sr.registered_at
		FROM solo_registrations sr
		JOIN solo_competitions c ON c.id = sr.solo_competition_id
		JOIN events e ON e.id = c.event_id`+c.where()+` ORDER BY sr.registered_at DESC`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get solo registrations: %w", err)
	}
	defer rows.Close()

	list := make([]model.SoloRegistration, 0)
	for rows.Next() {
		var s model.SoloRegistration
		if err := rows.Scan(&s.ID, &s.UserID, &s.SoloCompetitionID, &s.CompetitionTitle, &s.EventID, &s.Status,
			&s.PaymentStatus, &s.OrderItemID, &s.EventEndDate, &s.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan solo registration: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
