package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventhub/internal/model"
	"eventhub/internal/shop"
)

const (
	CatalogEvents            = "events"
	CatalogPresentations     = "presentations"
	CatalogSoloCompetitions  = "solo_competitions"
	CatalogGroupCompetitions = "group_competitions"
)

type PresentationFilter struct {
	EventID  *int64
	Type     string
	IsOnline *bool
	IsPaid   *bool
	Page     Page
}

type CompetitionFilter struct {
	EventID *int64
	IsPaid  *bool
	Page    Page
}

type CatalogStore interface {
	CreateEvent(ctx context.Context, e *model.Event) (int64, error)
	CreatePresentation(ctx context.Context, p *model.Presentation) (int64, error)
	CreateSoloCompetition(ctx context.Context, c *model.SoloCompetition) (int64, error)
	CreateGroupCompetition(ctx context.Context, c *model.GroupCompetition) (int64, error)
	SetActive(ctx context.Context, catalog string, id int64, active bool) error

	ListEvents(ctx context.Context, page Page) ([]model.Event, int, error)
	GetEventDetail(ctx context.Context, id int64) (*model.EventDetail, error)
	ListPresentations(ctx context.Context, f PresentationFilter) ([]model.Presentation, int, error)
	GetPresentation(ctx context.Context, id int64) (*model.Presentation, error)
	ListSoloCompetitions(ctx context.Context, f CompetitionFilter) ([]model.SoloCompetition, int, error)
	GetSoloCompetition(ctx context.Context, id int64) (*model.SoloCompetition, error)
	ListGroupCompetitions(ctx context.Context, f CompetitionFilter) ([]model.GroupCompetition, int, error)
	GetGroupCompetition(ctx context.Context, id int64) (*model.GroupCompetition, error)

	GetItem(ctx context.Context, itemType string, id int64) (*model.Item, error)
	GetEnrollmentStatus(ctx context.Context, itemType string, itemID, userID int64) (string, error)
	EnrollFree(ctx context.Context, itemType string, itemID, userID int64) (bool, error)
	ListUserEnrollments(ctx context.Context, userID int64, eventID *int64) ([]model.PresentationEnrollment, error)
	ListUserSoloRegistrations(ctx context.Context, userID int64, eventID *int64) ([]model.SoloRegistration, error)
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (int64, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO events (title, description, start_date, end_date, is_active, landing_url, manager_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, e.Title, e.Description, e.StartDate, e.EndDate, e.IsActive, e.LandingURL, e.ManagerID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return e.ID, nil
}

func (r *repository) CreatePresentation(ctx context.Context, p *model.Presentation) (int64, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO presentations (event_id, title, description, type, level, is_online, location, online_link,
		                           start_time, end_time, is_paid, price, capacity, is_active, requirements)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`, p.EventID, p.Title, p.Description, p.Type, p.Level, p.IsOnline, p.Location, p.OnlineLink,
		p.StartTime, p.EndTime, p.IsPaid, p.Price, p.Capacity, p.IsActive, p.Requirements,
	).Scan(&p.ID, &p.CreatedAt)
	if isForeignKeyViolation(err) {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert presentation: %w", err)
	}
	p.RemainingCapacity = shop.Remaining(p.Capacity, 0)
	return p.ID, nil
}

func (r *repository) CreateSoloCompetition(ctx context.Context, c *model.SoloCompetition) (int64, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO solo_competitions (event_id, title, description, start_datetime, end_datetime, rules,
		                               is_paid, prize_details, is_active, price_per_participant, max_participants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, c.EventID, c.Title, c.Description, c.StartDatetime, c.EndDatetime, c.Rules,
		c.IsPaid, c.PrizeDetails, c.IsActive, c.PricePerParticipant, c.MaxParticipants,
	).Scan(&c.ID, &c.CreatedAt)
	if isForeignKeyViolation(err) {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert solo competition: %w", err)
	}
	c.RemainingCapacity = shop.Remaining(c.MaxParticipants, 0)
	return c.ID, nil
}

func (r *repository) CreateGroupCompetition(ctx context.Context, c *model.GroupCompetition) (int64, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO group_competitions (event_id, title, description, start_datetime, end_datetime, rules,
		                                is_paid, prize_details, is_active, price_per_group, min_group_size,
		                                max_group_size, max_teams, requires_admin_approval,
		                                member_verification_instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`, c.EventID, c.Title, c.Description, c.StartDatetime, c.EndDatetime, c.Rules,
		c.IsPaid, c.PrizeDetails, c.IsActive, c.PricePerGroup, c.MinGroupSize,
		c.MaxGroupSize, c.MaxTeams, c.RequiresAdminApproval, c.MemberVerificationInstructions,
	).Scan(&c.ID, &c.CreatedAt)
	if isForeignKeyViolation(err) {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert group competition: %w", err)
	}
	c.RemainingCapacity = shop.Remaining(c.MaxTeams, 0)
	return c.ID, nil
}

func (r *repository) SetActive(ctx context.Context, catalog string, id int64, active bool) error {
	var notFound error
	switch catalog {
	case CatalogEvents:
		notFound = ErrEventNotFound
	case CatalogPresentations:
		notFound = ErrPresentationNotFound
	case CatalogSoloCompetitions, CatalogGroupCompetitions:
		notFound = ErrCompetitionNotFound
	default:
		return fmt.Errorf("unknown catalog %q", catalog)
	}
	return r.execOne(ctx, notFound, `UPDATE `+catalog+` SET is_active = $1 WHERE id = $2`, active, id)
}

const eventColumns = `e.id, e.title, e.description, e.start_date, e.end_date, e.is_active,
	e.landing_url, e.manager_id, e.created_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate, &e.IsActive,
		&e.LandingURL, &e.ManagerID, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) ListEvents(ctx context.Context, page Page) ([]model.Event, int, error) {
	var c conds
	c.add("e.is_active = ?", true)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events e`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	where := c.where()
	limit := c.page(page)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events e`+where+` ORDER BY e.start_date DESC`+limit, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, total, rows.Err()
}

func (r *repository) GetEventDetail(ctx context.Context, id int64) (*model.EventDetail, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = $1 AND e.is_active`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	detail := &model.EventDetail{Event: *e}
	active := true
	if detail.Presentations, _, err = r.listPresentations(ctx, PresentationFilter{EventID: &id}, &active); err != nil {
		return nil, err
	}
	if detail.SoloCompetitions, _, err = r.listSolo(ctx, CompetitionFilter{EventID: &id}, &active); err != nil {
		return nil, err
	}
	if detail.GroupCompetitions, _, err = r.listGroup(ctx, CompetitionFilter{EventID: &id}, &active); err != nil {
		return nil, err
	}
	return detail, nil
}

const presentationColumns = `p.id, p.event_id, p.title, p.description, p.type, p.level, p.is_online,
	p.location, p.online_link, p.start_time, p.end_time, p.is_paid, p.price, p.capacity, p.is_active,
	p.requirements, p.created_at,
	(SELECT COUNT(*) FROM presentation_enrollments pe
	  WHERE pe.presentation_id = p.id AND pe.status IN ('completed_or_free', 'pending_payment'))`

func scanPresentation(row interface{ Scan(...any) error }) (*model.Presentation, error) {
	var p model.Presentation
	var taken int
	if err := row.Scan(&p.ID, &p.EventID, &p.Title, &p.Description, &p.Type, &p.Level, &p.IsOnline,
		&p.Location, &p.OnlineLink, &p.StartTime, &p.EndTime, &p.IsPaid, &p.Price, &p.Capacity, &p.IsActive,
		&p.Requirements, &p.CreatedAt, &taken); err != nil {
		return nil, err
	}
	p.RemainingCapacity = shop.Remaining(p.Capacity, taken)
	return &p, nil
}

func (r *repository) ListPresentations(ctx context.Context, f PresentationFilter) ([]model.Presentation, int, error) {
	active := true
	return r.listPresentations(ctx, f, &active)
}

func (r *repository) listPresentations(ctx context.Context, f PresentationFilter, active *bool) ([]model.Presentation, int, error) {
	var c conds
	if active != nil {
		c.add("p.is_active = ?", *active)
		c.add("e.is_active = ?", *active)
	}
	if f.EventID != nil {
		c.add("p.event_id = ?", *f.EventID)
	}
	if f.Type != "" {
		c.add("p.type = ?", f.Type)
	}
	if f.IsOnline != nil {
		c.add("p.is_online = ?", *f.IsOnline)
	}
	if f.IsPaid != nil {
		c.add("p.is_paid = ?", *f.IsPaid)
	}
	from := ` FROM presentations p JOIN events e ON e.id = p.event_id`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count presentations: %w", err)
	}

	where := c.where()
	limit := c.page(f.Page)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+presentationColumns+from+where+` ORDER BY p.start_time`+limit, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get presentations: %w", err)
	}
	defer rows.Close()

	list := make([]model.Presentation, 0)
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan presentation: %w", err)
		}
		list = append(list, *p)
	}
	return list, total, rows.Err()
}

func (r *repository) GetPresentation(ctx context.Context, id int64) (*model.Presentation, error) {
	p, err := scanPresentation(r.db.QueryRowContext(ctx,
		`SELECT `+presentationColumns+` FROM presentations p WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPresentationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presentation: %w", err)
	}
	return p, nil
}

const competitionInfoColumns = `c.event_id, c.title, c.description, c.start_datetime, c.end_datetime,
	c.rules, c.is_paid, c.prize_details, c.is_active, c.created_at`

func competitionInfoDest(ci *model.CompetitionInfo) []any {
	return []any{&ci.EventID, &ci.Title, &ci.Description, &ci.StartDatetime, &ci.EndDatetime,
		&ci.Rules, &ci.IsPaid, &ci.PrizeDetails, &ci.IsActive, &ci.CreatedAt}
}

const soloColumns = `c.id, ` + competitionInfoColumns + `, c.price_per_participant, c.max_participants,
	(SELECT COUNT(*) FROM solo_registrations sr
	  WHERE sr.solo_competition_id = c.id AND sr.status IN ('completed_or_free', 'pending_payment'))`

func scanSolo(row interface{ Scan(...any) error }) (*model.SoloCompetition, error) {
	var s model.SoloCompetition
	var taken int
	dest := append([]any{&s.ID}, competitionInfoDest(&s.CompetitionInfo)...)
	dest = append(dest, &s.PricePerParticipant, &s.MaxParticipants, &taken)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.RemainingCapacity = shop.Remaining(s.MaxParticipants, taken)
	return &s, nil
}

const groupColumns = `c.id, ` + competitionInfoColumns + `, c.price_per_group, c.min_group_size,
	c.max_group_size, c.max_teams, c.requires_admin_approval, c.member_verification_instructions,
	(SELECT COUNT(*) FROM competition_teams t
	  WHERE t.group_competition_id = c.id AND t.status IN ('active', 'approved_awaiting_payment',
	        'awaiting_payment_confirmation', 'pending_admin_verification'))`

func scanGroup(row interface{ Scan(...any) error }) (*model.GroupCompetition, error) {
	var g model.GroupCompetition
	var taken int
	dest := append([]any{&g.ID}, competitionInfoDest(&g.CompetitionInfo)...)
	dest = append(dest, &g.PricePerGroup, &g.MinGroupSize, &g.MaxGroupSize, &g.MaxTeams,
		&g.RequiresAdminApproval, &g.MemberVerificationInstructions, &taken)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	g.RemainingCapacity = shop.Remaining(g.MaxTeams, taken)
	return &g, nil
}

func competitionConds(f CompetitionFilter, active *bool) conds {
	var c conds
	if active != nil {
		c.add("c.is_active = ?", *active)
		c.add("e.is_active = ?", *active)
	}
	if f.EventID != nil {
		c.add("c.event_id = ?", *f.EventID)
	}
	if f.IsPaid != nil {
		c.add("c.is_paid = ?", *f.IsPaid)
	}
	return c
}

func (r *repository) ListSoloCompetitions(ctx context.Context, f CompetitionFilter) ([]model.SoloCompetition, int, error) {
	active := true
	return r.listSolo(ctx, f, &active)
}

func (r *repository) listSolo(ctx context.Context, f CompetitionFilter, active *bool) ([]model.SoloCompetition, int, error) {
	c := competitionConds(f, active)
	from := ` FROM solo_competitions c JOIN events e ON e.id = c.event_id`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count solo competitions: %w", err)
	}

	where := c.where()
	limit := c.page(f.Page)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+soloColumns+from+where+` ORDER BY c.start_datetime`+limit, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get solo competitions: %w", err)
	}
	defer rows.Close()

	list := make([]model.SoloCompetition, 0)
	for rows.Next() {
		s, err := scanSolo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan solo competition: %w", err)
		}
		list = append(list, *s)
	}
	return list, total, rows.Err()
}

func (r *repository) GetSoloCompetition(ctx context.Context, id int64) (*model.SoloCompetition, error) {
	s, err := scanSolo(r.db.QueryRowContext(ctx, `SELECT `+soloColumns+` FROM solo_competitions c WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompetitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get solo competition: %w", err)
	}
	return s, nil
}

func (r *repository) ListGroupCompetitions(ctx context.Context, f CompetitionFilter) ([]model.GroupCompetition, int, error) {
	active := true
	return r.listGroup(ctx, f, &active)
}

func (r *repository) listGroup(ctx context.Context, f CompetitionFilter, active *bool) ([]model.GroupCompetition, int, error) {
	c := competitionConds(f, active)
	from := ` FROM group_competitions c JOIN events e ON e.id = c.event_id`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count group competitions: %w", err)
	}

	where := c.where()
	limit := c.page(f.Page)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+groupColumns+from+where+` ORDER BY c.start_datetime`+limit, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get group competitions: %w", err)
	}
	defer rows.Close()

	list := make([]model.GroupCompetition, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan group competition: %w", err)
		}
		list = append(list, *g)
	}
	return list, total, rows.Err()
}

func (r *repository) GetGroupCompetition(ctx context.Context, id int64) (*model.GroupCompetition, error) {
	return getGroupCompetition(ctx, r.db, id, false)
}

func getGroupCompetition(ctx context.Context, q querier, id int64, lock bool) (*model.GroupCompetition, error) {
	query := `SELECT ` + groupColumns + ` FROM group_competitions c WHERE c.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	g, err := scanGroup(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompetitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group competition: %w", err)
	}
	return g, nil
}
