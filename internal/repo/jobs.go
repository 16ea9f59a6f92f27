package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"eventhub/internal/model"
)

type JobFilter struct {
	// Tags holds tag names or numeric ids.
	Tags     []string
	Search   string
	Ordering string
	Page     Page
}

type JobStore interface {
	CreateTag(ctx context.Context, t *model.Tag) (int64, error)
	CreateJob(ctx context.Context, j *model.Job, tagIDs []int64) (int64, error)
	ListJobs(ctx context.Context, f JobFilter) ([]model.Job, int, error)
	GetJob(ctx context.Context, id int64) (*model.Job, error)
}

var jobOrderings = map[string]string{
	"created_at":  "j.created_at ASC",
	"-created_at": "j.created_at DESC",
	"title":       "j.title ASC",
	"-title":      "j.title DESC",
}

func (r *repository) CreateTag(ctx context.Context, t *model.Tag) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tags (name, color) VALUES ($1, $2) RETURNING id`, t.Name, t.Color).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrTagTaken
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert tag: %w", err)
	}
	return id, nil
}

func (r *repository) CreateJob(ctx context.Context, j *model.Job, tagIDs []int64) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO jobs (title, excerpt, description, company_image_url, company_url, resume_url, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, j.Title, j.Excerpt, j.Description, j.CompanyImageURL, j.CompanyURL, j.ResumeURL, j.IsActive).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO job_tags (job_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, tagID); err != nil {
				if isForeignKeyViolation(err) {
					return ErrTagNotFound
				}
				return fmt.Errorf("failed to link tag: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListJobs returns active jobs. Tag values that parse as integers match ids, the rest match names.
func (r *repository) ListJobs(ctx context.Context, f JobFilter) ([]model.Job, int, error) {
	var c conds
	c.add("j.is_active = ?", true)

	if len(f.Tags) > 0 {
		var ids []int64
		var names []string
		for _, t := range f.Tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if id, err := strconv.ParseInt(t, 10, 64); err == nil {
				ids = append(ids, id)
			} else {
				names = append(names, t)
			}
		}
		c.addN(`EXISTS (SELECT 1 FROM job_tags jt JOIN tags tg ON tg.id = jt.tag_id
			WHERE jt.job_id = j.id AND (tg.id = ANY(?) OR tg.name = ANY(?)))`, pq.Array(ids), pq.Array(names))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		c.addN(`(j.title ILIKE ? OR j.excerpt ILIKE ? OR j.description ILIKE ? OR EXISTS (
			SELECT 1 FROM job_tags jt JOIN tags tg ON tg.id = jt.tag_id WHERE jt.job_id = j.id AND tg.name ILIKE ?))`,
			like, like, like, like)
	}

	order, ok := jobOrderings[f.Ordering]
	if !ok {
		order = jobOrderings["-created_at"]
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs j`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	where := c.where()
	limit := c.page(f.Page)
	rows, err := r.db.QueryContext(ctx, `
		SELECT j.id, j.title, j.excerpt, j.description, j.company_image_url, j.company_url, j.resume_url,
		       j.is_active, j.created_at
		FROM jobs j`+where+` ORDER BY `+order+`, j.id DESC`+limit, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachTags(ctx, jobs); err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func scanJob(row interface{ Scan(...any) error }) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.Title, &j.Excerpt, &j.Description, &j.CompanyImageURL, &j.CompanyURL, &j.ResumeURL,
		&j.IsActive, &j.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	j.Tags = make([]model.Tag, 0)
	return &j, nil
}

func (r *repository) attachTags(ctx context.Context, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	index := make(map[int64]int, len(jobs))
	ids := make([]int64, 0, len(jobs))
	for i, j := range jobs {
		index[j.ID] = i
		ids = append(ids, j.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT jt.job_id, t.id, t.name, t.color FROM job_tags jt JOIN tags t ON t.id = jt.tag_id
		WHERE jt.job_id = ANY($1) ORDER BY t.name
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to get job tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobID int64
		var t model.Tag
		if err := rows.Scan(&jobID, &t.ID, &t.Name, &t.Color); err != nil {
			return fmt.Errorf("failed to scan job tag: %w", err)
		}
		i := index[jobID]
		jobs[i].Tags = append(jobs[i].Tags, t)
	}
	return rows.Err()
}

func (r *repository) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `
		SELECT j.id, j.title, j.excerpt, j.description, j.company_image_url, j.company_url, j.resume_url,
		       j.is_active, j.created_at
		FROM jobs j WHERE j.id = $1 AND j.is_active
	`, id))
	if err != nil {
		return nil, err
	}
	list := []model.Job{*j}
	if err := r.attachTags(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}
