package model

import "time"

type Tag struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Color string `db:"color" json:"color"`
}

type Job struct {
	ID              int64     `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Excerpt         string    `db:"excerpt" json:"excerpt"`
	Description     string    `db:"description" json:"description"`
	CompanyImageURL string    `db:"company_image_url" json:"company_image,omitempty"`
	CompanyURL      string    `db:"company_url" json:"company_url,omitempty"`
	ResumeURL       string    `db:"resume_url" json:"resume_url,omitempty"`
	Tags            []Tag     `db:"-" json:"tags"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
