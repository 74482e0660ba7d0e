package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Job is a posting on the board. PostedByUserID and CreatedAt are fixed at
// creation; UpdatedAt moves on every mutation.
type Job struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	Title          string    `json:"title" gorm:"size:200;not null"`
	Description    string    `json:"description" gorm:"type:text;not null"`
	ExternalLink   string    `json:"external_link" gorm:"size:2048;not null"`
	PostedByUserID string    `json:"posted_by_user_id" gorm:"size:36;index;not null"`
	PostedBy       *User     `json:"posted_by,omitempty" gorm:"foreignKey:PostedByUserID;references:ID"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName is shared by every storage backend.
func (Job) TableName() string { return "job" }

// EntityID returns the job id
func (j Job) EntityID() string { return j.ID }

// Job field names used in store criteria.
const (
	JobFieldID             = "id"
	JobFieldTitle          = "title"
	JobFieldDescription    = "description"
	JobFieldExternalLink   = "external_link"
	JobFieldPostedByUserID = "posted_by_user_id"
	JobFieldCreatedAt      = "created_at"

	// JobRelationPostedBy eager-loads the poster.
	JobRelationPostedBy = "PostedBy"
)

// JobView is the API representation of a job
type JobView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ExternalLink string    `json:"externalLink"`
	PostedBy     *UserView `json:"postedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToView converts the job for API responses. PostedBy is only present when
// the relation was loaded.
func (j *Job) ToView() JobView {
	v := JobView{
		ID:           j.ID,
		Title:        j.Title,
		Description:  j.Description,
		ExternalLink: j.ExternalLink,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
	if j.PostedBy != nil {
		pv := j.PostedBy.ToView()
		v.PostedBy = &pv
	}
	return v
}

// JobViews converts a slice of jobs
func JobViews(jobs []Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, jobs[i].ToView())
	}
	return views
}

// Business constraints for jobs
const (
	MaxJobTitleLength       = 200
	MaxJobDescriptionLength = 10000
	MaxExternalLinkLength   = 2048

	MinPageNumber   = 1
	MinPageSize     = 1
	MaxPageSize     = 100
	DefaultPageSize = 10

	MinSearchKeywordLength = 2
	SearchPageSize         = 10
)

// JobRequest is the body of POST /jobs and PUT /jobs/{id}
type JobRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ExternalLink string `json:"externalLink"`
}

// Normalize trims surrounding whitespace from every field
func (r *JobRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.ExternalLink = strings.TrimSpace(r.ExternalLink)
}

// Validate validates the job request
func (r *JobRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Title == "" {
		errors = append(errors, FieldError{Field: "title", Message: "title is required"})
	} else if utf8.RuneCountInString(r.Title) > MaxJobTitleLength {
		errors = append(errors, FieldError{Field: "title", Message: "title exceeds maximum length"})
	}

	if r.Description == "" {
		errors = append(errors, FieldError{Field: "description", Message: "description is required"})
	} else if utf8.RuneCountInString(r.Description) > MaxJobDescriptionLength {
		errors = append(errors, FieldError{Field: "description", Message: "description exceeds maximum length"})
	}

	if r.ExternalLink == "" {
		errors = append(errors, FieldError{Field: "externalLink", Message: "externalLink is required"})
	} else if len(r.ExternalLink) > MaxExternalLinkLength {
		errors = append(errors, FieldError{Field: "externalLink", Message: "externalLink exceeds maximum length"})
	}

	return errors
}

// PagedJobs is one page of jobs plus the metadata needed to page further
type PagedJobs struct {
	Jobs       []Job
	PageNumber int
	PageSize   int
	TotalCount int64
	TotalPages int
}
