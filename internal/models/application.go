// internal/models/application.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the pipeline stage of a tracked application.
type Status string

const (
	StatusApplied   Status = "applied"
	StatusReviewing Status = "reviewing"
	StatusInterview Status = "interview"
	StatusOffer     Status = "offer"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

var allStatuses = []Status{
	StatusApplied,
	StatusReviewing,
	StatusInterview,
	StatusOffer,
	StatusRejected,
	StatusWithdrawn,
}

// AllStatuses returns every status in board column order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

type SalaryRange struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency"`
}

// JobApplication is a single tracked job application.
type JobApplication struct {
	ID            string       `json:"id"`
	JobTitle      string       `json:"jobTitle"`
	Company       string       `json:"company"`
	Location      string       `json:"location"`
	AppliedDate   time.Time    `json:"appliedDate"`
	Status        Status       `json:"status"`
	LastUpdated   time.Time    `json:"lastUpdated"`
	JobURL        string       `json:"jobUrl,omitempty"`
	Salary        *SalaryRange `json:"salary,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	FollowUpDate  *time.Time   `json:"followUpDate,omitempty"`
	InterviewDate *time.Time   `json:"interviewDate,omitempty"`
}

// Clone returns a deep copy so callers never share pointers with the store.
func (a JobApplication) Clone() JobApplication {
	out := a
	if a.Salary != nil {
		s := *a.Salary
		out.Salary = &s
	}
	out.FollowUpDate = cloneTime(a.FollowUpDate)
	out.InterviewDate = cloneTime(a.InterviewDate)
	return out
}

// NewApplication carries the caller-supplied fields of an add. Identity,
// timestamps and status are assigned by the store.
type NewApplication struct {
	JobTitle      string
	Company       string
	Location      string
	JobURL        string
	Salary        *SalaryRange
	Notes         string
	FollowUpDate  *time.Time
	InterviewDate *time.Time
}

// ApplicationPatch is a partial update. Nil fields are left untouched.
type ApplicationPatch struct {
	JobTitle      *string      `json:"jobTitle,omitempty"`
	Company       *string      `json:"company,omitempty"`
	Location      *string      `json:"location,omitempty"`
	Status        *Status      `json:"status,omitempty"`
	JobURL        *string      `json:"jobUrl,omitempty"`
	Salary        *SalaryRange `json:"salary,omitempty"`
	Notes         *string      `json:"notes,omitempty"`
	FollowUpDate  *time.Time   `json:"followUpDate,omitempty"`
	InterviewDate *time.Time   `json:"interviewDate,omitempty"`
}

// Clone copies every set field so the patch shares no pointers with p.
func (p ApplicationPatch) Clone() ApplicationPatch {
	out := ApplicationPatch{
		JobTitle:      cloneString(p.JobTitle),
		Company:       cloneString(p.Company),
		Location:      cloneString(p.Location),
		JobURL:        cloneString(p.JobURL),
		Notes:         cloneString(p.Notes),
		FollowUpDate:  cloneTime(p.FollowUpDate),
		InterviewDate: cloneTime(p.InterviewDate),
	}
	if p.Status != nil {
		st := *p.Status
		out.Status = &st
	}
	if p.Salary != nil {
		sal := *p.Salary
		out.Salary = &sal
	}
	return out
}

func (p ApplicationPatch) IsEmpty() bool {
	return p.JobTitle == nil && p.Company == nil && p.Location == nil &&
		p.Status == nil && p.JobURL == nil && p.Salary == nil &&
		p.Notes == nil && p.FollowUpDate == nil && p.InterviewDate == nil
}

// ApplyTo merges the patch into app and reports whether anything was set.
func (p ApplicationPatch) ApplyTo(app *JobApplication) bool {
	if p.IsEmpty() {
		return false
	}
	if p.JobTitle != nil {
		app.JobTitle = *p.JobTitle
	}
	if p.Company != nil {
		app.Company = *p.Company
	}
	if p.Location != nil {
		app.Location = *p.Location
	}
	if p.Status != nil {
		app.Status = *p.Status
	}
	if p.JobURL != nil {
		app.JobURL = *p.JobURL
	}
	if p.Salary != nil {
		s := *p.Salary
		app.Salary = &s
	}
	if p.Notes != nil {
		app.Notes = *p.Notes
	}
	if p.FollowUpDate != nil {
		app.FollowUpDate = cloneTime(p.FollowUpDate)
	}
	if p.InterviewDate != nil {
		app.InterviewDate = cloneTime(p.InterviewDate)
	}
	return true
}

// Stats is the structural aggregate over a collection.
type Stats struct {
	Total     int `json:"total"`
	Applied   int `json:"applied"`
	Reviewing int `json:"reviewing"`
	Interview int `json:"interview"`
	Offer     int `json:"offer"`
	Rejected  int `json:"rejected"`
	Withdrawn int `json:"withdrawn"`
}

// Count returns the counter for a single status.
func (s Stats) Count(status Status) int {
	switch status {
	case StatusApplied:
		return s.Applied
	case StatusReviewing:
		return s.Reviewing
	case StatusInterview:
		return s.Interview
	case StatusOffer:
		return s.Offer
	case StatusRejected:
		return s.Rejected
	case StatusWithdrawn:
		return s.Withdrawn
	}
	return 0
}

// Sum adds up the per-status counters. It equals Total for any collection
// whose records all carry a known status.
func (s Stats) Sum() int {
	return s.Applied + s.Reviewing + s.Interview + s.Offer + s.Rejected + s.Withdrawn
}

func (s *Stats) increment(status Status) {
	switch status {
	case StatusApplied:
		s.Applied++
	case StatusReviewing:
		s.Reviewing++
	case StatusInterview:
		s.Interview++
	case StatusOffer:
		s.Offer++
	case StatusRejected:
		s.Rejected++
	case StatusWithdrawn:
		s.Withdrawn++
	}
}

// ComputeStats makes a single pass over apps.
func ComputeStats(apps []JobApplication) Stats {
	stats := Stats{Total: len(apps)}
	for i := range apps {
		stats.increment(apps[i].Status)
	}
	return stats
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ApplicationUpdate is the body of a remote update: only the changed fields
// plus the refreshed timestamp.
type ApplicationUpdate struct {
	ApplicationPatch
	LastUpdated time.Time `json:"lastUpdated"`
}
