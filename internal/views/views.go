// Package views renders the store's derived data for a terminal: a list
// tracker, a kanban board and a dashboard.
package views

import (
	"context"
	"time"

	"application-tracker/internal/models"
)

// Source is the part of the tracker store the views read from.
type Source interface {
	All() []models.JobApplication
	ByStatus(status models.Status) []models.JobApplication
	Recent(limit int) []models.JobApplication
	Stats() models.Stats
	Revision() uint64
	UpdateStatus(ctx context.Context, id string, status models.Status, notes *string) bool
}

const dateLayout = "2006-01-02"

var statusTitles = map[models.Status]string{
	models.StatusApplied:   "Applied",
	models.StatusReviewing: "Under Review",
	models.StatusInterview: "Interview",
	models.StatusOffer:     "Offer",
	models.StatusRejected:  "Rejected",
	models.StatusWithdrawn: "Withdrawn",
}

// StatusTitle is the display label of a status.
func StatusTitle(s models.Status) string {
	if title, ok := statusTitles[s]; ok {
		return title
	}
	return string(s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}
