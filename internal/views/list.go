package views

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"application-tracker/internal/models"
	"application-tracker/internal/tracker"
)

type SortOrder string

const (
	SortRecent  SortOrder = "recent"
	SortApplied SortOrder = "applied"
	SortCompany SortOrder = "company"
)

func ParseSortOrder(raw string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(raw))); o {
	case "":
		return SortRecent, nil
	case SortRecent, SortApplied, SortCompany:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q (want recent, applied or company)", raw)
}

// ListFilter narrows the list. An empty Status matches every status and the
// query matches title, company or location, case-insensitively.
type ListFilter struct {
	Status models.Status
	Query  string
	Sort   SortOrder
}

type ListTracker struct {
	src Source
}

func NewListTracker(src Source) *ListTracker {
	return &ListTracker{src: src}
}

func (l *ListTracker) Items(f ListFilter) []models.JobApplication {
	var apps []models.JobApplication
	if f.Status != "" {
		apps = l.src.ByStatus(f.Status)
	} else {
		apps = l.src.All()
	}

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		filtered := apps[:0]
		for _, app := range apps {
			if matches(app, q) {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}

	switch f.Sort {
	case SortApplied:
		sort.SliceStable(apps, func(i, j int) bool {
			return apps[i].AppliedDate.After(apps[j].AppliedDate)
		})
	case SortCompany:
		sort.SliceStable(apps, func(i, j int) bool {
			return strings.ToLower(apps[i].Company) < strings.ToLower(apps[j].Company)
		})
	default:
		tracker.SortByRecency(apps)
	}
	return apps
}

func matches(app models.JobApplication, q string) bool {
	return strings.Contains(strings.ToLower(app.JobTitle), q) ||
		strings.Contains(strings.ToLower(app.Company), q) ||
		strings.Contains(strings.ToLower(app.Location), q)
}

func (l *ListTracker) Render(w io.Writer, f ListFilter) error {
	items := l.Items(f)
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No applications.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCOMPANY\tLOCATION\tSTATUS\tAPPLIED\tUPDATED")
	for _, app := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(app.ID), app.JobTitle, app.Company, app.Location,
			StatusTitle(app.Status), formatDate(app.AppliedDate), formatDate(app.LastUpdated))
	}
	return tw.Flush()
}
