package views

import (
	"fmt"
	"io"
	"math"
	"sync"
	"text/tabwriter"

	"application-tracker/internal/models"
)

// Summary is the dashboard's business reading of the raw counts.
type Summary struct {
	Stats         models.Stats
	Active        int
	ResponseRate  float64 // percent of applications that got any answer
	InterviewRate float64 // percent that reached interview or offer
	OfferRate     float64
	RejectionRate float64
	Recent        []models.JobApplication
}

// Dashboard caches its summary until the store revision moves.
type Dashboard struct {
	src         Source
	recentLimit int

	mu       sync.Mutex
	cached   *Summary
	revision uint64
	computes int
}

func NewDashboard(src Source, recentLimit int) *Dashboard {
	if recentLimit <= 0 {
		recentLimit = 5
	}
	return &Dashboard{src: src, recentLimit: recentLimit}
}

func (d *Dashboard) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	rev := d.src.Revision()
	if d.cached != nil && d.revision == rev {
		return copySummary(*d.cached)
	}

	sum := Summarize(d.src.Stats())
	sum.Recent = d.src.Recent(d.recentLimit)
	d.cached = &sum
	d.revision = rev
	d.computes++
	return copySummary(sum)
}

// Summarize derives the rates from the structural counts.
func Summarize(stats models.Stats) Summary {
	responded := stats.Reviewing + stats.Interview + stats.Offer + stats.Rejected
	return Summary{
		Stats:         stats,
		Active:        stats.Applied + stats.Reviewing + stats.Interview + stats.Offer,
		ResponseRate:  percent(responded, stats.Total),
		InterviewRate: percent(stats.Interview+stats.Offer, stats.Total),
		OfferRate:     percent(stats.Offer, stats.Total),
		RejectionRate: percent(stats.Rejected, stats.Total),
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

func copySummary(s Summary) Summary {
	out := s
	out.Recent = make([]models.JobApplication, len(s.Recent))
	for i := range s.Recent {
		out.Recent[i] = s.Recent[i].Clone()
	}
	return out
}

func (d *Dashboard) Render(w io.Writer) error {
	sum := d.Summary()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Total\t%d\n", sum.Stats.Total)
	fmt.Fprintf(tw, "Active\t%d\n", sum.Active)
	for _, status := range models.AllStatuses() {
		fmt.Fprintf(tw, "%s\t%d\n", StatusTitle(status), sum.Stats.Count(status))
	}
	fmt.Fprintf(tw, "Response rate\t%.1f%%\n", sum.ResponseRate)
	fmt.Fprintf(tw, "Interview rate\t%.1f%%\n", sum.InterviewRate)
	fmt.Fprintf(tw, "Offer rate\t%.1f%%\n", sum.OfferRate)
	fmt.Fprintf(tw, "Rejection rate\t%.1f%%\n", sum.RejectionRate)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(sum.Recent) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nRecent activity"); err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, app := range sum.Recent {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatDate(app.LastUpdated), app.JobTitle, app.Company, StatusTitle(app.Status))
	}
	return tw.Flush()
}
