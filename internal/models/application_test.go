// internal/models/application_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Status
		wantErr bool
	}{
		{name: "lower case", raw: "interview", want: StatusInterview},
		{name: "mixed case with spaces", raw: "  Offer ", want: StatusOffer},
		{name: "withdrawn", raw: "WITHDRAWN", want: StatusWithdrawn},
		{name: "unknown", raw: "ghosted", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllStatuses_ReturnsCopy(t *testing.T) {
	statuses := AllStatuses()
	require.Len(t, statuses, 6)
	assert.Equal(t, StatusApplied, statuses[0])

	statuses[0] = "mutated"
	assert.Equal(t, StatusApplied, AllStatuses()[0])
}

func TestComputeStats(t *testing.T) {
	apps := []JobApplication{
		{ID: "1", Status: StatusApplied},
		{ID: "2", Status: StatusApplied},
		{ID: "3", Status: StatusInterview},
		{ID: "4", Status: StatusOffer},
		{ID: "5", Status: StatusRejected},
	}

	stats := ComputeStats(apps)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, 0, stats.Reviewing)
	assert.Equal(t, 1, stats.Interview)
	assert.Equal(t, 1, stats.Offer)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 0, stats.Withdrawn)
	assert.Equal(t, stats.Total, stats.Sum())

	for _, s := range AllStatuses() {
		assert.GreaterOrEqual(t, stats.Count(s), 0)
	}
	assert.Equal(t, 2, stats.Count(StatusApplied))
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Equal(t, Stats{}, stats)
}

func TestApplicationPatch_ApplyTo(t *testing.T) {
	followUp := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	app := JobApplication{
		ID:       "app-1",
		JobTitle: "Backend Engineer",
		Company:  "Acme",
		Location: "Remote",
		Status:   StatusApplied,
	}

	title := "Senior Backend Engineer"
	notes := "referred by Sam"
	patch := ApplicationPatch{
		JobTitle:     &title,
		Notes:        &notes,
		FollowUpDate: &followUp,
		Salary:       &SalaryRange{Min: 100, Max: 150, Currency: "EUR"},
	}

	changed := patch.ApplyTo(&app)

	assert.True(t, changed)
	assert.Equal(t, "Senior Backend Engineer", app.JobTitle)
	assert.Equal(t, "Acme", app.Company)
	assert.Equal(t, "referred by Sam", app.Notes)
	require.NotNil(t, app.FollowUpDate)
	assert.True(t, followUp.Equal(*app.FollowUpDate))
	assert.Equal(t, StatusApplied, app.Status)

	// the record must not alias the patch
	patch.Salary.Min = 1
	assert.Equal(t, 100, app.Salary.Min)
}

func TestApplicationPatch_Empty(t *testing.T) {
	app := JobApplication{ID: "app-1", JobTitle: "x"}
	assert.True(t, ApplicationPatch{}.IsEmpty())
	assert.False(t, ApplicationPatch{}.ApplyTo(&app))
	assert.Equal(t, "x", app.JobTitle)
}

func TestJobApplication_Clone(t *testing.T) {
	interview := time.Now().UTC()
	orig := JobApplication{
		ID:            "app-1",
		Salary:        &SalaryRange{Min: 1, Max: 2, Currency: "USD"},
		InterviewDate: &interview,
	}

	cp := orig.Clone()
	cp.Salary.Max = 99
	*cp.InterviewDate = interview.Add(time.Hour)

	assert.Equal(t, 2, orig.Salary.Max)
	assert.True(t, orig.InterviewDate.Equal(interview))
}
