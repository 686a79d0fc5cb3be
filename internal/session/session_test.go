package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"application-tracker/internal/common/logger"
	"application-tracker/internal/models"
	"application-tracker/internal/storage"
	"application-tracker/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRemote accepts everything unless fail is set.
type stubRemote struct {
	mu      sync.Mutex
	fail    bool
	created []string
	list    []models.JobApplication
}

func (r *stubRemote) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("remote down")
	}
	return nil
}

func (r *stubRemote) List(context.Context) ([]models.JobApplication, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	return r.list, nil
}

func (r *stubRemote) Create(_ context.Context, app models.JobApplication) error {
	if err := r.err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.created = append(r.created, app.ID)
	r.mu.Unlock()
	return nil
}

func (r *stubRemote) Update(context.Context, string, models.ApplicationUpdate) error { return r.err() }
func (r *stubRemote) Delete(context.Context, string) error                            { return r.err() }

func newInterpreter(t *testing.T, remote tracker.Remote) (*Interpreter, *tracker.Store) {
	t.Helper()
	log := logger.NewTestLogger(t)
	var opts []tracker.Option
	if remote != nil {
		opts = append(opts, tracker.WithSyncQueue(tracker.NewSyncQueue(remote, log, tracker.WithRequestTimeout(time.Second))))
	}
	store := tracker.New(storage.NewMemoryStorage(), log, opts...)
	return NewInterpreter(store, log), store
}

func exec(t *testing.T, i *Interpreter, line string) (string, error) {
	t.Helper()
	args, err := SplitArgs(line)
	require.NoError(t, err)
	var out bytes.Buffer
	err = i.Execute(context.Background(), args, &out)
	return out.String(), err
}

func TestInterpreter_AddAndList(t *testing.T) {
	i, store := newInterpreter(t, nil)

	out, err := exec(t, i, `add -title "Backend Engineer" -company Acme -location Remote -salary-min 100 -salary-max 120 -currency eur -interview 2026-05-04`)
	require.NoError(t, err)
	assert.Contains(t, out, "Added ")

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Backend Engineer", all[0].JobTitle)
	assert.Equal(t, models.StatusApplied, all[0].Status)
	require.NotNil(t, all[0].Salary)
	assert.Equal(t, "EUR", all[0].Salary.Currency)
	require.NotNil(t, all[0].InterviewDate)

	out, err = exec(t, i, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend Engineer")
	assert.Contains(t, out, "Acme")

	out, err = exec(t, i, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total")
}

func TestInterpreter_AddValidates(t *testing.T) {
	i, store := newInterpreter(t, nil)

	_, err := exec(t, i, `add -title "  " -company Acme -location Remote -url ftp://x`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "jobTitle")
	assert.Contains(t, err.Error(), "usage: add")
	assert.Empty(t, store.All())

	_, err = exec(t, i, `add -title T -company C -location L -follow-up tomorrow`)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Empty(t, store.All())
}

func TestInterpreter_StatusUpdateRemoveByPrefix(t *testing.T) {
	i, store := newInterpreter(t, nil)
	app := store.Add(context.Background(), models.NewApplication{JobTitle: "SRE", Company: "Globex", Location: "Berlin"})
	prefix := app.ID[:8]

	out, err := exec(t, i, "status -notes 'panel next week' "+prefix+" interview")
	require.NoError(t, err)
	assert.Contains(t, out, "Interview")
	got, _ := store.Get(app.ID)
	assert.Equal(t, models.StatusInterview, got.Status)
	assert.Equal(t, "panel next week", got.Notes)

	_, err = exec(t, i, "update -company 'Globex Corp' -location Munich "+prefix)
	require.NoError(t, err)
	got, _ = store.Get(app.ID)
	assert.Equal(t, "Globex Corp", got.Company)
	assert.Equal(t, "Munich", got.Location)
	assert.Equal(t, "panel next week", got.Notes)

	_, err = exec(t, i, "update "+prefix)
	assert.ErrorIs(t, err, ErrUsage)

	out, err = exec(t, i, "rm "+prefix)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed "+app.ID)
	assert.Empty(t, store.All())

	out, err = exec(t, i, "rm "+prefix)
	require.NoError(t, err)
	assert.Contains(t, out, "No application")
}

func TestInterpreter_BadInput(t *testing.T) {
	i, _ := newInterpreter(t, nil)

	tests := []string{
		"frobnicate",
		"status onlyid",
		"status abc ghosted",
		"list -sort salary",
		"list -status maybe",
		"rm",
		"add -nope",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			_, err := exec(t, i, line)
			assert.ErrorIs(t, err, ErrUsage)
		})
	}
}

func TestInterpreter_SyncCommands(t *testing.T) {
	remote := &stubRemote{fail: true}
	i, store := newInterpreter(t, remote)
	ctx := context.Background()

	_, err := exec(t, i, "add -title T -company C -location L")
	require.NoError(t, err)
	require.NoError(t, store.Queue().Drain(ctx))

	out, err := exec(t, i, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "remote down")

	var notices bytes.Buffer
	i.Notices(&notices)
	assert.Contains(t, notices.String(), "warning:")
	assert.NoError(t, store.LastError(), "notices clear the error slot")

	remote.mu.Lock()
	remote.fail = false
	remote.mu.Unlock()

	out, err = exec(t, i, "retry -all")
	require.NoError(t, err)
	assert.Contains(t, out, "Re-queued 1 tasks")
	require.NoError(t, store.Queue().Drain(ctx))
	assert.Len(t, remote.created, 1)

	out, err = exec(t, i, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to sync.")

	_, err = exec(t, i, "retry not-a-task")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestInterpreter_Fetch(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	remote := &stubRemote{list: []models.JobApplication{
		{ID: "r1", JobTitle: "Remote One", Company: "c", Location: "l", AppliedDate: ts, LastUpdated: ts, Status: models.StatusOffer},
	}}
	i, store := newInterpreter(t, remote)

	out, err := exec(t, i, "fetch")
	require.NoError(t, err)
	assert.Contains(t, out, "Fetched 1 applications")
	assert.Len(t, store.All(), 1)

	out, err = exec(t, i, "board")
	require.NoError(t, err)
	assert.Contains(t, out, "OFFER (1)")
}

func TestInterpreter_SyncDisabled(t *testing.T) {
	i, _ := newInterpreter(t, nil)

	out, err := exec(t, i, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync is disabled.")

	_, err = exec(t, i, "fetch")
	assert.Error(t, err)
}

func TestRun_Script(t *testing.T) {
	i, store := newInterpreter(t, nil)
	script := strings.Join([]string{
		"# seed",
		`add -title "Go Developer" -company Initech -location "New York"`,
		"",
		"bogus",
		"recent -n 1",
		"quit",
		"add -title Never -company Reached -location Here",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, i.Run(context.Background(), strings.NewReader(script), &out, ""))

	assert.Len(t, store.All(), 1)
	assert.Contains(t, out.String(), "error: usage error: unknown command \"bogus\"")
	assert.Contains(t, out.String(), "Go Developer")
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"list", []string{"list"}},
		{`add -title "Senior Go Dev" -company 'O''Reilly'`, []string{"add", "-title", "Senior Go Dev", "-company", "OReilly"}},
		{`status -notes "said \"soon\"" abc offer`, []string{"status", "-notes", `said "soon"`, "abc", "offer"}},
		{"  spaced   out\targs ", []string{"spaced", "out", "args"}},
		{`empty ""`, []string{"empty", ""}},
	}
	for _, tt := range tests {
		got, err := SplitArgs(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	_, err := SplitArgs(`add "open`)
	assert.Error(t, err)
	_, err = SplitArgs(`trailing \`)
	assert.Error(t, err)
}

func TestInterpreter_EmptyIDMatchesNothing(t *testing.T) {
	i, store := newInterpreter(t, nil)
	app := store.Add(context.Background(), models.NewApplication{JobTitle: "SRE", Company: "Globex", Location: "Berlin"})

	out, err := exec(t, i, `status "" offer`)
	require.NoError(t, err)
	assert.Contains(t, out, "No change")

	out, err = exec(t, i, `rm ""`)
	require.NoError(t, err)
	assert.Contains(t, out, "No application")

	got, ok := store.Get(app.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusApplied, got.Status)
}

func TestInterpreter_UpdateMergesSalary(t *testing.T) {
	i, store := newInterpreter(t, nil)
	app := store.Add(context.Background(), models.NewApplication{
		JobTitle: "SRE", Company: "Globex", Location: "Berlin",
		Salary: &models.SalaryRange{Min: 90, Max: 110, Currency: "EUR"},
	})

	_, err := exec(t, i, "update -salary-max 130 "+app.ID)
	require.NoError(t, err)
	got, _ := store.Get(app.ID)
	require.NotNil(t, got.Salary)
	assert.Equal(t, models.SalaryRange{Min: 90, Max: 130, Currency: "EUR"}, *got.Salary)

	_, err = exec(t, i, "update -currency usd "+app.ID)
	require.NoError(t, err)
	got, _ = store.Get(app.ID)
	assert.Equal(t, models.SalaryRange{Min: 90, Max: 130, Currency: "USD"}, *got.Salary)

	_, err = exec(t, i, "update -salary-min 200 "+app.ID)
	assert.ErrorIs(t, err, ErrUsage)
	got, _ = store.Get(app.ID)
	assert.Equal(t, 90, got.Salary.Min)
}

func TestInterpreter_UpdateRejectsBlankRequiredFields(t *testing.T) {
	i, store := newInterpreter(t, nil)
	app := store.Add(context.Background(), models.NewApplication{JobTitle: "SRE", Company: "Globex", Location: "Berlin"})

	tests := []string{
		`update -title "" `,
		`update -company "   " `,
		`update -location "" `,
		`update -url ftp://nope `,
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			_, err := exec(t, i, line+app.ID)
			assert.ErrorIs(t, err, ErrUsage)
		})
	}

	got, _ := store.Get(app.ID)
	assert.Equal(t, "SRE", got.JobTitle)
	assert.Equal(t, "Globex", got.Company)
	assert.Equal(t, "Berlin", got.Location)
	assert.Empty(t, got.JobURL)
}
