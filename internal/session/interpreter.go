// Package session turns text commands into store operations. The binary's
// one-shot subcommands and the interactive session share it.
package session

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"application-tracker/internal/common/logger"
	"application-tracker/internal/common/validation"
	"application-tracker/internal/models"
	"application-tracker/internal/tracker"
	"application-tracker/internal/views"
)

const dateLayout = "2006-01-02"

// ErrUsage marks errors caused by bad command input.
var ErrUsage = errors.New("usage error")

type Interpreter struct {
	store     *tracker.Store
	board     *views.Board
	dashboard *views.Dashboard
	list      *views.ListTracker
	logger    logger.Logger
}

func NewInterpreter(store *tracker.Store, log logger.Logger) *Interpreter {
	return &Interpreter{
		store:     store,
		board:     views.NewBoard(store),
		dashboard: views.NewDashboard(store, 5),
		list:      views.NewListTracker(store),
		logger:    log,
	}
}

type command struct {
	usage string
	run   func(i *Interpreter, ctx context.Context, fs *flag.FlagSet, args []string, out io.Writer) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"add":     {"add -title T -company C -location L [-url U] [-notes N] [-salary-min N -salary-max N -currency CUR] [-follow-up YYYY-MM-DD] [-interview YYYY-MM-DD]", (*Interpreter).add},
		"status":  {"status [-notes N] <id> <status>", (*Interpreter).status},
		"update":  {"update [-title T] [-company C] [-location L] [-url U] [-notes N] [-salary-min N -salary-max N -currency CUR] [-follow-up D] [-interview D] <id>", (*Interpreter).update},
		"rm":      {"rm <id>", (*Interpreter).remove},
		"list":    {"list [-status S] [-q QUERY] [-sort recent|applied|company]", (*Interpreter).listCmd},
		"board":   {"board", (*Interpreter).boardCmd},
		"stats":   {"stats", (*Interpreter).stats},
		"recent":  {"recent [-n N]", (*Interpreter).recent},
		"fetch":   {"fetch", (*Interpreter).fetch},
		"pending": {"pending", (*Interpreter).pending},
		"retry":   {"retry [-all] [task-id]", (*Interpreter).retry},
		"help":    {"help", (*Interpreter).help},
	}
}

// Execute runs one command. args[0] is the command name.
func (i *Interpreter) Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q (try help)", ErrUsage, args[0])
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	err := cmd.run(i, ctx, fs, args[1:], out)
	if errors.Is(err, flag.ErrHelp) || errors.Is(err, ErrUsage) {
		return fmt.Errorf("%w\nusage: %s", err, cmd.usage)
	}
	return err
}

// Notices prints and clears the store's pending error, if any.
func (i *Interpreter) Notices(out io.Writer) {
	if err := i.store.LastError(); err != nil {
		fmt.Fprintf(out, "warning: %v\n", err)
		i.store.ClearError()
	}
}

func usageErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageErr("%v", err)
	}
	return nil
}

// recordFlags are shared by add and update.
type recordFlags struct {
	title, company, location, url, notes string
	salaryMin, salaryMax                 int
	currency                             string
	followUp, interview                  string
}

func (r *recordFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.title, "title", "", "job title")
	fs.StringVar(&r.company, "company", "", "company")
	fs.StringVar(&r.location, "location", "", "location")
	fs.StringVar(&r.url, "url", "", "job posting URL")
	fs.StringVar(&r.notes, "notes", "", "free-text notes")
	fs.IntVar(&r.salaryMin, "salary-min", 0, "salary range minimum")
	fs.IntVar(&r.salaryMax, "salary-max", 0, "salary range maximum")
	fs.StringVar(&r.currency, "currency", "", "salary currency")
	fs.StringVar(&r.followUp, "follow-up", "", "follow-up date (YYYY-MM-DD)")
	fs.StringVar(&r.interview, "interview", "", "interview date (YYYY-MM-DD)")
}

func (r *recordFlags) salary() (*models.SalaryRange, error) {
	if r.salaryMin == 0 && r.salaryMax == 0 && r.currency == "" {
		return nil, nil
	}
	if r.salaryMax != 0 && r.salaryMin > r.salaryMax {
		return nil, usageErr("salary-min %d is above salary-max %d", r.salaryMin, r.salaryMax)
	}
	return &models.SalaryRange{Min: r.salaryMin, Max: r.salaryMax, Currency: strings.ToUpper(r.currency)}, nil
}

// mergeSalary lays the salary flags that were set over the current range, so
// updating one bound keeps the other and the currency.
func (r *recordFlags) mergeSalary(fs *flag.FlagSet, current *models.SalaryRange) (*models.SalaryRange, error) {
	var out models.SalaryRange
	if current != nil {
		out = *current
	}
	if isSet(fs, "salary-min") {
		out.Min = r.salaryMin
	}
	if isSet(fs, "salary-max") {
		out.Max = r.salaryMax
	}
	if isSet(fs, "currency") {
		out.Currency = strings.ToUpper(strings.TrimSpace(r.currency))
	}
	if out.Max != 0 && out.Min > out.Max {
		return nil, usageErr("salary-min %d is above salary-max %d", out.Min, out.Max)
	}
	return &out, nil
}

func parseDate(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return nil, usageErr("-%s: want YYYY-MM-DD, got %q", name, raw)
	}
	t = t.UTC()
	return &t, nil
}

func (i *Interpreter) add(ctx context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	var rf recordFlags
	rf.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"jobTitle": rf.title,
		"company":  rf.company,
		"location": rf.location,
		"jobUrl":   rf.url,
	}
	result, err := validation.ValidateNewApplication(fields)
	if err != nil {
		return err
	}
	if !result.Valid {
		return usageErr("%s", strings.Join(result.GetErrorMessages(), "; "))
	}

	salary, err := rf.salary()
	if err != nil {
		return err
	}
	followUp, err := parseDate("follow-up", rf.followUp)
	if err != nil {
		return err
	}
	interview, err := parseDate("interview", rf.interview)
	if err != nil {
		return err
	}

	app := i.store.Add(ctx, models.NewApplication{
		JobTitle:      fields["jobTitle"].(string),
		Company:       fields["company"].(string),
		Location:      fields["location"].(string),
		JobURL:        fields["jobUrl"].(string),
		Salary:        salary,
		Notes:         strings.TrimSpace(rf.notes),
		FollowUpDate:  followUp,
		InterviewDate: interview,
	})
	fmt.Fprintf(out, "Added %s: %s @ %s\n", app.ID, app.JobTitle, app.Company)
	return nil
}

func (i *Interpreter) status(ctx context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	notes := fs.String("notes", "", "replacement notes")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usageErr("status needs an id and a status")
	}
	status, err := models.ParseStatus(fs.Arg(1))
	if err != nil {
		return usageErr("%v", err)
	}

	var notesArg *string
	if isSet(fs, "notes") {
		notesArg = notes
	}

	id := i.resolveID(fs.Arg(0))
	if !i.store.UpdateStatus(ctx, id, status, notesArg) {
		fmt.Fprintf(out, "No change to %s\n", fs.Arg(0))
		return nil
	}
	fmt.Fprintf(out, "%s is now %s\n", id, views.StatusTitle(status))
	return nil
}

func (i *Interpreter) update(ctx context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	var rf recordFlags
	rf.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErr("update needs exactly one id")
	}

	id := i.resolveID(fs.Arg(0))
	current, _ := i.store.Get(id)

	var patch models.ApplicationPatch
	var err error
	fields := map[string]interface{}{}
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "title":
			patch.JobTitle = trimmed(rf.title)
			fields["jobTitle"] = *patch.JobTitle
		case "company":
			patch.Company = trimmed(rf.company)
			fields["company"] = *patch.Company
		case "location":
			patch.Location = trimmed(rf.location)
			fields["location"] = *patch.Location
		case "url":
			patch.JobURL = trimmed(rf.url)
			fields["jobUrl"] = *patch.JobURL
		case "notes":
			patch.Notes = trimmed(rf.notes)
		case "salary-min", "salary-max", "currency":
			if patch.Salary == nil {
				patch.Salary, err = rf.mergeSalary(fs, current.Salary)
			}
		case "follow-up":
			patch.FollowUpDate, err = parseDate("follow-up", rf.followUp)
		case "interview":
			patch.InterviewDate, err = parseDate("interview", rf.interview)
		}
	})
	if err != nil {
		return err
	}
	if patch.IsEmpty() {
		return usageErr("nothing to update")
	}
	if len(fields) > 0 {
		result, err := validation.ValidateApplicationPatch(fields)
		if err != nil {
			return err
		}
		if !result.Valid {
			return usageErr("%s", strings.Join(result.GetErrorMessages(), "; "))
		}
	}

	if !i.store.Update(ctx, id, patch) {
		fmt.Fprintf(out, "No change to %s\n", fs.Arg(0))
		return nil
	}
	fmt.Fprintf(out, "Updated %s\n", id)
	return nil
}

func (i *Interpreter) remove(ctx context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErr("rm needs exactly one id")
	}
	id := i.resolveID(fs.Arg(0))
	if !i.store.Remove(ctx, id) {
		fmt.Fprintf(out, "No application %s\n", fs.Arg(0))
		return nil
	}
	fmt.Fprintf(out, "Removed %s\n", id)
	return nil
}

func (i *Interpreter) listCmd(_ context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	rawStatus := fs.String("status", "", "only this status")
	query := fs.String("q", "", "match title, company or location")
	rawSort := fs.String("sort", "recent", "recent, applied or company")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	filter := views.ListFilter{Query: *query}
	if *rawStatus != "" {
		status, err := models.ParseStatus(*rawStatus)
		if err != nil {
			return usageErr("%v", err)
		}
		filter.Status = status
	}
	order, err := views.ParseSortOrder(*rawSort)
	if err != nil {
		return usageErr("%v", err)
	}
	filter.Sort = order
	return i.list.Render(out, filter)
}

func (i *Interpreter) boardCmd(_ context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return i.board.Render(out)
}

func (i *Interpreter) stats(_ context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return i.dashboard.Render(out)
}

func (i *Interpreter) recent(_ context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	n := fs.Int("n", tracker.DefaultRecentLimit, "how many records")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	apps := i.store.Recent(*n)
	if len(apps) == 0 {
		_, err := fmt.Fprintln(out, "No applications.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, app := range apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			app.LastUpdated.Local().Format("2006-01-02 15:04"), app.JobTitle, app.Company, views.StatusTitle(app.Status))
	}
	return tw.Flush()
}

func (i *Interpreter) fetch(ctx context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := i.store.FetchAll(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Fetched %d applications\n", len(i.store.All()))
	return nil
}

func (i *Interpreter) pending(_ context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	q := i.store.Queue()
	if q == nil {
		_, err := fmt.Fprintln(out, "Sync is disabled.")
		return err
	}

	tasks := append(q.Pending(), q.Failed()...)
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(out, "Nothing to sync.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tKIND\tAPPLICATION\tSTATE\tATTEMPTS\tERROR")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			task.ID, task.Kind, task.ApplicationID, task.State, task.Attempts, task.LastError)
	}
	return tw.Flush()
}

func (i *Interpreter) retry(_ context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	all := fs.Bool("all", false, "retry every failed task")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	q := i.store.Queue()
	if q == nil {
		return usageErr("sync is disabled")
	}

	switch {
	case *all || fs.NArg() == 0:
		fmt.Fprintf(out, "Re-queued %d tasks\n", q.RetryFailed())
	case fs.NArg() == 1:
		if !q.Retry(fs.Arg(0)) {
			return usageErr("no failed task %s", fs.Arg(0))
		}
		fmt.Fprintf(out, "Re-queued %s\n", fs.Arg(0))
	default:
		return usageErr("retry takes at most one task id")
	}
	return nil
}

func (i *Interpreter) help(_ context.Context, _ *flag.FlagSet, _ []string, out io.Writer) error {
	PrintCommands(out)
	return nil
}

// PrintCommands writes one usage line per command.
func PrintCommands(out io.Writer) {
	names := []string{"add", "status", "update", "rm", "list", "board", "stats", "recent", "fetch", "pending", "retry", "help"}
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
}

// resolveID accepts a full id or a unique prefix of one, as printed by list.
func (i *Interpreter) resolveID(raw string) string {
	if raw == "" {
		return raw
	}
	if _, ok := i.store.Get(raw); ok {
		return raw
	}
	match := ""
	for _, app := range i.store.All() {
		if strings.HasPrefix(app.ID, raw) {
			if match != "" {
				return raw
			}
			match = app.ID
		}
	}
	if match == "" {
		return raw
	}
	return match
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func trimmed(s string) *string {
	v := strings.TrimSpace(s)
	return &v
}
