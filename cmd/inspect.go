package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nibzard/taskledger/internal/export"
	"github.com/nibzard/taskledger/internal/ledger"
	"github.com/nibzard/taskledger/internal/txn"
)

// load reads the configured ledger for a read-only command.
func (r *runner) load() (*ledger.Ledger, error) {
	l, _, err := txn.Load(r.cfg.LedgerFile)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// lsCommand lists records grouped by section.
func (r *runner) lsCommand(args []string) error {
	fs := r.newFlagSet("ls")
	priority := fs.String("priority", "", "Only records of this priority")
	done := fs.Bool("done", false, "Only done records")
	open := fs.Bool("open", false, "Only records that are not done")
	archived := fs.Bool("archived", false, "Include archived records")
	archivedOnly := fs.Bool("archived-only", false, "Only archived records")
	assignee := fs.String("assignee", "", "Only records with this assignee")
	verbose := fs.Bool("v", false, "Show dates and extra fields")
	asJSON := fs.Bool("json", false, "Print the records as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usagef("ls: unexpected arguments: %v", fs.Args())
	}
	if *done && *open {
		return usagef("ls: -done and -open are mutually exclusive")
	}

	filter := ledger.Filter{Archived: *archived, ArchivedOnly: *archivedOnly, Assignee: *assignee}
	if *priority != "" {
		p, err := ledger.ParsePriority(*priority)
		if err != nil {
			return usagef("ls: %v", err)
		}
		filter.Priority = p
	}
	if *done || *open {
		want := *done
		filter.Done = &want
	}

	l, err := r.load()
	if err != nil {
		return err
	}
	if *asJSON {
		return export.Encode(r.stdout, export.FromLedger(l, export.Options{Path: r.cfg.LedgerFile, Filter: filter}), export.FormatJSON)
	}

	records := l.Select(filter)
	if len(records) == 0 {
		fmt.Fprintln(r.stdout, "No records found.")
		return nil
	}
	var current *ledger.Section
	for _, rec := range records {
		if s := l.SectionOf(rec.ID); s != current {
			if current != nil {
				fmt.Fprintln(r.stdout)
			}
			current = s
			fmt.Fprintf(r.stdout, "%s (%d):\n", s.Kind, countIn(records, l, s))
		}
		printRecordLine(r.stdout, rec, *verbose)
	}
	return nil
}

func countIn(records []*ledger.Record, l *ledger.Ledger, s *ledger.Section) int {
	n := 0
	for _, rec := range records {
		if l.SectionOf(rec.ID) == s {
			n++
		}
	}
	return n
}

// showCommand prints one record.
func (r *runner) showCommand(args []string) error {
	fs := r.newFlagSet("show")
	asJSON := fs.Bool("json", false, "Print the record as JSON")
	format := fs.String("format", "", "Output format (json, yaml)")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := singleID("show", fs)
	if err != nil {
		return err
	}
	l, err := r.load()
	if err != nil {
		return err
	}
	rec := l.Find(id)
	if rec == nil {
		return &ledger.MutationError{Kind: ledger.KindNotFound, ID: id}
	}

	if *asJSON || *format != "" {
		f := export.FormatJSON
		if *format != "" {
			if f, err = export.ParseFormat(*format); err != nil {
				return usagef("show: %v", err)
			}
		}
		return export.Encode(r.stdout, export.FromRecord(l, rec), f)
	}
	printRecordDetail(r.stdout, l, rec)
	return nil
}

// nextCommand prints the first record that is ready to work on.
func (r *runner) nextCommand(args []string) error {
	fs := r.newFlagSet("next")
	asJSON := fs.Bool("json", false, "Print the record as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	l, err := r.load()
	if err != nil {
		return err
	}
	rec := l.Next()
	if rec == nil {
		fmt.Fprintln(r.stderr, "No record is ready.")
		return ErrNoWork
	}
	if *asJSON {
		return export.Encode(r.stdout, export.FromRecord(l, rec), export.FormatJSON)
	}
	printRecordLine(r.stdout, rec, true)
	return nil
}

// statsCommand prints counts per status and section.
func (r *runner) statsCommand(args []string) error {
	fs := r.newFlagSet("stats")
	asJSON := fs.Bool("json", false, "Print the statistics as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	l, err := r.load()
	if err != nil {
		return err
	}
	st := l.Summarize()
	if *asJSON {
		return export.Encode(r.stdout, st, export.FormatJSON)
	}

	fmt.Fprintf(r.stdout, "Ledger: %s\n", r.cfg.LedgerFile)
	fmt.Fprintf(r.stdout, "Total: %d  Open: %d  Started: %d  Done: %d  Archived: %d\n",
		st.Total, st.Open, st.Started, st.Done, st.Archived)
	fmt.Fprintf(r.stdout, "Completion: %.1f%%\n", st.CompletionRate*100)
	if st.SubtasksTotal > 0 {
		fmt.Fprintf(r.stdout, "Subtasks: %d/%d done\n", st.SubtasksDone, st.SubtasksTotal)
	}
	sections := make([]string, 0, len(st.BySection))
	for name := range st.BySection {
		sections = append(sections, name)
	}
	sort.Slice(sections, func(i, j int) bool { return sectionRank(sections[i]) < sectionRank(sections[j]) })
	for _, name := range sections {
		fmt.Fprintf(r.stdout, "  %-9s %d\n", name+":", st.BySection[name])
	}
	return nil
}

func sectionRank(name string) int {
	for _, k := range []ledger.SectionKind{
		ledger.SectionCritical, ledger.SectionHigh, ledger.SectionMedium, ledger.SectionLow, ledger.SectionArchive,
	} {
		if k.String() == name {
			return int(k)
		}
	}
	return 99
}

// validateCommand checks a ledger file and prints every finding.
func (r *runner) validateCommand(args []string) error {
	fs := r.newFlagSet("validate")
	quiet := fs.Bool("q", false, "Only report failures")
	strict := fs.Bool("strict", false, "Treat warnings as failures")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return usagef("validate: unexpected arguments: %v", fs.Args()[1:])
	}
	path := r.cfg.LedgerFile
	if fs.NArg() == 1 {
		path = fs.Arg(0)
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.cfg.ProjectRoot, path)
		}
	}

	l, report, err := txn.Load(path)
	if err != nil {
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(r.stdout, "%s: invalid\n", path)
			for _, v := range verr.Violations {
				fmt.Fprintf(r.stdout, "  error: %s\n", v)
			}
			printWarnings(r.stdout, report)
		}
		return err
	}
	if !*quiet {
		fmt.Fprintf(r.stdout, "%s: valid (%d records)\n", path, len(l.Records()))
		printWarnings(r.stdout, report)
	}
	if *strict && len(report.Warnings) > 0 {
		return &txn.Error{Stage: txn.StageValidate, Path: path, Err: fmt.Errorf("%d warnings", len(report.Warnings))}
	}
	return nil
}

func printWarnings(w io.Writer, report *ledger.Report) {
	if report == nil {
		return
	}
	for _, v := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", v)
	}
}

// exportCommand writes the ledger as a structured document.
func (r *runner) exportCommand(args []string) error {
	fs := r.newFlagSet("export")
	format := fs.String("format", "json", "Output format (json, yaml)")
	archived := fs.Bool("archived", true, "Include archived records")
	stats := fs.Bool("stats", false, "Include summary statistics")
	check := fs.Bool("check", true, "Validate the document against the export schema")
	if err := parse(fs, args); err != nil {
		return err
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return usagef("export: %v", err)
	}
	l, err := r.load()
	if err != nil {
		return err
	}
	doc := export.FromLedger(l, export.Options{
		Path:   r.cfg.LedgerFile,
		Filter: ledger.Filter{Archived: *archived},
		Stats:  *stats,
	})
	if *check {
		if errs := export.Validate(doc); len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return fmt.Errorf("export does not match schema: %s", strings.Join(msgs, "; "))
		}
	}
	return export.Encode(r.stdout, doc, f)
}

func printRecordLine(w io.Writer, rec *ledger.Record, verbose bool) {
	icon := " "
	switch rec.Status() {
	case "started":
		icon = ">"
	case "done", "archived":
		icon = "x"
	}
	line := fmt.Sprintf("  [%s] #%d %s", icon, rec.ID, rec.Title)
	if who := rec.FieldValue("assignee"); who != "" {
		line += " @" + who
	}
	fmt.Fprintln(w, line)
	if !verbose {
		return
	}
	fmt.Fprintf(w, "      %s, created %s", rec.Status(), ledger.FormatTime(rec.CreatedAt))
	if rec.StartedAt != nil {
		fmt.Fprintf(w, ", started %s", ledger.FormatTime(*rec.StartedAt))
	}
	if rec.FinishedAt != nil {
		fmt.Fprintf(w, ", finished %s", ledger.FormatTime(*rec.FinishedAt))
	}
	fmt.Fprintln(w)
}

func printRecordDetail(w io.Writer, l *ledger.Ledger, rec *ledger.Record) {
	fmt.Fprintf(w, "#%d %s\n", rec.ID, rec.Title)
	fmt.Fprintf(w, "  Status:   %s\n", rec.Status())
	fmt.Fprintf(w, "  Priority: %s\n", rec.Priority)
	if s := l.SectionOf(rec.ID); s != nil {
		fmt.Fprintf(w, "  Section:  %s\n", s.Kind)
	}
	fmt.Fprintf(w, "  Created:  %s\n", ledger.FormatTime(rec.CreatedAt))
	if rec.StartedAt != nil {
		fmt.Fprintf(w, "  Started:  %s\n", ledger.FormatTime(*rec.StartedAt))
	}
	if rec.FinishedAt != nil {
		fmt.Fprintf(w, "  Finished: %s\n", ledger.FormatTime(*rec.FinishedAt))
	}
	if done, total := rec.SubtaskProgress(); total > 0 {
		fmt.Fprintf(w, "  Progress: %d/%d subtasks done\n", done, total)
	}
	for _, f := range rec.Fields {
		fmt.Fprintf(w, "  %s: %s\n", f.Key, f.Value)
		for _, item := range f.Items {
			fmt.Fprintf(w, "    %s\n", strings.TrimSpace(item))
		}
	}
	if len(rec.Prerequisites) > 0 {
		ids := make([]string, len(rec.Prerequisites))
		for i, id := range rec.Prerequisites {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		fmt.Fprintf(w, "  Prerequisites: %s\n", strings.Join(ids, ", "))
		if blockers := l.Blockers(rec); len(blockers) > 0 && !rec.Done {
			ids = ids[:0]
			for _, b := range blockers {
				ids = append(ids, fmt.Sprintf("#%d", b.ID))
			}
			fmt.Fprintf(w, "  Blocked by: %s\n", strings.Join(ids, ", "))
		}
	}
}
