// SPDX-License-Identifier: MIT

// Package main implements chimedctl, a thin CLI for inspecting and
// editing chimed's schedules without going through the daemon. It opens
// the daemon's sqlite file directly and takes no lock on it, and it
// computes "upcoming" by calling the Time Calculator directly rather
// than querying a live Scheduler Engine, since no such engine exists in
// this process. The status command only probes the daemon's
// single-instance lock file, so it can run while chimed is up.
// chimedctl does not read or edit the settings file.
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mbowers-oss/chimed/internal/audiotime"
	"github.com/mbowers-oss/chimed/internal/lock"
	"github.com/mbowers-oss/chimed/internal/schedule"
	"github.com/mbowers-oss/chimed/internal/settings"
	"github.com/mbowers-oss/chimed/internal/store"
)

const (
	defaultDBPath       = "/var/lib/chimed/chimed.db"
	defaultSettingsPath = settings.DefaultSettingsPath
	defaultLockPath     = "/run/chimed/chimed.lock"
	exitSuccess         = 0
	exitError           = 1
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

// run is the main entry point, extracted for testability.
func run(args []string) error {
	if len(args) == 0 {
		return runHelp()
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "help", "--help", "-h":
		return runHelp()
	case "list":
		return runList(commandArgs)
	case "create":
		return runCreate(commandArgs)
	case "enable":
		return runSetEnabled(commandArgs, true)
	case "disable":
		return runSetEnabled(commandArgs, false)
	case "delete":
		return runDelete(commandArgs)
	case "history":
		return runHistory(commandArgs)
	case "upcoming":
		return runUpcoming(commandArgs)
	case "status":
		return runStatus(commandArgs)
	default:
		return fmt.Errorf("unknown command: %s (run 'chimedctl help' for usage)", command)
	}
}

func runHelp() error {
	fmt.Printf(`chimedctl - inspect and edit chimed's schedules

Usage:
  chimedctl <command> [flags]

Commands:
  list                       List all schedules
  create                     Create a schedule (interactive form when run with no flags)
  enable --id=ID             Re-enable a schedule
  disable --id=ID            Disable a schedule
  delete --id=ID             Delete a schedule
  history [--limit=N]        Show recent playback history
  upcoming [--count=N]       Show the next computed fire time per enabled schedule
  status                     Report whether the daemon appears to be running

Global flags:
  --db=PATH         sqlite database path (default %s)
`, defaultDBPath)
	return nil
}

// flagSet is a minimal --key=value / --key value parser matching the
// rest of this tool's subcommands; flag.FlagSet is avoided so unknown
// flags (e.g. global --db on a subcommand) don't abort parsing.
type flagSet struct {
	values map[string]string
}

func parseFlags(args []string) *flagSet {
	fs := &flagSet{values: map[string]string{}}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		key := strings.TrimPrefix(arg, "--")
		if eq := strings.IndexByte(key, '='); eq >= 0 {
			fs.values[key[:eq]] = key[eq+1:]
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			fs.values[key] = args[i+1]
			i++
			continue
		}
		fs.values[key] = "true"
	}
	return fs
}

func (f *flagSet) get(key, def string) string {
	if v, ok := f.values[key]; ok {
		return v
	}
	return def
}

func (f *flagSet) getInt(key string, def int) int {
	v, ok := f.values[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func openStore(f *flagSet) (*store.Store, error) {
	return store.Open(f.get("db", defaultDBPath))
}

func runList(args []string) error {
	f := parseFlags(args)
	st, err := openStore(f)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	scheds, err := st.Schedules.GetAll()
	if err != nil {
		return err
	}

	if len(scheds) == 0 {
		fmt.Println("No schedules configured")
		return nil
	}

	for _, s := range scheds {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-20s %s  %-8s  vol=%-3d  %s\n", s.ID, s.Name, s.ScheduledTime, s.RepeatType.Kind, s.Volume, state)
	}
	return nil
}

func runCreate(args []string) error {
	f := parseFlags(args)
	st, err := openStore(f)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	repeatType, err := parseRepeat(f.get("repeat", "daily"))
	if err != nil {
		return err
	}

	input := schedule.CreateInput{
		Name:          f.get("name", ""),
		AudioFilePath: f.get("audio", ""),
		ScheduledTime: f.get("time", ""),
		Enabled:       f.get("enabled", "true") == "true",
		RepeatType:    repeatType,
		Volume:        f.getInt("volume", 70),
	}

	if input.Name == "" && input.AudioFilePath == "" && input.ScheduledTime == "" {
		input, err = promptCreateInput(schedule.CreateInput{Volume: f.getInt("volume", 70)})
		if err != nil {
			return err
		}
	} else if input.Name == "" || input.AudioFilePath == "" || input.ScheduledTime == "" {
		return fmt.Errorf("create requires --name, --audio, and --time (or none of them, for the interactive form)")
	}

	created, err := st.Schedules.Create(input)
	if err != nil {
		return err
	}

	fmt.Printf("Created schedule %s\n", created.ID)
	return nil
}

// parseRepeat parses "once", "daily", "weekdays", "weekends",
// "weekly:mon,wed,fri", or "custom:15".
func parseRepeat(value string) (schedule.RepeatType, error) {
	kind, rest, _ := strings.Cut(value, ":")
	switch strings.ToLower(kind) {
	case "once":
		return schedule.Once(), nil
	case "daily":
		return schedule.Daily(), nil
	case "weekdays":
		return schedule.Weekdays(), nil
	case "weekends":
		return schedule.Weekends(), nil
	case "weekly":
		days, err := parseWeekdays(rest)
		if err != nil {
			return schedule.RepeatType{}, err
		}
		return schedule.Weekly(days...), nil
	case "custom":
		minutes, err := strconv.Atoi(rest)
		if err != nil {
			return schedule.RepeatType{}, fmt.Errorf("custom repeat requires an interval in minutes: %w", err)
		}
		return schedule.Custom(uint32(minutes)), nil
	default:
		return schedule.RepeatType{}, fmt.Errorf("unknown repeat kind %q", kind)
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekdays(csv string) ([]time.Weekday, error) {
	if csv == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, name := range strings.Split(csv, ",") {
		trimmed := strings.ToLower(strings.TrimSpace(name))
		if len(trimmed) < 3 {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		d, ok := weekdayNames[trimmed[:3]]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}

func runSetEnabled(args []string, enabled bool) error {
	f := parseFlags(args)
	id := f.get("id", "")
	if id == "" {
		return fmt.Errorf("%s requires --id", map[bool]string{true: "enable", false: "disable"}[enabled])
	}

	st, err := openStore(f)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if _, err := st.Schedules.Update(id, schedule.UpdateInput{Enabled: &enabled}); err != nil {
		return err
	}
	fmt.Printf("Schedule %s updated\n", id)
	return nil
}

func runDelete(args []string) error {
	f := parseFlags(args)
	id := f.get("id", "")
	if id == "" {
		return fmt.Errorf("delete requires --id")
	}

	st, err := openStore(f)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Schedules.Delete(id); err != nil {
		return err
	}
	fmt.Printf("Schedule %s deleted\n", id)
	return nil
}

func runHistory(args []string) error {
	f := parseFlags(args)
	st, err := openStore(f)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	limit := f.getInt("limit", 20)
	entries, err := st.History.ListRecent(limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No playback history")
		return nil
	}

	for _, h := range entries {
		line := fmt.Sprintf("%s  schedule=%s  %s", h.PlayedAt.Format(time.RFC3339), h.ScheduleID, h.Status)
		if h.ErrorMessage != nil {
			line += "  error=" + *h.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}

// runUpcoming computes, for every enabled schedule, the next fire time
// the Time Calculator would produce right now. It is an approximation
// of the daemon's live upcoming-executions view: chimedctl has no
// access to a running task's in-memory last-run value, so it falls
// back to the schedule's persisted last_run_at.
func runUpcoming(args []string) error {
	f := parseFlags(args)
	st, err := openStore(f)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	scheds, err := st.Schedules.GetEnabled()
	if err != nil {
		return err
	}

	now := time.Now()
	type entry struct {
		name string
		next time.Time
	}
	var entries []entry
	for _, s := range scheds {
		next, err := audiotime.NextExecutionTime(s, now, s.LastRunAt)
		if err != nil || next == nil {
			continue
		}
		entries = append(entries, entry{name: s.Name, next: *next})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].next.Before(entries[j].next) })

	count := f.getInt("count", 10)
	if count >= 0 && len(entries) > count {
		entries = entries[:count]
	}

	if len(entries) == 0 {
		fmt.Println("No upcoming executions")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.next.Format(time.RFC3339), e.name)
	}
	return nil
}

// runStatus reports whether the daemon appears to hold the
// single-instance lock, without disturbing it: acquiring with a zero
// timeout only ever succeeds when no other process holds it, in which
// case the lock is immediately released again.
func runStatus(args []string) error {
	f := parseFlags(args)
	lockPath := f.get("lock", defaultLockPath)

	fl, err := lock.New(lockPath)
	if err != nil {
		return err
	}

	if err := fl.Acquire(0); err != nil {
		if pid, ok := fl.HolderPID(); ok {
			fmt.Printf("chimed: running (pid %d)\n", pid)
		} else {
			fmt.Println("chimed: running")
		}
		return nil
	}
	_ = fl.Release()
	fmt.Println("chimed: not running")
	return nil
}
