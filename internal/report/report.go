package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/timer"
)

// ActiveLabel replaces the duration of an entry that has not ended.
const ActiveLabel = "Active"

// UnknownUser is shown when an entry or task references a missing profile.
const UnknownUser = "Unknown"

const timeLayout = "2006-01-02 15:04:05 MST"

// Line is one time entry in a task report.
type Line struct {
	EntryID         string     `json:"entry_id"`
	UserID          string     `json:"user_id"`
	UserEmail       string     `json:"user_email"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds *int64     `json:"duration_seconds"`
	Duration        string     `json:"duration"`
}

// Report aggregates the time spent on a task. Active entries are listed but
// do not count towards the total.
type Report struct {
	Task         models.Task `json:"task"`
	CreatorEmail string      `json:"creator_email"`
	Lines        []Line      `json:"lines"`
	TotalSeconds int64       `json:"total_seconds"`
	Total        string      `json:"total"`
}

// Build computes the report for task from entries, ignoring entries that
// belong to other tasks. Lines are ordered by start time, newest first.
func Build(task models.Task, entries []models.TimeEntry, profiles []models.Profile) Report {
	emails := make(map[string]string, len(profiles))
	for _, p := range profiles {
		emails[p.ID] = p.Email
	}
	emailOf := func(id string) string {
		if email, ok := emails[id]; ok && email != "" {
			return email
		}
		return UnknownUser
	}

	own := make([]models.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if e.TaskID == task.ID {
			own = append(own, e)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		return own[i].StartTime.After(own[j].StartTime)
	})

	r := Report{
		Task:         task,
		CreatorEmail: emailOf(task.CreatedBy),
		Lines:        make([]Line, 0, len(own)),
	}

	for _, e := range own {
		line := Line{
			EntryID:         e.ID,
			UserID:          e.UserID,
			UserEmail:       emailOf(e.UserID),
			StartTime:       e.StartTime,
			EndTime:         e.EndTime,
			DurationSeconds: e.DurationSeconds(),
			Duration:        ActiveLabel,
		}
		if line.DurationSeconds != nil {
			line.Duration = timer.Format(*line.DurationSeconds)
			r.TotalSeconds += *line.DurationSeconds
		}
		r.Lines = append(r.Lines, line)
	}

	r.Total = timer.Format(r.TotalSeconds)
	return r
}

// Render writes r as a plain-text table.
func Render(w io.Writer, r Report) error {
	fmt.Fprintf(w, "Task:        %s\n", r.Task.Title)
	if r.Task.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", r.Task.Description)
	}
	fmt.Fprintf(w, "Status:      %s\n", r.Task.Status)
	fmt.Fprintf(w, "Created by:  %s\n", r.CreatorEmail)
	fmt.Fprintf(w, "Created at:  %s\n", r.Task.CreatedAt.Format(timeLayout))
	if r.Task.ClosedAt != nil {
		fmt.Fprintf(w, "Closed at:   %s\n", r.Task.ClosedAt.Format(timeLayout))
	}
	fmt.Fprintln(w)

	if len(r.Lines) == 0 {
		fmt.Fprintln(w, "No time entries for this task")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "USER\tSTART\tEND\tDURATION")
		for _, line := range r.Lines {
			end := ActiveLabel
			if line.EndTime != nil {
				end = line.EndTime.Format(timeLayout)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", line.UserEmail, line.StartTime.Format(timeLayout), end, line.Duration)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\nTotal time: %s\n", r.Total)
	return err
}
