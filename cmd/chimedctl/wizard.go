// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/mbowers-oss/chimed/internal/schedule"
)

// promptCreateInput walks the operator through an interactive schedule
// form. `chimedctl create` reaches it only when none of the required
// flags were given; scripted callers pass --name/--audio/--time and
// never see a prompt.
func promptCreateInput(defaults schedule.CreateInput) (schedule.CreateInput, error) {
	input := defaults
	repeatKind := "daily"
	volumeValue := strconv.Itoa(input.Volume)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Schedule name").
				Validate(notEmpty("name")).
				Value(&input.Name),
			huh.NewInput().
				Title("Audio file path").
				Validate(notEmpty("audio file path")).
				Value(&input.AudioFilePath),
			huh.NewInput().
				Title("Time (HH:MM, 24-hour)").
				Validate(validClockTime).
				Value(&input.ScheduledTime),
			huh.NewSelect[string]().
				Title("Repeat").
				Options(
					huh.NewOption("Daily", "daily"),
					huh.NewOption("Once", "once"),
					huh.NewOption("Weekdays (Mon-Fri)", "weekdays"),
					huh.NewOption("Weekends", "weekends"),
					huh.NewOption("Weekly (choose days)", "weekly"),
					huh.NewOption("Every N minutes", "custom"),
				).
				Value(&repeatKind),
			huh.NewInput().
				Title("Volume (0-100)").
				Validate(validVolume).
				Value(&volumeValue),
		),
	)
	if err := form.Run(); err != nil {
		return schedule.CreateInput{}, fmt.Errorf("schedule form aborted: %w", err)
	}

	input.ScheduledTime = strings.TrimSpace(input.ScheduledTime)
	input.Volume, _ = strconv.Atoi(strings.TrimSpace(volumeValue))
	input.Enabled = true

	switch repeatKind {
	case "weekly":
		days, err := promptWeeklyDays()
		if err != nil {
			return schedule.CreateInput{}, err
		}
		input.RepeatType = schedule.Weekly(days...)
	case "custom":
		minutes, err := promptIntervalMinutes()
		if err != nil {
			return schedule.CreateInput{}, err
		}
		input.RepeatType = schedule.Custom(minutes)
	default:
		rt, err := parseRepeat(repeatKind)
		if err != nil {
			return schedule.CreateInput{}, err
		}
		input.RepeatType = rt
	}

	return input, nil
}

func promptWeeklyDays() ([]time.Weekday, error) {
	var days []time.Weekday
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[time.Weekday]().
				Title("Days of week").
				Options(
					huh.NewOption("Monday", time.Monday),
					huh.NewOption("Tuesday", time.Tuesday),
					huh.NewOption("Wednesday", time.Wednesday),
					huh.NewOption("Thursday", time.Thursday),
					huh.NewOption("Friday", time.Friday),
					huh.NewOption("Saturday", time.Saturday),
					huh.NewOption("Sunday", time.Sunday),
				).
				Validate(func(selected []time.Weekday) error {
					if len(selected) == 0 {
						return fmt.Errorf("pick at least one day")
					}
					return nil
				}).
				Value(&days),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("weekday form aborted: %w", err)
	}
	return days, nil
}

func promptIntervalMinutes() (uint32, error) {
	value := "30"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Interval in minutes").
				Validate(validInterval).
				Value(&value),
		),
	)
	if err := form.Run(); err != nil {
		return 0, fmt.Errorf("interval form aborted: %w", err)
	}
	minutes, _ := strconv.Atoi(strings.TrimSpace(value))
	return uint32(minutes), nil
}

func notEmpty(field string) func(string) error {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func validClockTime(value string) error {
	if _, err := schedule.ParseClockTime(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("enter a 24-hour HH:MM time")
	}
	return nil
}

func validVolume(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 || n > 100 {
		return fmt.Errorf("enter a number between 0 and 100")
	}
	return nil
}

func validInterval(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return fmt.Errorf("enter a whole number of minutes, at least 1")
	}
	return nil
}
