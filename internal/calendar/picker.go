// Package calendar renders a stateless month picker as an inline keyboard.
// Everything the picker needs to navigate travels in the callback payload.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/taskbot/internal/gateway"
)

const Prefix = "simple_calendar"

type Action string

const (
	ActionIgnore    Action = "ignore"
	ActionPrevMonth Action = "prev-month"
	ActionNextMonth Action = "next-month"
	ActionDay       Action = "day"
)

var ErrInvalidPayload = errors.New("invalid calendar payload")

// Payload is the data carried by every picker button.
type Payload struct {
	Action Action
	Year   int
	Month  time.Month
	Day    int
}

func (p Payload) Encode() string {
	return fmt.Sprintf("%s:%s:%d:%d:%d", Prefix, p.Action, p.Year, int(p.Month), p.Day)
}

// IsPayload reports whether data belongs to the picker.
func IsPayload(data string) bool {
	return strings.HasPrefix(data, Prefix+":")
}

func Decode(data string) (Payload, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 5 || parts[0] != Prefix {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, data)
	}
	nums := make([]int, 3)
	for i, raw := range parts[2:] {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, data)
		}
		nums[i] = n
	}
	p := Payload{Action: Action(parts[1]), Year: nums[0], Month: time.Month(nums[1]), Day: nums[2]}
	switch p.Action {
	case ActionIgnore, ActionPrevMonth, ActionNextMonth, ActionDay:
	default:
		return Payload{}, fmt.Errorf("%w: unknown action %q", ErrInvalidPayload, p.Action)
	}
	if p.Month < time.January || p.Month > time.December || p.Year < 1 {
		return Payload{}, fmt.Errorf("%w: month %d/%d out of range", ErrInvalidPayload, p.Year, p.Month)
	}
	if p.Action == ActionDay && (p.Day < 1 || p.Day > daysIn(p.Year, p.Month)) {
		return Payload{}, fmt.Errorf("%w: day %d out of range", ErrInvalidPayload, p.Day)
	}
	return p, nil
}

var weekdays = [7]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// Render lays out one month: a title row, a navigation row, the weekday
// header and Monday-first week rows. Blank and header cells are inert.
func Render(year int, month time.Month) gateway.InlineKeyboard {
	inert := Payload{Action: ActionIgnore, Year: year, Month: month}.Encode()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	kb := gateway.InlineKeyboard{
		{{Text: first.Format("January 2006"), Data: inert}},
		{
			{Text: "<<", Data: Payload{Action: ActionPrevMonth, Year: year, Month: month}.Encode()},
			{Text: ">>", Data: Payload{Action: ActionNextMonth, Year: year, Month: month}.Encode()},
		},
	}

	header := make([]gateway.InlineButton, 0, 7)
	for _, d := range weekdays {
		header = append(header, gateway.InlineButton{Text: d, Data: inert})
	}
	kb = append(kb, header)

	// Monday = 0.
	offset := (int(first.Weekday()) + 6) % 7
	days := daysIn(year, month)
	week := make([]gateway.InlineButton, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, gateway.InlineButton{Text: " ", Data: inert})
	}
	for day := 1; day <= days; day++ {
		week = append(week, gateway.InlineButton{
			Text: strconv.Itoa(day),
			Data: Payload{Action: ActionDay, Year: year, Month: month, Day: day}.Encode(),
		})
		if len(week) == 7 {
			kb = append(kb, week)
			week = make([]gateway.InlineButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, gateway.InlineButton{Text: " ", Data: inert})
		}
		kb = append(kb, week)
	}
	return kb
}

// RenderFor renders the month containing t.
func RenderFor(t time.Time) gateway.InlineKeyboard {
	return Render(t.Year(), t.Month())
}

type Outcome int

const (
	Ignored Outcome = iota
	Navigated
	Selected
)

func (o Outcome) String() string {
	switch o {
	case Navigated:
		return "navigated"
	case Selected:
		return "selected"
	default:
		return "ignored"
	}
}

// Result is the interpretation of a picker press. Year and Month are set for
// Navigated, Date (midnight in loc) for Selected.
type Result struct {
	Outcome Outcome
	Year    int
	Month   time.Month
	Date    time.Time
}

func Interpret(p Payload, loc *time.Location) Result {
	if loc == nil {
		loc = time.UTC
	}
	switch p.Action {
	case ActionPrevMonth:
		prev := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		return Result{Outcome: Navigated, Year: prev.Year(), Month: prev.Month()}
	case ActionNextMonth:
		// Day 28 exists in every month and 28+4 always lands in the next one.
		next := time.Date(p.Year, p.Month, 28, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 4)
		return Result{Outcome: Navigated, Year: next.Year(), Month: next.Month()}
	case ActionDay:
		return Result{Outcome: Selected, Date: time.Date(p.Year, p.Month, p.Day, 0, 0, 0, 0, loc)}
	default:
		return Result{Outcome: Ignored}
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
