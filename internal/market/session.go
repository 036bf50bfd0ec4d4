package market

import (
	"fmt"
	"time"

	"tweet-sentiment-trader-go/internal/config"
)

// DateLayout is the layout of dates on the command line, in cache file names and in reports.
const DateLayout = "2006-01-02"

// Window is a closed time interval [From, To].
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Session describes the trading day of one exchange.
type Session struct {
	loc             *time.Location
	openHour        int
	openMinute      int
	closeHour       int
	closeMinute     int
	openingWindow   time.Duration
	closingWindow   time.Duration
	openCutoffHour  int
	closeCutoffHour int
}

// NewSession builds a Session from the market configuration.
func NewSession(cfg config.Market) (*Session, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	open, err := time.Parse("15:04", cfg.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("parse open time %q: %w", cfg.OpenTime, err)
	}
	closeAt, err := time.Parse("15:04", cfg.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("parse close time %q: %w", cfg.CloseTime, err)
	}
	if !closeAt.After(open) {
		return nil, fmt.Errorf("close time %s is not after open time %s", cfg.CloseTime, cfg.OpenTime)
	}

	return &Session{
		loc:             loc,
		openHour:        open.Hour(),
		openMinute:      open.Minute(),
		closeHour:       closeAt.Hour(),
		closeMinute:     closeAt.Minute(),
		openingWindow:   time.Duration(cfg.OpeningWindow) * time.Minute,
		closingWindow:   time.Duration(cfg.ClosingWindow) * time.Minute,
		openCutoffHour:  cfg.OpenCutoffHour,
		closeCutoffHour: cfg.CloseCutoffHour,
	}, nil
}

// Location returns the exchange timezone.
func (s *Session) Location() *time.Location { return s.loc }

// Day truncates t to midnight of its calendar day in the exchange timezone.
func (s *Session) Day(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

// ParseDate parses a YYYY-MM-DD date as midnight in the exchange timezone.
func (s *Session) ParseDate(value string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return d, nil
}

// Days returns every calendar day from start to end inclusive.
func (s *Session) Days(start, end time.Time) []time.Time {
	start, end = s.Day(start), s.Day(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Open returns the opening time on day.
func (s *Session) Open(day time.Time) time.Time {
	d := s.Day(day)
	return time.Date(d.Year(), d.Month(), d.Day(), s.openHour, s.openMinute, 0, 0, s.loc)
}

// Close returns the closing time on day.
func (s *Session) Close(day time.Time) time.Time {
	d := s.Day(day)
	return time.Date(d.Year(), d.Month(), d.Day(), s.closeHour, s.closeMinute, 0, 0, s.loc)
}

// OpeningWindow is open ± the configured opening window.
func (s *Session) OpeningWindow(day time.Time) Window {
	return s.OpeningWindowOf(day, s.openingWindow)
}

// ClosingWindow is close ± the configured closing window.
func (s *Session) ClosingWindow(day time.Time) Window {
	return s.ClosingWindowOf(day, s.closingWindow)
}

// OpeningWindowOf is open ± width.
func (s *Session) OpeningWindowOf(day time.Time, width time.Duration) Window {
	open := s.Open(day)
	return Window{From: open.Add(-width), To: open.Add(width)}
}

// ClosingWindowOf is close ± width.
func (s *Session) ClosingWindowOf(day time.Time, width time.Duration) Window {
	closeAt := s.Close(day)
	return Window{From: closeAt.Add(-width), To: closeAt.Add(width)}
}

// InMonitoredWindow reports whether t is near the open or near the close.
func (s *Session) InMonitoredWindow(t time.Time) bool {
	return s.OpeningWindow(t).Contains(t) || s.ClosingWindow(t).Contains(t)
}

// IsOpenSegment reports whether t's hour in the exchange timezone is before the morning cutoff.
func (s *Session) IsOpenSegment(t time.Time) bool {
	return t.In(s.loc).Hour() < s.openCutoffHour
}

// IsCloseSegment reports whether t's hour in the exchange timezone is after the afternoon cutoff.
func (s *Session) IsCloseSegment(t time.Time) bool {
	return t.In(s.loc).Hour() > s.closeCutoffHour
}
