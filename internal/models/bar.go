package models

import "time"

// Bar is one OHLCV candle. Time is the start of the interval.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// WindowBars holds the bars around the market open and the market close of one day.
// Empty slices mean no data is available for that window.
type WindowBars struct {
	Opening []Bar
	Closing []Bar
}

// Empty reports whether neither window has data.
func (w WindowBars) Empty() bool {
	return len(w.Opening) == 0 && len(w.Closing) == 0
}
