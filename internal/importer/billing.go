package importer

import (
	"strings"

	"github.com/cleared-dev/invoicemap/internal/transform"
)

// Timing shifts a header's billing month relative to its invoice date.
type Timing string

const (
	TimingCurrent Timing = "current"
	TimingAdvance Timing = "advance"
	TimingArrears Timing = "arrears"
)

// ParseTiming reads a billing timing setting. Blank is current.
func ParseTiming(s string) (Timing, bool) {
	switch t := Timing(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TimingCurrent, true
	case TimingCurrent, TimingAdvance, TimingArrears:
		return t, true
	}
	return TimingCurrent, false
}

func (t Timing) months() int {
	switch t {
	case TimingAdvance:
		return 1
	case TimingArrears:
		return -1
	}
	return 0
}

// BillingMonth returns the first day of the invoice date's month shifted by
// timing, as YYYY-MM-DD. It reports false when the date is blank or cannot
// be parsed.
func BillingMonth(invoiceDate string, timing Timing) (string, bool) {
	if strings.TrimSpace(invoiceDate) == "" {
		return "", false
	}
	d, err := transform.ParseDate(invoiceDate, "")
	if err != nil {
		return "", false
	}
	first := d.AddDate(0, 0, 1-d.Day()).AddDate(0, timing.months(), 0)
	return first.Format(transform.ISODate), true
}
