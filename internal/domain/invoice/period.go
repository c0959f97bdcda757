package invoice

import "time"

// Decision is the per-invoice eligibility verdict for one run
type Decision string

const (
	DecisionDue              Decision = "due"
	DecisionNotYetDue        Decision = "not_yet_due"
	DecisionAlreadyGenerated Decision = "already_generated"
)

// DateOf truncates t to midnight UTC of its calendar date
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextIssueDate returns the billing period boundary for today.
// Monthly invoices anchor to the first of today's month, yearly invoices to
// January 1 of today's year, including the very first firing within the start year.
func NextIssueDate(freq Frequency, start, lastGenerated *time.Time, today time.Time) (time.Time, error) {
	today = DateOf(today)
	switch freq {
	case FrequencyMonthly:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case FrequencyYearly:
		return time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, ErrUnknownFrequency
	}
}

// Advance computes the next issue date and decides whether the invoice fires today.
// An invoice fires at most once per period: a boundary at or before the last
// generation date has already been applied.
func Advance(freq Frequency, start, lastGenerated *time.Time, today time.Time) (time.Time, Decision, error) {
	next, err := NextIssueDate(freq, start, lastGenerated, today)
	if err != nil {
		return time.Time{}, "", err
	}

	if next.After(DateOf(today)) {
		return next, DecisionNotYetDue, nil
	}
	if start != nil && DateOf(*start).After(DateOf(today)) {
		return next, DecisionNotYetDue, nil
	}
	if lastGenerated != nil && !next.After(DateOf(*lastGenerated)) {
		return next, DecisionAlreadyGenerated, nil
	}
	return next, DecisionDue, nil
}

// AdvanceInvoice applies Advance to the recurrence fields of inv
func AdvanceInvoice(inv *Invoice, today time.Time) (time.Time, Decision, error) {
	return Advance(inv.Frequency, inv.RecurrenceStartDate, inv.LastGeneratedOn, today)
}
