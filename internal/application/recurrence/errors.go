package recurrence

import "errors"

// ErrSelectionFailed is returned by Run when candidate invoices cannot be loaded
var ErrSelectionFailed = errors.New("recurrence: select due invoices")
