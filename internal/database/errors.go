package database

import (
	"fmt"

	"github.com/koustreak/tabula/internal/errs"
)

// --- Constructor helpers used by the view model, codecs and copy streams ---

func errOutOfRange(format string, args ...any) *errs.Error {
	return errs.Newf(errs.ErrKindOutOfRange, format, args...)
}

func errConversion(msg string, cause error) *errs.Error {
	return errs.Wrap(errs.ErrKindConversion, msg, cause)
}

func errConversionf(format string, args ...any) *errs.Error {
	return errs.Newf(errs.ErrKindConversion, format, args...)
}

func errConfiguration(format string, args ...any) *errs.Error {
	return errs.Newf(errs.ErrKindConfiguration, format, args...)
}

func errMisuse(format string, args ...any) *errs.Error {
	return errs.Newf(errs.ErrKindProtocolMisuse, format, args...)
}

func errInvalidInput(format string, args ...any) *errs.Error {
	return errs.Newf(errs.ErrKindInvalidInput, format, args...)
}

// columnRange renders the valid column interval for error messages.
func columnRange(columns int) string {
	if columns == 0 {
		return "no columns"
	}
	return fmt.Sprintf("0-%d", columns-1)
}

// preview shortens a value echoed in an error message.
func preview(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
