package common

import "errors"

// Failure taxonomy shared by the extractors, repackers and the JS patch
// engine. Callers are expected to test with errors.Is; batch drivers turn
// these into OperationResults instead of aborting the whole run.
var (
	// ErrUnknownFormat: the detector could not classify the input file.
	ErrUnknownFormat = errors.New("unrecognized executable format")

	// ErrSectionNotFound: the embedded data section/segment is missing,
	// which usually means the binary was not produced by a compatible
	// toolchain in the first place.
	ErrSectionNotFound = errors.New("embedded data section not found")

	// ErrFormatMismatch: the detected format disagrees with the actual
	// byte layout of the file.
	ErrFormatMismatch = errors.New("container format mismatch")

	// ErrHeaderParse: the offsets header or a module record fails basic
	// sanity (implied sizes exceed the payload, missing terminator, ...).
	ErrHeaderParse = errors.New("embedded header failed sanity checks")

	// ErrPatternNotFound: a text locator's structural match failed,
	// likely an unsupported bundle version.
	ErrPatternNotFound = errors.New("code pattern not found")

	// ErrAlreadyPatched: the locator recognized a prior application.
	// Reported as success-as-no-op by the drivers.
	ErrAlreadyPatched = errors.New("target already patched")

	// ErrCapacityExceeded: the Mach-O section is too small for the new
	// content and truncation was not explicitly allowed.
	ErrCapacityExceeded = errors.New("section capacity exceeded")

	// ErrSizeMismatch: decoded structures do not reconstruct to the
	// expected byte count.
	ErrSizeMismatch = errors.New("payload size mismatch")
)
