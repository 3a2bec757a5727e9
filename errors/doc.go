// Package errors provides the error taxonomy shared by the MMIF packages.
//
// # Overview
//
// Errors fall into three classes: Invalid (the caller's input was wrong and
// retrying the same call cannot succeed), Fatal (the payload or environment
// cannot be processed at all) and Transient (a remote collaborator failed
// and the call may be retried).
//
//   - Invalid: duplicate identifiers, lookups that miss, malformed identifiers,
//     reserved property names, schema findings promoted to errors
//   - Fatal: malformed JSON, missing required attributes, no resolver for a
//     document location scheme
//   - Transient: failed remote document downloads
//
// The classification works with the standard library helpers, so errors.Is()
// and errors.As() see through every wrapper:
//
//	_, err := root.GetViewByID("v_9")
//	if errors.Is(err, errors.ErrNotFound) {
//	    // create it instead
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For input errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function adds context without choosing a class; the
// class is then derived from the wrapped sentinel.
package errors
