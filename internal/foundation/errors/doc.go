// Package errors provides the classified error primitives used across sitesnap.
//
// Every failure a generation run can produce is a ClassifiedError carrying a
// category that maps onto the run error taxonomy:
//   - CategoryConfig: missing/invalid configuration, unknown backend name, invalid page size
//   - CategoryEnumeration: content/settings lookup or asset crawl failures
//   - CategoryFetch: network failure while fetching a page
//   - CategoryFileSystem: failure writing into the backend working tree
//   - CategoryBackend: an external backend command (clone, pull, commit, push) failed
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryBackend, "git pull failed").
//		WithContext("command", "git pull --ff-only origin main").
//		WithCause(originalErr).
//		Build()
//
// Nothing in sitesnap retries automatically; RetryStrategy is informational and
// tells the operator whether re-running the pipeline is likely to help.
package errors
