// Package errs provides the typed errors shared by the fulfillment service.
//
// The package includes several error types for common error scenarios:
//   - ValueIsRequiredError: a required value is missing
//   - ValueIsInvalidError: a value failed validation
//   - ValueIsOutOfRangeError: a value lies outside its bounds
//   - ObjectNotFoundError: a lookup matched nothing
//   - ObjectAlreadyExistsError: an insert collided with an existing key
//   - ConcurrentUpdateError: a conditional write lost against another writer
//
// Each error type follows the same pattern:
//   - A sentinel error variable (e.g., ErrValueIsRequired)
//   - A struct type with fields for error details
//   - Constructor functions with and without cause
//   - Error() method for formatting the error message
//   - Unwrap() method returning the sentinel, so errors.Is classifies it
package errs
