/*
Package apperror defines the small taxonomy of error kinds this module
raises: Validation, Abort, Decryption, NotFound, Transport, and Internal.
VerificationFailure is deliberately not one of these — a signature failure
never aborts an operation, it downgrades an Author/Name field to a
types.Result error, so there is no corresponding error kind here.

Each kind is a struct implementing error and Unwrap, so callers use
errors.As to branch on kind and errors.Is/the standard library's
wrapping to inspect the cause.
*/
package apperror
