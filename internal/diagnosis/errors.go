package diagnosis

import "errors"

// Sentinel errors for the diagnosis engine. Callers match with errors.Is.
var (
	// ErrUnauthorized means the session's plant does not belong to the caller.
	ErrUnauthorized = errors.New("unauthorized access to diagnosis")

	// ErrInvalidState means an update was attempted on a session that is not
	// awaiting user input.
	ErrInvalidState = errors.New("session is not awaiting user input")

	// ErrParseFailure means no JSON payload could be extracted from the AI
	// response text.
	ErrParseFailure = errors.New("could not parse AI response as JSON")

	// ErrInvalidAction means the AI response named an unrecognized action.
	ErrInvalidAction = errors.New("invalid action")

	// ErrMissingPayload means the AI response had no payload field.
	ErrMissingPayload = errors.New("missing payload")

	// ErrInvalidPayload means the payload is malformed for its action.
	ErrInvalidPayload = errors.New("invalid payload")
)
