package agent

// ErrorCode is a string type used for structured error reporting from tool
// execution and loop control. Using a custom type ensures only predefined
// constants can be used where an ErrorCode is expected.
type ErrorCode string

const (
	// -- Browser/DOM Errors --
	ErrCodeElementNotFound      ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeVerificationMismatch ErrorCode = "VERIFICATION_MISMATCH"
	ErrCodeNavigationFailure    ErrorCode = "NAVIGATION_FAILURE"
	ErrCodeStaleElement         ErrorCode = "STALE_ELEMENT_REFERENCE"
	ErrCodeTimeoutError         ErrorCode = "TIMEOUT_ERROR"

	// -- Loop Control Errors --
	ErrCodeAgentStuck     ErrorCode = "AGENT_STUCK"
	ErrCodeAgentTimeout   ErrorCode = "AGENT_TIMEOUT"
	ErrCodeRecursionLimit ErrorCode = "RECURSION_LIMIT_EXCEEDED"

	// -- Tool Dispatch Errors --
	ErrCodeToolInvocation    ErrorCode = "TOOL_INVOCATION_ERROR"
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION_TYPE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
)
