package query

// Query status values reported by the status endpoint.
const (
	StatusRunning   = "RUNNING"
	StatusEnded     = "ENDED_SUCCESSFULLY"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELED_EXECUTION"
)

// ErrorDetail is one entry of an engine error response.
type ErrorDetail struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Resolution  string `json:"resolution"`
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	QueryLabel string        `json:"query_label,omitempty"`
	Message    string        `json:"message,omitempty"`
	Errors     []ErrorDetail `json:"errors,omitempty"`
}

// AsyncResponse is returned when a statement is submitted with async=1.
type AsyncResponse struct {
	QueryLabel string `json:"query_label"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// StatusResponse describes the state of one labelled query.
type StatusResponse struct {
	QueryLabel string `json:"query_label"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	RowsRead   int64  `json:"rows_read,omitempty"`
}

// LoginRequest authenticates a user with a password.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse carries the access token issued by the login and token
// endpoints.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	// SessionParameters are defaults assigned to the session by the server.
	SessionParameters map[string]string `json:"session_parameters,omitempty"`
}
