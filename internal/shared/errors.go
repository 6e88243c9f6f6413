package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Credential errors
	ErrMissingCredential = fmt.Errorf("no stored credential")
	ErrCredential        = fmt.Errorf("credential unusable")
	ErrDecryptionFailed  = fmt.Errorf("decryption failed")
	ErrRefreshFailed     = fmt.Errorf("token refresh failed")

	// API and service errors
	ErrRemoteAPI        = fmt.Errorf("remote API request failed")
	ErrRateLimited      = fmt.Errorf("rate limited by remote API")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrTargetNotFound   = fmt.Errorf("target playlist not found")
	ErrSourceNotFound   = fmt.Errorf("source playlist not found")

	// Schedule store errors
	ErrValidation    = fmt.Errorf("validation failed")
	ErrLimitExceeded = fmt.Errorf("schedule limit reached")
	ErrNotFound      = fmt.Errorf("record not found")
	ErrPersistence   = fmt.Errorf("persistence failure")

	// Execution errors
	ErrInvalidAlgorithm = fmt.Errorf("unknown reorder algorithm")
	ErrJobFailed        = fmt.Errorf("job execution failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
