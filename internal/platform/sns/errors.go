package sns

import "errors"

var (
	// ErrInvalidClient means the provider could not be reached or refused the
	// caller during startup validation.
	ErrInvalidClient = errors.New("sns client could not be validated")
	// ErrCredentials marks an authentication or authorization rejection.
	ErrCredentials = errors.New("sns credentials rejected")
	// ErrNotFound marks a provider resource that does not exist.
	ErrNotFound = errors.New("sns resource not found")

	ErrPlatformApplicationNotFound   = errors.New("platform application not found")
	ErrPlatformApplicationInvalid    = errors.New("platform application has invalid parameters")
	ErrPlatformApplicationNotEnabled = errors.New("platform application is not enabled")
	ErrNoPlatformApplications        = errors.New("no platform application configured")

	ErrUnknownDeviceType = errors.New("unknown device type")
)

// InvalidParameterError carries the provider's free-text message, which
// the endpoint conflict parser reads.
type InvalidParameterError struct {
	Message string
}

func (e *InvalidParameterError) Error() string {
	return "sns invalid parameter: " + e.Message
}
