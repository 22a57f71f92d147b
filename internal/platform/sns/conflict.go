package sns

import (
	"errors"
	"regexp"
)

var endpointConflictPattern = regexp.MustCompile(`Endpoint (arn:aws:sns[^ ]+) already exists with the same Token, but different attributes`)

// conflictOutcome is the result of reading a create-endpoint failure.
// Exactly one of arn and err is set.
type conflictOutcome struct {
	arn string
	err error
}

func (o conflictOutcome) resolved() bool { return o.arn != "" }

// parseEndpointConflict recognises the provider's "same token, different
// attributes" rejection and extracts the existing endpoint ARN from it.
// Anything else is unrecognized and carries the original error.
func parseEndpointConflict(err error) conflictOutcome {
	var invalid *InvalidParameterError
	if !errors.As(err, &invalid) {
		return conflictOutcome{err: err}
	}
	m := endpointConflictPattern.FindStringSubmatch(invalid.Message)
	if m == nil {
		return conflictOutcome{err: err}
	}
	return conflictOutcome{arn: m[1]}
}
