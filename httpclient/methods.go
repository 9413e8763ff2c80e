// httpclient/methods.go
package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnsupportedAction is returned by Execute for an action outside GET, POST, PUT, PATCH, DELETE and HEAD.
var ErrUnsupportedAction = errors.New("unsupported HTTP action")

// Action is the HTTP method of a FHIR interaction.
type Action string

const (
	ActionGet    Action = http.MethodGet
	ActionPost   Action = http.MethodPost
	ActionPut    Action = http.MethodPut
	ActionPatch  Action = http.MethodPatch
	ActionDelete Action = http.MethodDelete
	ActionHead   Action = http.MethodHead
)

// supportedActions maps each action the executor sends to whether its requests carry a payload.
var supportedActions = map[Action]bool{
	ActionGet:    false,
	ActionHead:   false,
	ActionDelete: false,
	ActionPost:   true,
	ActionPut:    true,
	ActionPatch:  true,
}

// ParseAction converts a method name such as "get" or "GET" into an Action.
func ParseAction(method string) (Action, error) {
	action := Action(strings.ToUpper(strings.TrimSpace(method)))
	if !action.IsSupported() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, method)
	}
	return action, nil
}

// IsSupported reports whether the executor can send the action.
func (a Action) IsSupported() bool {
	_, ok := supportedActions[a]
	return ok
}

// HasBody reports whether requests of this action usually carry a payload.
func (a Action) HasBody() bool {
	return supportedActions[a]
}
