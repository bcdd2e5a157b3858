package flow

import (
	"errors"
	"fmt"

	"github.com/mohitkumar/carepath/action"
)

var ErrNotFound = errors.New("not found")
var ErrInvalidAction = errors.New("invalid action")
var ErrStepRegression = errors.New("step can not regress")

type NotFoundError struct {
	Kind string
	Id   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidActionError is returned when an action is not among the actions
// available for the instance's current state. It usually means the instance
// was advanced by someone else since it was loaded.
type InvalidActionError struct {
	Action    action.Action
	Available []action.Action
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("action %s not available, available actions: %v", e.Action, e.Available)
}

func (e *InvalidActionError) Is(target error) bool {
	return target == ErrInvalidAction
}
