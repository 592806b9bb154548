package task

import (
	"fmt"
	"sort"
	"strings"
)

var registry = map[string]Action{
	"sleep":           ActionSleep,
	"generate-tests":  ActionGenerateTests,
	"generate-deploy": ActionGenerateDeploy,
	"exec":            ActionExec,
}

// Labels returns the known action labels in sorted order.
func Labels() []string {
	labels := make([]string, 0, len(registry))
	for label := range registry {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// ParseAction maps a label to its action. Unknown labels are not an error:
// the unit reports them when it runs.
func ParseAction(label string) Action {
	key := strings.ToLower(strings.TrimSpace(label))
	if action, ok := registry[key]; ok {
		return action
	}
	return ActionUnknown
}

// ParseActionList splits a comma separated list of labels.
func ParseActionList(raw string) ([]Action, error) {
	var actions []Action
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		actions = append(actions, ParseAction(part))
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("action list %q is empty", raw)
	}
	return actions, nil
}

// Helpers maps helper actions to the argv of the external command they run.
type Helpers map[Action][]string

// Bind fills spec.Command from the helper table for helper actions.
// Specs that already carry a command are returned unchanged.
func (h Helpers) Bind(spec TaskSpec) TaskSpec {
	if !spec.Action.IsHelper() || len(spec.Command) > 0 {
		return spec
	}
	if argv := h[spec.Action]; len(argv) > 0 {
		spec.Command = append([]string(nil), argv...)
	}
	return spec
}
