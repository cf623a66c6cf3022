// Package managers provides the package managers install tasks run with:
// Homebrew, an embedded shell interpreter for scripts, and plain command
// execution.
package managers

import (
	"fmt"
	"strconv"

	"github.com/blackwell-systems/c9install/internal/installer"
)

// stringOption returns task.Options[key] as a string. Numbers are
// formatted; missing keys yield "".
func stringOption(task *installer.Task, key string) (string, error) {
	v, ok := task.Options[key]
	if !ok || v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("option %q: expected string, got %T", key, v)
	}
}

// stringsOption returns task.Options[key] as a list. A single string is a
// one-element list.
func stringsOption(task *installer.Task, key string) ([]string, error) {
	v, ok := task.Options[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("option %q[%d]: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("option %q: expected list of strings, got %T", key, v)
	}
}

func boolOption(task *installer.Task, key string) (bool, error) {
	v, ok := task.Options[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %q: expected bool, got %T", key, v)
	}
	return b, nil
}

// envOption returns task.Options[key] as KEY=value pairs.
func envOption(task *installer.Task, key string) ([]string, error) {
	v, ok := task.Options[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("option %q: expected mapping, got %T", key, v)
	}
	env := make([]string, 0, len(m))
	for k, val := range m {
		env = append(env, fmt.Sprintf("%s=%v", k, val))
	}
	return env, nil
}
