package engine

import (
	"strings"
)

// resourceIncluded applies only/skip filters to a service id.
func resourceIncluded(name string, only, skip map[string]struct{}) bool {
	if len(only) > 0 {
		if _, ok := only[name]; !ok {
			return false
		}
	}
	if len(skip) > 0 {
		if _, ok := skip[name]; ok {
			return false
		}
	}
	return true
}

// ParseFilter builds a set from comma separated values, nil when empty.
func ParseFilter(values []string) map[string]struct{} {
	var set map[string]struct{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if set == nil {
				set = make(map[string]struct{})
			}
			set[part] = struct{}{}
		}
	}
	return set
}
