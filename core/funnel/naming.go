package funnel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/asaidimu/go-funnel/core/graph"
)

// namePipelines assigns one name per path. A single path falls back to
// the group name; several paths must each be named explicitly, with
// distinct names, and no name may refer to a path that does not exist.
func namePipelines(groupName string, given map[string]string, paths [][]string) ([]string, error) {
	keys := make(map[string]bool, len(paths))
	for _, p := range paths {
		keys[graph.PathKey(p)] = true
	}

	unknown := make([]string, 0)
	for key := range given {
		if !keys[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &NamingError{Path: unknown[0], Reason: "no such path in the graph"}
	}

	names := make([]string, len(paths))
	used := make(map[string]string, len(paths))
	for i, p := range paths {
		key := graph.PathKey(p)
		name, ok := given[key]
		name = strings.TrimSpace(name)
		switch {
		case ok && name == "":
			return nil, &NamingError{Path: key, Reason: "name is blank"}
		case !ok && len(paths) == 1:
			name = strings.TrimSpace(groupName)
			if name == "" {
				return nil, &NamingError{Path: key, Reason: "group has no name"}
			}
		case !ok:
			return nil, &NamingError{Path: key, Reason: fmt.Sprintf("group has %d paths and each needs a name", len(paths))}
		}
		if other, dup := used[name]; dup {
			return nil, &NamingError{Path: key, Reason: fmt.Sprintf("name %q is already used by %q", name, other)}
		}
		used[name] = key
		names[i] = name
	}
	return names, nil
}
