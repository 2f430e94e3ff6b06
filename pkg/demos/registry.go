package demos

import (
	"fmt"
	"sort"
	"strings"
)

// All returns every demo in presentation order.
func All() []Demo {
	return []Demo{
		{Name: "databases", Description: "Database management", Run: RunDatabases},
		{Name: "collections", Description: "Collection management", Run: RunCollections},
		{Name: "documents", Description: "Document management", Run: RunDocuments},
		{Name: "queries", Description: "Queries", Run: RunQueries},
		{Name: "indexing", Description: "Index management", Run: RunIndexing},
		{Name: "bulk", Description: "Bulk upload", Run: RunBulkUpload},
		{Name: "scripts", Description: "Server-side scripts", Run: RunScripts},
	}
}

// Select returns the named demos in the given order; no names selects all.
func Select(names ...string) ([]Demo, error) {
	all := All()
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]Demo, len(all))
	for _, d := range all {
		byName[d.Name] = d
	}

	out := make([]Demo, 0, len(names))
	for _, n := range names {
		d, ok := byName[strings.ToLower(n)]
		if !ok {
			known := make([]string, 0, len(byName))
			for k := range byName {
				known = append(known, k)
			}
			sort.Strings(known)
			return nil, fmt.Errorf("unknown demo %q (known: %s)", n, strings.Join(known, ", "))
		}
		out = append(out, d)
	}
	return out, nil
}
