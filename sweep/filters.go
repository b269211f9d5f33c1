package sweep

import (
	"fmt"
	"strings"
)

// Filter reports whether an instance should be excluded from review. Filters
// are supplied to the session as a plain slice; there is no process-wide
// registry to mutate.
type Filter func(FileInstance) bool

// ApplyFilters drops every instance at least one filter excludes and keeps
// the rest in their original order.
func ApplyFilters(instances []FileInstance, filters []Filter) []FileInstance {
	if len(filters) == 0 {
		return instances
	}
	kept := make([]FileInstance, 0, len(instances))
Next:
	for _, inst := range instances {
		for _, f := range filters {
			if f(inst) {
				continue Next
			}
		}
		kept = append(kept, inst)
	}
	return kept
}

// ExcludeCADFonts excludes CAD font and pattern files, which are duplicated
// across project directories on purpose.
func ExcludeCADFonts(inst FileInstance) bool {
	name := strings.ToLower(inst.Filename)
	for _, ext := range []string{".shx", ".lin", ".pat", ".pcx"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// ExcludeSystemFiles excludes OS-generated clutter.
func ExcludeSystemFiles(inst FileInstance) bool {
	switch strings.ToLower(inst.Filename) {
	case "thumbs.db", ".ds_store", "desktop.ini":
		return true
	}
	return false
}

// FiltersByName resolves config filter names to predicates.
func FiltersByName(names []string) ([]Filter, error) {
	var filters []Filter
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "cad_fonts":
			filters = append(filters, ExcludeCADFonts)
		case "system_files":
			filters = append(filters, ExcludeSystemFiles)
		case "":
		default:
			return nil, fmt.Errorf("unknown filter %q (known: cad_fonts, system_files)", name)
		}
	}
	return filters, nil
}
