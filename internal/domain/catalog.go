package domain

import (
	"sort"
	"time"
)

// ServiceCatalog maps service names to their fixed durations. The shop's
// offering is static configuration, not data.
var ServiceCatalog = map[string]time.Duration{
	"shape_up":      15 * time.Minute,
	"beard_trim":    15 * time.Minute,
	"haircut":       30 * time.Minute,
	"fade":          30 * time.Minute,
	"scissors_cut":  30 * time.Minute,
	"cut_and_beard": 45 * time.Minute,
}

func ServiceDuration(name string) (time.Duration, error) {
	d, ok := ServiceCatalog[name]
	if !ok {
		return 0, ErrUnknownService
	}
	return d, nil
}

func ServiceNames() []string {
	names := make([]string, 0, len(ServiceCatalog))
	for name := range ServiceCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
