package sourcing

import "slices"

// AllLocales requests every locale the API serves.
const AllLocales = "all"

// ResolveLocales picks the locales to source. With nothing available the result is
// the single AllLocales sentinel. Otherwise configured locales are kept when the API
// serves them, which may leave none; when none are configured or the list contains
// AllLocales, every available locale is used.
func ResolveLocales(configured, available []string) []string {
	if len(available) == 0 {
		return []string{AllLocales}
	}
	if len(configured) == 0 || slices.Contains(configured, AllLocales) {
		return slices.Clone(available)
	}
	var out []string
	for _, l := range configured {
		if slices.Contains(available, l) && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}
