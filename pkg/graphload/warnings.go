package graphload

// WarningDeduper suppresses repeated warnings for the same condition within
// one load. It is scoped to a single load invocation rather than held
// globally, so reusing the loader in a long-running process cannot leak
// suppression state between loads.
type WarningDeduper struct {
	seen map[string]struct{}
}

func NewWarningDeduper() *WarningDeduper {
	return &WarningDeduper{seen: map[string]struct{}{}}
}

// Once reports whether key is new, recording it as seen.
func (w *WarningDeduper) Once(key string) bool {
	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	return true
}
