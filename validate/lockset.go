package validate

import "sort"

// LockSet holds confirmed fields that can no longer be overwritten silently.
type LockSet map[string]bool

func (l LockSet) Has(field string) bool {
	return l[field]
}

func (l *LockSet) Add(field string) {
	if *l == nil {
		*l = LockSet{}
	}
	(*l)[field] = true
}

func (l LockSet) Remove(field string) {
	delete(l, field)
}

// List returns the locked fields in sorted order.
func (l LockSet) List() []string {
	out := make([]string, 0, len(l))
	for f, ok := range l {
		if ok {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
