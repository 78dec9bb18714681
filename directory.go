package brunt

import "time"

// directory is an immutable snapshot of the account's things keyed by URI.
// Refreshes build a new directory; an existing one is never modified.
type directory struct {
	byURI     map[string]Thing
	order     []string
	fetchedAt time.Time
}

func newDirectory(things []Thing, fetchedAt time.Time) *directory {
	d := &directory{
		byURI:     make(map[string]Thing, len(things)),
		order:     make([]string, 0, len(things)),
		fetchedAt: fetchedAt,
	}
	for _, t := range things {
		if _, dup := d.byURI[t.URI]; !dup {
			d.order = append(d.order, t.URI)
		}
		d.byURI[t.URI] = t
	}
	return d
}

func (d *directory) len() int {
	if d == nil {
		return 0
	}
	return len(d.order)
}

// lookupName returns the URI of the first thing, in listing order, whose
// name matches. Names are not guaranteed unique by the vendor.
func (d *directory) lookupName(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, uri := range d.order {
		if d.byURI[uri].Matches(name) {
			return uri, true
		}
	}
	return "", false
}

func (d *directory) get(uri string) (Thing, bool) {
	if d == nil {
		return Thing{}, false
	}
	t, ok := d.byURI[uri]
	return t, ok
}

// list returns the things in listing order.
func (d *directory) list() []Thing {
	if d == nil {
		return []Thing{}
	}
	out := make([]Thing, 0, len(d.order))
	for _, uri := range d.order {
		out = append(out, d.byURI[uri])
	}
	return out
}

// with returns a copy of d with t replacing the entry for t.URI. Listing
// order is kept; a URI not yet listed is appended.
func (d *directory) with(t Thing) *directory {
	if d == nil {
		return newDirectory([]Thing{t}, time.Time{})
	}
	out := &directory{
		byURI:     make(map[string]Thing, len(d.byURI)+1),
		order:     d.order,
		fetchedAt: d.fetchedAt,
	}
	for uri, existing := range d.byURI {
		out.byURI[uri] = existing
	}
	if _, ok := d.byURI[t.URI]; !ok {
		out.order = append(append([]string(nil), d.order...), t.URI)
	}
	out.byURI[t.URI] = t
	return out
}
