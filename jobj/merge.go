package jobj

// Merge implements the consuming merge of spec.md §4.2: every child of
// source is detached and attached to target, deleting any same-keyed
// child of target first. source itself is always deleted (consumed),
// whether or not it had children, to avoid leaking it. If source is
// null, Merge is a no-op. If target is null, source is still consumed
// and nil is returned — there is nothing to merge into.
func Merge(target, source *J) *J {
	if IsNull(source) {
		return target
	}
	if IsNull(target) {
		Delete(source)
		return target
	}
	for c := source.FirstChild; c != nil; {
		next := c.Next
		Detach(c)
		if c.Key != "" {
			DeleteItemByKey(target, c.Key)
		}
		AddItem(target, c)
		c = next
	}
	Delete(source)
	return target
}
