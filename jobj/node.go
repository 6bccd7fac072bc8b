// Package jobj implements the in-memory JSON node model used to build
// requests and read responses (spec.md §3, §4.2): a tree of typed nodes
// with object/array/string/number/bool/null variants, parse/print,
// query helpers, a consuming Merge, and the printf-style builder DSL.
//
// Grounded on the nil-safe query-helper style of the original note-c
// cJSON wrapper (n_cjson_helpers.c: JIsPresent, JGetString, JGetDouble,
// JGetInt, JGetBool, JIsNullString, JIsExactString, JContainsString) —
// every query helper here tolerates a nil receiver or a missing field
// and returns the same zero value the C helpers do, rather than
// panicking or returning an error.
package jobj

// Kind is the JSON node's tagged variant (spec.md §3).
type Kind int

// Node kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindRawString // unparsed escape form, printed verbatim
	KindArray
	KindObject
)

// String returns a human-readable name for k, used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindRawString:
		return "raw-string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// J is a single JSON tree node (spec.md §3). Children of an object or
// array form a doubly-linked sibling list reachable from FirstChild;
// Parent is a non-owning back-link maintained automatically by
// Add/Detach. A node belongs to at most one parent at any time.
type J struct {
	Kind Kind
	Key  string // member name when held in an object; empty in an array

	Str string  // KindString / KindRawString value
	Num float64 // floating view of a number
	Int int64   // integer view of a number, saturated if out of range
	Bit bool    // KindBool value

	Parent     *J
	FirstChild *J
	LastChild  *J
	Next, Prev *J
}

// NewNull returns a new null node.
func NewNull() *J { return &J{Kind: KindNull} }

// NewBool returns a new bool node.
func NewBool(v bool) *J { return &J{Kind: KindBool, Bit: v} }

// NewNumber returns a new number node with both the float and saturated
// integer view set from v.
func NewNumber(v float64) *J {
	return &J{Kind: KindNumber, Num: v, Int: saturateFloatToInt(v)}
}

// NewInt returns a new number node from an exact integer value.
func NewInt(v int64) *J {
	return &J{Kind: KindNumber, Num: float64(v), Int: v}
}

// NewString returns a new string node.
func NewString(v string) *J { return &J{Kind: KindString, Str: v} }

// NewRawString returns a new raw-string node: printed verbatim, without
// quoting or escaping, used for pre-serialized JSON fragments.
func NewRawString(v string) *J { return &J{Kind: KindRawString, Str: v} }

// NewArray returns a new, empty array node.
func NewArray() *J { return &J{Kind: KindArray} }

// NewObject returns a new, empty object node.
func NewObject() *J { return &J{Kind: KindObject} }

// IsNull reports whether n is nil or a KindNull node.
func IsNull(n *J) bool { return n == nil || n.Kind == KindNull }

// IsString reports whether n is a string or raw-string node.
func IsString(n *J) bool {
	return n != nil && (n.Kind == KindString || n.Kind == KindRawString)
}

// IsNumber reports whether n is a number node.
func IsNumber(n *J) bool { return n != nil && n.Kind == KindNumber }

// IsBool reports whether n is a bool node.
func IsBool(n *J) bool { return n != nil && n.Kind == KindBool }

// IsTrue reports whether n is a bool node holding true.
func IsTrue(n *J) bool { return n != nil && n.Kind == KindBool && n.Bit }

// IsArray reports whether n is an array node.
func IsArray(n *J) bool { return n != nil && n.Kind == KindArray }

// IsObject reports whether n is an object node.
func IsObject(n *J) bool { return n != nil && n.Kind == KindObject }

// saturateFloatToInt converts v to the nearest representable int64,
// saturating to the signed minimum or maximum instead of wrapping or
// producing undefined behavior when v is out of range (spec.md §4.2).
func saturateFloatToInt(v float64) int64 {
	const (
		maxRepresentable = float64(1<<63 - 1)
		minRepresentable = -float64(1 << 63)
	)
	switch {
	case v != v: // NaN
		return 0
	case v >= maxRepresentable:
		return 1<<63 - 1
	case v <= minRepresentable:
		return -(1 << 63)
	default:
		return int64(v)
	}
}

// AddItem appends item as the last child of parent. item is detached
// from any previous parent first. Ownership of item transfers to
// parent (spec.md §3: "moving a node... is ownership transfer, not a
// copy").
func AddItem(parent, item *J) {
	if parent == nil || item == nil {
		return
	}
	Detach(item)
	item.Parent = parent
	item.Prev = parent.LastChild
	item.Next = nil
	if parent.LastChild != nil {
		parent.LastChild.Next = item
	} else {
		parent.FirstChild = item
	}
	parent.LastChild = item
}

// AddItemToObject sets item's key and appends it to parent, deleting
// any existing same-keyed child first (object keys are unique).
func AddItemToObject(parent *J, key string, item *J) {
	if parent == nil || item == nil {
		return
	}
	DeleteItemByKey(parent, key)
	item.Key = key
	AddItem(parent, item)
}

// AddItemToArray appends item to parent, clearing any key it carried
// (array children have no key).
func AddItemToArray(parent, item *J) {
	if item != nil {
		item.Key = ""
	}
	AddItem(parent, item)
}

// Detach unlinks item from its parent's sibling list and clears its
// parent link, transferring ownership to the caller. A no-op if item
// has no parent.
func Detach(item *J) {
	if item == nil || item.Parent == nil {
		return
	}
	p := item.Parent
	if item.Prev != nil {
		item.Prev.Next = item.Next
	} else {
		p.FirstChild = item.Next
	}
	if item.Next != nil {
		item.Next.Prev = item.Prev
	} else {
		p.LastChild = item.Prev
	}
	item.Parent, item.Next, item.Prev = nil, nil, nil
}

// DetachItemByKey detaches and returns the child of parent with the
// given key, or nil if parent is not an object or has no such child.
func DetachItemByKey(parent *J, key string) *J {
	item := GetObjectItem(parent, key)
	Detach(item)
	return item
}

// DetachItemByIndex detaches and returns the child of parent at index
// i (0-based sibling order), or nil if out of range.
func DetachItemByIndex(parent *J, i int) *J {
	item := GetArrayItem(parent, i)
	Detach(item)
	return item
}

// Delete recursively deletes n's descendants and detaches n from its
// parent. Because node memory is garbage collected, this only needs to
// unlink the tree so no stale Parent/sibling pointers survive reuse;
// it exists to mirror the explicit ownership-transfer semantics of
// spec.md §3 rather than to reclaim memory.
func Delete(n *J) {
	if n == nil {
		return
	}
	Detach(n)
	deleteChildren(n)
}

func deleteChildren(n *J) {
	for c := n.FirstChild; c != nil; {
		next := c.Next
		c.Parent, c.Next, c.Prev = nil, nil, nil
		deleteChildren(c)
		c = next
	}
	n.FirstChild, n.LastChild = nil, nil
}

// DeleteItemByKey detaches and deletes the child of parent with the
// given key.
func DeleteItemByKey(parent *J, key string) {
	Delete(DetachItemByKey(parent, key))
}

// DeleteItemByIndex detaches and deletes the child of parent at index i.
func DeleteItemByIndex(parent *J, i int) {
	Delete(DetachItemByIndex(parent, i))
}

// GetObjectItem returns the child of parent with the given key, or nil
// if parent is not an object or has no such child.
func GetObjectItem(parent *J, key string) *J {
	if parent == nil || parent.Kind != KindObject {
		return nil
	}
	for c := parent.FirstChild; c != nil; c = c.Next {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// GetArrayItem returns the child of parent at index i, or nil if
// parent is not an array or i is out of range.
func GetArrayItem(parent *J, i int) *J {
	if parent == nil || parent.Kind != KindArray || i < 0 {
		return nil
	}
	c := parent.FirstChild
	for ; c != nil && i > 0; i-- {
		c = c.Next
	}
	return c
}

// Len returns the number of children of n (0 for a non-container or
// nil node).
func Len(n *J) int {
	if n == nil {
		return 0
	}
	count := 0
	for c := n.FirstChild; c != nil; c = c.Next {
		count++
	}
	return count
}

// Compare reports whether a and b are deeply equal: same kind, same
// scalar value, and (for containers) same children in the same order
// with the same keys.
func Compare(a, b *J) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Key != b.Key {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bit == b.Bit
	case KindNumber:
		return a.Num == b.Num && a.Int == b.Int
	case KindString, KindRawString:
		return a.Str == b.Str
	case KindArray, KindObject:
		ca, cb := a.FirstChild, b.FirstChild
		for ca != nil && cb != nil {
			if !Compare(ca, cb) {
				return false
			}
			ca, cb = ca.Next, cb.Next
		}
		return ca == nil && cb == nil
	default:
		return false
	}
}
