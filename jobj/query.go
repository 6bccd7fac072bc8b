package jobj

import "strings"

// IsPresent reports whether field exists as a member of obj. A nil
// receiver returns false (n_cjson_helpers.c: JIsPresent).
func IsPresent(obj *J, field string) bool {
	return GetObjectItem(obj, field) != nil
}

// GetString returns the string value of field, or "" if obj is nil,
// the field is absent, or it is not a string (JGetString).
func GetString(obj *J, field string) string {
	item := GetObjectItem(obj, field)
	if !IsString(item) {
		return ""
	}
	return item.Str
}

// GetNumber returns the float64 value of field, or 0 if absent or not
// a number (JGetDouble).
func GetNumber(obj *J, field string) float64 {
	item := GetObjectItem(obj, field)
	if !IsNumber(item) {
		return 0
	}
	return item.Num
}

// GetInt returns the saturated integer value of field, or 0 if absent
// or not a number (JGetInt).
func GetInt(obj *J, field string) int64 {
	item := GetObjectItem(obj, field)
	if !IsNumber(item) {
		return 0
	}
	return item.Int
}

// GetBool returns the bool value of field, or false if absent or not a
// bool (JGetBool).
func GetBool(obj *J, field string) bool {
	item := GetObjectItem(obj, field)
	if !IsBool(item) {
		return false
	}
	return item.Bit
}

// GetObject returns the object-valued field, or nil if absent or not
// an object.
func GetObject(obj *J, field string) *J {
	item := GetObjectItem(obj, field)
	if !IsObject(item) {
		return nil
	}
	return item
}

// GetArray returns the array-valued field, or nil if absent or not an
// array.
func GetArray(obj *J, field string) *J {
	item := GetObjectItem(obj, field)
	if !IsArray(item) {
		return nil
	}
	return item
}

// IsNullString reports whether field is absent, or is a string whose
// value is empty (JIsNullString). A field that is present but not a
// string, including a JSON null, returns false. A nil obj returns
// false, matching the original's nil-receiver special case.
func IsNullString(obj *J, field string) bool {
	if obj == nil {
		return false
	}
	item := GetObjectItem(obj, field)
	if item == nil {
		return true
	}
	if !IsString(item) {
		return false
	}
	return item.Str == ""
}

// ExactString reports whether field is present, a string, non-empty,
// and exactly equal to want (JIsExactString).
func ExactString(obj *J, field, want string) bool {
	item := GetObjectItem(obj, field)
	if !IsString(item) || want == "" {
		return false
	}
	return item.Str == want
}

// ContainsSubstring reports whether field is present, a string, and
// contains sub as a substring (JContainsString).
func ContainsSubstring(obj *J, field, sub string) bool {
	item := GetObjectItem(obj, field)
	if !IsString(item) || sub == "" {
		return false
	}
	return strings.Contains(item.Str, sub)
}

// TypeClass is the finer classification returned by TypeOf, which
// distinguishes cases the bare Kind does not (spec.md §4.2).
type TypeClass int

// Type classes.
const (
	TypeNull TypeClass = iota
	TypeBool
	TypeZeroNumber
	TypeNonzeroNumber
	TypeEmptyString
	TypeZeroString
	TypeBooleanString
	TypeNumericString
	TypeGeneralString
	TypeArray
	TypeObject
)

// TypeOf returns n's fine-grained type classification.
func TypeOf(n *J) TypeClass {
	if n == nil {
		return TypeNull
	}
	switch n.Kind {
	case KindNull:
		return TypeNull
	case KindBool:
		return TypeBool
	case KindNumber:
		if n.Num == 0 {
			return TypeZeroNumber
		}
		return TypeNonzeroNumber
	case KindArray:
		return TypeArray
	case KindObject:
		return TypeObject
	case KindString, KindRawString:
		switch {
		case n.Str == "":
			return TypeEmptyString
		case n.Str == "0":
			return TypeZeroString
		case n.Str == "true" || n.Str == "false":
			return TypeBooleanString
		case isNumericString(n.Str):
			return TypeNumericString
		default:
			return TypeGeneralString
		}
	default:
		return TypeGeneralString
	}
}

// isNumericString reports whether s parses in full as a JSON number
// literal (used only by TypeOf's classification, not by the parser).
func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[i] == '-' {
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == start {
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		fstart := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == fstart {
			return false
		}
	}
	return i == len(s)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
