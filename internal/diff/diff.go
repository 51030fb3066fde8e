// Package diff decides whether a form snapshot differs from its baseline.
//
// Normalization rules, applied recursively:
//   - "" , Go nil and IRNull are all null; object keys whose value normalizes
//     to null are dropped, so a missing key equals an empty one
//   - arrays are compared as sets: elements are normalized and then sorted by
//     their canonical JSON encoding
//   - everything else is compared structurally; 0 and false are NOT null
package diff

import (
	"bytes"
	"slices"

	"github.com/roach88/formguard/internal/ir"
)

// Normalize returns the normalized form of v. The input is not modified.
// The result is nil (meaning null) when v collapses to null.
func Normalize(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil
	case ir.IRString:
		if val == "" {
			return nil
		}
		return val
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			if n := Normalize(elem); n != nil {
				out[k] = n
			}
		}
		return out
	case ir.IRArray:
		type keyed struct {
			key []byte
			val ir.IRValue
		}
		items := make([]keyed, 0, len(val))
		for _, elem := range val {
			n := Normalize(elem)
			key, _ := ir.MarshalCanonical(n)
			items = append(items, keyed{key: key, val: n})
		}
		slices.SortStableFunc(items, func(a, b keyed) int {
			return bytes.Compare(a.key, b.key)
		})
		out := make(ir.IRArray, len(items))
		for i, it := range items {
			if it.val == nil {
				out[i] = ir.IRNull{}
				continue
			}
			out[i] = it.val
		}
		return out
	default:
		return v
	}
}

// IsDirty reports whether current differs from baseline after normalization.
func IsDirty(current, baseline ir.IRValue) bool {
	return !Equal(current, baseline)
}

// Equal reports whether a and b are equal after normalization.
func Equal(a, b ir.IRValue) bool {
	return equalNormalized(Normalize(a), Normalize(b))
}

func equalNormalized(a, b ir.IRValue) bool {
	switch av := a.(type) {
	case nil, ir.IRNull:
		switch b.(type) {
		case nil, ir.IRNull:
			return true
		}
		return false
	case ir.IRString:
		bv, ok := b.(ir.IRString)
		return ok && av == bv
	case ir.IRInt:
		bv, ok := b.(ir.IRInt)
		return ok && av == bv
	case ir.IRBool:
		bv, ok := b.(ir.IRBool)
		return ok && av == bv
	case ir.IRArray:
		bv, ok := b.(ir.IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalNormalized(av[i], bv[i]) {
				return false
			}
		}
		return true
	case ir.IRObject:
		bv, ok := b.(ir.IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, ok := bv[k]
			if !ok || !equalNormalized(elem, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
