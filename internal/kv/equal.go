package kv

import "reflect"

// fastEq compares two stored values for the purpose of deciding
// whether an Update delta is worth reporting. Values here are JSON-ish
// (maps, slices, scalars) produced by schema validation, so a
// reflect.DeepEqual is sufficient and avoids requiring every stored
// type to implement comparable.
func fastEq(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
