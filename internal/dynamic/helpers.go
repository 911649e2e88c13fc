package dynamic

import "time"

func nowMillis() int64 { return time.Now().UnixMilli() }

func asInt64Ptr(v any) *int64 {
	switch n := v.(type) {
	case nil:
		return nil
	case int64:
		return &n
	case int:
		x := int64(n)
		return &x
	case float64:
		x := int64(n)
		return &x
	default:
		return nil
	}
}

func asInt64(v any, def int64) int64 {
	if p := asInt64Ptr(v); p != nil {
		return *p
	}
	return def
}
