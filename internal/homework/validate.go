package homework

import "encoding/json"

// Validate checks the shape of a decoded API payload and returns its homework items.
// Checks run in a fixed order and the first violation is returned.
func Validate(payload any) ([]Item, error) {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil, &TypeError{Expected: "object", Actual: kindOf(payload)}
	}
	for _, key := range []string{KeyHomeworks, KeyCurrentDate} {
		if _, ok := root[key]; !ok {
			return nil, &MissingFieldError{Field: key}
		}
	}
	list, ok := root[KeyHomeworks].([]any)
	if !ok {
		return nil, &TypeError{Expected: "array", Actual: kindOf(root[KeyHomeworks])}
	}
	if len(list) == 0 {
		return nil, ErrEmptyResult
	}

	items := make([]Item, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, &TypeError{Expected: "object", Actual: kindOf(raw)}
		}
		items = append(items, Item(obj))
	}
	return items, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	default:
		return "unknown"
	}
}
