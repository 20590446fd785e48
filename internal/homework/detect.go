package homework

// Detect compares an item with the snapshot. An item whose name is absent from the
// snapshot counts as changed.
func Detect(item Item, snap Snapshot) (Verdict, error) {
	for _, key := range []string{KeyStatus, KeyHomeworkName} {
		if !item.Has(key) {
			return Unchanged, &MissingFieldError{Field: key}
		}
	}
	prev, seen := snap[item.Name()]
	if seen && prev == item.Status() {
		return Unchanged, nil
	}
	return Changed, nil
}
