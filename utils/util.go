package utils

// Missing 找出不在present中的ID
// 说明：保持wanted中的顺序，全部存在时返回nil
func Missing[T comparable](present []T, wanted ...T) (missing []T) {
	set := make(map[T]struct{}, len(present))
	for _, id := range present {
		set[id] = struct{}{}
	}
	for _, id := range wanted {
		if _, ok := set[id]; !ok {
			missing = append(missing, id)
		}
	}
	return
}
