package clinicaldata

// DeleteMarkerKey flags a multisection item for removal; the value is truthy
// when the item should be dropped.
const DeleteMarkerKey = "DELETE"

// StripDeletedItems removes items carrying a truthy delete marker and returns
// the survivors plus an index map from new position to original position,
// e.g. deleting the middle of three items yields {0:0, 1:2}. The map lets
// file resolution line surviving items up with their previously stored
// values.
func StripDeletedItems(items []map[string]interface{}) ([]map[string]interface{}, map[int]int) {
	kept := make([]map[string]interface{}, 0, len(items))
	indexMap := make(map[int]int, len(items))
	for original, item := range items {
		if isTruthy(item[DeleteMarkerKey]) {
			continue
		}
		cleaned := make(map[string]interface{}, len(item))
		for key, value := range item {
			if key == DeleteMarkerKey {
				continue
			}
			cleaned[key] = value
		}
		indexMap[len(kept)] = original
		kept = append(kept, cleaned)
	}
	return kept, indexMap
}

func isTruthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "false" && v != "0"
	case int:
		return v != 0
	case float64:
		return v != 0
	}
	return true
}
