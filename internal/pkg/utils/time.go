package utils

import "time"

// DateLayout is the wire format for bare clinical dates.
const DateLayout = "2006-01-02"

// NormalizeDates recursively converts bare date strings and midnight-less
// dates in submitted form data to full datetimes; the document store cannot
// persist bare dates.
func NormalizeDates(data map[string]interface{}) {
	for key, value := range data {
		data[key] = normalizeDateValue(value)
	}
}

func normalizeDateValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if ts, err := time.Parse(DateLayout, v); err == nil {
			return ts.UTC()
		}
		return v
	case []interface{}:
		for i, el := range v {
			v[i] = normalizeDateValue(el)
		}
		return v
	case map[string]interface{}:
		NormalizeDates(v)
		return v
	default:
		return value
	}
}
