package validator

// CheckOutputFormatConflict flags batches that declare more than one
// strict json_schema response format. Descriptors are caller-defined
// maps; one that is missing either field, or carries the wrong types, is
// skipped rather than treated as fatal. Runs independently of the
// per-call validation chain.
func CheckOutputFormatConflict(schemas []map[string]any) (ok bool, reason string) {
	strictJSONCount := 0
	for _, s := range schemas {
		typ, _ := s["type"].(string)
		strict, _ := s["strict"].(bool)
		if typ == "json_schema" && strict {
			strictJSONCount++
		}
	}

	if strictJSONCount > 1 {
		return false, "multiple strict json_schema response formats detected"
	}
	return true, "ok"
}
