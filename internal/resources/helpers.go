package resources

import "strings"

// boardIDFromURI extracts the id from workboard://boards/{id}/columns.
func boardIDFromURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, "workboard://boards/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/columns")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
