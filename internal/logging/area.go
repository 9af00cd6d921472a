// ABOUTME: Area detection for request logging.
// ABOUTME: Groups console paths into the sections shown on the dashboard.

package logging

import "strings"

var areaPrefixes = []struct {
	prefix string
	area   string
}{
	{"/api/editor/", "editor"},
	{"/admin/editor/", "editor"},
	{"/admin/options/", "editor"},
	{"/api/catalog", "catalog"},
	{"/streams", "streams"},
	{"/builder", "streams"},
	{"/resources/", "resources"},
	{"/secrets", "secrets"},
	{"/files", "files"},
	{"/workers", "workers"},
	{"/login", "auth"},
	{"/logout", "auth"},
}

// GetAreaFromPath returns the console area a path belongs to.
func GetAreaFromPath(path string) string {
	if path == "/" {
		return "dashboard"
	}
	for _, p := range areaPrefixes {
		if strings.HasPrefix(path, p.prefix) {
			return p.area
		}
	}
	return "unknown"
}
