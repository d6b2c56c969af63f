package statefile

import (
	"fmt"
	"html"
	"os"
	"strings"
	"time"
)

// WriteHTML renders the companion HTML dump at <path>.html: an
// HTML-escaped identifier, a generation timestamp, and one table row per
// record (spec §6).
func WriteHTML(path, id string, records []Record) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(id))
	b.WriteString("</title></head><body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(id))
	fmt.Fprintf(&b, "<p>%d sub-service(s), generated %s</p>\n", len(records), time.Now().Format(time.RFC3339))
	b.WriteString("<table border=\"1\"><tr><th>Name</th><th>State</th><th>Info</th></tr>\n")
	for _, r := range records {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(r.Name), html.EscapeString(r.State), html.EscapeString(r.Info))
	}
	b.WriteString("</table>\n</body></html>\n")

	return os.WriteFile(path+".html", []byte(b.String()), 0o644)
}
