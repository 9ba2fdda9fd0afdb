package reportsink

import (
	"encoding/json"
	"io"
)

// writeJSON pretty-prints v to w. All three report families serialize the
// same way; only the html/txt renderers need per-type templates.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
