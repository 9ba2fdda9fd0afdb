// Package reportsink renders report.TraceReport/DetailedReport/UsabilityReport
// values to json, html, and txt, and derives the default output filename.
package reportsink

import (
	"fmt"
	"time"
)

// Format is an output encoding a report can be rendered to.
type Format string

const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
	FormatTXT  Format = "txt"
)

// Extension returns the file extension for f.
func (f Format) Extension() string {
	return string(f)
}

// Filename builds the default report filename:
// <type>_report[_<server>]_<YYYYMMDD_HHMMSS>.<ext>
func Filename(reportType, server string, format Format, now time.Time) string {
	stamp := now.UTC().Format("20060102_150405")
	if server != "" {
		return fmt.Sprintf("%s_report_%s_%s.%s", reportType, server, stamp, format.Extension())
	}
	return fmt.Sprintf("%s_report_%s.%s", reportType, stamp, format.Extension())
}
