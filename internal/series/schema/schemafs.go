// Package schema embeds the JSON Schemas of the chart series files.
package schema

import "embed"

// FS holds chart.schema.json and index.schema.json.
//
//go:embed *.schema.json
var FS embed.FS

// Schema file names inside FS.
const (
	ChartFile = "chart.schema.json"
	IndexFile = "index.schema.json"
)
