// Package schemas embeds the JSON Schemas describing the SRA backend payloads.
package schemas

import "embed"

// Files holds every *.schema.json file in this directory.
//
//go:embed *.schema.json
var Files embed.FS

// Schema file names.
const (
	Token             = "token.schema.json"
	Subjects          = "subjects.schema.json"
	ProfessorAverages = "professor_averages.schema.json"
	Recommendations   = "recommendations.schema.json"
	Profile           = "profile.schema.json"
)
