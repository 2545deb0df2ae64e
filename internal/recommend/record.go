// Package recommend turns backend recommendation records into display-ready entries.
package recommend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one recommended professor as returned by the recommendation service.
// Estrelas is a 0-5 rating and Similaridade a 0-1 similarity; either may be absent.
type Record struct {
	ProfessorID  int      `json:"id_professor"`
	Name         string   `json:"nome"`
	Estrelas     *float64 `json:"estrelas,omitempty"`
	Similaridade *float64 `json:"similaridade,omitempty"`
}

// rawRecord mirrors Record with score fields left undecoded.
type rawRecord struct {
	ProfessorID  json.RawMessage `json:"id_professor"`
	Name         json.RawMessage `json:"nome"`
	Estrelas     json.RawMessage `json:"estrelas"`
	Similaridade json.RawMessage `json:"similaridade"`
}

// UnmarshalJSON decodes a record, dropping score fields that are not JSON numbers.
// A malformed score must not fail the whole batch; it simply counts as missing.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode recommendation record: %w", err)
	}

	*r = Record{
		Name:         stringOrEmpty(raw.Name),
		Estrelas:     numberOrNil(raw.Estrelas),
		Similaridade: numberOrNil(raw.Similaridade),
	}

	if id := numberOrNil(raw.ProfessorID); id != nil {
		r.ProfessorID = int(*id)
	} else if s := stringOrEmpty(raw.ProfessorID); s != "" {
		// Some backends serialize identifiers as strings.
		if n, err := strconv.Atoi(s); err == nil {
			r.ProfessorID = n
		}
	}

	return nil
}

// numberOrNil returns the decoded number, or nil when msg is absent, null or not a number.
func numberOrNil(msg json.RawMessage) *float64 {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil
	}
	return &v
}

func stringOrEmpty(msg json.RawMessage) string {
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return ""
	}
	return s
}

// Float returns a pointer to v, for building records in code.
func Float(v float64) *float64 {
	return &v
}
