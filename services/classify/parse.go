// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// errNoJSON means the model response contained no parseable object.
var errNoJSON = errors.New("no valid JSON found in response")

// fencePattern strips leading/trailing markdown code fences the model
// wraps around JSON despite instructions.
var fencePattern = regexp.MustCompile("(?m)^```(?:json)?\\s*|\\s*```$")

// objectPattern finds candidate JSON objects (one level of nesting) in
// responses that mix prose with the object.
var objectPattern = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

// extractJSON pulls the first syntactically valid JSON object out of a
// model response, tolerating fences and surrounding prose.
func extractJSON(content string) (string, error) {
	cleaned := fencePattern.ReplaceAllString(strings.TrimSpace(content), "")

	for _, candidate := range objectPattern.FindAllString(cleaned, -1) {
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", errNoJSON
}

// parseEntity decodes the stage-1 extraction object. Models sometimes
// quote numbers or emit the literal "None" for missing fields, so
// fields are coerced rather than strictly decoded.
func parseEntity(raw string) (Result, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return Result{}, fmt.Errorf("decode extraction object: %w", err)
	}

	r := Result{
		Text:        asString(obj["text"]),
		Date:        asString(obj["date"]),
		Amount:      asFloat(obj["amount"]),
		Currency:    asString(obj["currency"]),
		Vendor:      asString(obj["vendor"]),
		Type:        asString(obj["ttype"]),
		ReferenceID: asString(obj["referenceid"]),
	}
	return r, nil
}

// parseLabel decodes the stage-2 categorization object. A missing
// label field yields the empty string; the caller falls back.
func parseLabel(raw string) (string, error) {
	var obj struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", fmt.Errorf("decode label object: %w", err)
	}
	return obj.Label, nil
}

// asString renders a JSON value as a string, mapping the model's
// "None" placeholder (and nulls) to empty.
func asString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	if s == "None" || s == "null" {
		return ""
	}
	return s
}

// asFloat coerces numbers and numeric strings; anything else is 0.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
