// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classify turns raw document text into structured transaction
// fields. The production backend runs a two-stage prompt workflow
// (entity extraction, then categorization) against an OpenAI-compatible
// endpoint.
package classify

import (
	"context"
	"fmt"
)

// Result holds the structured fields the pipeline merges into a ledger
// entry. Type is "Debit" or "Credit" as emitted by the model; the
// pipeline normalizes case before storage.
type Result struct {
	Text        string
	Date        string
	Amount      float64
	Currency    string
	Vendor      string
	Type        string
	ReferenceID string
	Label       string
}

// Classifier extracts and categorizes one document.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Failure reasons carried on Error. ReasonTimeout is the one callers
// branch on; the rest are diagnostic.
const (
	ReasonTimeout  = "timeout"
	ReasonExtract  = "extract"
	ReasonCanceled = "canceled"
)

// Error is a classification failure. The pipeline maps any Error to
// the classification_failed outcome with Reason as the detail.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("classification failed (%s)", e.Reason)
	}
	return fmt.Sprintf("classification failed (%s): %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// failed keeps call sites terse.
func failed(reason string, err error) error {
	return &Error{Reason: reason, Err: err}
}
