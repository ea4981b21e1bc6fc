// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline runs one document through claim, classification,
// persistence and broadcast. The ordering is what makes ingestion
// exactly-once: the claim is provisional until the entry is stored,
// and the broadcast happens only after the claim is confirmed, so a
// crash anywhere loses at most one notification and never ledger data.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/pkg/validation"
	"github.com/ryanrahmadifa/e2RTLedger/services/broadcast"
	"github.com/ryanrahmadifa/e2RTLedger/services/claims"
	"github.com/ryanrahmadifa/e2RTLedger/services/classify"
	"github.com/ryanrahmadifa/e2RTLedger/services/ledger"
)

// ErrEmptyDocument rejects documents whose text normalizes to nothing.
var ErrEmptyDocument = errors.New("document text is empty")

// Outcome statuses. Every Process call that returns a nil error ends
// in exactly one of these.
const (
	StatusPublished            = "published"
	StatusConflict             = "conflict"
	StatusClassificationFailed = "classification_failed"
	StatusStorageFailed        = "storage_failed"
)

// descriptionLimit caps the fallback description taken from the
// document when the classifier returns none.
const descriptionLimit = 100

// Document is one unit of ingestion.
type Document struct {
	// Text is the raw extracted text, pre-normalization.
	Text string
	// Source names where the document came from (upload filename,
	// "text", poller path). Log context only.
	Source string
	// ReferenceID optionally overrides the classifier's reference id,
	// for callers that already know it.
	ReferenceID string
}

// Outcome reports how processing ended. Entry is set only for
// StatusPublished. Tagged because outcomes ride inside task status
// responses.
type Outcome struct {
	Status      string        `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Entry       *ledger.Entry `json:"entry,omitempty"`
}

// Config wires an Orchestrator. Claims, Classifier, Ledger and
// Publisher are required.
type Config struct {
	Claims     claims.Store
	Classifier classify.Classifier
	Ledger     ledger.Store
	Publisher  broadcast.Publisher
	Logger     *logging.Logger

	// BroadcastFailures counts broker errors during the final
	// fire-and-forget publish. Optional.
	BroadcastFailures prometheus.Counter
}

// Orchestrator is the single writer path into the ledger.
type Orchestrator struct {
	claims     claims.Store
	classifier classify.Classifier
	store      ledger.Store
	pub        broadcast.Publisher
	log        *logging.Logger

	broadcastFailures prometheus.Counter
}

// NewOrchestrator validates cfg and builds the orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Claims == nil:
		return nil, errors.New("pipeline: claim store is required")
	case cfg.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case cfg.Ledger == nil:
		return nil, errors.New("pipeline: ledger store is required")
	case cfg.Publisher == nil:
		return nil, errors.New("pipeline: publisher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Orchestrator{
		claims:            cfg.Claims,
		classifier:        cfg.Classifier,
		store:             cfg.Ledger,
		pub:               cfg.Publisher,
		log:               cfg.Logger,
		broadcastFailures: cfg.BroadcastFailures,
	}, nil
}

// Process ingests one document. A non-nil error means an internal
// failure (claim store down, invalid input); every expected operational
// ending comes back as an Outcome with a nil error.
func (o *Orchestrator) Process(ctx context.Context, doc Document) (Outcome, error) {
	normalized := ledger.NormalizeText(doc.Text)
	if normalized == "" {
		return Outcome{}, ErrEmptyDocument
	}
	fp := ledger.Fingerprint(doc.Text)
	log := o.log.With("fingerprint", fp, "source", doc.Source)

	status, err := o.claims.Claim(ctx, fp)
	if err != nil {
		return Outcome{}, fmt.Errorf("claim check: %w", err)
	}
	if status == claims.AlreadyClaimed {
		log.Info("Document already claimed, skipping")
		return Outcome{Status: StatusConflict, Fingerprint: fp}, nil
	}

	res, err := o.classifier.Classify(ctx, doc.Text)
	if err != nil {
		o.release(fp)
		reason := "error"
		var cerr *classify.Error
		if errors.As(err, &cerr) {
			reason = cerr.Reason
		}
		log.Warn("Classification failed, claim released", "reason", reason, "error", err)
		return Outcome{Status: StatusClassificationFailed, Reason: reason, Fingerprint: fp}, nil
	}

	entry := o.buildEntry(doc, res, fp)
	if err := entry.Validate(); err != nil {
		o.release(fp)
		return Outcome{}, fmt.Errorf("built entry invalid: %w", err)
	}

	if err := o.store.Upsert(ctx, entry); err != nil {
		o.release(fp)
		log.Error("Ledger write failed, claim released", "error", err)
		return Outcome{Status: StatusStorageFailed, Reason: "storage", Fingerprint: fp}, nil
	}

	// The entry is durable; from here the claim must become permanent.
	// If Confirm fails the TTL lapses and a replay hits the upsert,
	// which is idempotent.
	if err := o.claims.Confirm(ctx, fp); err != nil {
		log.Warn("Claim confirm failed, ttl is the backstop", "error", err)
	}

	o.announce(entry, log)
	log.Info("Document published", "vendor", entry.Vendor, "label", entry.Label)
	return Outcome{Status: StatusPublished, Fingerprint: fp, Entry: &entry}, nil
}

// buildEntry merges the classification result with defaults so the
// stored row always passes validation: date falls back to today (UTC),
// currency to USD, type to debit, label to Other.
func (o *Orchestrator) buildEntry(doc Document, res classify.Result, fp string) ledger.Entry {
	text := strings.TrimSpace(res.Text)
	if text == "" {
		// case-preserving collapse of the document itself
		text = truncate(strings.Join(strings.Fields(doc.Text), " "), descriptionLimit)
	}

	date, err := validation.NormalizeDate(res.Date)
	if err != nil {
		date = time.Now().UTC().Format("2006-01-02")
	}

	currency, err := validation.SanitizeCurrency(res.Currency)
	if err != nil {
		currency = "USD"
	}

	ttype := strings.ToLower(strings.TrimSpace(res.Type))
	if err := validation.ValidateEntryType(ttype); err != nil {
		ttype = "debit"
	}

	label := res.Label
	if !ledger.KnownLabel(label) {
		label = ledger.LabelOther
	}

	refID := res.ReferenceID
	if doc.ReferenceID != "" {
		refID = doc.ReferenceID
	}

	return ledger.Entry{
		Text:        text,
		Date:        date,
		Amount:      res.Amount,
		Currency:    currency,
		Vendor:      res.Vendor,
		Type:        ttype,
		ReferenceID: refID,
		Label:       label,
		Fingerprint: fp,
	}
}

// announce broadcasts the published entry without tying the outcome to
// broker health.
func (o *Orchestrator) announce(entry ledger.Entry, log *logging.Logger) {
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Error("Entry encode failed", "error", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.pub.Publish(ctx, broadcast.ChannelLedger, payload); err != nil {
			if o.broadcastFailures != nil {
				o.broadcastFailures.Inc()
			}
			log.Warn("Broadcast failed, subscribers miss this entry", "error", err)
		}
	}()
}

// release drops a provisional claim after a failure. Errors are logged
// only; the TTL cleans up anything left behind.
func (o *Orchestrator) release(fp string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.claims.Release(ctx, fp); err != nil {
		o.log.Warn("Claim release failed", "fingerprint", fp, "error", err)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
