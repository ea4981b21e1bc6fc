// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ryanrahmadifa/e2RTLedger/services/ledger"
)

// ListLedger returns a page of ledger entries plus the total count.
// The store clamps limit and offset, so the handler only rejects
// non-numeric values.
func ListLedger(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := intQuery(c, "limit", 0)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		offset, ok := intQuery(c, "offset", 0)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
			return
		}

		entries, err := deps.Ledger.List(c.Request.Context(), limit, offset)
		if err != nil {
			deps.Logger.Error("Ledger list failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list ledger"})
			return
		}
		total, err := deps.Ledger.Count(c.Request.Context())
		if err != nil {
			deps.Logger.Error("Ledger count failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count ledger"})
			return
		}
		if entries == nil {
			entries = []ledger.Entry{}
		}

		c.JSON(http.StatusOK, gin.H{
			"entries": entries,
			"total":   total,
		})
	}
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
