// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ryanrahmadifa/e2RTLedger/pkg/validation"
)

// ClaimStatus reports whether a fingerprint currently holds a claim.
func ClaimStatus(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fp := c.Param("fingerprint")
		if err := validation.ValidateFingerprint(fp); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claimed, err := deps.Claims.Contains(c.Request.Context(), fp)
		if err != nil {
			deps.Logger.Error("Claim lookup failed", "fingerprint", fp, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check claim"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"fingerprint": fp,
			"claimed":     claimed,
		})
	}
}

// Health reports service liveness.
func Health(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": deps.Version,
		})
	}
}

// Version reports the running build.
func Version(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version": deps.Version,
			"commit":  deps.Commit,
		})
	}
}
