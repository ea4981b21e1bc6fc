// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ryanrahmadifa/e2RTLedger/services/extract"
)

// TaskStatus reports the state of a queued extraction task. Swept and
// unknown task ids both return 404.
func TaskStatus(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		task, err := deps.Tracker.Poll(id)
		if err != nil {
			if errors.Is(err, extract.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
				return
			}
			deps.Logger.Error("Task poll failed", "task_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to poll task"})
			return
		}
		c.JSON(http.StatusOK, task)
	}
}
