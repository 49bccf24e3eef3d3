package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Response states
const (
	StateSuccess = "success"
	StateFailure = "failure"
)

// respond writes a note and state followed by the payload fields
func respond(c *gin.Context, status int, state, note string, fields gin.H) {
	body := gin.H{"note": note, "state": state}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

func success(c *gin.Context, status int, note string, fields gin.H) {
	respond(c, status, StateSuccess, note, fields)
}

func failure(c *gin.Context, status int, note string) {
	respond(c, status, StateFailure, note, nil)
}

func formatIndex(i int64) string {
	return strconv.FormatInt(i, 10)
}
