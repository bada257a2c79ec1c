package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ftpstore/internal/monitoring"
	"github.com/charlesng35/ftpstore/pkg/response"
)

// StatusHandler surfaces the aggregated storage activity.
type StatusHandler struct {
	poolSize int
	root     string
}

// NewStatusHandler constructs a status handler describing a pool of poolSize sessions
// rooted at root.
func NewStatusHandler(poolSize int, root string) *StatusHandler {
	return &StatusHandler{poolSize: poolSize, root: root}
}

// Summary returns the monitoring snapshot together with static pool details.
func (h *StatusHandler) Summary(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"summary": monitoring.Snapshot(),
		"storage": gin.H{
			"pool_size": h.poolSize,
			"root":      h.root,
		},
	})
}
