package httptransport

import (
	"github.com/gin-gonic/gin"
)

// listOpenAlerts 列出未解决的运维告警，仅限管理员层级。
func (h *Handler) listOpenAlerts(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}

	alerts, err := h.store.ListOpenAlerts()
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, alerts)
}

// resolveAlert 把告警标记为已解决。
func (h *Handler) resolveAlert(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}

	if err := h.store.ResolveAlert(c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"resolved": true})
}
