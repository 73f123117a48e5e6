package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := getUserID(c)

	alerts, err := s.alerts.List(ctx, ownerID, c.Query("unread") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	unread, err := s.alerts.CountUnread(ctx, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]alertDTO, 0, len(alerts))
	for i := range alerts {
		out = append(out, toAlertDTO(&alerts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out, "unread_count": unread})
}

func (s *Server) countUnreadAlerts(c *gin.Context) {
	count, err := s.alerts.CountUnread(c.Request.Context(), getUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) markAlertRead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.alerts.MarkRead(c.Request.Context(), getUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert marked as read"})
}

func (s *Server) markAllAlertsRead(c *gin.Context) {
	n, err := s.alerts.MarkAllRead(c.Request.Context(), getUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All alerts marked as read", "updated": n})
}

func (s *Server) deleteAlert(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.alerts.Delete(c.Request.Context(), getUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}
