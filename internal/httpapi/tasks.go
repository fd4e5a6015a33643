package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/relaysys/portkern/internal/ipc/task"
)

// TaskHandlers exposes internal/ipc/task.Registry over HTTP: a task id is
// the "owner" a client attaches to ports it creates (port.WithOwner),
// and terminating a task reaps every port it still owns.
type TaskHandlers struct {
	registry *task.Registry
}

func NewTaskHandlers(registry *task.Registry) *TaskHandlers {
	return &TaskHandlers{registry: registry}
}

// Spawn handles POST /tasks.
func (h *TaskHandlers) Spawn(c *gin.Context) {
	id, _ := h.registry.Spawn()
	c.JSON(http.StatusCreated, gin.H{"task_id": id})
}

// Terminate handles POST /tasks/:id/terminate.
func (h *TaskHandlers) Terminate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.registry.Terminate(id)
	c.Status(http.StatusNoContent)
}

// Activity handles GET /tasks/:id/activity.
func (h *TaskHandlers) Activity(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}
	var n int
	if raw := c.Query("n"); raw != "" {
		n, _ = strconv.Atoi(raw)
	}
	c.JSON(http.StatusOK, gin.H{"events": h.registry.Activity(id, n)})
}
