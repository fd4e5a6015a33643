// Package httpapi is the HTTP syscall boundary: one endpoint per port
// operation, binding request bodies with pkg/jsonx's strict decoding and
// reporting errors through a stable status mapping.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/relaysys/portkern/internal/ipc/port"
	"github.com/relaysys/portkern/pkg/fmtt"
	"github.com/relaysys/portkern/pkg/jsonx"
)

// Handlers holds the dependencies every route needs.
type Handlers struct {
	table *port.Table
}

func NewHandlers(table *port.Table) *Handlers {
	return &Handlers{table: table}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		// Unrecognized error shape: dump the full chain for whoever is
		// watching the server's stdout, same as pkg/fmtt's original use.
		fmtt.PrintErrChainDebug(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":  errorCode(err),
		"detail": err.Error(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_args", "detail": err.Error()})
}

func parseID(c *gin.Context) (port.ID, bool) {
	raw := c.Param("id")
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_args", "detail": "malformed port id"})
		return 0, false
	}
	return port.ID(n), true
}

// infoResponse mirrors port.Info field-for-field over the wire.
type infoResponse struct {
	ID         int32  `json:"id"`
	Owner      int64  `json:"owner"`
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	QueueCount int    `json:"queue_count"`
	TotalCount uint64 `json:"total_count"`
	Closed     bool   `json:"closed"`
}

func toInfoResponse(info port.Info) infoResponse {
	return infoResponse{
		ID:         int32(info.ID),
		Owner:      info.Owner,
		Name:       info.Name,
		Capacity:   info.Capacity,
		QueueCount: info.QueueCount,
		TotalCount: info.TotalCount,
		Closed:     info.Closed,
	}
}

type createRequest struct {
	QueueDepth int    `json:"queue_depth"`
	Name       string `json:"name"`
	Owner      int64  `json:"owner"`
}

// Create handles POST /ports.
func (h *Handlers) Create(c *gin.Context) {
	var req createRequest
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.Owner != 0 {
		ctx = port.WithOwner(ctx, req.Owner)
	}

	id, err := h.table.Create(ctx, req.QueueDepth, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": int32(id)})
}

// Close handles POST /ports/:id/close.
func (h *Handlers) Close(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.table.Close(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /ports/:id.
func (h *Handlers) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.table.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Find handles GET /ports/find?name=.
func (h *Handlers) Find(c *gin.Context) {
	name := c.Query("name")
	id, err := h.table.Find(name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": int32(id)})
}

// GetInfo handles GET /ports/:id.
func (h *Handlers) GetInfo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	info, err := h.table.GetInfo(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toInfoResponse(info))
}

// GetNextInfo handles GET /ports?owner=&cursor=.
func (h *Handlers) GetNextInfo(c *gin.Context) {
	owner, err := strconv.ParseInt(c.Query("owner"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}
	var cursor uint64
	if raw := c.Query("cursor"); raw != "" {
		cursor, err = strconv.ParseUint(raw, 10, 32)
		if err != nil {
			badRequest(c, err)
			return
		}
	}

	info, next, err := h.table.GetNextInfo(owner, uint32(cursor))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"info": toInfoResponse(info), "cursor": next})
}

// SetOwner handles POST /ports/:id/owner.
func (h *Handlers) SetOwner(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Owner int64 `json:"owner"`
	}
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.table.SetOwner(id, req.Owner); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteOwned handles POST /owners/:owner/reap.
func (h *Handlers) DeleteOwned(c *gin.Context) {
	owner, err := strconv.ParseInt(c.Param("owner"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}
	n := h.table.DeleteOwned(owner)
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// callOpts is the common (flags, timeout) shape read/write/buffer_size
// accept, mirroring the underlying flags+timeout argument pair.
type callOpts struct {
	Interruptible bool  `json:"interruptible"`
	TimeoutMS     int64 `json:"timeout_ms"`
}

func (o callOpts) flagsAndTimeout() (port.Flags, time.Duration) {
	var flags port.Flags
	var timeout time.Duration
	if o.TimeoutMS > 0 {
		flags |= port.FlagTimeout
		timeout = time.Duration(o.TimeoutMS) * time.Millisecond
	}
	if o.Interruptible {
		flags |= port.FlagInterruptible
	}
	return flags, timeout
}

type writeRequest struct {
	Code int32  `json:"code"`
	Data []byte `json:"data"` // base64, per encoding/json's []byte convention
	callOpts
}

// Write handles POST /ports/:id/write.
func (h *Handlers) Write(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req writeRequest
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}

	flags, timeout := req.flagsAndTimeout()
	if err := h.table.Write(c.Request.Context(), id, req.Code, req.Data, flags, timeout); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type readRequest struct {
	BufSize int `json:"buf_size"`
	callOpts
}

// Read handles POST /ports/:id/read.
func (h *Handlers) Read(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req readRequest
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}

	flags, timeout := req.flagsAndTimeout()
	code, data, err := h.table.Read(c.Request.Context(), id, req.BufSize, flags, timeout)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "data": data})
}

// BufferSize handles POST /ports/:id/buffer_size.
func (h *Handlers) BufferSize(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req callOpts
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}

	flags, timeout := req.flagsAndTimeout()
	n, err := h.table.BufferSize(c.Request.Context(), id, flags, timeout)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"length": n})
}

// Count handles GET /ports/:id/count.
func (h *Handlers) Count(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := h.table.Count(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// DebugDump handles GET /debug/ports.
func (h *Handlers) DebugDump(c *gin.Context) {
	infos := h.table.DebugDump()
	out := make([]infoResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, toInfoResponse(info))
	}
	c.JSON(http.StatusOK, gin.H{"ports": out})
}

// DebugDumpOne handles GET /debug/ports/:idOrName.
func (h *Handlers) DebugDumpOne(c *gin.Context) {
	info, ok := h.table.DebugDumpOne(c.Param("idOrName"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(port.DebugString(info)))
}
