// Package dashboard renders the staff summary page.
package dashboard

import (
	"context"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/internal/notify"
)

var pageTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Grants dashboard</title></head>
<body>
<h1>Applications</h1>
<p>Signed in as {{.Email}} ({{.Role}})</p>
<table>
<thead><tr><th>Status</th><th>Count</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.Label}}</td><td>{{.Count}}</td></tr>
{{end}}</tbody>
<tfoot><tr><td>Total</td><td>{{.Total}}</td></tr></tfoot>
</table>
{{if .IsManager}}<p><a href="/api/admin/email-logs">Email delivery log</a></p>{{end}}
</body>
</html>`))

// StatusCounter counts applications by status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// Handler renders the dashboard. Mount behind RequirePageRole(member).
type Handler struct {
	counter StatusCounter
	logger  *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(counter StatusCounter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{counter: counter, logger: logger}
}

// Row is one status line on the page.
type Row struct {
	Label string
	Count int
}

// Page is the template data.
type Page struct {
	Email     string
	Role      access.Role
	IsManager bool
	Rows      []Row
	Total     int
}

// Show handles GET /dashboard.
func (h *Handler) Show(c *gin.Context) {
	ctx := c.Request.Context()
	counts, err := h.counter.CountByStatus(ctx)
	if err != nil {
		h.logger.Error("count applications failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "The dashboard is unavailable right now. Please try again shortly.")
		return
	}
	g := access.FromContext(ctx)
	p := Page{Role: g.Role(), IsManager: g.IsManager()}
	if id := g.Identity(); id != nil {
		p.Email = id.Email
	}
	for _, s := range models.ApplicationStatuses {
		p.Rows = append(p.Rows, Row{Label: notify.StatusLabel(s), Count: counts[s]})
		p.Total += counts[s]
	}
	c.Render(http.StatusOK, render.HTML{Template: pageTmpl, Name: "dashboard", Data: p})
}
