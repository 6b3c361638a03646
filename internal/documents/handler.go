// Package documents serves organization documents stored in S3.
package documents

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/internal/users"
	"github.com/grantportal/backend/pkg/response"
	"github.com/grantportal/backend/pkg/storage"
)

// Store is the document persistence the handler needs.
type Store interface {
	OrganizationExists(ctx context.Context, orgID uuid.UUID) (bool, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// ApplicationOrganization returns the organization owning an application, or nil if absent.
	ApplicationOrganization(ctx context.Context, applicationID uuid.UUID) (*uuid.UUID, error)
	Create(ctx context.Context, d *models.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ObjectStore holds document bytes.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignDownload(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Handler handles document HTTP endpoints.
type Handler struct {
	repo    Store
	objects ObjectStore
	users   users.Lookup
	logger  *zap.Logger
}

// NewHandler creates a documents handler. objects may be nil when storage is not configured;
// listing still works and uploads are refused.
func NewHandler(repo Store, objects ObjectStore, userLookup users.Lookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, objects: objects, users: userLookup, logger: logger}
}

// ListByOrganization handles GET /organizations/:id/documents. Reviewers and members of the organization only.
func (h *Handler) ListByOrganization(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	ctx := c.Request.Context()
	g := access.FromContext(ctx)
	if _, err := users.AuthorizeOrg(ctx, h.users, orgID, g.IsReviewer()); err != nil {
		response.Err(c, err, "failed to load user")
		return
	}
	exists, err := h.repo.OrganizationExists(ctx, orgID)
	if err != nil {
		h.logger.Error("organization lookup failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to load documents")
		return
	}
	if !exists {
		response.NotFound(c, "organization not found")
		return
	}
	docs, err := h.repo.ListByOrganization(ctx, orgID)
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to load documents")
		return
	}
	if h.objects != nil {
		for _, d := range docs {
			u, err := h.objects.PresignDownload(ctx, d.S3Key)
			if err != nil {
				h.logger.Warn("presign document failed", zap.Error(err), zap.String("document_id", d.ID.String()))
				continue
			}
			d.DownloadURL = u
		}
	}
	response.OK(c, docs)
}

// Upload handles POST /organizations/:id/documents (multipart field "file", optional "application_id").
// Members of the organization only.
func (h *Handler) Upload(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	ctx := c.Request.Context()
	u, err := users.AuthorizeOrg(ctx, h.users, orgID, false)
	if err != nil {
		response.Err(c, err, "failed to load user")
		return
	}
	if h.objects == nil {
		response.Internal(c, "document storage not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxDocumentSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(c, "file exceeds 10MB limit")
			return
		}
		response.BadRequest(c, "file required")
		return
	}
	if fh.Size > storage.MaxDocumentSize {
		response.BadRequest(c, "file exceeds 10MB limit")
		return
	}
	contentType, ok := storage.DocumentContentType(fh.Header.Get("Content-Type"), fh.Filename)
	if !ok {
		response.BadRequest(c, "file type not allowed; use PDF, Word, Excel, PNG or JPEG")
		return
	}
	var appID *uuid.UUID
	if s := strings.TrimSpace(c.PostForm("application_id")); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid application_id")
			return
		}
		owner, err := h.repo.ApplicationOrganization(ctx, id)
		if err != nil {
			h.logger.Error("application lookup failed", zap.Error(err), zap.String("application_id", id.String()))
			response.Internal(c, "failed to load application")
			return
		}
		if owner == nil {
			response.NotFound(c, "application not found")
			return
		}
		if *owner != orgID {
			response.BadRequest(c, "application belongs to another organization")
			return
		}
		appID = &id
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()

	doc := &models.Document{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ApplicationID:  appID,
		Name:           fh.Filename,
		ContentType:    contentType,
		SizeBytes:      fh.Size,
		UploadedBy:     u.ID,
	}
	doc.S3Key = storage.DocumentKey(orgID.String(), doc.ID.String(), storage.DocumentFilename(fh.Filename, contentType))
	if err := h.objects.Upload(ctx, doc.S3Key, contentType, f, fh.Size); err != nil {
		h.logger.Error("document upload failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to upload document")
		return
	}
	if err := h.repo.Create(ctx, doc); err != nil {
		h.logger.Error("create document failed", zap.Error(err), zap.String("s3_key", doc.S3Key))
		if delErr := h.objects.Delete(context.WithoutCancel(ctx), doc.S3Key); delErr != nil {
			h.logger.Warn("orphaned document object", zap.Error(delErr), zap.String("s3_key", doc.S3Key))
		}
		response.Internal(c, "failed to save document")
		return
	}
	h.logger.Info("document uploaded", zap.String("document_id", doc.ID.String()), zap.String("organization_id", orgID.String()))
	response.Created(c, doc)
}

// Delete handles DELETE /documents/:id. Members of the owning organization and managers only.
// Other callers get 403 whether or not the document exists.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid document id")
		return
	}
	ctx := c.Request.Context()
	var caller *models.User
	if !access.FromContext(ctx).IsManager() {
		if caller, err = users.Current(ctx, h.users); err != nil {
			response.Err(c, err, "failed to load user")
			return
		}
	}
	doc, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.logger.Error("get document failed", zap.Error(err), zap.String("document_id", id.String()))
		response.Internal(c, "failed to load document")
		return
	}
	if caller != nil && (doc == nil || !caller.BelongsTo(doc.OrganizationID)) {
		response.Forbidden(c, "not authorized for this document")
		return
	}
	if doc == nil {
		response.NotFound(c, "document not found")
		return
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		h.logger.Error("delete document failed", zap.Error(err), zap.String("document_id", id.String()))
		response.Internal(c, "failed to delete document")
		return
	}
	if h.objects != nil {
		if err := h.objects.Delete(ctx, doc.S3Key); err != nil {
			h.logger.Warn("delete document object failed", zap.Error(err), zap.String("s3_key", doc.S3Key))
		}
	}
	response.NoContent(c)
}
