package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/export"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
)

// scheme returns the scheme the client used, honouring X-Forwarded-Proto from a proxy.
func scheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}

func baseURL(c *gin.Context) string {
	return scheme(c) + "://" + c.Request.Host
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

// Releases handles GET /releases.
func (h *Handler) Releases(c *gin.Context) {
	if h.svc.Releases == nil {
		respondError(c, apperrors.Unavailable("releases", errRelationalDisabled))
		return
	}

	self := &url.URL{
		Scheme:   scheme(c),
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: c.Request.URL.RawQuery,
	}
	page, err := h.svc.Releases.Releases(c.Request.Context(), c.Query("publisher"), c.Query("page"), self)
	respond(c, page, err)
}

// Release handles GET /releases/:id.
func (h *Handler) Release(c *gin.Context) {
	if h.svc.Releases == nil {
		respondError(c, apperrors.Unavailable("release", errRelationalDisabled))
		return
	}
	release, err := h.svc.Releases.Release(c.Request.Context(), c.Param("id"))
	respond(c, release, err)
}

// Downloads handles GET /descargas. The cache key includes the base URL since the
// response carries absolute links.
func (h *Handler) Downloads(c *gin.Context) {
	if h.svc.Downloads == nil {
		respondError(c, apperrors.Unavailable("downloads", errRelationalDisabled))
		return
	}
	base := baseURL(c)
	cached(c, h, base, func(ctx context.Context) ([]domain.DownloadFile, error) {
		return h.svc.Downloads.List(ctx, base)
	})
}

// Download handles GET /descargas/:file by handing the transfer to the proxy.
func (h *Handler) Download(c *gin.Context) {
	if h.svc.Downloads == nil {
		respondError(c, apperrors.Unavailable("download", errRelationalDisabled))
		return
	}
	target, err := h.svc.Downloads.Target(c.Param("file"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", attachment(target.FileName))
	c.Header("X-Accel-Redirect", target.RedirectPath)
	c.Status(http.StatusOK)
}

// Export handles GET /buscador/exportar/:tipo, streaming the rows as they are scrolled.
func (h *Handler) Export(c *gin.Context) {
	kind, err := export.ParseKind(c.Param("tipo"))
	if err != nil {
		respondError(c, apperrors.Invalid("tipo: %v", err))
		return
	}
	format, err := export.ParseFormat(c.Query("formato"))
	if err != nil {
		respondError(c, apperrors.Invalid("formato: %v", err))
		return
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	name := h.svc.Search.FileName(kind, format, h.now())

	if deadline, ok := ctx.Deadline(); ok {
		if dlErr := http.NewResponseController(c.Writer).SetWriteDeadline(deadline); dlErr != nil && !errors.Is(dlErr, http.ErrNotSupported) {
			log.Debug("Could not extend write deadline for export", logger.Error(dlErr))
		}
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", attachment(name))
	c.Status(http.StatusOK)

	w, err := export.New(format, c.Writer)
	if err != nil {
		clearAttachment(c)
		respondError(c, apperrors.Internal("export", err))
		return
	}

	start := time.Now()
	n, err := h.svc.Search.Export(ctx, kind, params(c), w)
	if err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			log.Debug("Could not release export writer", logger.Error(abortErr))
		}
		if !c.Writer.Written() {
			clearAttachment(c)
			respondError(c, err)
			return
		}
		// Headers are gone; the client sees a truncated file.
		_ = c.Error(err)
		c.Abort()
		return
	}
	if err = w.Close(); err != nil {
		_ = c.Error(fmt.Errorf("finish export: %w", err))
		c.Abort()
		return
	}

	log.Info("Export finished",
		logger.String("kind", string(kind)),
		logger.String("format", string(format)),
		logger.Int("rows", n),
		logger.Duration("duration", time.Since(start)),
	)
}

func clearAttachment(c *gin.Context) {
	c.Writer.Header().Del("Content-Disposition")
	c.Writer.Header().Del("Content-Type")
}
