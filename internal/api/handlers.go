package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/adilg123/inflate-service/internal/compression"
	"github.com/adilg123/inflate-service/internal/compression/algorithms/flate"
	"github.com/adilg123/inflate-service/internal/config"
)

// DecompressRequest represents the decompression request payload
type DecompressRequest struct {
	Format string `form:"format" binding:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Block     *int   `json:"block,omitempty"`
	BitOffset *int64 `json:"bit_offset,omitempty"`
}

// Handler serves the HTTP API
type Handler struct {
	cfg *config.Config
	log *logrus.Entry
}

func NewHandler(cfg *config.Config, log *logrus.Entry) *Handler {
	return &Handler{
		cfg: cfg,
		log: log.WithField("pkg", "api"),
	}
}

// HandleDecompress handles file decompression requests
func (h *Handler) HandleDecompress(c *gin.Context) {
	llog := requestLog(c, h.log).WithField("method", "HandleDecompress")

	var req DecompressRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Code:    http.StatusBadRequest,
			Message: err.Error(),
		})
		return
	}

	// Validate format
	if !compression.IsValidFormat(req.Format) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid format",
			Code:    http.StatusBadRequest,
			Message: fmt.Sprintf("Supported formats: %v", compression.GetSupportedFormats()),
		})
		return
	}

	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "File upload error",
			Code:    http.StatusBadRequest,
			Message: "No file provided or file upload failed",
		})
		return
	}
	defer file.Close()

	// Check file size
	if header.Size > h.cfg.MaxFileSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "File too large",
			Code:    http.StatusBadRequest,
			Message: fmt.Sprintf("Maximum file size is %d bytes", h.cfg.MaxFileSize),
		})
		return
	}

	// Read file content
	fileContent, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "File read error",
			Code:    http.StatusInternalServerError,
			Message: "Failed to read uploaded file",
		})
		return
	}

	decompressedData, stats, err := compression.Decompress(fileContent, compression.Options{
		Format:           req.Format,
		LiteralRootBits:  h.cfg.LiteralRootBits,
		DistanceRootBits: h.cfg.DistanceRootBits,
		Log:              llog,
	})
	if err != nil {
		llog.WithError(err).Warn("decompression failed")
		resp := ErrorResponse{
			Error:   "Decompression failed",
			Code:    http.StatusUnprocessableEntity,
			Message: err.Error(),
		}
		var cie *flate.CorruptInputError
		if errors.As(err, &cie) {
			resp.Block = &cie.Block
			resp.BitOffset = &cie.BitOffset
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}

	llog.WithFields(logrus.Fields{
		"filename":          header.Filename,
		"compressed_size":   stats.CompressedSize,
		"decompressed_size": stats.DecompressedSize,
	}).Info("decompressed upload")

	// Set response headers for file download
	filename := getBaseFilename(header.Filename)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("X-Deflate-Blocks", strconv.Itoa(stats.Deflate.Blocks))
	c.Header("X-Compression-Ratio", strconv.FormatFloat(stats.CompressionRatio, 'f', 2, 64))

	// Send decompressed data
	c.Data(http.StatusOK, "application/octet-stream", decompressedData)
}

// HandleInfo provides information about supported formats
func (h *Handler) HandleInfo(c *gin.Context) {
	info := map[string]interface{}{
		"service": "DEFLATE Decompression Service",
		"version": config.VERSION,
		"formats": map[string]interface{}{
			"supported": compression.GetSupportedFormats(),
			"descriptions": map[string]string{
				"flate": "Raw DEFLATE stream (RFC 1951)",
				"zlib":  "ZLIB container with Adler-32 trailer (RFC 1950)",
				"gzip":  "GZIP members with CRC-32 trailers (RFC 1952)",
			},
		},
		"limits": map[string]interface{}{
			"max_file_size": fmt.Sprintf("%d bytes (%.1f MB)", h.cfg.MaxFileSize, float64(h.cfg.MaxFileSize)/(1024*1024)),
		},
		"endpoints": map[string]interface{}{
			"decompress": "POST /decompress - Upload file for decompression",
			"info":       "GET /info - Get service information",
			"health":     "GET /health - Health check",
		},
	}

	c.JSON(http.StatusOK, info)
}

// HandleHealth provides a simple health check endpoint
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "inflate-service",
	})
}

// Helper functions
func getBaseFilename(filename string) string {
	if filename == "" {
		return "file"
	}

	// Remove extension
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i]
		}
	}
	return filename
}
