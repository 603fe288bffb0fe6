package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/batik-classifier/internal/imageprocessor"
	"github.com/example/batik-classifier/internal/repository"
	"github.com/example/batik-classifier/internal/usecase"
	"github.com/example/batik-classifier/web"
)

// DefaultMaxUploadSize caps JSON bodies carrying base64 images.
const DefaultMaxUploadSize int64 = 10 << 20

const (
	msgNoImage     = "Tidak ada data gambar yang disediakan"
	msgImageSaved  = "Gambar berhasil disimpan"
	defaultListing = 20
	maxListing     = 100
)

// Classifier is the classification use case as seen by the HTTP layer.
type Classifier interface {
	Classify(ctx context.Context, imageBytes []byte) (*usecase.Classification, error)
	GetResult(ctx context.Context, requestID string) (*usecase.Classification, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// CaptureService is the capture use case as seen by the HTTP layer.
type CaptureService interface {
	Save(ctx context.Context, data []byte) (string, error)
	ListCaptures(ctx context.Context, limit int) ([]*repository.CaptureRecord, error)
}

type imageRequest struct {
	Image *string `json:"image"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, classifier Classifier, captures CaptureService, authMiddleware gin.HandlerFunc, maxUploadSize int64) {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}

	router.GET("/", servePage("dashboard.html"))
	router.GET("/camera", servePage("camera.html"))
	router.StaticFS("/static", http.FS(web.Static()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/predict_realtime", func(c *gin.Context) {
		payload, ok := readImagePayload(c, maxUploadSize)
		if !ok {
			return
		}

		data, err := imageprocessor.DecodePayload(payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		result, err := classifier.Classify(c.Request.Context(), data)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":      result.RequestID,
			"top_prediction":  result.TopPrediction,
			"all_predictions": result.AllPredictions,
		})
	})

	router.POST("/upload_and_save", func(c *gin.Context) {
		payload, ok := readImagePayload(c, maxUploadSize)
		if !ok {
			return
		}

		data, err := imageprocessor.DecodePayload(payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		filename, err := captures.Save(c.Request.Context(), data)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": msgImageSaved, "filename": filename})
	})

	api := router.Group("/api", authMiddleware)

	api.GET("/results/:id", func(c *gin.Context) {
		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		result, err := classifier.GetResult(c.Request.Context(), requestID)
		if errors.Is(err, usecase.ErrResultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
			return
		}

		c.JSON(http.StatusOK, result)
	})

	api.GET("/captures", func(c *gin.Context) {
		limit := defaultListing
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxListing {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
				return
			}
			limit = n
		}

		records, err := captures.ListCaptures(c.Request.Context(), limit)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list captures"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"captures": records})
	})

	api.GET("/metrics", func(c *gin.Context) {
		summary, err := classifier.GetMetricsSummary(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// readImagePayload parses {"image": "..."} and writes the 400/413 response
// itself when the body is unusable.
func readImagePayload(c *gin.Context, maxUploadSize int64) (string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image payload too large"})
			return "", false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoImage})
		return "", false
	}
	if req.Image == nil || *req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoImage})
		return "", false
	}
	return *req.Image, true
}

func servePage(name string) gin.HandlerFunc {
	page, err := fs.ReadFile(web.Pages(), name)
	if err != nil {
		panic(err)
	}
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	}
}
