package services

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"certforge/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogService records API requests, keeping generation request bodies
// so past batch inputs stay auditable.
type ActivityLogService struct {
	db *gorm.DB
}

func NewActivityLogService(db *gorm.DB) *ActivityLogService {
	return &ActivityLogService{db: db}
}

const maxLoggedBody = 10000 // bytes

// LoggingMiddleware captures POST/PUT bodies and persists one row per request
// after it completes. Persistence happens off the request path; a failed log
// write never fails the request.
func (s *ActivityLogService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var requestBody string
		if (c.Request.Method == "POST" || c.Request.Method == "PUT") && c.Request.Body != nil {
			bodyBytes, err := io.ReadAll(c.Request.Body)
			if err == nil {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				if len(bodyBytes) > maxLoggedBody {
					requestBody = fmt.Sprintf("[truncated %d bytes] %s", len(bodyBytes), bodyBytes[:200])
				} else {
					requestBody = string(bodyBytes)
				}
			}
		}

		c.Next()

		entry := &models.ActivityLog{
			ID:          uuid.New().String(),
			Method:      c.Request.Method,
			Path:        c.Request.URL.Path,
			ClientIP:    c.ClientIP(),
			RequestBody: requestBody,
			StatusCode:  c.Writer.Status(),
			DurationMS:  time.Since(start).Milliseconds(),
			CreatedAt:   time.Now(),
		}
		go func() {
			if err := s.db.Create(entry).Error; err != nil {
				fmt.Printf("Failed to save activity log: %v\n", err)
			}
		}()
	}
}

// List returns recent logs, newest first, optionally filtered by method or a
// path fragment.
func (s *ActivityLogService) List(limit, offset int, method, path string) ([]models.ActivityLog, int64, error) {
	query := s.db.Model(&models.ActivityLog{})
	if method != "" {
		query = query.Where("method = ?", method)
	}
	if path != "" {
		query = query.Where("path LIKE ?", "%"+path+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	var logs []models.ActivityLog
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logs: %w", err)
	}
	return logs, total, nil
}
