package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"certforge/internal"
	"certforge/internal/models"
	"certforge/internal/storage"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "certforge_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, internal.Migrate(db))
	return db
}

func newTestStore(t *testing.T) *storage.LocalBackend {
	t.Helper()
	store, err := storage.NewLocalBackend(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)
	return store
}

// buildDocxTemplate assembles a minimal DOCX archive whose document body is the
// given XML fragment.
func buildDocxTemplate(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(`<w:document><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// documentText extracts the document.xml payload of a rendered DOCX so tests
// can assert on the substituted text.
func documentText(t *testing.T, docx []byte) string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	require.NoError(t, err)
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			raw, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(raw)
		}
	}
	t.Fatal("rendered archive has no word/document.xml")
	return ""
}

func seedEvent(t *testing.T, db *gorm.DB) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:       uuid.New().String(),
		Title:    "Go Conference 2026",
		Location: "Jakarta",
		StartsAt: time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func seedRegistration(t *testing.T, db *gorm.DB, eventID, name string, attended bool, attendedAt time.Time) *models.Registration {
	t.Helper()
	registration := &models.Registration{
		ID:      uuid.New().String(),
		EventID: eventID,
		Name:    name,
		Email:   fmt.Sprintf("%s@example.com", uuid.New().String()[:8]),
		Phone:   "+62 812 0000 0000",
	}
	registration.Attended = attended
	if attended {
		at := attendedAt
		registration.AttendedAt = &at
	}
	require.NoError(t, db.Create(registration).Error)
	return registration
}
