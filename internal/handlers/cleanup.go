package handlers

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// FileCleanupService removes aged scratch files left behind by template
// processing and local-fallback staging.
type FileCleanupService struct {
	dirs   []string
	maxAge time.Duration
	ticker *time.Ticker
	done   chan bool
}

func NewFileCleanupService(maxAge time.Duration, dirs ...string) *FileCleanupService {
	return &FileCleanupService{
		dirs:   dirs,
		maxAge: maxAge,
		done:   make(chan bool),
	}
}

func (fcs *FileCleanupService) Start() {
	fcs.ticker = time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-fcs.done:
				return
			case <-fcs.ticker.C:
				for _, dir := range fcs.dirs {
					fcs.cleanupDirectory(dir)
				}
			}
		}
	}()
	log.Println("File cleanup service started")
}

func (fcs *FileCleanupService) Stop() {
	if fcs.ticker != nil {
		fcs.ticker.Stop()
	}
	fcs.done <- true
	log.Println("File cleanup service stopped")
}

func (fcs *FileCleanupService) cleanupDirectory(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return
	}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && time.Since(info.ModTime()) > fcs.maxAge {
			log.Printf("Cleaning up old file: %s", path)
			return os.Remove(path)
		}
		return nil
	})
	if err != nil {
		log.Printf("Error during cleanup of %s: %v", dir, err)
	}
}
