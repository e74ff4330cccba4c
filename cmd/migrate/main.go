package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"camnet/internal/model"
	"camnet/internal/repository/sqlite"
	"camnet/internal/service/storage"
)

// migrate indexes photos that are on disk but missing from the database, for
// example after restoring an image directory from a backup.
func main() {
	imagesDir := flag.String("images", "images", "Directory containing photos")
	dbPath := flag.String("db", "data/camnet.db", "Database path")
	flag.Parse()

	fmt.Printf("Indexing photos from %s into database %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	photos := sqlite.NewPhotoRepository(db)

	files, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	indexed, known, skipped := 0, 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		existing, err := photos.GetByFilename(file.Name())
		if err != nil {
			log.Fatalf("Failed to query database: %v", err)
		}
		if existing != nil {
			known++
			continue
		}

		timestamp, camera, label, err := storage.ParsePhotoFilename(file.Name())
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("⚠️  Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		_, err = photos.Insert(&model.Photo{
			Filename:  file.Name(),
			Camera:    camera,
			Label:     label,
			Timestamp: timestamp,
			FilePath:  filepath.Join(*imagesDir, file.Name()),
			FileSize:  info.Size(),
		})
		if err != nil {
			log.Printf("⚠️  Failed to index %s: %v", file.Name(), err)
			skipped++
			continue
		}
		indexed++
	}

	fmt.Printf("✅ Indexed %d photos (%d already indexed, %d skipped)\n", indexed, known, skipped)
}
