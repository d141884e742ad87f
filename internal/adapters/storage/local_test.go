package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestIsCatalogDocument(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"catalog.json", true},
		{"city-scans/collection.json", true},
		{"city-scans/scan-001.json", true},
		{"city-scans/scan-001-en.json", false},
		{"index/items.parquet", false},
		{"index/catalog_metadata.json", false},
		{"data/scan-001.laz", false},
		{"data/readme.json", false},
		{"notes.txt", false},
		{"CATALOG.JSON", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsCatalogDocument(tt.key); got != tt.want {
				t.Errorf("IsCatalogDocument(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestNewLocalStorage(t *testing.T) {
	storage := NewLocalStorage("/tmp/test")

	if storage == nil {
		t.Fatal("NewLocalStorage() returned nil")
	}

	if storage.basePath != "/tmp/test" {
		t.Errorf("basePath = %q, want %q", storage.basePath, "/tmp/test")
	}
}

func TestLocalStorageList(t *testing.T) {
	tmpDir := t.TempDir()

	// Only .json documents outside index/ and data/, minus -en variants,
	// should be listed.
	testFiles := []string{
		"catalog.json",
		"city-scans/collection.json",
		"city-scans/scan-001.json",
		"city-scans/scan-001-en.json",
		"index/catalog_metadata.json",
		"data/payload.json",
		"readme.md",
	}

	for _, f := range testFiles {
		path := filepath.Join(tmpDir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}

	storage := NewLocalStorage(tmpDir)
	objects, err := storage.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(objects) != 3 {
		keys := make([]string, 0, len(objects))
		for _, o := range objects {
			keys = append(keys, o.Key)
		}
		t.Errorf("len(objects) = %d, want 3 (got %v)", len(objects), keys)
	}

	for _, obj := range objects {
		if obj.Size != 2 {
			t.Errorf("object %q size = %d, want 2", obj.Key, obj.Size)
		}
		if obj.LastModified == 0 {
			t.Errorf("object %q LastModified should not be 0", obj.Key)
		}
	}
}

func TestLocalStorageListEmpty(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())
	objects, err := storage.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(objects) != 0 {
		t.Errorf("len(objects) = %d, want 0", len(objects))
	}
}

func TestLocalStorageListNonExistent(t *testing.T) {
	storage := NewLocalStorage("/nonexistent/path")
	_, err := storage.List(context.Background())
	if err == nil {
		t.Error("List() should error for non-existent path")
	}
}

func TestLocalStorageExists(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "exists.json")
	if err := os.WriteFile(testFile, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	storage := NewLocalStorage(tmpDir)

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"existing file", "exists.json", true},
		{"non-existing file", "nonexistent.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := storage.Exists(context.Background(), tt.key)
			if err != nil {
				t.Errorf("Exists() error = %v", err)
			}
			if exists != tt.want {
				t.Errorf("Exists() = %v, want %v", exists, tt.want)
			}
		})
	}
}

func TestLocalStorageGetReader(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := `{"type":"Catalog"}`
	testFile := filepath.Join(tmpDir, "catalog.json")
	if err := os.WriteFile(testFile, []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	storage := NewLocalStorage(tmpDir)

	reader, err := storage.GetReader(context.Background(), "catalog.json")
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	defer func() { _ = reader.Close() }()

	buf := make([]byte, len(testContent))
	n, err := reader.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != len(testContent) {
		t.Errorf("Read() n = %d, want %d", n, len(testContent))
	}
	if string(buf) != testContent {
		t.Errorf("content = %q, want %q", string(buf), testContent)
	}
}

func TestLocalStorageGetReaderNonExistent(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())
	_, err := storage.GetReader(context.Background(), "nonexistent.json")
	if err == nil {
		t.Error("GetReader() should error for non-existent file")
	}
}

func TestLocalStorageDownload(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	testContent := `{"type":"Feature","id":"x"}`
	srcFile := filepath.Join(srcDir, "source.json")
	if err := os.WriteFile(srcFile, []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}

	storage := NewLocalStorage(srcDir)
	destFile := filepath.Join(destDir, "dest.json")

	if err := storage.Download(context.Background(), "source.json", destFile); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	content, err := os.ReadFile(destFile)
	if err != nil {
		t.Fatalf("failed to read dest file: %v", err)
	}
	if string(content) != testContent {
		t.Errorf("content = %q, want %q", string(content), testContent)
	}
}

func TestLocalStorageDownloadSameFile(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.json")
	if err := os.WriteFile(testFile, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	storage := NewLocalStorage(tmpDir)

	// Download to same location should be a no-op
	if err := storage.Download(context.Background(), "test.json", testFile); err != nil {
		t.Errorf("Download() to same location should not error, got: %v", err)
	}
}

func TestLocalStorageDownloadNonExistent(t *testing.T) {
	tmpDir := t.TempDir()

	storage := NewLocalStorage(tmpDir)
	err := storage.Download(context.Background(), "nonexistent.json", filepath.Join(tmpDir, "dest.json"))
	if err == nil {
		t.Error("Download() should error for non-existent source")
	}
}

func TestLocalStorageDownloadCreatesDir(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	srcFile := filepath.Join(srcDir, "source.json")
	if err := os.WriteFile(srcFile, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}

	storage := NewLocalStorage(srcDir)

	destFile := filepath.Join(destDir, "nested", "deep", "dest.json")

	if err := storage.Download(context.Background(), "source.json", destFile); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if _, err := os.Stat(destFile); os.IsNotExist(err) {
		t.Error("destination file should exist")
	}
}

func TestLocalStorageFullPath(t *testing.T) {
	storage := NewLocalStorage("/data/catalog")

	tests := []struct {
		key  string
		want string
	}{
		{"catalog.json", "/data/catalog/catalog.json"},
		{"city-scans/scan-001.json", "/data/catalog/city-scans/scan-001.json"},
		{"", "/data/catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := storage.FullPath(tt.key); got != tt.want {
				t.Errorf("FullPath(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
