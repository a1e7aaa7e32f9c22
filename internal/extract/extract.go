package extract

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoExtractor means the type is recognised but this build cannot read it.
	ErrNoExtractor = errors.New("no extractor available for file type")
)

var recognised = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".docx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Extract returns the plain text of the file at path. Text files are prefixed
// with their name. A file with nothing but whitespace yields "".
func Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !recognised[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if ext != ".txt" {
		return "", fmt.Errorf("%w: %q", ErrNoExtractor, ext)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	text := title + "\n" + string(content)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}

// Text is Extract with every failure logged and turned into "".
func Text(path string) string {
	text, err := Extract(path)
	if err != nil {
		log.Printf("Error extracting %s: %v", path, err)
		return ""
	}
	if text == "" {
		log.Printf("No text extracted from %s", path)
		return ""
	}
	log.Printf("File loaded successfully (%d characters).", len(text))
	return text
}
