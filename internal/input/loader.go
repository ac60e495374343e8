package input

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/pkg/failure"
)

/*
Responsibilities

- Read the input URL file (line-delimited or single-column CSV)
- Skip blanks and comments, strip BOM, deduplicate
- Derive the canonical line-delimited form on first use

The loader does not validate URL structure: syntactically broken lines are
kept so each input still produces exactly one record downstream
(invalid_url). It only owns file-shape concerns.
*/

type Loader struct {
	metadataSink metadata.MetadataSink
}

func NewLoader(metadataSink metadata.MetadataSink) Loader {
	return Loader{
		metadataSink: metadataSink,
	}
}

// Load reads all usable URLs from path, in order, first occurrence winning
// on duplicates. The canonical line-delimited form is written next to the
// source as <name>.canonical.txt when it does not already exist.
func (l *Loader) Load(path string) ([]string, failure.ClassifiedError) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &InputError{
				Message:   fmt.Sprintf("%v", err),
				Retryable: false,
				Cause:     ErrCauseFileMissing,
			}
		}
		return nil, &InputError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCauseFileUnreadable,
		}
	}
	defer file.Close()

	// first occurrence wins on duplicates
	seen := make(map[string]struct{})
	var urls []string

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		candidate := extractURL(line)
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		urls = append(urls, candidate)
	}
	if err := scanner.Err(); err != nil {
		return nil, &InputError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCauseFileUnreadable,
		}
	}

	if len(urls) == 0 {
		return nil, &InputError{
			Message:   fmt.Sprintf("no URLs found in %s", path),
			Retryable: false,
			Cause:     ErrCauseEmptyInput,
		}
	}

	l.deriveCanonical(path, urls)

	return urls, nil
}

// extractURL pulls the URL out of one raw input line. CSV rows keep their
// first cell; header-looking cells and comments yield empty.
func extractURL(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ""
	}
	// single-column CSV: take the first cell
	if idx := strings.IndexByte(trimmed, ','); idx != -1 {
		trimmed = strings.TrimSpace(trimmed[:idx])
	}
	trimmed = strings.Trim(trimmed, `"`)
	if trimmed == "" {
		return ""
	}
	// common CSV header cell
	if strings.EqualFold(trimmed, "url") || strings.EqualFold(trimmed, "urls") {
		return ""
	}
	return trimmed
}

// deriveCanonical writes the canonical one-URL-per-line form next to the
// source file. Failure to write is a warning, never fatal: the in-memory
// list is authoritative for this run.
func (l *Loader) deriveCanonical(sourcePath string, urls []string) {
	ext := filepath.Ext(sourcePath)
	canonicalPath := strings.TrimSuffix(sourcePath, ext) + ".canonical.txt"

	if _, err := os.Stat(canonicalPath); err == nil {
		return
	}

	content := strings.Join(urls, "\n") + "\n"
	if err := os.WriteFile(canonicalPath, []byte(content), 0644); err != nil {
		l.metadataSink.RecordError(
			time.Now(),
			"input",
			"Loader.deriveCanonical",
			metadata.CauseStorageFailure,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrWritePath, canonicalPath),
			},
		)
		return
	}
	l.metadataSink.RecordArtifact(
		metadata.ArtifactInput,
		canonicalPath,
		nil,
	)
}
