// Package files_manager handles batch input discovery and output naming.
package files_manager

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"isyntax2tiff/tiffwriter"
)

// FindSlideFiles lists files in dir whose extension matches one of
// extensions (case insensitive), sorted by name. macOS resource forks
// ("._" prefixes) are skipped.
func FindSlideFiles(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		wanted[strings.ToLower(ext)] = true
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "._") {
			continue
		}
		if wanted[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Characters that cause trouble in shells and network file systems.
const problematicChars = `()[]{}<>|&;*?"' `

// OutputPath maps an input slide path to its .tiff path under outputDir.
// The stem is sanitized: problematic characters become single underscores,
// so S114-99047-A-PAX8(MRQ50).isyntax becomes S114-99047-A-PAX8_MRQ50.tiff.
func OutputPath(inputPath, outputDir string) string {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(outputDir, sanitizeStem(stem)+".tiff")
}

func sanitizeStem(stem string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range stem {
		if strings.ContainsRune(problematicChars, r) {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteRune(r)
		lastUnderscore = r == '_'
	}
	return strings.Trim(b.String(), "_")
}

// ShouldSkip reports whether outputPath already holds a finished
// conversion: the file exists, is non-empty and starts with a valid
// container header.
func ShouldSkip(outputPath string) bool {
	fi, err := os.Stat(outputPath)
	if err != nil || fi.Size() == 0 {
		return false
	}
	return tiffwriter.CheckHeader(outputPath) == nil
}
