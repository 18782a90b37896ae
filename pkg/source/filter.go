package source

import (
	"path"
	"strings"
)

// DefaultMaxFileSize is the largest file, in bytes, that gets indexed.
const DefaultMaxFileSize = 100000

var textExtensions = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".vue": true, ".svelte": true,
	".py": true, ".rb": true, ".php": true, ".java": true, ".c": true, ".cpp": true,
	".cs": true, ".go": true, ".rs": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".sass": true, ".less": true,
	".json": true, ".xml": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true,
	".md": true, ".txt": true, ".rst": true, ".tex": true,
	".sh": true, ".bat": true, ".ps1": true,
	".sql": true, ".graphql": true, ".gql": true,
	".dockerfile": true, ".dockerignore": true, ".gitignore": true, ".gitattributes": true,
	".env": true,
	".config": true, ".conf": true, ".cfg": true,
}

var textFilenames = map[string]bool{
	"dockerfile": true,
	"makefile":   true,
	"readme":     true,
}

var languages = map[string]string{
	".js":      "javascript",
	".jsx":     "javascript",
	".ts":      "typescript",
	".tsx":     "typescript",
	".vue":     "vue",
	".svelte":  "svelte",
	".py":      "python",
	".rb":      "ruby",
	".php":     "php",
	".java":    "java",
	".c":       "c",
	".cpp":     "cpp",
	".cs":      "csharp",
	".go":      "go",
	".rs":      "rust",
	".html":    "html",
	".htm":     "html",
	".css":     "css",
	".scss":    "scss",
	".sass":    "sass",
	".less":    "less",
	".json":    "json",
	".xml":     "xml",
	".yaml":    "yaml",
	".yml":     "yaml",
	".toml":    "toml",
	".md":      "markdown",
	".txt":     "text",
	".sh":      "bash",
	".sql":     "sql",
	".graphql": "graphql",
	".gql":     "graphql",
}

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// Filter decides which files of a snapshot are indexed.
type Filter struct {
	// MaxFileSize in bytes. Zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// Allow reports whether a file at p with the given size should be indexed.
func (f Filter) Allow(p string, size int64) bool {
	limit := f.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if size > limit {
		return false
	}
	if InSkippedDir(p) {
		return false
	}
	return IsTextFile(p)
}

// IsTextFile reports whether p has a known text extension or filename.
func IsTextFile(p string) bool {
	name := strings.ToLower(path.Base(p))
	if textFilenames[name] || strings.HasPrefix(name, ".env") {
		return true
	}
	return textExtensions[path.Ext(name)]
}

// Language maps a path to a language name, "" when unknown.
func Language(p string) string {
	return languages[strings.ToLower(path.Ext(p))]
}

// SkipDir reports whether a directory with this base name is never indexed.
func SkipDir(name string) bool {
	return skippedDirs[name]
}

// InSkippedDir reports whether any directory component of the slash
// separated path p is skipped.
func InSkippedDir(p string) bool {
	dir := path.Dir(p)
	for dir != "." && dir != "/" && dir != "" {
		if skippedDirs[path.Base(dir)] {
			return true
		}
		dir = path.Dir(dir)
	}
	return false
}
