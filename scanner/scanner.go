package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

type FileInfo struct {
	Path string
	Size int64
}

// Scanner finds the files under a directory whose extension one of the
// loaded grammars handles.
type Scanner struct {
	rootDir    string
	extensions map[string]struct{}
	skipDirs   map[string]struct{}
}

var defaultSkipDirs = []string{".git", ".hg", ".svn", "node_modules"}

// New returns a scanner for rootDir. Extensions may be given with or
// without the leading dot; with none, every file is a target.
func New(rootDir string, extensions ...string) *Scanner {
	s := &Scanner{
		rootDir:    rootDir,
		extensions: make(map[string]struct{}, len(extensions)),
		skipDirs:   make(map[string]struct{}, len(defaultSkipDirs)),
	}
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extensions[ext] = struct{}{}
	}
	for _, dir := range defaultSkipDirs {
		s.skipDirs[dir] = struct{}{}
	}
	return s
}

// SkipDir adds directory names that are not descended into.
func (s *Scanner) SkipDir(names ...string) *Scanner {
	for _, name := range names {
		s.skipDirs[name] = struct{}{}
	}
	return s
}

// Scan walks the tree and returns the target files sorted by path.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if _, skip := s.skipDirs[d.Name()]; skip && path != s.rootDir {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.isTargetFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

func (s *Scanner) isTargetFile(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	_, ok := s.extensions[filepath.Ext(path)]
	return ok
}
