// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package inputs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Scan returns all regular files under folder (recursively) accepted by filter,
// in lexical order. Symlinks to regular files are included,
// symlinked directories are not descended into.
func Scan(folder string, filter *Filter) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to read folder: %v is not a directory", folder)
	}
	var files []string
	err = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if isRegular(path, d) && filter.Match(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}
	return files, nil
}

func isRegular(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadList reads a list file: one path per line.
// Paths are taken verbatim (only a trailing \r is dropped), blank lines are skipped.
func ReadList(list string) ([]string, error) {
	data, err := os.ReadFile(list)
	if err != nil {
		return nil, fmt.Errorf("failed to read list: %w", err)
	}
	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) != "" {
			files = append(files, line)
		}
	}
	return files, nil
}
