// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fs confines file access to a configured root. Recording
// artifacts are addressed by names taken from manifests, so every
// path is treated as hostile until it resolves inside the root.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfineRelPath joins root and relTarget and ensures the result lies
// physically underneath the resolved root. It protects against symlink
// traversal and backslash bypass. The target must be relative.
func ConfineRelPath(root, relTarget string) (string, error) {
	if strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", relTarget)
	}

	cleanRel := filepath.Clean(relTarget)
	if filepath.IsAbs(cleanRel) || strings.HasPrefix(cleanRel, "/") {
		return "", fmt.Errorf("target path must be relative: %s", relTarget)
	}
	if escapesUpward(cleanRel) {
		return "", fmt.Errorf("path traversal attempt: %s", relTarget)
	}

	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}
	return resolveAndCheck(realRoot, filepath.Join(realRoot, cleanRel))
}

// ConfineAbsPath ensures targetAbs lies physically underneath the
// resolved root. The target must be absolute.
func ConfineAbsPath(rootAbs, targetAbs string) (string, error) {
	if strings.Contains(targetAbs, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", targetAbs)
	}
	if !filepath.IsAbs(targetAbs) {
		return "", fmt.Errorf("target path must be absolute: %s", targetAbs)
	}

	realRoot, err := resolveRoot(rootAbs)
	if err != nil {
		return "", err
	}
	return resolveAndCheck(realRoot, filepath.Clean(targetAbs))
}

// IsRegularFile checks that path exists and is a regular file.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}

// escapesUpward reports whether a cleaned relative path starts outside
// its base. filepath.Clean already folded interior ".." segments, so
// only a leading ".." can escape.
func escapesUpward(cleanRel string) bool {
	return cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator))
}

func resolveRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		realRoot = absRoot
	}
	return realRoot, nil
}

// resolveAndCheck resolves fullPath through symlinks and verifies it
// stays within realRoot. A missing leaf is tolerated as long as its
// parent resolves inside the root, so callers can confine paths they
// are about to create.
func resolveAndCheck(realRoot, fullPath string) (string, error) {
	realPath, err := resolveTarget(realRoot, fullPath)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil {
		return "", fmt.Errorf("rel computation failed: %w", err)
	}
	if escapesUpward(rel) {
		return "", fmt.Errorf("path escapes root via symlinks: %s", realPath)
	}
	return realPath, nil
}

func resolveTarget(realRoot, fullPath string) (string, error) {
	if _, err := os.Lstat(fullPath); err == nil {
		rp, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			// Fail closed on anything that exists but cannot be resolved.
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		return rp, nil
	}

	dir := filepath.Dir(fullPath)
	rp, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return filepath.Join(rp, filepath.Base(fullPath)), nil
	}
	if _, statErr := os.Stat(dir); statErr == nil {
		return "", fmt.Errorf("failed to resolve parent path: %v", err)
	}
	// Neither leaf nor parent exists; the Rel check still guards the result.
	return fullPath, nil
}
