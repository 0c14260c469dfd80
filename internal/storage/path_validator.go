package storage

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"go-accounts/pkg/apierror"
)

// maxNameLength bounds a blob name; avatar names are short generated ids.
const maxNameLength = 128

// blobPath maps a flat blob name onto a file directly under rootAbs. Names
// may not contain separators, so nothing can land outside the root or in a
// subdirectory of it.
func blobPath(rootAbs, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	resolved := filepath.Join(rootAbs, name)
	if filepath.Dir(resolved) != rootAbs {
		return "", apierror.New("INVALID_NAME", "blob name escapes storage root", name, http.StatusBadRequest)
	}

	return resolved, nil
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return apierror.New("INVALID_NAME", "blob name is empty", name, http.StatusBadRequest)
	case len(name) > maxNameLength:
		return apierror.New("INVALID_NAME", fmt.Sprintf("blob name longer than %d bytes", maxNameLength), "", http.StatusBadRequest)
	case strings.ContainsAny(name, `/\`):
		return apierror.New("INVALID_NAME", "blob name must not contain separators", name, http.StatusBadRequest)
	case strings.HasPrefix(name, "."):
		return apierror.New("INVALID_NAME", "blob name must not be hidden", name, http.StatusBadRequest)
	}

	for _, char := range name {
		if unicode.IsControl(char) || unicode.Is(unicode.Cf, char) {
			return apierror.New("INVALID_NAME", "blob name contains control characters", "", http.StatusBadRequest)
		}
	}

	return nil
}

func resolveRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("storage root cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve storage root: %w", err)
	}

	return filepath.Clean(rootAbs), nil
}
