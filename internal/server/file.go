package server

import (
	"fmt"
	"os"
	"path/filepath"
)

// ServeFile returns a RouteFunc that serves the contents of name under root
// as a 200 response. A missing or unreadable file maps to the NotFound
// fallback. name is cleaned against the root so a registered route cannot
// escape it.
func ServeFile(root, name string) RouteFunc {
	path := filepath.Join(root, filepath.Clean("/"+name))
	return func(Request) (string, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, ErrNotFound)
		}
		return string(b), nil
	}
}
