// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value. Secrets stay out of the
// config file so configs can be committed.
//
// Recognized key files: feed-auth-token (bearer token for feed requests),
// admin-token (guards the refresh endpoint).
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Key names recognized by Apply.
const (
	KeyFeedAuthToken = "feed-auth-token"
	KeyAdminToken    = "admin-token"
)

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory or missing files are not errors; Load returns
// an empty map. Unreadable files produce a warning on stderr but do not
// abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply copies recognized secrets into the config fields that consume them.
// Unrecognized keys are ignored so the directory can be shared with other
// tools.
func Apply(secrets map[string]string, cfg *types.Config) {
	if v, ok := secrets[KeyFeedAuthToken]; ok {
		cfg.Feed.AuthToken = v
	}
	if v, ok := secrets[KeyAdminToken]; ok {
		cfg.Server.AdminToken = v
	}
}
