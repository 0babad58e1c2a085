// Package coretools registers a baseline set of tools against a registry:
// workspace file access on the inline lane, network fetches on the
// concurrent lane, and content digests on the isolated lane.
package coretools

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mirel/lanes/pkg/tool"
)

const defaultMaxReadBytes = 200000

// Options configures core tool registration.
type Options struct {
	// WorkspaceRoot confines file tools. Required.
	WorkspaceRoot string

	// HTTPClient serves fetch_url. Defaults to a client with a 10s timeout.
	HTTPClient *http.Client

	// MaxReadBytes caps read_file and fetch_url payloads. Defaults to 200KB.
	MaxReadBytes int64
}

// RegisterCoreTools registers the baseline tools.
func RegisterCoreTools(registry *tool.Registry, opts Options) error {
	if registry == nil {
		return errors.New("registry is required")
	}
	if strings.TrimSpace(opts.WorkspaceRoot) == "" {
		return errors.New("workspace root is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.MaxReadBytes <= 0 {
		opts.MaxReadBytes = defaultMaxReadBytes
	}

	tools := []tool.Definition{
		readFileTool(opts),
		writeFileTool(opts),
		listDirTool(opts),
		fetchURLTool(opts),
		digestTool(),
	}

	for _, def := range tools {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}

	return nil
}

func readFileTool(opts Options) tool.Definition {
	return tool.Definition{
		Name:        "read_file",
		Description: "Read a file from the workspace.",
		Parameters: []tool.Parameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "number", Description: "Maximum bytes to read", Required: false, Default: defaultMaxReadBytes},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}

			maxBytes := opts.MaxReadBytes
			if raw, ok := args["max_bytes"].(float64); ok && raw > 0 {
				maxBytes = int64(raw)
			}

			data, truncated, err := readFileWithLimit(target, maxBytes)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":      pathValue,
				"content":   string(data),
				"truncated": truncated,
				"bytes":     len(data),
			}, nil
		},
	}
}

func writeFileTool(opts Options) tool.Definition {
	return tool.Definition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace.",
		Parameters: []tool.Parameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
			{Name: "append", Type: "boolean", Description: "Append instead of overwrite", Required: false},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}
			content, _ := args["content"].(string)
			appendMode, _ := args["append"].(bool)

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}

			flag := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flag |= os.O_APPEND
			} else {
				flag |= os.O_TRUNC
			}
			file, err := os.OpenFile(target, flag, 0644)
			if err != nil {
				return nil, err
			}
			defer file.Close()

			if _, err := file.WriteString(content); err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":   pathValue,
				"bytes":  len(content),
				"append": appendMode,
			}, nil
		},
	}
}

func listDirTool(opts Options) tool.Definition {
	return tool.Definition{
		Name:        "list_dir",
		Description: "List entries of a workspace directory.",
		Parameters: []tool.Parameter{
			{Name: "path", Type: "string", Description: "Relative directory path", Required: true},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}

			entries, err := os.ReadDir(target)
			if err != nil {
				return nil, err
			}

			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}

			return map[string]interface{}{
				"path":    pathValue,
				"entries": names,
			}, nil
		},
	}
}

func fetchURLTool(opts Options) tool.Definition {
	return tool.Definition{
		Name:         "fetch_url",
		Description:  "Fetch a URL over HTTP and return the response body.",
		AsyncCapable: true,
		Parameters: []tool.Parameter{
			{Name: "url", Type: "string", Description: "URL to fetch", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			rawURL, _ := args["url"].(string)
			if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
				return nil, fmt.Errorf("url must be http or https: %q", rawURL)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, err
			}

			resp, err := opts.HTTPClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxReadBytes))
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"url":         rawURL,
				"status_code": resp.StatusCode,
				"body":        string(body),
				"bytes":       len(body),
			}, nil
		},
	}
}

func digestTool() tool.Definition {
	return tool.Definition{
		Name:         "digest",
		Description:  "Compute the SHA-256 digest of a payload, optionally iterated.",
		ComputeHeavy: true,
		Parameters: []tool.Parameter{
			{Name: "content", Type: "string", Description: "Payload to digest", Required: true},
			{Name: "iterations", Type: "number", Description: "Rehash count", Required: false, Default: 1},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			content, _ := args["content"].(string)

			iterations := 1
			if raw, ok := args["iterations"].(float64); ok && raw > 0 {
				iterations = int(raw)
			}

			sum := sha256.Sum256([]byte(content))
			for i := 1; i < iterations; i++ {
				if i%4096 == 0 && ctx.Err() != nil {
					return nil, ctx.Err()
				}
				sum = sha256.Sum256(sum[:])
			}

			return map[string]interface{}{
				"digest":     hex.EncodeToString(sum[:]),
				"iterations": iterations,
			}, nil
		},
	}
}

// resolvePathInWorkspace joins a relative path onto the workspace root and
// rejects anything that escapes it.
func resolvePathInWorkspace(workspaceRoot, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", fmt.Errorf("path is required")
	}

	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside workspace root", pathValue)
	}

	return candidate, nil
}

func readFileWithLimit(path string, limit int64) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, file, limit); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}

	truncated := false
	extra := make([]byte, 1)
	if _, err := file.Read(extra); err == nil {
		truncated = true
	}

	return buf.Bytes(), truncated, nil
}
