// Package liveedit is the per-site mutable live-edit workspace (C8): a
// working copy of the last successful build's optimized output that a
// user (or the oracle, via the plan/approve/execute chat protocol) can
// read, edit, and redeploy without running a full build.
package liveedit

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/staticforge/staticforge/internal/adapters"
	"github.com/staticforge/staticforge/internal/events"
	"github.com/staticforge/staticforge/internal/store"
	"github.com/staticforge/staticforge/internal/xerrors"
)

// Manager serves the live-edit workspace for every site. One instance
// is shared across the API process.
type Manager struct {
	Store     *store.Store
	Publisher *events.Publisher
	Deployer  adapters.EdgeDeployer
	Oracle    adapters.Oracle
	DataRoot  string

	mu    sync.RWMutex
	plans map[string]*PlanOutput // siteId -> latest plan, superseded on a new Plan call
}

func New(st *store.Store, pub *events.Publisher, deployer adapters.EdgeDeployer, oracle adapters.Oracle, dataRoot string) *Manager {
	return &Manager{Store: st, Publisher: pub, Deployer: deployer, Oracle: oracle, DataRoot: dataRoot, plans: make(map[string]*PlanOutput)}
}

func (m *Manager) root(siteID string) string {
	return filepath.Join(m.DataRoot, "workspaces", siteID)
}

// EnsureWorkspace idempotently creates the workspace by copying the
// site's most recent successful build's optimized output. A workspace
// that already exists on disk is left alone — EnsureWorkspace is about
// getting a starting point, not resetting in-progress edits.
func (m *Manager) EnsureWorkspace(ctx context.Context, siteID string) (string, error) {
	root := m.root(siteID)
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		return root, nil
	}

	site, err := m.Store.GetSite(ctx, siteID)
	if err != nil {
		return "", err
	}
	if site.LastBuildID == nil || site.LastBuildStatus == nil || *site.LastBuildStatus != string(store.BuildSuccess) {
		return "", xerrors.ErrNotFound
	}

	srcDir := filepath.Join(m.DataRoot, "builds", *site.LastBuildID, "optimized")
	if err := copyTree(srcDir, root); err != nil {
		return "", fmt.Errorf("liveedit: seed workspace: %w", err)
	}
	return root, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}

// ListFiles returns every file path relative to the workspace root.
func (m *Manager) ListFiles(ctx context.Context, siteID string) ([]string, error) {
	root, err := m.EnsureWorkspace(ctx, siteID)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}

// resolvePath guards against path traversal: the cleaned, joined path
// must remain inside root.
func resolvePath(root, path string) (string, error) {
	cleaned := filepath.Clean("/" + path) // force-root so ../ can't escape before the join
	full := filepath.Join(root, cleaned)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", xerrors.New(xerrors.ConfigError, "liveedit", "resolve-path", "path escapes workspace", nil)
	}
	return full, nil
}

// ReadFile reads path's UTF-8 content from siteID's workspace.
func (m *Manager) ReadFile(ctx context.Context, siteID, path string) (string, error) {
	root, err := m.EnsureWorkspace(ctx, siteID)
	if err != nil {
		return "", err
	}
	full, err := resolvePath(root, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", xerrors.ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// Edit is one file's full replacement content.
type Edit struct {
	Path       string `json:"path"`
	NewContent string `json:"newContent"`
}

// EditError names one edit that failed to apply.
type EditError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ApplyEdits writes every edit atomically (temp file in the same
// directory, then rename) and emits a patch event per file. A single
// failing edit doesn't abort the rest — each is independent.
func (m *Manager) ApplyEdits(ctx context.Context, siteID string, edits []Edit) (applied int, failures []EditError, err error) {
	root, err := m.EnsureWorkspace(ctx, siteID)
	if err != nil {
		return 0, nil, err
	}
	topic := events.Topic(events.KindLiveEdit, siteID)

	for _, edit := range edits {
		full, err := resolvePath(root, edit.Path)
		if err != nil {
			failures = append(failures, EditError{Path: edit.Path, Message: err.Error()})
			continue
		}
		if err := atomicWrite(full, []byte(edit.NewContent)); err != nil {
			failures = append(failures, EditError{Path: edit.Path, Message: err.Error()})
			continue
		}
		applied++
		m.Publisher.Publish(ctx, topic, events.TypePatch, events.PatchPayload{Path: edit.Path})
	}
	return applied, failures, nil
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Deploy uploads the current workspace to the edge provider under the
// site's existing project and updates the site's edgeUrl.
func (m *Manager) Deploy(ctx context.Context, siteID string) (string, error) {
	root, err := m.EnsureWorkspace(ctx, siteID)
	if err != nil {
		return "", err
	}
	site, err := m.Store.GetSite(ctx, siteID)
	if err != nil {
		return "", err
	}

	projectName := fmt.Sprintf("mls-%s", site.ID)
	result, err := m.Deployer.Deploy(ctx, projectName, root, site.SourceURL)
	if err != nil {
		return "", err
	}
	if err := m.Store.SetSiteEdgeURL(ctx, site.ID, result.URL); err != nil {
		return "", err
	}

	topic := events.Topic(events.KindLiveEdit, siteID)
	m.Publisher.Publish(ctx, topic, events.TypeDeploy, map[string]string{"url": result.URL})
	return result.URL, nil
}
