// Package assetstest provides an in-memory assets.Provider with
// deterministic ordering for tests.
package assetstest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/common/utils"
)

var _ assets.Provider = (*Memory)(nil)

// Memory stores assets in insertion order. Cursors are offsets into the
// filtered listing.
type Memory struct {
	mu     sync.Mutex
	assets []assets.Asset
	now    func() time.Time

	// Err, when set, is returned by every call.
	Err error
	// ListCalls counts ListAssets invocations.
	ListCalls int
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// SetNow overrides the creation timestamp source.
func (m *Memory) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Seed inserts an asset directly, bypassing Upload.
func (m *Memory) Seed(a assets.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.SecureURL == "" {
		a.SecureURL = "https://res.cloudinary.com/test/image/upload/" + a.PublicID
	}
	m.assets = append(m.assets, a)
}

// Len returns the number of stored assets.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}

func (m *Memory) Upload(_ context.Context, data []byte, folder, publicID string) (*assets.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	full := strings.Trim(folder, "/") + "/" + publicID
	for _, a := range m.assets {
		if a.PublicID == full {
			return nil, fmt.Errorf("resource already exists: %s", full)
		}
	}

	w, h := utils.Dimensions(data)
	format := strings.TrimPrefix(utils.DetectMIME(data), "image/")
	a := assets.Asset{
		PublicID:  full,
		SecureURL: "https://res.cloudinary.com/test/image/upload/" + full + "." + format,
		Width:     w,
		Height:    h,
		Format:    format,
		Bytes:     len(data),
		CreatedAt: m.now().UTC().Truncate(time.Second),
	}
	m.assets = append(m.assets, a)
	return &a, nil
}

func (m *Memory) ListAssets(_ context.Context, prefix string, maxResults int, cursor string) ([]assets.Asset, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.Err != nil {
		return nil, "", m.Err
	}

	var matched []assets.Asset
	for _, a := range m.assets {
		if strings.HasPrefix(a.PublicID, prefix) {
			matched = append(matched, a)
		}
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(matched) {
			return nil, "", fmt.Errorf("invalid next_cursor %q", cursor)
		}
		offset = n
	}
	end := offset + maxResults
	if end > len(matched) {
		end = len(matched)
	}

	page := append([]assets.Asset(nil), matched[offset:end]...)
	next := ""
	if end < len(matched) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

func (m *Memory) RootFolders(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.children(""), nil
}

func (m *Memory) SubFolders(_ context.Context, folder string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	prefix := strings.Trim(folder, "/") + "/"
	found := false
	for _, a := range m.assets {
		if strings.HasPrefix(a.PublicID, prefix) {
			found = true
			break
		}
	}
	if !found {
		return nil, assets.ErrFolderNotFound
	}
	return m.children(prefix), nil
}

func (m *Memory) Asset(_ context.Context, publicID string) (*assets.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, a := range m.assets {
		if a.PublicID == publicID {
			found := a
			return &found, nil
		}
	}
	return nil, fmt.Errorf("Resource not found - %s", publicID)
}

func (m *Memory) Destroy(_ context.Context, publicID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	for i, a := range m.assets {
		if a.PublicID == publicID {
			m.assets = append(m.assets[:i], m.assets[i+1:]...)
			return "ok", nil
		}
	}
	return "not found", nil
}

// children lists distinct folder names directly below prefix.
func (m *Memory) children(prefix string) []string {
	seen := map[string]bool{}
	var names []string
	for _, a := range m.assets {
		if !strings.HasPrefix(a.PublicID, prefix) {
			continue
		}
		rest := strings.TrimPrefix(a.PublicID, prefix)
		i := strings.IndexByte(rest, '/')
		if i <= 0 {
			continue
		}
		name := rest[:i]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return names
}
