// Package icon resolves block type icon files to generated copies that can
// be served from a public directory.
//
// A resolved icon is written once to
// <outputDir>/blocktypes/<xxhash64(source)>-<WxH|full>.<ext> and remembered
// for the life of the Cache. An existing destination is reused without
// comparing modification times, so replacing a source file under the same
// name keeps serving the old copy until the destination is removed.
package icon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gabriel-vasile/mimetype"
)

// Subdirectory of the output directory and base URL icons are written to.
const publicDir = "blocktypes"

// MaxDimension bounds both sides of a transformed icon.
const MaxDimension = 2048

// Transform is a scale-and-crop target size.
type Transform struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (t *Transform) size() string {
	if t == nil {
		return "full"
	}
	return fmt.Sprintf("%dx%d", t.Width, t.Height)
}

// Icon is a generated icon file.
type Icon struct {
	Path string
	URL  string
}

// Processor writes the transformed source image to dst. A nil transform
// copies the source unchanged.
type Processor interface {
	Process(src, dst string, t *Transform) error
}

// Options configures a Cache.
type Options struct {
	// SourceDir holds the icon files block types refer to by filename.
	SourceDir string
	// OutputDir is the public directory generated icons are written under.
	OutputDir string
	// BaseURL is the URL OutputDir is served at.
	BaseURL string
	// Processor overrides the image processor. Default: ImageProcessor.
	Processor Processor
}

// Cache resolves and remembers generated icons. It is safe for concurrent
// use; generation blocks the caller.
type Cache struct {
	sourceDir string
	outputDir string
	baseURL   string
	processor Processor

	mu       sync.Mutex
	resolved map[string]Icon
}

// New creates a Cache.
func New(opts Options) *Cache {
	p := opts.Processor
	if p == nil {
		p = ImageProcessor{}
	}
	return &Cache{
		sourceDir: opts.SourceDir,
		outputDir: opts.OutputDir,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		processor: p,
		resolved:  make(map[string]Icon),
	}
}

// Resolve returns the generated icon for filename, generating it on first
// use. ok is false when the source is missing or cannot be processed.
func (c *Cache) Resolve(filename string, t *Transform) (Icon, bool) {
	if filename == "" {
		return Icon{}, false
	}
	key := cacheKey(filename, t)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ic, ok := c.resolved[key]; ok {
		return ic, true
	}
	ic, err := c.generate(filename, t)
	if err != nil {
		slog.Debug("icon unavailable", "filename", filename, "size", t.size(), "error", err)
		return Icon{}, false
	}
	c.resolved[key] = ic
	return ic, true
}

// Path returns the generated icon's file path, or "" when unavailable.
func (c *Cache) Path(filename string, t *Transform) string {
	ic, _ := c.Resolve(filename, t)
	return ic.Path
}

// URL returns the generated icon's URL, or "" when unavailable.
func (c *Cache) URL(filename string, t *Transform) string {
	ic, _ := c.Resolve(filename, t)
	return ic.URL
}

// Filenames lists the icon files directly inside the source directory,
// sorted. A missing directory yields no filenames.
func (c *Cache) Filenames() ([]string, error) {
	entries, err := os.ReadDir(c.sourceDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list icons: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isIconFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *Cache) generate(filename string, t *Transform) (Icon, error) {
	if t != nil && (t.Width < 0 || t.Height < 0 || t.Width > MaxDimension || t.Height > MaxDimension) {
		return Icon{}, fmt.Errorf("transform %s exceeds %dx%d", t.size(), MaxDimension, MaxDimension)
	}
	root, err := filepath.Abs(c.sourceDir)
	if err != nil {
		return Icon{}, err
	}
	abs := filepath.Join(root, strings.TrimLeft(filename, `/\`))
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Icon{}, fmt.Errorf("%q is not inside the icon directory", filename)
	}
	if _, err := os.Stat(abs); err != nil {
		return Icon{}, err
	}

	mt, err := mimetype.DetectFile(abs)
	if err != nil {
		return Icon{}, fmt.Errorf("detect type: %w", err)
	}
	ext := outputExtension(mt, t)
	if ext == "" {
		return Icon{}, fmt.Errorf("unsupported icon type %s", mt.String())
	}

	name := fmt.Sprintf("%016x-%s%s", xxhash.Sum64String(abs), t.size(), ext)
	dst := filepath.Join(c.outputDir, publicDir, name)
	ic := Icon{Path: dst, URL: c.baseURL + "/" + publicDir + "/" + name}

	if _, err := os.Stat(dst); err == nil {
		return ic, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Icon{}, fmt.Errorf("create icon dir: %w", err)
	}
	if err := c.process(abs, dst, t); err != nil {
		os.Remove(dst)
		return Icon{}, fmt.Errorf("process %s: %w", filename, err)
	}
	return ic, nil
}

// process runs the processor, reporting a panic as an error.
func (c *Cache) process(src, dst string, t *Transform) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return c.processor.Process(src, dst, t)
}

func cacheKey(filename string, t *Transform) string {
	if t == nil {
		return filename
	}
	b, _ := json.Marshal(t)
	return filename + string(b)
}

var iconExtensions = map[string]bool{
	".svg":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

func isIconFile(name string) bool {
	return iconExtensions[strings.ToLower(filepath.Ext(name))]
}

// outputExtension picks the destination extension from the detected type.
// Transformed GIFs are written as PNG.
func outputExtension(mt *mimetype.MIME, t *Transform) string {
	switch {
	case mt.Is("image/svg+xml"):
		return ".svg"
	case mt.Is("image/png"):
		return ".png"
	case mt.Is("image/jpeg"):
		return ".jpg"
	case mt.Is("image/gif"):
		if t != nil {
			return ".png"
		}
		return ".gif"
	}
	return ""
}
