// Package acquire downloads effect packages, unpacks them and copies their
// shader and texture folders next to the target application.
package acquire

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/crafted-tech/fxsetup/catalog"
	"github.com/crafted-tech/fxsetup/installer"
)

var (
	// ErrNetworkFailure marks a package that could not be downloaded.
	ErrNetworkFailure = errors.New("download failed")
	// ErrExtractionFailure marks a package that could not be unpacked or
	// copied into place.
	ErrExtractionFailure = errors.New("extraction failed")
)

const (
	defaultTimeout   = 10 * time.Minute
	defaultUserAgent = "fxsetup"

	// ShaderFolder and TextureFolder are the conventional folder names
	// looked for inside a package archive.
	ShaderFolder  = "Shaders"
	TextureFolder = "Textures"
)

// Stage is the phase a package is in.
type Stage int

const (
	StageDownload Stage = iota
	StageExtract
	StageInstall
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageDownload:
		return "Downloading"
	case StageExtract:
		return "Extracting"
	case StageInstall:
		return "Installing"
	default:
		return "Done"
	}
}

// Progress describes where the pipeline is.
type Progress struct {
	Package catalog.Package
	// Index is the zero-based position of Package in the queue of Count.
	Index int
	Count int
	Stage Stage
	// Received and Total count downloaded bytes. Total <= 0 means the
	// server did not announce a size.
	Received int64
	Total    int64
}

// Percent returns the download percentage. ok is false when the total
// size is unknown and progress should be shown as indeterminate.
func (p Progress) Percent() (pct float64, ok bool) {
	if p.Total <= 0 {
		return 0, false
	}
	pct = float64(p.Received) / float64(p.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// PackageError reports the package and operation that aborted a run.
type PackageError struct {
	Package catalog.Package
	Op      string
	Err     error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Package.DisplayName(), e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}

// Recorder persists the search paths of an installed package.
type Recorder interface {
	RecordSearchPaths(effectPath, texturePath string) error
}

// Pipeline installs packages into a target directory.
type Pipeline struct {
	httpClient *http.Client
	userAgent  string
	tempDir    string
	stagingDir string
	targetDir  string
	recorder   Recorder
	logger     *log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.httpClient = c }
}

// WithUserAgent sets the User-Agent header sent with downloads.
func WithUserAgent(ua string) Option {
	return func(p *Pipeline) { p.userAgent = ua }
}

// WithTempDir sets where downloaded archives are written.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithStagingDir sets the directory archives are unpacked into. It is
// wiped before every package.
func WithStagingDir(dir string) Option {
	return func(p *Pipeline) { p.stagingDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline copying package content below targetDir. recorder
// may be nil.
func New(targetDir string, recorder Recorder, opts ...Option) *Pipeline {
	p := &Pipeline{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		stagingDir: filepath.Join(os.TempDir(), "reshade-shaders"),
		targetDir:  targetDir,
		recorder:   recorder,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run installs queue in order, one package at a time. The first failure
// stops the run; installed is the number of packages completed before it.
// report may be nil.
func (p *Pipeline) Run(ctx context.Context, queue []catalog.Package, report func(Progress)) (installed int, err error) {
	if report == nil {
		report = func(Progress) {}
	}
	for i, pkg := range queue {
		if err := p.install(ctx, pkg, func(pr Progress) {
			pr.Package, pr.Index, pr.Count = pkg, i, len(queue)
			report(pr)
		}); err != nil {
			p.logger.Error("package failed", "package", pkg.ID, "err", err)
			return i, err
		}
		installed++
	}
	return installed, nil
}

func (p *Pipeline) install(ctx context.Context, pkg catalog.Package, report func(Progress)) error {
	p.logger.Info("downloading package", "package", pkg.ID, "url", pkg.DownloadURL)
	report(Progress{Stage: StageDownload, Total: -1})

	archive, err := p.Download(ctx, pkg.DownloadURL, func(received, total int64) {
		report(Progress{Stage: StageDownload, Received: received, Total: total})
	})
	if err != nil {
		return &PackageError{Package: pkg, Op: "download", Err: err}
	}
	defer os.Remove(archive)

	report(Progress{Stage: StageExtract})
	staging, err := p.Extract(archive)
	defer os.RemoveAll(p.stagingDir)
	if err != nil {
		return &PackageError{Package: pkg, Op: "extract", Err: err}
	}

	report(Progress{Stage: StageInstall})
	if err := p.copyContent(staging, pkg); err != nil {
		return &PackageError{Package: pkg, Op: "install", Err: err}
	}

	if p.recorder != nil {
		if err := p.recorder.RecordSearchPaths(pkg.InstallPath, pkg.TextureInstallPath); err != nil {
			return &PackageError{Package: pkg, Op: "record search paths of", Err: err}
		}
	}

	p.logger.Info("package installed", "package", pkg.ID)
	report(Progress{Stage: StageDone})
	return nil
}

// Download fetches url into a temporary file and returns its path. The
// caller removes the file. onProgress, if not nil, is called as bytes
// arrive with total set to the announced length or -1.
func (p *Pipeline) Download(ctx context.Context, url string, onProgress func(received, total int64)) (path string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrNetworkFailure, err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %s", ErrNetworkFailure, url, resp.Status)
	}

	tmp, err := os.CreateTemp(p.tempDir, "fxsetup-package-*.zip")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", ErrNetworkFailure, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close temp file: %w", ErrNetworkFailure, closeErr)
		}
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	var dst io.Writer = tmp
	if onProgress != nil {
		dst = &countingWriter{w: tmp, total: resp.ContentLength, fn: onProgress}
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrNetworkFailure, err)
	}
	return tmpPath, nil
}

type countingWriter struct {
	w        io.Writer
	received int64
	total    int64
	fn       func(received, total int64)
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.received += int64(n)
	c.fn(c.received, c.total)
	return n, err
}

// Extract unpacks the archive at path into a freshly emptied staging
// directory and returns that directory.
func (p *Pipeline) Extract(path string) (string, error) {
	if err := installer.ResetDir(p.stagingDir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailure, err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailure, err)
	}
	defer zr.Close()
	if err := installer.ExtractZip(&zr.Reader, p.stagingDir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailure, err)
	}
	return p.stagingDir, nil
}

func (p *Pipeline) copyContent(staging string, pkg catalog.Package) error {
	pairs := []struct {
		folder, ext, installPath string
	}{
		{ShaderFolder, ".fx", pkg.InstallPath},
		{TextureFolder, ".png", pkg.TextureInstallPath},
	}
	for _, pair := range pairs {
		src, ok, err := DiscoverRoot(staging, pair.folder, pair.ext)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExtractionFailure, err)
		}
		if !ok {
			p.logger.Debug("no content found", "package", pkg.ID, "folder", pair.folder)
			continue
		}
		dst := filepath.Join(p.targetDir, nativePath(pair.installPath))
		p.logger.Debug("copying package content", "from", src, "to", dst)
		if err := installer.CopyTree(src, dst); err != nil {
			return fmt.Errorf("%w: %w", ErrExtractionFailure, err)
		}
	}
	return nil
}

// DiscoverRoot finds the directory below dir holding a package's content
// of one kind. A directory named folder (case-insensitive) is preferred;
// otherwise the directory of the first file with extension ext is used.
// Among several candidates the shallowest wins, then the shortest path.
func DiscoverRoot(dir, folder, ext string) (root string, ok bool, err error) {
	var named, holders []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if d.IsDir() {
			if strings.EqualFold(d.Name(), folder) {
				named = append(named, path)
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ext) {
			holders = append(holders, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if len(named) > 0 {
		return shallowest(named), true, nil
	}
	if len(holders) > 0 {
		return shallowest(holders), true, nil
	}
	return "", false, nil
}

func shallowest(paths []string) string {
	sort.SliceStable(paths, func(i, j int) bool {
		di, dj := depth(paths[i]), depth(paths[j])
		if di != dj {
			return di < dj
		}
		return len(paths[i]) < len(paths[j])
	})
	return paths[0]
}

func depth(p string) int {
	return strings.Count(filepath.ToSlash(p), "/")
}

func nativePath(p string) string {
	return filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
}
