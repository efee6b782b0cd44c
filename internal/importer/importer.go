// Package importer drives the import pipeline: file registration, site
// identification, the multi-phase insert protocol, and incremental
// re-imports of growing files.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"handvault/internal/config"
	"handvault/internal/notify"
	"handvault/internal/parser"
	"handvault/internal/store"
)

// recentFileWindow: files younger than this during a rescan get a zero-size
// snapshot so the next pass picks up their contents once writing settles.
const recentFileWindow = 60 * time.Second

// ImportFile is one registered source file and its processed checkpoint.
type ImportFile struct {
	Path    string
	Site    parser.Site
	FileID  int64
	Offset  int64
	Size    int64
	ModTime time.Time
}

type monitorDir struct {
	Path string
	Site string
}

// Totals aggregates one run's outcome across files.
type Totals struct {
	Hands      int
	Stored     int
	Duplicates int
	Partial    int
	Skipped    int
	Errors     int
	Elapsed    time.Duration
}

func (t *Totals) add(r store.ImportResult) {
	t.Hands += r.Hands
	t.Stored += r.Stored
	t.Duplicates += r.Duplicates
	t.Partial += r.Partial
	t.Skipped += r.Skipped
	t.Errors += r.Errors
}

// Progress is handed to the caller-supplied callback between files.
type Progress struct {
	Current int
	Total   int
	Path    string
	Stored  int
}

// Importer orchestrates the whole pipeline. One Importer owns one Store;
// bulk buffers are never shared across workers.
type Importer struct {
	cfg      config.Config
	st       *store.Store
	reg      *parser.Registry
	notifier *notify.Sender

	// Progress, when set, is invoked between files. It may pump an external
	// event loop; it is called on the importing goroutine.
	Progress func(Progress)

	mu     sync.Mutex
	files  []*ImportFile
	byPath map[string]*ImportFile
	dirs   []monitorDir
}

// New builds an importer over an opened store.
func New(cfg config.Config, st *store.Store, reg *parser.Registry) *Importer {
	return &Importer{
		cfg:      cfg,
		st:       st,
		reg:      reg,
		notifier: notify.NewSender(cfg.HUDAddr),
		byPath:   make(map[string]*ImportFile),
	}
}

// Close releases resources held by the importer (not the store).
func (im *Importer) Close() {
	im.notifier.Close()
}

// AddImportFile registers a single file after site identification. It is
// idempotent: already-registered or missing paths are a no-op returning
// false.
func (im *Importer) AddImportFile(ctx context.Context, path, siteName string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	im.mu.Lock()
	_, exists := im.byPath[abs]
	im.mu.Unlock()
	if exists {
		return false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return false
	}

	var site parser.Site
	if siteName == "" || siteName == "auto" {
		site, err = im.reg.Identify(abs)
	} else {
		site, err = im.reg.Lookup(siteName)
	}
	if err != nil {
		slog.Warn("site identification failed, skipping file", "path", abs, "err", err)
		return false
	}

	fileID, err := im.st.StoreFile(ctx, abs, site.Name, string(site.FileType))
	if err != nil {
		slog.Error("register file failed", "path", abs, "err", err)
		return false
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	if _, exists := im.byPath[abs]; exists {
		return false
	}
	f := &ImportFile{Path: abs, Site: site, FileID: fileID}
	im.files = append(im.files, f)
	im.byPath[abs] = f
	slog.Debug("file registered", "path", abs, "site", site.Name)
	return true
}

// AddBulkImportFileOrDir registers a single file, or every file under a
// directory recursively.
func (im *Importer) AddBulkImportFileOrDir(ctx context.Context, path, siteName string) bool {
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("path not found", "path", path, "err", err)
		return false
	}
	if !info.IsDir() {
		return im.AddImportFile(ctx, path, siteName)
	}
	added := false
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if im.AddImportFile(ctx, p, siteName) {
				added = true
			}
		}
		return nil
	})
	if err != nil {
		slog.Warn("directory walk failed", "path", path, "err", err)
	}
	return added
}

// AddImportDirectory registers a directory for polling by RunUpdated. On the
// first pass only files modified within maxAge are considered active;
// maxAge <= 0 disables the filter.
func (im *Importer) AddImportDirectory(ctx context.Context, dir string, monitor bool, siteName string, maxAge time.Duration) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		slog.Warn("not a directory", "path", dir)
		return
	}
	cutoff := time.Time{}
	if maxAge > 0 {
		cutoff = time.Now().Add(-maxAge)
	}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if !cutoff.IsZero() && fi.ModTime().Before(cutoff) {
			return nil
		}
		im.AddImportFile(ctx, p, siteName)
		return nil
	})
	if monitor {
		im.mu.Lock()
		im.dirs = append(im.dirs, monitorDir{Path: dir, Site: siteName})
		im.mu.Unlock()
	}
}

// MonitoredDirs returns the directories registered for polling.
func (im *Importer) MonitoredDirs() []string {
	im.mu.Lock()
	defer im.mu.Unlock()
	out := make([]string, len(im.dirs))
	for i, d := range im.dirs {
		out[i] = d.Path
	}
	return out
}

// RunImport drives the insert protocol across every registered file once.
func (im *Importer) RunImport(ctx context.Context) (Totals, error) {
	start := time.Now()
	owner := lockOwner()
	if err := im.st.AcquireLock(ctx, owner); err != nil {
		return Totals{}, err
	}
	defer func() {
		if err := im.st.ReleaseLock(context.WithoutCancel(ctx), owner); err != nil {
			slog.Warn("release insert lock failed", "err", err)
		}
	}()

	im.mu.Lock()
	pending := make([]*ImportFile, len(im.files))
	copy(pending, im.files)
	im.mu.Unlock()

	// Index heuristic: for a large bulk run relative to the table size,
	// drop auxiliary indexes up front and recreate them afterwards.
	var totalSize int64
	for _, f := range pending {
		if info, err := os.Stat(f.Path); err == nil {
			totalSize += info.Size() - f.Offset
		}
	}
	dropped := false
	if im.cfg.BulkEnabled() && len(pending) > 0 {
		should, err := im.st.ShouldDropIndexes(ctx, totalSize)
		if err != nil {
			slog.Warn("index heuristic failed", "err", err)
		} else if should {
			if err := im.st.DropBulkIndexes(ctx); err != nil {
				slog.Warn("drop indexes failed", "err", err)
			} else {
				dropped = true
			}
		}
	}

	var totals Totals
	for i, f := range pending {
		r := im.importFile(ctx, f)
		totals.add(r)
		if im.Progress != nil {
			im.Progress(Progress{Current: i + 1, Total: len(pending), Path: f.Path, Stored: r.Stored})
		}
	}

	if dropped {
		if err := im.st.RestoreBulkIndexes(ctx); err != nil {
			slog.Error("recreate indexes failed", "err", err)
		}
	}
	im.runPostImport(ctx)

	totals.Elapsed = time.Since(start)
	slog.Info("import run complete",
		"stored", totals.Stored, "duplicates", totals.Duplicates,
		"partial", totals.Partial, "skipped", totals.Skipped,
		"errors", totals.Errors, "elapsed", totals.Elapsed)
	return totals, nil
}

// RunUpdated re-scans monitored directories for new files and re-imports
// any registered file whose size or mtime advanced past its checkpoint.
func (im *Importer) RunUpdated(ctx context.Context) (Totals, error) {
	start := time.Now()
	owner := lockOwner()
	if err := im.st.AcquireLock(ctx, owner); err != nil {
		return Totals{}, err
	}
	defer func() {
		if err := im.st.ReleaseLock(context.WithoutCancel(ctx), owner); err != nil {
			slog.Warn("release insert lock failed", "err", err)
		}
	}()

	im.mu.Lock()
	dirs := make([]monitorDir, len(im.dirs))
	copy(dirs, im.dirs)
	im.mu.Unlock()

	for _, d := range dirs {
		im.rescanDir(ctx, d)
	}

	im.mu.Lock()
	pending := make([]*ImportFile, len(im.files))
	copy(pending, im.files)
	im.mu.Unlock()

	var totals Totals
	for i, f := range pending {
		info, err := os.Stat(f.Path)
		if err != nil {
			slog.Warn("file disappeared, dropping from import set", "path", f.Path, "err", err)
			im.removeFile(f.Path)
			continue
		}
		if info.Size() == f.Size && !info.ModTime().After(f.ModTime) {
			continue
		}
		r := im.importFile(ctx, f)
		totals.add(r)
		if im.Progress != nil {
			im.Progress(Progress{Current: i + 1, Total: len(pending), Path: f.Path, Stored: r.Stored})
		}
	}

	im.runPostImport(ctx)
	totals.Elapsed = time.Since(start)
	return totals, nil
}

func (im *Importer) rescanDir(ctx context.Context, d monitorDir) {
	_ = filepath.WalkDir(d.Path, func(p string, de fs.DirEntry, err error) error {
		if err != nil || de.IsDir() {
			return nil
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil
		}
		im.mu.Lock()
		_, known := im.byPath[abs]
		im.mu.Unlock()
		if known {
			return nil
		}
		if !im.AddImportFile(ctx, abs, d.Site) {
			return nil
		}
		// A file still being written settles before its first import.
		if fi, err := de.Info(); err == nil && time.Since(fi.ModTime()) < recentFileWindow {
			im.mu.Lock()
			if f, ok := im.byPath[abs]; ok {
				f.Size = 0
				f.ModTime = time.Time{}
			}
			im.mu.Unlock()
		}
		return nil
	})
}

func (im *Importer) removeFile(path string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	delete(im.byPath, path)
	for i, f := range im.files {
		if f.Path == path {
			im.files = append(im.files[:i], im.files[i+1:]...)
			break
		}
	}
}

func (im *Importer) runPostImport(ctx context.Context) {
	if im.st.HasCleanupWork() {
		if err := im.st.CleanUpTourneyTypes(ctx); err != nil {
			slog.Error("tourney type cleanup failed", "err", err)
		}
		if err := im.st.CleanUpWeeksMonths(ctx); err != nil {
			slog.Error("week/month cleanup failed", "err", err)
		}
		im.st.ResetClean()
	}
	if err := im.st.Analyze(ctx); err != nil {
		slog.Warn("analyze failed", "err", err)
	}
}

// importFile parses one file from its checkpoint and inserts the batch.
func (im *Importer) importFile(ctx context.Context, f *ImportFile) store.ImportResult {
	start := time.Now()
	info, err := os.Stat(f.Path)
	if err != nil {
		slog.Warn("file disappeared before import", "path", f.Path, "err", err)
		im.removeFile(f.Path)
		return store.ImportResult{}
	}

	p := f.Site.New(parser.Options{
		Path:        f.Path,
		SiteID:      f.Site.ID,
		HeroName:    im.cfg.HeroName,
		StartOffset: f.Offset,
	})
	if err := p.Start(); err != nil {
		slog.Error("parse failed", "path", f.Path, "err", err)
		r := store.ImportResult{Errors: 1, Elapsed: time.Since(start)}
		_ = im.st.UpdateFile(ctx, f.FileID, r, false)
		return r
	}

	stored, dups, insertErrs := im.insertBatch(ctx, p.ProcessedHands(), f.FileID)

	f.Offset = p.LastCharacterRead()
	f.Size = info.Size()
	f.ModTime = info.ModTime()

	r := store.ImportResult{
		Hands:      p.NumHands(),
		Stored:     stored,
		Duplicates: dups,
		Partial:    p.NumPartial(),
		Skipped:    p.NumSkipped(),
		Errors:     p.NumErrors() + insertErrs,
		Elapsed:    time.Since(start),
	}
	if err := im.st.UpdateFile(ctx, f.FileID, r, true); err != nil {
		slog.Warn("file bookkeeping failed", "path", f.Path, "err", err)
	}
	if err := im.st.ResetBulkCache(false); err != nil {
		slog.Warn("bulk cache reset failed", "err", err)
	}

	slog.Info("file imported", "path", f.Path,
		"stored", r.Stored, "duplicates", r.Duplicates, "partial", r.Partial,
		"skipped", r.Skipped, "errors", r.Errors)
	return r
}

func lockOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
