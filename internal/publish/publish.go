// Package publish moves validated series files into the pickup directory
// watched by the downstream ingest, and quarantines rejected ones.
package publish

import (
	"crypto/md5"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oceanobs/chanharvest/pkg/types"
)

// endSuffix is the transient window marker carried in work filenames. It is
// stripped before publication so re-harvests of the same window collide on
// content, not on window end.
var endSuffix = regexp.MustCompile(`_END-[^._]*`)

// Publisher finalizes artifacts into the incoming directory and archives
// rejects into the errors directory.
type Publisher struct {
	incoming string
	errors   string
	logger   *slog.Logger
}

// New creates a publisher over the configured directories.
func New(dirs types.DirConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		incoming: dirs.Incoming,
		errors:   dirs.Errors(),
		logger:   logger,
	}
}

// Publish moves one validated artifact into the incoming directory under
// its final content-hashed name and reclaims the artifact's temp directory.
func (p *Publisher) Publish(artifact types.Artifact) (types.Artifact, error) {
	name, err := finalName(artifact.LocalPath)
	if err != nil {
		return types.Artifact{}, err
	}

	if err := os.MkdirAll(p.incoming, 0o775); err != nil {
		return types.Artifact{}, fmt.Errorf("create incoming dir: %w", err)
	}
	dst := filepath.Join(p.incoming, name)
	if err := moveFile(artifact.LocalPath, dst); err != nil {
		return types.Artifact{}, fmt.Errorf("publish %s: %w", name, err)
	}
	if err := os.Chmod(dst, 0o664); err != nil {
		return types.Artifact{}, fmt.Errorf("chmod %s: %w", name, err)
	}
	_ = os.RemoveAll(filepath.Dir(artifact.LocalPath))

	p.logger.Info("artifact published", "channel", artifact.ChannelID, "file", name)

	out := artifact
	out.LocalPath = dst
	out.Stage = types.StagePublished
	return out, nil
}

// Reject moves a gate-failed artifact into the errors directory for manual
// inspection and reclaims its temp directory.
func (p *Publisher) Reject(artifact types.Artifact, reason string) (types.Artifact, error) {
	if err := os.MkdirAll(p.errors, 0o775); err != nil {
		return types.Artifact{}, fmt.Errorf("create errors dir: %w", err)
	}
	name := filepath.Base(artifact.LocalPath)
	dst := filepath.Join(p.errors, name)
	if err := moveFile(artifact.LocalPath, dst); err != nil {
		return types.Artifact{}, fmt.Errorf("quarantine %s: %w", name, err)
	}
	_ = os.RemoveAll(filepath.Dir(artifact.LocalPath))

	p.logger.Warn("artifact rejected", "channel", artifact.ChannelID, "file", name, "reason", reason)

	out := artifact
	out.LocalPath = dst
	out.Stage = types.StageRejected
	return out, nil
}

// Backlog counts the files waiting in the incoming directory. A missing
// directory counts as empty.
func (p *Publisher) Backlog() (int, error) {
	entries, err := os.ReadDir(p.incoming)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read incoming dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}

// finalName strips the window-end marker and appends the md5 of the file
// content before the extension.
func finalName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	base := endSuffix.ReplaceAllString(filepath.Base(path), "")
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s.%x%s", stem, h.Sum(nil), ext), nil
}

// moveFile renames src to dst, falling back to copy and remove when the
// directories sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
