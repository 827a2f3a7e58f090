/*
Package storage keeps reward entry attachments on the local file system.

LAYOUT:
  <root>/<employee id>/<project slug>/<FY>_<employee id>_<project slug>_<name slug><ext>

  Attachment.Path is stored relative to root with forward slashes, so the
  same manifest works on every platform.

OPERATIONS:
  Save               Stage an upload under .staging and move it into place
  Delete             Remove one attachment, missing files are ignored
  RelocateFolder     Move attachments when an entry's project is renamed
  RemoveEmptyFolder  Clean up a project folder once it holds no files
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/warp/recognition-engine/generic"
)

// ErrOutsideRoot is returned for paths that would escape the upload root.
var ErrOutsideRoot = errors.New("path escapes upload root")

// DefaultFolder is used for entries without a project name.
const DefaultFolder = "sample-entry"

const slugLength = 10

// Slug lowercases the first ten characters of s, strips accents and keeps
// letters, digits and single dashes.
func Slug(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > slugLength {
		r = r[:slugLength]
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	clean, _, err := transform.String(t, string(r))
	if err != nil {
		clean = string(r)
	}

	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(clean) {
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b.WriteRune(c)
			dash = false
		case c == ' ' || c == '-':
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ProjectFolder is the folder name for a project.
func ProjectFolder(project string) string {
	if s := Slug(project); s != "" {
		return s
	}
	return DefaultFolder
}

// FileName builds the stored file name for an upload.
func FileName(fiscalYear string, owner generic.EmployeeID, project, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := Slug(strings.TrimSuffix(filepath.Base(original), filepath.Ext(original)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s_%s_%s_%s%s", fiscalYear, owner, ProjectFolder(project), base, ext)
}

// Files stores attachments below a root directory.
type Files struct {
	root string
	log  *zap.Logger
}

func NewFiles(root string, log *zap.Logger) (*Files, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &Files{root: abs, log: log.Named("storage")}, nil
}

func (f *Files) Root() string { return f.root }

// Resolve maps a manifest path to a file system path below root.
func (f *Files) Resolve(rel string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(rel, "\\", "/"))
	if clean == "/" {
		return "", ErrOutsideRoot
	}
	full := filepath.Join(f.root, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, f.root+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

func folderPath(owner generic.EmployeeID, project string) string {
	return path.Join(string(owner), ProjectFolder(project))
}

// Save writes r as an attachment of owner's project.
func (f *Files) Save(ctx context.Context, owner generic.EmployeeID, project, fiscalYear, original string, r io.Reader) (generic.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return generic.Attachment{}, err
	}
	staging := filepath.Join(f.root, ".staging")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return generic.Attachment{}, err
	}
	tmp := filepath.Join(staging, uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return generic.Attachment{}, err
	}
	size, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return generic.Attachment{}, fmt.Errorf("failed to write upload: %w", err)
	}

	name := FileName(fiscalYear, owner, project, original)
	rel := path.Join(folderPath(owner, project), name)
	dst, err := f.Resolve(rel)
	if err != nil {
		os.Remove(tmp)
		return generic.Attachment{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		os.Remove(tmp)
		return generic.Attachment{}, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return generic.Attachment{}, fmt.Errorf("failed to store upload: %w", err)
	}
	f.log.Info("stored attachment", zap.String("path", rel), zap.Int64("size", size))
	return generic.Attachment{Filename: name, Path: rel, Size: size}, nil
}

// Open returns the attachment at rel for reading.
func (f *Files) Open(rel string) (*os.File, error) {
	full, err := f.Resolve(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &generic.NotFoundError{Kind: "attachment", ID: rel}
	}
	return file, err
}

// Delete removes one attachment. A missing file is not an error.
func (f *Files) Delete(rel string) error {
	full, err := f.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.log.Warn("attachment already gone", zap.String("path", rel))
			return nil
		}
		return err
	}
	f.log.Info("deleted attachment", zap.String("path", rel))
	return nil
}

// RelocateFolder moves atts from the old project folder to the new one and
// returns the manifest with rewritten paths. Files missing on disk keep
// their new path so the manifest stays consistent with the project name.
func (f *Files) RelocateFolder(owner generic.EmployeeID, oldProject, newProject string, atts []generic.Attachment) ([]generic.Attachment, error) {
	from, to := folderPath(owner, oldProject), folderPath(owner, newProject)
	if from == to {
		return atts, nil
	}
	out := make([]generic.Attachment, 0, len(atts))
	for _, a := range atts {
		moved := a
		moved.Path = path.Join(to, path.Base(a.Path))
		src, err := f.Resolve(a.Path)
		if err != nil {
			return nil, err
		}
		dst, err := f.Resolve(moved.Path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}
		if err := os.Rename(src, dst); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to move %s: %w", a.Path, err)
			}
			f.log.Warn("attachment missing while relocating", zap.String("path", a.Path))
		}
		out = append(out, moved)
	}
	f.log.Info("relocated attachments", zap.String("from", from), zap.String("to", to), zap.Int("files", len(out)))
	if _, err := f.RemoveEmptyFolder(owner, oldProject); err != nil {
		f.log.Warn("failed to clean up folder", zap.String("folder", from), zap.Error(err))
	}
	return out, nil
}

// RemoveEmptyFolder deletes the project folder if it holds no files and
// reports whether it did.
func (f *Files) RemoveEmptyFolder(owner generic.EmployeeID, project string) (bool, error) {
	full, err := f.Resolve(folderPath(owner, project))
	if err != nil {
		return false, err
	}
	entries, err := os.ReadDir(full)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		f.log.Debug("folder not empty", zap.String("folder", full), zap.Int("files", len(entries)))
		return false, nil
	}
	if err := os.Remove(full); err != nil {
		return false, err
	}
	f.log.Info("removed empty folder", zap.String("folder", full))
	return true, nil
}
