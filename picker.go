package kalcame

import (
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/naturalsort"

	"github.com/phanxgames/kalcame/imageres"
)

// ErrNoCandidates is returned by a Picker with nothing to offer.
const ErrNoCandidates = errors.ConstError("no images to pick")

// Picker supplies the next file for the select button.
type Picker interface {
	Next() (imageres.Blob, error)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func() (imageres.Blob, error)

// Next calls f.
func (f PickerFunc) Next() (imageres.Blob, error) { return f() }

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// DirPicker offers the explicit Paths first, then the images in Dir in
// natural order, and wraps around after the last one.
type DirPicker struct {
	Dir   string
	Paths []string

	next int
}

// Candidates lists the files the picker cycles through.
func (p *DirPicker) Candidates() ([]string, error) {
	out := append([]string(nil), p.Paths...)
	if p.Dir == "" {
		return out, nil
	}
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return out, errors.Annotatef(err, "reading picker directory %q", p.Dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	for _, name := range naturalsort.Sort(names) {
		out = append(out, filepath.Join(p.Dir, name))
	}
	return out, nil
}

// Next reads the next candidate.
func (p *DirPicker) Next() (imageres.Blob, error) {
	files, err := p.Candidates()
	if len(files) == 0 {
		if err != nil {
			return imageres.Blob{}, errors.Trace(err)
		}
		return imageres.Blob{}, ErrNoCandidates
	}
	if err != nil {
		logger.Warningf("%v", err)
	}
	name := files[p.next%len(files)]
	p.next = (p.next + 1) % len(files)
	return BlobFromFile(name)
}

// BlobFromFile reads name from disk.
func BlobFromFile(name string) (imageres.Blob, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return imageres.Blob{}, errors.Annotatef(err, "reading %q", name)
	}
	return newBlob(filepath.Base(name), data), nil
}

// newBlob types data by extension, falling back to content sniffing.
func newBlob(name string, data []byte) imageres.Blob {
	typ := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if typ == "" {
		typ = http.DetectContentType(data)
	}
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = strings.TrimSpace(typ[:i])
	}
	return imageres.Blob{Name: name, Type: typ, Data: data}
}

// DroppedBlobs reads every regular file in fsys, which is what
// ebiten.DroppedFiles returns. Unreadable files are logged and skipped.
func DroppedBlobs(fsys fs.FS) []imageres.Blob {
	if fsys == nil {
		return nil
	}
	var blobs []imageres.Blob
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warningf("dropped file %q: %v", p, err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			logger.Warningf("dropped file %q: %v", p, err)
			return nil
		}
		blobs = append(blobs, newBlob(path.Base(p), data))
		return nil
	})
	if err != nil {
		logger.Warningf("walking dropped files: %v", err)
	}
	return blobs
}
