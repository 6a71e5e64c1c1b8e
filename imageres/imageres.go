// Package imageres turns user-picked files into revocable image handles.
//
// A [Store] plays the role of an object-URL table: [Store.Create] decodes a
// [Blob], registers it under a fresh opaque URI and returns the owning
// [Resource]. Views look images up by URI through [Store.Resolve]; once a
// resource is revoked its URI resolves to nothing.
//
// A Store is meant to be used from the UI goroutine only.
package imageres

import (
	"bytes"
	"image"
	// Decoders registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var logger = loggo.GetLogger("kalcame.imageres")

// ErrInvalidFileKind is returned by Create when a blob is not an image.
const ErrInvalidFileKind = errors.ConstError("file is not an image")

// URIScheme prefixes every handle produced by a Store.
const URIScheme = "blob:kalcame/"

// Blob is a picked file: its display name, declared MIME type (may be empty)
// and contents.
type Blob struct {
	Name string
	Type string
	Data []byte
}

// Resource is a decoded image registered under a revocable URI. Resources
// are created by a Store and revoked at most once; Revoke is idempotent.
type Resource struct {
	uri     string
	source  Blob
	format  string
	img     image.Image
	revoked bool
	store   *Store
}

// URI returns the resource's opaque handle. It is only meaningful while
// Revoked reports false.
func (r *Resource) URI() string { return r.uri }

// Source returns the blob the resource was created from.
func (r *Resource) Source() Blob { return r.source }

// Format returns the decoder name that accepted the blob ("png", "webp", ...).
func (r *Resource) Format() string { return r.format }

// Revoked reports whether the handle has been released.
func (r *Resource) Revoked() bool { return r.revoked }

// Bounds returns the decoded image bounds, or an empty rectangle once revoked.
func (r *Resource) Bounds() image.Rectangle {
	if r.revoked || r.img == nil {
		return image.Rectangle{}
	}
	return r.img.Bounds()
}

// Revoke releases the handle. Calling it again is a no-op.
func (r *Resource) Revoke() {
	if r.revoked {
		return
	}
	r.revoked = true
	r.img = nil
	if r.store != nil {
		r.store.release(r)
	}
	logger.Debugf("revoked %s (%s)", r.uri, r.source.Name)
}

// Store registers decoded images under URIs.
type Store struct {
	live    map[string]*Resource
	created int
	revoked int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{live: make(map[string]*Resource)}
}

// Create decodes blob and registers it under a new URI. It fails with
// ErrInvalidFileKind when the declared type is not an image type or the
// contents cannot be decoded as one.
func (s *Store) Create(blob Blob) (*Resource, error) {
	if blob.Type != "" && !strings.HasPrefix(strings.ToLower(blob.Type), "image/") {
		return nil, errors.Annotatef(ErrInvalidFileKind, "%q has type %q", blob.Name, blob.Type)
	}
	if len(blob.Data) == 0 {
		return nil, errors.Annotatef(ErrInvalidFileKind, "%q is empty", blob.Name)
	}
	img, format, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, errors.Annotatef(ErrInvalidFileKind, "decoding %q: %v", blob.Name, err)
	}

	r := &Resource{
		uri:    URIScheme + uuid.NewString(),
		source: blob,
		format: format,
		img:    img,
		store:  s,
	}
	s.live[r.uri] = r
	s.created++
	b := img.Bounds()
	logger.Debugf("created %s from %q (%s %dx%d)", r.uri, blob.Name, format, b.Dx(), b.Dy())
	return r, nil
}

// Revoke is shorthand for r.Revoke. A nil resource is ignored.
func (s *Store) Revoke(r *Resource) {
	if r == nil {
		return
	}
	r.Revoke()
}

// Resolve returns the image registered under uri. It reports false for
// unknown or revoked URIs.
func (s *Store) Resolve(uri string) (image.Image, bool) {
	r, ok := s.live[uri]
	if !ok || r.revoked {
		return nil, false
	}
	return r.img, true
}

// Live returns the number of registered, non-revoked resources.
func (s *Store) Live() int { return len(s.live) }

// Stats returns how many resources were created and revoked over the
// store's lifetime.
func (s *Store) Stats() (created, revoked int) { return s.created, s.revoked }

func (s *Store) release(r *Resource) {
	if _, ok := s.live[r.uri]; !ok {
		return
	}
	delete(s.live, r.uri)
	s.revoked++
}
