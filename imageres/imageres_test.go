package imageres

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/juju/errors"
)

func pngBlob(t *testing.T, name string, w, h int) Blob {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return Blob{Name: name, Type: "image/png", Data: buf.Bytes()}
}

func TestCreateRegistersImage(t *testing.T) {
	s := NewStore()
	r, err := s.Create(pngBlob(t, "a.png", 4, 3))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(r.URI(), URIScheme) {
		t.Errorf("URI() = %q, want prefix %q", r.URI(), URIScheme)
	}
	if r.Format() != "png" {
		t.Errorf("Format() = %q, want png", r.Format())
	}
	if r.Revoked() {
		t.Error("new resource should not be revoked")
	}
	img, ok := s.Resolve(r.URI())
	if !ok {
		t.Fatal("Resolve should find a live resource")
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("bounds = %v, want 4x3", b)
	}
	if s.Live() != 1 {
		t.Errorf("Live() = %d, want 1", s.Live())
	}
}

func TestCreateRejectsNonImages(t *testing.T) {
	s := NewStore()
	valid := pngBlob(t, "ok.png", 1, 1)

	tests := []struct {
		name string
		blob Blob
	}{
		{"text type", Blob{Name: "notes.txt", Type: "text/plain", Data: []byte("hello")}},
		{"empty data", Blob{Name: "empty.png", Type: "image/png"}},
		{"garbage with image type", Blob{Name: "fake.png", Type: "image/png", Data: []byte("not a png")}},
		{"untyped garbage", Blob{Name: "blob", Data: []byte{0, 1, 2, 3}}},
		{"png bytes declared as video", Blob{Name: "a.mp4", Type: "video/mp4", Data: valid.Data}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := s.Create(tt.blob)
			if !errors.Is(err, ErrInvalidFileKind) {
				t.Fatalf("Create() error = %v, want ErrInvalidFileKind", err)
			}
			if r != nil {
				t.Error("no resource should be returned on error")
			}
		})
	}
	if s.Live() != 0 {
		t.Errorf("Live() = %d, want 0", s.Live())
	}
}

func TestCreateAcceptsUntypedImage(t *testing.T) {
	s := NewStore()
	b := pngBlob(t, "drop", 2, 2)
	b.Type = ""
	if _, err := s.Create(b); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	s := NewStore()
	r, err := s.Create(pngBlob(t, "a.png", 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	uri := r.URI()

	r.Revoke()
	created, revoked := s.Stats()
	live := s.Live()

	r.Revoke()
	s.Revoke(r)

	if c, v := s.Stats(); c != created || v != revoked {
		t.Errorf("stats changed on second revoke: (%d,%d) -> (%d,%d)", created, revoked, c, v)
	}
	if s.Live() != live || live != 0 {
		t.Errorf("Live() = %d, want 0", s.Live())
	}
	if !r.Revoked() {
		t.Error("resource should report revoked")
	}
	if _, ok := s.Resolve(uri); ok {
		t.Error("revoked URI must not resolve")
	}
	if !r.Bounds().Empty() {
		t.Error("revoked resource should have empty bounds")
	}
}

func TestURIsAreUnique(t *testing.T) {
	s := NewStore()
	blob := pngBlob(t, "same.png", 1, 1)
	a, err := s.Create(blob)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Create(blob)
	if err != nil {
		t.Fatal(err)
	}
	if a.URI() == b.URI() {
		t.Error("two creates from the same blob must yield different URIs")
	}
	a.Revoke()
	if _, ok := s.Resolve(b.URI()); !ok {
		t.Error("revoking one resource must not affect another")
	}
}

func TestStoreRevokeNil(t *testing.T) {
	NewStore().Revoke(nil)
}
