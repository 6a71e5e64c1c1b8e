package kalcame

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/juju/errors"

	"github.com/phanxgames/kalcame/imageres"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDirPickerNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	png := pngBlob(t, "x.png", 2, 2).Data
	for _, name := range []string{"img10.png", "img2.png", "img1.PNG"} {
		writeFile(t, dir, name, png)
	}
	writeFile(t, dir, "notes.txt", []byte("not an image"))
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}
	extra := writeFile(t, t.TempDir(), "first.png", png)

	p := &DirPicker{Dir: dir, Paths: []string{extra}}
	got, err := p.Candidates()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		extra,
		filepath.Join(dir, "img1.PNG"),
		filepath.Join(dir, "img2.png"),
		filepath.Join(dir, "img10.png"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates =\n  %v\nwant\n  %v", got, want)
	}
}

func TestDirPickerCycles(t *testing.T) {
	dir := t.TempDir()
	png := pngBlob(t, "x.png", 2, 2).Data
	writeFile(t, dir, "a.png", png)
	writeFile(t, dir, "b.png", png)

	p := &DirPicker{Dir: dir}
	var names []string
	for i := 0; i < 3; i++ {
		b, err := p.Next()
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, b.Name)
	}
	if want := []string{"a.png", "b.png", "a.png"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestDirPickerEmpty(t *testing.T) {
	p := &DirPicker{}
	if _, err := p.Next(); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Next on empty picker = %v, want ErrNoCandidates", err)
	}
	p = &DirPicker{Dir: filepath.Join(t.TempDir(), "missing")}
	if _, err := p.Next(); err == nil || errors.Is(err, ErrNoCandidates) {
		t.Errorf("Next on missing dir = %v, want the read error", err)
	}
}

func TestBlobTyping(t *testing.T) {
	png := pngBlob(t, "x.png", 2, 2).Data
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"photo.png", png, "image/png"},
		{"PHOTO.PNG", png, "image/png"},
		{"no-extension", png, "image/png"},
		{"readme", []byte("plain words"), "text/plain"},
	}
	for _, tt := range tests {
		if got := newBlob(tt.name, tt.data).Type; got != tt.want {
			t.Errorf("newBlob(%q).Type = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestBlobFromFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "pic.png", pngBlob(t, "x.png", 2, 2).Data)
	b, err := BlobFromFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if b.Name != "pic.png" || b.Type != "image/png" || len(b.Data) == 0 {
		t.Errorf("blob = %q %q %d bytes", b.Name, b.Type, len(b.Data))
	}
	if _, err := imageres.NewStore().Create(b); err != nil {
		t.Errorf("Create from file blob: %v", err)
	}
}

func TestDroppedBlobs(t *testing.T) {
	png := pngBlob(t, "x.png", 2, 2).Data
	fsys := fstest.MapFS{
		"a.png":        {Data: png},
		"folder/b.txt": {Data: []byte("text")},
	}
	blobs := DroppedBlobs(fsys)
	if len(blobs) != 2 {
		t.Fatalf("got %d blobs, want 2", len(blobs))
	}
	if blobs[0].Name != "a.png" || blobs[1].Name != "b.txt" {
		t.Errorf("names = %q, %q", blobs[0].Name, blobs[1].Name)
	}
	if DroppedBlobs(nil) != nil {
		t.Error("nil FS should yield nothing")
	}
}

func TestSelectorPicksThroughPicker(t *testing.T) {
	store := imageres.NewStore()
	var got []*imageres.Resource
	blobs := []imageres.Blob{
		{Name: "bad.txt", Type: "text/plain", Data: []byte("x")},
		pngBlob(t, "good.png", 2, 2),
	}
	i := 0
	v := NewSelectorView(SelectorViewConfig{
		Theme:     *testTheme(),
		Localizer: englishLocalizer(),
		Store:     store,
		Picker: PickerFunc(func() (imageres.Blob, error) {
			b := blobs[i%len(blobs)]
			i++
			return b, nil
		}),
		OnSelect: func(r *imageres.Resource) error {
			got = append(got, r)
			return nil
		},
	})

	v.pickNext()
	if len(got) != 0 || store.Live() != 0 {
		t.Fatal("invalid blob should not reach OnSelect")
	}
	v.pickNext()
	if len(got) != 1 || got[0].Source().Name != "good.png" {
		t.Fatalf("got %d resources", len(got))
	}
}

func TestSelectorRefusedSelection(t *testing.T) {
	store := imageres.NewStore()
	v := NewSelectorView(SelectorViewConfig{
		Theme:     *testTheme(),
		Localizer: englishLocalizer(),
		Store:     store,
		OnSelect: func(r *imageres.Resource) error {
			r.Revoke()
			return ErrInvalidTransition
		},
	})
	if v.Pick(pngBlob(t, "a.png", 2, 2)) {
		t.Error("Pick should report a refused selection")
	}
	if store.Live() != 0 {
		t.Errorf("Live = %d, want 0", store.Live())
	}
	if v.PickFirst(nil) {
		t.Error("PickFirst(nil) = true")
	}
}
