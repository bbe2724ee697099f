package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreMissingFileIsFactory(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "store.cbor"))
	r, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !r.Factory() {
		t.Errorf("expected factory mode, got %v", r.Mode)
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.cbor")
	s := NewFileStore(path)
	want := Record{
		Mode:          ModeConnected,
		ConnectWanted: true,
		User:          UserConfig{Volume: 0x0A, Alarm: 0x02, Security: 0xFF},
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.cbor")
	if err := os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(); err == nil {
		t.Error("expected decode error")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeNonConnected, ModeConnected, ModeFactory} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore(Default())
	r, _ := m.Load()
	r.User.Volume = 3
	if err := m.Save(r); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Load()
	if got.User.Volume != 3 || m.Saves != 1 {
		t.Errorf("got %+v saves=%d", got, m.Saves)
	}
}
