package filesystem

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSharedOutput_ConcurrentWriteAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	m := NewManager()

	out, err := m.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const parts = 8
	const partSize = 64 * 1024

	// Write parts in reverse order from separate goroutines
	var wg sync.WaitGroup
	for i := parts - 1; i >= 0; i-- {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte('a' + idx)}, partSize)
			if _, err := out.WriteAt(data, int64(idx*partSize)); err != nil {
				t.Errorf("WriteAt(%d): %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	if err := out.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != parts*partSize {
		t.Fatalf("file size = %d, want %d", len(got), parts*partSize)
	}
	for i := 0; i < parts; i++ {
		region := got[i*partSize : (i+1)*partSize]
		if !bytes.Equal(region, bytes.Repeat([]byte{byte('a' + i)}, partSize)) {
			t.Errorf("region %d corrupted", i)
		}
	}
}

func TestSharedOutput_SequentialWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.bin")
	m := NewManagerWithBufferSize(16)

	out, err := m.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, chunk := range []string{"hello ", "buffered ", "world"} {
		if _, err := out.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := out.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "hello buffered world" {
		t.Errorf("content = %q", got)
	}

	// Writes after finalize fail, second finalize is a no-op
	if _, err := out.Write([]byte("x")); err == nil {
		t.Error("expected error writing after Finalize")
	}
	if err := out.Finalize(); err != nil {
		t.Errorf("second Finalize: %v", err)
	}
}

func TestManager_CreateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.bin")
	if err := os.WriteFile(path, []byte("old content that is long"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	out, err := m.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	out.Write([]byte("new"))
	if err := out.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}

func TestManager_PrepareTarget(t *testing.T) {
	dir := t.TempDir()
	m := NewManager()
	m.executable = func() (string, error) { return filepath.Join(dir, "missing.exe"), nil }

	target := filepath.Join(dir, "nested", "deeper", "pkg.msix")
	moved, err := m.PrepareTarget(target)
	if err != nil {
		t.Fatalf("PrepareTarget: %v", err)
	}
	if moved != "" {
		t.Errorf("moved = %q, want empty", moved)
	}
	if info, err := os.Stat(filepath.Dir(target)); err != nil || !info.IsDir() {
		t.Errorf("parent dir not created: %v", err)
	}
}

func TestManager_PrepareTargetSelfUpdate(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "installer.exe")
	if err := os.WriteFile(exe, []byte("running binary"), 0755); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	m.executable = func() (string, error) { return exe, nil }

	moved, err := m.PrepareTarget(exe)
	if err != nil {
		t.Fatalf("PrepareTarget: %v", err)
	}

	want := filepath.Join(dir, "installer.instbak")
	if moved != want {
		t.Errorf("moved = %q, want %q", moved, want)
	}
	if m.FileExists(exe) {
		t.Error("executable should have been moved aside")
	}
	if !m.FileExists(want) {
		t.Error("backup should exist")
	}
}

func TestManager_FileHelpers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	m := NewManager()

	if m.FileExists(path) {
		t.Error("FileExists on missing file = true")
	}
	if err := m.DeleteFile(path); err != nil {
		t.Errorf("DeleteFile on missing file: %v", err)
	}

	os.WriteFile(path, []byte("12345"), 0644)
	size, err := m.GetFileSize(path)
	if err != nil || size != 5 {
		t.Errorf("GetFileSize = (%d, %v), want (5, nil)", size, err)
	}
	if m.FileExists(dir) {
		t.Error("FileExists on directory = true")
	}
	if err := m.DeleteFile(path); err != nil {
		t.Errorf("DeleteFile: %v", err)
	}
	if m.FileExists(path) {
		t.Error("file still exists after DeleteFile")
	}
}
