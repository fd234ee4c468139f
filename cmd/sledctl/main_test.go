package main

import (
	"os"
	"path/filepath"
	"testing"

	"sledctl/internal/settings"
)

func TestSettingsStoreChoosesFileOrMem(t *testing.T) {
	if _, ok := settingsStore("").(*settings.MemStore); !ok {
		t.Fatalf("expected MemStore for an empty path")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	store, ok := settingsStore(path).(*settings.FileStore)
	if !ok {
		t.Fatalf("expected FileStore for a non-empty path")
	}
	if store.Path != path {
		t.Fatalf("FileStore.Path = %q, want %q", store.Path, path)
	}
}

func TestOpenPortSimulateReturnsLoopback(t *testing.T) {
	port, err := openPort("/dev/ttyACM0", 115200, true)
	if err != nil {
		t.Fatalf("openPort(simulate=true) returned error: %v", err)
	}
	defer port.Close()

	if _, err := port.Write([]byte("ok\n")); err != nil {
		t.Fatalf("write to simulated port: %v", err)
	}
}

func TestOpenPortRealMissingDeviceErrors(t *testing.T) {
	_, err := openPort(filepath.Join(os.TempDir(), "sledctl-no-such-device"), 115200, false)
	if err == nil {
		t.Fatalf("expected an error opening a non-existent serial device")
	}
}
