package ursanet

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
)

func TestLoadOrCreateIdentityCreatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.key")

	priv1, err := LoadOrCreateIdentity(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	priv2, err := LoadOrCreateIdentity(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	id1, _ := peer.IDFromPrivateKey(priv1)
	id2, _ := peer.IDFromPrivateKey(priv2)
	if id1 != id2 {
		t.Errorf("reloaded identity has different peer ID: %s vs %s", id1, id2)
	}
}

func TestLoadOrCreateIdentityRejectsLoosePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.key")

	if _, err := LoadOrCreateIdentity(path); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if _, err := LoadOrCreateIdentity(path); err == nil {
		t.Error("expected error loading a world-readable key file")
	}
}

func TestPeerIDFromKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.key")

	id, err := PeerIDFromKeyFile(path)
	if err != nil {
		t.Fatalf("PeerIDFromKeyFile: %v", err)
	}
	if id == "" {
		t.Error("expected non-empty peer ID")
	}
}
