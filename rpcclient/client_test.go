package rpcclient

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
)

func TestNotReadyMatchesWarmupCode(t *testing.T) {
	err := &btcjson.RPCError{Code: rpcNotReadyCode, Message: "Loading block index..."}
	if !NotReady(err) {
		t.Fatal("expected NotReady(-28) to be true")
	}
	if NotReady(fmt.Errorf("some other error")) {
		t.Fatal("expected NotReady(non-rpc error) to be false")
	}
}

func TestNotFoundMatchesBlockNotFoundCode(t *testing.T) {
	err := &btcjson.RPCError{Code: rpcNotFoundCode, Message: "Block not found"}
	if !NotFound(err) {
		t.Fatal("expected NotFound(-5) to be true")
	}
	other := &btcjson.RPCError{Code: rpcNotReadyCode, Message: "warming up"}
	if NotFound(other) {
		t.Fatal("expected NotFound(-28) to be false")
	}
}

func TestReadCookieSplitsUserAndPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cookie")
	if err := os.WriteFile(path, []byte("__cookie__:abc123\n"), 0o600); err != nil {
		t.Fatalf("write cookie: %v", err)
	}
	user, pass, err := readCookie(path)
	if err != nil {
		t.Fatalf("readCookie: %v", err)
	}
	if user != "__cookie__" || pass != "abc123" {
		t.Fatalf("got (%q, %q)", user, pass)
	}
}

func TestReadCookieRejectsMalformedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cookie")
	if err := os.WriteFile(path, []byte("no-colon-here"), 0o600); err != nil {
		t.Fatalf("write cookie: %v", err)
	}
	if _, _, err := readCookie(path); err == nil {
		t.Fatal("expected error for malformed cookie file")
	}
}

func TestDialRejectsBothAuthMethods(t *testing.T) {
	_, err := Dial(Config{Host: "127.0.0.1:8332", Cookie: "/tmp/.cookie", User: "alice", Password: "pw"})
	if err == nil {
		t.Fatal("expected error when both cookie and user/password are set")
	}
}
