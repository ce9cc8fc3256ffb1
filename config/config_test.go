package config

import "testing"

func TestDefaultProducesValidConfig(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(Default()): %v", err)
	}
	if cfg.CommitInterval != 5000 {
		t.Fatalf("CommitInterval = %d, want 5000", cfg.CommitInterval)
	}
}

func TestValidateRejectsUnknownChain(t *testing.T) {
	cfg := Default()
	cfg.Chain = "not-a-chain"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown chain")
	}
}

func TestValidateRejectsBothAuthMethods(t *testing.T) {
	cfg := Default()
	cfg.RPCCookie = "/tmp/.cookie"
	cfg.RPCUser = "alice"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when both cookie and user/password are set")
	}
}

func TestFirstInscriptionHeightOverride(t *testing.T) {
	cfg := Default()
	cfg.Chain = "regtest"
	override := uint32(42)
	cfg.FirstInscription = &override
	if got := cfg.FirstInscriptionHeight(); got != 42 {
		t.Fatalf("FirstInscriptionHeight() = %d, want 42", got)
	}
}

func TestHiddenSetLookup(t *testing.T) {
	cfg := Default()
	cfg.Hidden = []string{"abc", "def"}
	set := cfg.HiddenSet()
	if _, ok := set["abc"]; !ok {
		t.Fatal("abc missing from hidden set")
	}
	if _, ok := set["zzz"]; ok {
		t.Fatal("unexpected member in hidden set")
	}
}
