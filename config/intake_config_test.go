package config

import (
	"os"
	"path/filepath"
	"testing"

	"intake_server/core/domain"
)

func TestLoadRules_Defaults(t *testing.T) {
	cfg := &Config{InternalDomain: "chemco.com", ForwarderSender: "andre@chemco.com"}

	rules, err := cfg.LoadRules()
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules.InternalDomain != "chemco.com" {
		t.Errorf("internal domain = %q", rules.InternalDomain)
	}
	if rules.Forwarder == nil || rules.Forwarder.Sender != "andre@chemco.com" {
		t.Errorf("forwarder rule not built: %+v", rules.Forwarder)
	}
	if len(rules.AutoSkip) == 0 || len(rules.SystemDomains) == 0 {
		t.Error("default tables should not be empty")
	}
}

func TestLoadRules_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	content := `{
		"auto_flag": [{"name": "vip", "domain": "bigcorp.com", "classification": "ORDER_INQUIRY", "reason": "vip account"}],
		"auto_skip": [],
		"system_domains": ["noreply.example.com"]
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{RulesFile: path, InternalDomain: "chemco.com"}
	rules, err := cfg.LoadRules()
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	if len(rules.AutoFlag) != 1 || rules.AutoFlag[0].Name != "vip" {
		t.Errorf("auto-flag not loaded from file: %+v", rules.AutoFlag)
	}
	// Internal domain falls back to the env value when the file omits it.
	if rules.InternalDomain != "chemco.com" {
		t.Errorf("internal domain = %q", rules.InternalDomain)
	}
	if len(rules.SystemDomains) != 1 {
		t.Errorf("system domains = %v", rules.SystemDomains)
	}
}

func TestLoadRules_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{RulesFile: path}
	if _, err := cfg.LoadRules(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTaxonomy_EnvOverride(t *testing.T) {
	cfg := &Config{
		FlagLabels: []string{"CUSTOM_FLAG"},
		SkipLabels: []string{"CUSTOM_SKIP"},
	}
	tax := cfg.Taxonomy()

	if tax.ActionFor("CUSTOM_SKIP") != domain.ActionDiscard {
		t.Error("custom skip label should discard")
	}
	if tax.ActionFor("CUSTOM_FLAG") != domain.ActionFlag {
		t.Error("custom flag label should flag")
	}
	// Unknown labels always flag.
	if tax.ActionFor("NEVER_SEEN") != domain.ActionFlag {
		t.Error("unknown label should flag")
	}
}

func TestTaxonomy_DefaultWhenUnset(t *testing.T) {
	cfg := &Config{}
	tax := cfg.Taxonomy()

	if tax.ActionFor(domain.LabelSystemNotification) != domain.ActionDiscard {
		t.Error("default skip set should discard system notifications")
	}
	if tax.ActionFor(domain.LabelQuoteRequest) != domain.ActionFlag {
		t.Error("default flag set should flag quote requests")
	}
}
