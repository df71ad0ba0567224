package logging

import "testing"

func TestNew_DefaultConfigBuildsLogger(t *testing.T) {
	logger, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger == nil {
		t.Fatal("New returned a nil logger")
	}
	defer logger.Sync()
}

func TestNew_DevelopmentConfigBuildsLogger(t *testing.T) {
	logger, err := New(Config{Level: "debug", Development: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger == nil {
		t.Fatal("New returned a nil logger")
	}
	defer logger.Sync()
}

func TestParseLevel_RejectsUnknownLevel(t *testing.T) {
	if _, err := parseLevel("not-a-level"); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}

func TestParseLevel_EmptyDefaultsToInfo(t *testing.T) {
	level, err := parseLevel("")
	if err != nil {
		t.Fatalf("parseLevel: %v", err)
	}
	if level.String() != "info" {
		t.Fatalf("parseLevel(\"\") = %v, want info", level)
	}
}
