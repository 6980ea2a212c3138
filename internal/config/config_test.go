package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Providers.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("openai model = %q", cfg.Providers.OpenAI.Model)
	}
	if !cfg.Providers.Mistral.Enabled {
		t.Error("mistral should be enabled by default")
	}
	if cfg.Filter.MinWidth != 500 || cfg.Filter.MinHeight != 500 {
		t.Errorf("min dims = %dx%d, want 500x500", cfg.Filter.MinWidth, cfg.Filter.MinHeight)
	}
	if cfg.Pipeline.DedupScope != "run" {
		t.Errorf("dedup scope = %q, want run", cfg.Pipeline.DedupScope)
	}
	if cfg.Pipeline.PageScale != 2.0 {
		t.Errorf("page scale = %v, want 2.0", cfg.Pipeline.PageScale)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("TEST_CONFIG_KEY", "secret123")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple var", "${TEST_CONFIG_KEY}", "secret123"},
		{"embedded var", "prefix-${TEST_CONFIG_KEY}-suffix", "prefix-secret123-suffix"},
		{"no var", "plain-value", "plain-value"},
		{"empty", "", ""},
		{"unset var", "${TEST_CONFIG_UNSET_KEY}", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("missing openai key is fatal", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		cfg := DefaultConfig()
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error for missing openai key")
		}
	})

	t.Run("mistral key only required when enabled", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("MISTRAL_API_KEY", "")
		cfg := DefaultConfig()
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error while mistral enabled without key")
		}

		cfg.Providers.Mistral.Enabled = false
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil with mistral disabled", err)
		}
	})
}

func TestConfigConversions(t *testing.T) {
	cfg := DefaultConfig()

	limits := cfg.Filter.Limits()
	if limits.MinWidth != cfg.Filter.MinWidth || limits.PerDocMax != cfg.Filter.PerDocMax {
		t.Errorf("Limits() dropped fields: %+v", limits)
	}

	rc := cfg.Retry.ExecutorConfig()
	if rc.BaseDelay != time.Second || rc.MaxDelay != 30*time.Second {
		t.Errorf("ExecutorConfig delays = %v/%v", rc.BaseDelay, rc.MaxDelay)
	}

	bc := cfg.Enrich.BatcherConfig("gpt-4o-mini")
	if bc.InterBatchDelay != time.Second || bc.Model != "gpt-4o-mini" {
		t.Errorf("BatcherConfig = %+v", bc)
	}

	pc := cfg.PipelineConfig()
	if string(pc.Dedup) != cfg.Pipeline.DedupScope || pc.Scale != cfg.Pipeline.PageScale {
		t.Errorf("PipelineConfig = %+v", pc)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"providers:", "filter:", "min_width: 500", "dedup_scope: run"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("written config missing %q", want)
		}
	}
}
