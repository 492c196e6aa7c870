package source

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeFixture creates path's parent directories and writes content.
func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// hermeticLoader returns a loader that sees only the given tree and
// environment, never the real home directory or process environment.
func hermeticLoader(t *testing.T, environ ...string) (*Loader, string) {
	t.Helper()
	root := t.TempDir()
	l := NewLoader()
	l.Dirs = []string{root}
	l.Home = filepath.Join(root, "home")
	l.Environ = environ
	if l.Environ == nil {
		l.Environ = []string{}
	}
	if err := os.MkdirAll(l.Home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	return l, root
}

func TestChannel(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		want    string
		wantErr error
	}{
		{name: "default", environ: []string{}, want: "dev"},
		{name: "empty value", environ: []string{EnvChannel + "="}, want: "dev"},
		{name: "explicit", environ: []string{EnvChannel + "=alpha"}, want: "alpha"},
		{name: "prod", environ: []string{EnvChannel + "=prod"}, want: "prod"},
		{name: "unknown", environ: []string{EnvChannel + "=staging"}, wantErr: ErrInvalidChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader()
			l.Environ = tt.environ
			got, err := l.Channel()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Channel() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Channel(): %v", err)
			}
			if got != tt.want {
				t.Errorf("Channel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCoalesceLuaBase(t *testing.T) {
	l, root := hermeticLoader(t)
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.lua"), `
function dev()
  return { mypkg = { mod = { x = "base", list = {"b1"} } } }
end
function alpha()
  return { mypkg = { mod = { x = "alpha" } } }
end
`)

	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	if res.Channel != "dev" {
		t.Errorf("Channel = %q, want dev", res.Channel)
	}
	if _, v, ok := res.Values.Lookup("MYPKG_MOD_X"); !ok || v != "base" {
		t.Errorf("MYPKG_MOD_X = %v, %v; want base, true", v, ok)
	}
}

func TestCoalesceChannelSelection(t *testing.T) {
	l, root := hermeticLoader(t, EnvChannel+"=alpha")
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.lua"), `
function dev()
  return { mypkg = { mod = { x = "base" } } }
end
function alpha()
  return { mypkg = { mod = { x = "alpha" } } }
end
`)

	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	if res.Channel != "alpha" {
		t.Errorf("Channel = %q, want alpha", res.Channel)
	}
	if _, v, _ := res.Values.Lookup("MYPKG_MOD_X"); v != "alpha" {
		t.Errorf("MYPKG_MOD_X = %v, want alpha", v)
	}
}

func TestCoalesceChannelMissing(t *testing.T) {
	l, root := hermeticLoader(t, EnvChannel+"=beta")
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.lua"), `
function dev()
  return {}
end
`)

	if _, err := l.Coalesce([]string{"mypkg"}); !errors.Is(err, ErrChannelMissing) {
		t.Errorf("Coalesce error = %v, want ErrChannelMissing", err)
	}
}

func TestCoalesceTOMLBase(t *testing.T) {
	l, root := hermeticLoader(t)
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.toml"), `
[dev.mypkg.mod]
x = "toml"
n = 7

[prod.mypkg.mod]
x = "live"
`)

	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	if _, v, _ := res.Values.Lookup("MYPKG_MOD_X"); v != "toml" {
		t.Errorf("MYPKG_MOD_X = %v, want toml", v)
	}
	if _, v, _ := res.Values.Lookup("MYPKG_MOD_N"); v != int64(7) {
		t.Errorf("MYPKG_MOD_N = %v (%T), want 7", v, v)
	}
}

func TestCoalesceTOMLChannelMissing(t *testing.T) {
	l, root := hermeticLoader(t, EnvChannel+"=prod")
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.toml"), `
[dev.mypkg]
x = "toml"
`)

	if _, err := l.Coalesce([]string{"mypkg"}); !errors.Is(err, ErrChannelMissing) {
		t.Errorf("Coalesce error = %v, want ErrChannelMissing", err)
	}
}

func TestCoalesceLuaPreferredOverTOML(t *testing.T) {
	l, root := hermeticLoader(t)
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.lua"), `
function dev()
  return { mypkg = { x = "lua" } }
end
`)
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.toml"), `
[dev.mypkg]
x = "toml"
`)

	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	if _, v, _ := res.Values.Lookup("MYPKG_X"); v != "lua" {
		t.Errorf("MYPKG_X = %v, want lua", v)
	}
}

func TestCoalesceLayerPriority(t *testing.T) {
	// base < home < environment; lists concatenate higher priority first.
	l, root := hermeticLoader(t, "MYPKG_MOD_Y=env")
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.lua"), `
function dev()
  return { mypkg = { mod = { x = "base", y = "base", list = {"b1"} } } }
end
`)
	writeFixture(t, filepath.Join(l.Home, ".mypkg_config.lua"), `
function dev()
  return { mypkg = { mod = { x = "home", y = "home", list = {"h1"} } } }
end
`)

	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	if _, v, _ := res.Values.Lookup("MYPKG_MOD_X"); v != "home" {
		t.Errorf("MYPKG_MOD_X = %v, want home", v)
	}
	if _, v, _ := res.Values.Lookup("MYPKG_MOD_Y"); v != "env" {
		t.Errorf("MYPKG_MOD_Y = %v, want env", v)
	}
	_, v, _ := res.Values.Lookup("MYPKG_MOD_LIST")
	if want := []any{"h1", "b1"}; !reflect.DeepEqual(v, want) {
		t.Errorf("MYPKG_MOD_LIST = %v, want %v", v, want)
	}
}

func TestCoalesceHomeTOMLOverride(t *testing.T) {
	l, root := hermeticLoader(t)
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.lua"), `
function dev()
  return { mypkg = { x = "base" } }
end
`)
	writeFixture(t, filepath.Join(l.Home, ".mypkg_config.toml"), `
[dev.mypkg]
x = "override"
`)

	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	if _, v, _ := res.Values.Lookup("MYPKG_X"); v != "override" {
		t.Errorf("MYPKG_X = %v, want override", v)
	}
}

func TestCoalesceEnvEmptyIsNil(t *testing.T) {
	l, root := hermeticLoader(t, "MYPKG_X=")
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.lua"), `
function dev()
  return { mypkg = { x = "base" } }
end
`)

	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	_, v, ok := res.Values.Lookup("MYPKG_X")
	if !ok || v != nil {
		t.Errorf("MYPKG_X = %v, %v; want nil, true", v, ok)
	}
}

func TestCoalesceLoadPathAppend(t *testing.T) {
	l, root := hermeticLoader(t, EnvLoadPath+"=otherpkg:mypkg")
	writeFixture(t, filepath.Join(root, "mypkg", "base_config.lua"), `
function dev()
  return { mypkg = { x = "a" } }
end
`)
	writeFixture(t, filepath.Join(root, "otherpkg", "base_config.lua"), `
function dev()
  return { otherpkg = { y = "b" } }
end
`)

	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	want := []string{"mypkg", "otherpkg"}
	if !reflect.DeepEqual(res.LoadPath, want) {
		t.Errorf("LoadPath = %v, want %v", res.LoadPath, want)
	}
	if _, v, _ := res.Values.Lookup("OTHERPKG_Y"); v != "b" {
		t.Errorf("OTHERPKG_Y = %v, want b", v)
	}
}

func TestCoalesceMissingFilesSkipped(t *testing.T) {
	l, _ := hermeticLoader(t)
	res, err := l.Coalesce([]string{"mypkg", "otherpkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	// Only the implicit bindings remain.
	if res.Values.Len() != 2 {
		t.Errorf("Values.Len() = %d, want 2 (implicit bindings only): %#v",
			res.Values.Len(), res.Values.Flat())
	}
}

func TestCoalesceImplicitBindings(t *testing.T) {
	l, _ := hermeticLoader(t, EnvChannel+"=beta")
	res, err := l.Coalesce([]string{"mypkg"})
	if err != nil {
		t.Fatalf("Coalesce: %v", err)
	}
	if _, v, _ := res.Values.Lookup(EnvChannel); v != "beta" {
		t.Errorf("%s binding = %v, want beta", EnvChannel, v)
	}
	_, v, _ := res.Values.Lookup(EnvLoadPath)
	if want := []any{"mypkg"}; !reflect.DeepEqual(v, want) {
		t.Errorf("%s binding = %v, want %v", EnvLoadPath, v, want)
	}
}

func TestSplitLoadPath(t *testing.T) {
	if got := SplitLoadPath(""); got != nil {
		t.Errorf("SplitLoadPath(\"\") = %v, want nil", got)
	}
	want := []string{"aa", "bb"}
	if got := SplitLoadPath("aa:bb"); !reflect.DeepEqual(got, want) {
		t.Errorf("SplitLoadPath = %v, want %v", got, want)
	}
}

func TestValidChannel(t *testing.T) {
	for _, c := range Channels {
		if !ValidChannel(c) {
			t.Errorf("ValidChannel(%q) = false", c)
		}
	}
	if ValidChannel("staging") {
		t.Error("ValidChannel(staging) = true")
	}
}
