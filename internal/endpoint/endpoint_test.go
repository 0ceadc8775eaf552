package endpoint_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torosent/kvbench/internal/endpoint"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "prod.redis", "# production cache\nhost = cache.internal\nport = 6380\nauth = s3cret\n")

	d, err := endpoint.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if d.Host != "cache.internal" {
		t.Errorf("Host = %q, want cache.internal", d.Host)
	}
	if d.Port != 6380 {
		t.Errorf("Port = %d, want 6380", d.Port)
	}
	if !d.HasCredential() || d.Credential != "s3cret" {
		t.Errorf("Credential = %q, want s3cret", d.Credential)
	}
	if d.Addr() != "cache.internal:6380" {
		t.Errorf("Addr() = %q", d.Addr())
	}
}

func TestLoadDescriptorErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"missing host", "port = 6379\n", "host"},
		{"missing port", "host = localhost\n", "port"},
		{"bad port", "host = localhost\nport = abc\n", "port"},
		{"port out of range", "host = localhost\nport = 70000\n", "port"},
		{"unknown key", "host = localhost\nport = 6379\ndb = 2\n", "db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "x.redis", tt.content)
			_, err := endpoint.Load(path)
			var cfgErr *endpoint.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
			if !strings.Contains(err.Error(), path) {
				t.Errorf("error %q does not name the file", err)
			}
		})
	}
}

func TestLoadDescriptorLayouts(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"spaced", "host = 127.0.0.1\nport = 6379\n"},
		{"compact", "host=127.0.0.1\nport=6379\n"},
		{"comments and blank lines", "# local\n\nhost = 127.0.0.1\n\n# default port\nport = 6379\n"},
		{"no trailing newline", "host = 127.0.0.1\nport = 6379"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "local.redis", tt.content)
			d, err := endpoint.Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if d.Addr() != "127.0.0.1:6379" {
				t.Errorf("Addr() = %q, want 127.0.0.1:6379", d.Addr())
			}
			if d.HasCredential() {
				t.Error("HasCredential() = true for a file without auth")
			}
		})
	}
}

func TestDescriptorString(t *testing.T) {
	tests := []struct {
		name string
		d    endpoint.Descriptor
		want string
	}{
		{"address only", endpoint.Descriptor{Host: "h", Port: 1}, "h:1"},
		{"with source", endpoint.Descriptor{Host: "h", Port: 1, Source: "a.redis"}, "h:1 (a.redis)"},
		{"with auth", endpoint.Descriptor{Host: "h", Port: 1, Source: "a.redis", Credential: "pw"}, "h:1 (a.redis) with auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.d.String()
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if strings.Contains(got, "pw") {
				t.Errorf("String() = %q leaks the credential", got)
			}
		})
	}
}

func TestFindSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.redis", "host=b\nport=1\n")
	writeFile(t, dir, "a.redis", "host=a\nport=1\n")
	writeFile(t, dir, "id_rsa", "not a descriptor")
	if err := os.Mkdir(filepath.Join(dir, "dir.redis"), 0o700); err != nil {
		t.Fatal(err)
	}

	got, err := endpoint.Find(dir, "")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Find()) = %d, want 2: %v", len(got), got)
	}
	if filepath.Base(got[0]) != "a.redis" || filepath.Base(got[1]) != "b.redis" {
		t.Errorf("Find() = %v, want sorted a,b", got)
	}

	missing, err := endpoint.Find(filepath.Join(dir, "nope"), "")
	if err != nil || len(missing) != 0 {
		t.Errorf("Find(missing) = %v, %v; want empty, nil", missing, err)
	}
}

func TestSelectorExplicitIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.redis", "host=alpha\nport=6379\n")
	writeFile(t, dir, "b.redis", "host=beta\nport=6379\n")

	idx := 1
	sel := &endpoint.Selector{Dir: dir, Index: &idx}
	d, ok, err := sel.Select(context.Background())
	if err != nil || !ok {
		t.Fatalf("Select() = %v, %v", ok, err)
	}
	if d.Host != "beta" {
		t.Errorf("Host = %q, want beta", d.Host)
	}

	idx = 5
	_, _, err = sel.Select(context.Background())
	var cfgErr *endpoint.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for out-of-range index, got %v", err)
	}
}

func TestSelectorPrompt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.redis", "host=alpha\nport=6379\n")
	writeFile(t, dir, "b.redis", "host=beta\nport=6380\n")

	tests := []struct {
		name   string
		input  string
		wantOK bool
		host   string
	}{
		{"index", "1\n", true, "beta"},
		{"retry after garbage", "7\n\n0\n", true, "alpha"},
		{"quit", "q\n", false, ""},
		{"eof", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			sel := &endpoint.Selector{Dir: dir, In: strings.NewReader(tt.input), Out: &out}
			d, ok, err := sel.Select(context.Background())
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && d.Host != tt.host {
				t.Errorf("Host = %q, want %q", d.Host, tt.host)
			}
			if !strings.Contains(out.String(), "Configuration Files:") {
				t.Errorf("prompt did not list candidates: %q", out.String())
			}
		})
	}
}

func TestStaticSource(t *testing.T) {
	d, ok, err := endpoint.Static{Descriptor: endpoint.Descriptor{Host: "h", Port: 1}}.Select(context.Background())
	if err != nil || !ok || d.Host != "h" {
		t.Fatalf("Static.Select() = %v, %v, %v", d, ok, err)
	}
	_, _, err = endpoint.Static{Descriptor: endpoint.Descriptor{Port: 1}}.Select(context.Background())
	if err == nil {
		t.Fatal("expected error for missing host")
	}
}
