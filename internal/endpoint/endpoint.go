// Package endpoint loads and selects the connection parameters of the
// key-value service under test.
package endpoint

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// DefaultSuffix is the file extension of endpoint descriptor files.
const DefaultSuffix = ".redis"

// Descriptor holds immutable connection parameters for one service instance.
type Descriptor struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	Credential string `json:"-" yaml:"-"`
	Source     string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Addr returns host:port.
func (d Descriptor) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// HasCredential reports whether the endpoint expects an AUTH exchange.
func (d Descriptor) HasCredential() bool {
	return d.Credential != ""
}

// String renders the address, the source file and whether AUTH is used. The
// credential itself is never printed.
func (d Descriptor) String() string {
	s := d.Addr()
	if d.Source != "" {
		s += " (" + d.Source + ")"
	}
	if d.HasCredential() {
		s += " with auth"
	}
	return s
}

// Validate checks the required fields of a descriptor.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Host) == "" {
		return &ConfigurationError{Path: d.Source, Field: "host", Reason: "is required"}
	}
	if d.Port <= 0 || d.Port > 65535 {
		return &ConfigurationError{Path: d.Source, Field: "port", Reason: fmt.Sprintf("must be between 1 and 65535, got %d", d.Port)}
	}
	return nil
}

// ConfigurationError reports a descriptor file with a missing or malformed field.
type ConfigurationError struct {
	Path   string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Path != "" {
		b.WriteString(" in ")
		b.WriteString(e.Path)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " %s", e.Reason)
	}
	return b.String()
}

var knownKeys = map[string]bool{"host": true, "port": true, "auth": true}

// Load parses a key = value descriptor file. Lines starting with # are comments.
// The dotenv decoder reads that layout regardless of the file extension.
func Load(path string) (Descriptor, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("dotenv")
	if err := v.ReadInConfig(); err != nil {
		return Descriptor{}, &ConfigurationError{Path: path, Reason: err.Error()}
	}

	for _, key := range v.AllKeys() {
		if !knownKeys[strings.ToLower(key)] {
			return Descriptor{}, &ConfigurationError{Path: path, Field: key, Reason: "is not a recognized key"}
		}
	}

	d := Descriptor{Source: path}
	d.Host = strings.TrimSpace(v.GetString("host"))

	rawPort := strings.TrimSpace(v.GetString("port"))
	if rawPort == "" {
		return Descriptor{}, &ConfigurationError{Path: path, Field: "port", Reason: "is required"}
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return Descriptor{}, &ConfigurationError{Path: path, Field: "port", Reason: fmt.Sprintf("must be an integer, got %q", rawPort)}
	}
	d.Port = port
	d.Credential = strings.TrimSpace(v.GetString("auth"))

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Find returns the sorted descriptor files in dir that end with suffix.
// A missing directory yields no candidates.
func Find(dir, suffix string) ([]string, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// DefaultDir is where descriptor files are looked up when no directory is configured.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".ssh")
}
