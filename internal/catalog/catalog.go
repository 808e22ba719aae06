// Package catalog loads the reference table of well-known ports used when no
// explicit range is requested.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/L1nMay/porty/internal/model"
)

var ErrEmptyCatalog = errors.New("port catalog is empty")

// Source yields catalog entries in scan order.
type Source interface {
	Load(ctx context.Context) ([]model.PortSpec, error)
}

// Document is the on-disk layout: a mapping whose "ports" key holds the entries.
type Document struct {
	Ports []model.PortSpec `yaml:"ports" json:"ports"`
}

// File reads a YAML catalog from disk on every Load.
type File struct {
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Load(ctx context.Context) ([]model.PortSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", f.Path, err)
	}
	specs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", f.Path, err)
	}
	return specs, nil
}

// Parse decodes a YAML catalog document and normalizes its entries.
func Parse(data []byte) ([]model.PortSpec, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return Normalize(doc.Ports)
}

// Normalize validates port numbers and fills in a missing protocol label.
// Entry order is preserved.
func Normalize(entries []model.PortSpec) ([]model.PortSpec, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	out := make([]model.PortSpec, 0, len(entries))
	for i, e := range entries {
		if e.Port < 0 || e.Port > 65535 {
			return nil, fmt.Errorf("entry %d: port %d out of range", i, e.Port)
		}
		e.Protocol = strings.TrimSpace(e.Protocol)
		if e.Protocol == "" {
			e.Protocol = model.UnknownProtocol
		}
		out = append(out, e)
	}
	return out, nil
}

// Static serves a fixed in-memory list, mostly for tests and the API.
type Static []model.PortSpec

func (s Static) Load(ctx context.Context) ([]model.PortSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Normalize(s)
}
