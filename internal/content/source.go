// Package content loads the learning material quizzes are generated from.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pavelanni/ytlearner/internal/model"
)

var (
	// ErrNotFound is returned when no material exists for a ref.
	ErrNotFound = errors.New("content not found")
	// ErrInvalidRef is returned for refs that are not safe identifiers.
	ErrInvalidRef = errors.New("invalid content ref")
)

var refRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRef reports whether ref is an acceptable source identifier.
func ValidRef(ref string) bool {
	return refRegex.MatchString(ref)
}

// Source resolves a source ref to its material.
type Source interface {
	Fetch(ctx context.Context, ref string) (model.Material, error)
}

// DirSource reads material from <Dir>/<ref>.json, falling back to a plain
// transcript at <Dir>/<ref>.txt.
type DirSource struct {
	Dir string
}

// Fetch loads the material for ref.
func (d DirSource) Fetch(ctx context.Context, ref string) (model.Material, error) {
	if !ValidRef(ref) {
		return model.Material{}, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if err := ctx.Err(); err != nil {
		return model.Material{}, err
	}

	data, err := os.ReadFile(filepath.Join(d.Dir, ref+".json"))
	if err == nil {
		var m model.Material
		if err := json.Unmarshal(data, &m); err != nil {
			return model.Material{}, fmt.Errorf("parse %s.json: %w", ref, err)
		}
		m.Ref = ref
		return m, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return model.Material{}, fmt.Errorf("read %s.json: %w", ref, err)
	}

	data, err = os.ReadFile(filepath.Join(d.Dir, ref+".txt"))
	if errors.Is(err, fs.ErrNotExist) {
		return model.Material{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return model.Material{}, fmt.Errorf("read %s.txt: %w", ref, err)
	}
	return model.Material{Ref: ref, Transcript: strings.TrimSpace(string(data))}, nil
}

// Static serves material from memory.
type Static map[string]model.Material

// Fetch returns the material registered for ref.
func (s Static) Fetch(_ context.Context, ref string) (model.Material, error) {
	m, ok := s[ref]
	if !ok {
		return model.Material{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	m.Ref = ref
	return m, nil
}

// Text joins every textual part of m in reading order.
func Text(m model.Material) string {
	parts := make([]string, 0, 3+len(m.Takeaways))
	for _, p := range []string{m.Summary, strings.Join(m.Takeaways, ". "), m.Transcript} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}
