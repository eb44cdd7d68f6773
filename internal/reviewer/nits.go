package reviewer

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NitStore accumulates minor and trivial review findings across pull
// requests. They are too small to block a review on, so they pile up on
// disk until there are enough to justify one cleanup issue.
type NitStore struct {
	fs   afero.Fs
	path string
}

// Nit is one deferred finding.
type Nit struct {
	PR      int
	File    string
	Comment string
}

func NewNitStore(fs afero.Fs, path string) *NitStore {
	return &NitStore{fs: fs, path: path}
}

func (s *NitStore) load() (string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		// Missing file means an empty store.
		return `{"nits":[]}`, nil
	}
	doc := string(data)
	if !gjson.Valid(doc) {
		return `{"nits":[]}`, nil
	}
	return doc, nil
}

// Add appends findings to the store.
func (s *NitStore) Add(nits []Nit) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	for _, n := range nits {
		doc, err = sjson.Set(doc, "nits.-1", map[string]any{
			"pr":      n.PR,
			"file":    n.File,
			"comment": n.Comment,
		})
		if err != nil {
			return fmt.Errorf("append nit: %w", err)
		}
	}
	return afero.WriteFile(s.fs, s.path, []byte(doc), 0o644)
}

// Count returns the number of stored findings.
func (s *NitStore) Count() (int, error) {
	doc, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(gjson.Get(doc, "nits").Array()), nil
}

// Drain returns all stored findings and empties the store.
func (s *NitStore) Drain() ([]Nit, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	var nits []Nit
	for _, v := range gjson.Get(doc, "nits").Array() {
		nits = append(nits, Nit{
			PR:      int(v.Get("pr").Int()),
			File:    v.Get("file").String(),
			Comment: v.Get("comment").String(),
		})
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(`{"nits":[]}`), 0o644); err != nil {
		return nil, err
	}
	return nits, nil
}

// ChoreIssueBody renders the drained findings as a cleanup issue body.
func ChoreIssueBody(nits []Nit) string {
	var b strings.Builder
	b.WriteString("Small findings deferred from code review. None blocks its original pull request; together they are worth one cleanup pass.\n\n")
	for _, n := range nits {
		fmt.Fprintf(&b, "- `%s` (from #%d): %s\n", n.File, n.PR, n.Comment)
	}
	return b.String()
}
