// Package parser defines the hand-history parser contract, the static site
// registry, and the built-in transcript parser.
package parser

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"handvault/internal/hand"
)

// FileType classifies what a site file carries.
type FileType string

const (
	FileTypeHandHistory FileType = "hh"
	FileTypeSummary     FileType = "summary"
	FileTypeBoth        FileType = "both"
)

// Site describes one supported site format.
type Site struct {
	Name     string
	ID       int64
	FileType FileType
	// Probe reports whether the head of a file is in this site's format.
	Probe func(head []byte) bool
	// New constructs a parser for one file.
	New Constructor
}

// Options configures one parser run over one file.
type Options struct {
	Path        string
	SiteID      int64
	HeroName    string
	StartOffset int64
}

// Constructor builds a parser; the caller then calls Start explicitly.
type Constructor func(o Options) Parser

// Parser is the contract the import pipeline drives. Counters are valid
// after Start returns.
type Parser interface {
	Start() error
	NumHands() int
	NumErrors() int
	NumPartial() int
	NumSkipped() int
	ProcessedHands() []*hand.Hand
	LastCharacterRead() int64
}

// Registry maps site names to parser constructors, resolved once at startup
// instead of per-file.
type Registry struct {
	sites map[string]Site
}

// NewRegistry returns a registry preloaded with every built-in site.
func NewRegistry() *Registry {
	r := &Registry{sites: make(map[string]Site)}
	r.Register(transcriptSite)
	return r
}

// Register adds or replaces a site entry.
func (r *Registry) Register(s Site) {
	r.sites[s.Name] = s
}

// Lookup returns the site entry for name.
func (r *Registry) Lookup(name string) (Site, error) {
	s, ok := r.sites[name]
	if !ok {
		return Site{}, fmt.Errorf("unknown site %q", name)
	}
	return s, nil
}

// Identify probes the head of the file against every registered site and
// returns the matching descriptor.
func (r *Registry) Identify(path string) (Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return Site{}, err
	}
	defer f.Close()

	head := make([]byte, 4096)
	n, _ := f.Read(head)
	head = head[:n]

	// Deterministic probe order.
	names := make([]string, 0, len(r.sites))
	for name := range r.sites {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := r.sites[name]
		if s.Probe != nil && s.Probe(head) {
			return s, nil
		}
	}
	return Site{}, fmt.Errorf("no site matches %s", path)
}

var transcriptSite = Site{
	Name:     "Transcript",
	ID:       1,
	FileType: FileTypeHandHistory,
	Probe: func(head []byte) bool {
		return strings.Contains(string(head), "HAND ")
	},
	New: NewTranscriptParser,
}
