package refdata

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"golang.org/x/text/cases"
)

//go:embed data/relics.json
var defaultRelics []byte

// Record describes one relic piece.
type Record struct {
	Name      string `json:"name"`
	Set       string `json:"set"`
	Slot      string `json:"slot"`
	Domain    string `json:"domain"`
	ImagePath string `json:"imagePath"`
}

// Domains is the relic catalogue: domains drop sets, sets have one piece per slot.
type Domains struct {
	Domains []Domain `json:"domains"`
}

type Domain struct {
	Name string `json:"name"`
	Sets []Set  `json:"sets"`
}

type Set struct {
	Name      string            `json:"name"`
	ImagePath string            `json:"imagePath"`
	Pieces    map[string]string `json:"pieces"` // slot -> piece name
}

// Lookup indexes relic pieces by name.
type Lookup struct {
	byName map[string]Record
	folded map[string]string // folded name -> name
	names  []string          // longest first
}

// NewLookup indexes records by piece name.
func NewLookup(records map[string]Record) *Lookup {
	l := &Lookup{
		byName: make(map[string]Record, len(records)),
		folded: make(map[string]string, len(records)),
	}
	for name, r := range records {
		if name == "" {
			continue
		}
		l.byName[name] = r
		l.folded[foldName(name)] = name
		l.names = append(l.names, name)
	}
	sort.Slice(l.names, func(i, j int) bool {
		a, b := l.names[i], l.names[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return l
}

// BuildLookup flattens domains -> sets -> pieces into a Lookup. Slots are
// visited in sorted order so duplicate piece names resolve deterministically.
func BuildLookup(d Domains) *Lookup {
	records := map[string]Record{}
	for _, dom := range d.Domains {
		for _, set := range dom.Sets {
			slots := make([]string, 0, len(set.Pieces))
			for slot := range set.Pieces {
				slots = append(slots, slot)
			}
			sort.Strings(slots)
			for _, slot := range slots {
				name := set.Pieces[slot]
				records[name] = Record{
					Name:      name,
					Set:       set.Name,
					Slot:      slot,
					Domain:    dom.Name,
					ImagePath: set.ImagePath,
				}
			}
		}
	}
	return NewLookup(records)
}

// Len returns the number of pieces.
func (l *Lookup) Len() int { return len(l.byName) }

// Get finds a piece by exact name, falling back to a case-insensitive match.
func (l *Lookup) Get(name string) (Record, bool) {
	if r, ok := l.byName[name]; ok {
		return r, true
	}
	if n, ok := l.folded[foldName(name)]; ok {
		return l.byName[n], true
	}
	return Record{}, false
}

// Identify returns the piece whose name appears in text. When several names
// appear the longest one wins.
func (l *Lookup) Identify(text string) (Record, bool) {
	t := foldName(text)
	for _, n := range l.names {
		if strings.Contains(t, foldName(n)) {
			return l.byName[n], true
		}
	}
	return Record{}, false
}

// Records returns a copy of the name -> record index.
func (l *Lookup) Records() map[string]Record {
	out := make(map[string]Record, len(l.byName))
	for k, v := range l.byName {
		out[k] = v
	}
	return out
}

// ParseDomains decodes a relic catalogue.
func ParseDomains(data []byte) (Domains, error) {
	var d Domains
	if err := sonic.Unmarshal(data, &d); err != nil {
		return Domains{}, fmt.Errorf("parse domains: %w", err)
	}
	return d, nil
}

// ReadDomains reads a relic catalogue from disk.
func ReadDomains(path string) (Domains, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Domains{}, fmt.Errorf("read domains: %w", err)
	}
	return ParseDomains(data)
}

// ReadLookup reads a flattened lookup written by WriteLookup.
func ReadLookup(path string) (*Lookup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookup: %w", err)
	}
	records := map[string]Record{}
	if err := sonic.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse lookup: %w", err)
	}
	return NewLookup(records), nil
}

// WriteLookup writes the lookup as an indented JSON object keyed by piece name.
func WriteLookup(path string, l *Lookup) error {
	data, err := sonic.ConfigStd.MarshalIndent(l.Records(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode lookup: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write lookup: %w", err)
	}
	return nil
}

// LoadLookup reads path as a domain catalogue, or as a flattened lookup when
// the file has no "domains". An empty path returns the built-in lookup.
func LoadLookup(path string) (*Lookup, error) {
	if path == "" {
		return DefaultLookup()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookup: %w", err)
	}
	if d, err := ParseDomains(data); err == nil && len(d.Domains) > 0 {
		return BuildLookup(d), nil
	}
	records := map[string]Record{}
	if err := sonic.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse lookup: %w", err)
	}
	return NewLookup(records), nil
}

var defaultLookupOnce = sync.OnceValues(func() (*Lookup, error) {
	d, err := ParseDomains(defaultRelics)
	if err != nil {
		return nil, err
	}
	return BuildLookup(d), nil
})

// DefaultLookup returns the lookup built from the embedded catalogue.
func DefaultLookup() (*Lookup, error) {
	return defaultLookupOnce()
}

func foldName(s string) string {
	return cases.Fold().String(s)
}
