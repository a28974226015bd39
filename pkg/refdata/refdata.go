// Package refdata holds the game reference data the OCR pipeline works
// against: the stat vocabulary and the relic piece lookup.
package refdata

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"reliclog/pkg/ocr"
)

//go:embed data/vocabulary.yaml
var defaultVocabulary []byte

type vocabularyFile struct {
	InactiveMarker string `yaml:"inactive_marker"`
	SubStats       []struct {
		Name    string    `yaml:"name"`
		Aliases []string  `yaml:"aliases"`
		Rolls   []float64 `yaml:"rolls"`
	} `yaml:"sub_stats"`
	Slots []struct {
		Slot      string   `yaml:"slot"`
		MainStats []string `yaml:"main_stats"`
	} `yaml:"slots"`
}

// ParseVocabulary decodes a vocabulary YAML document.
func ParseVocabulary(data []byte) (*ocr.Vocabulary, error) {
	var vf vocabularyFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	subs := make([]ocr.SubStatDef, 0, len(vf.SubStats))
	for _, s := range vf.SubStats {
		subs = append(subs, ocr.SubStatDef{Name: s.Name, Aliases: s.Aliases, Rolls: s.Rolls})
	}
	slots := make([]ocr.SlotDef, 0, len(vf.Slots))
	for _, s := range vf.Slots {
		slots = append(slots, ocr.SlotDef{Slot: s.Slot, MainStats: s.MainStats})
	}
	return ocr.NewVocabulary(subs, slots, vf.InactiveMarker)
}

// LoadVocabulary reads a vocabulary YAML file. An empty path returns the
// built-in vocabulary.
func LoadVocabulary(path string) (*ocr.Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

var defaultVocabularyOnce = sync.OnceValues(func() (*ocr.Vocabulary, error) {
	return ParseVocabulary(defaultVocabulary)
})

// DefaultVocabulary returns the built-in vocabulary. It is parsed once and
// shared; a Vocabulary is immutable.
func DefaultVocabulary() (*ocr.Vocabulary, error) {
	return defaultVocabularyOnce()
}
