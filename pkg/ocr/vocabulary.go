package ocr

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// maxRollsPerSub bounds how many times one sub-stat can roll: the initial roll
// plus five upgrades.
const maxRollsPerSub = 6

// SubStatDef describes one sub-stat of the vocabulary.
type SubStatDef struct {
	Name    string
	Aliases []string  // labels as the game or OCR prints them, e.g. "SPD" for "Speed"
	Rolls   []float64 // values a single roll can take
}

// SlotDef lists the main stats an equipment slot can carry.
type SlotDef struct {
	Slot      string
	MainStats []string
}

// Vocabulary is the immutable reference data the extractor and validator work against.
type Vocabulary struct {
	subs           []SubStatDef
	slots          []SlotDef
	inactiveMarker string

	terms     []string          // canonical names then aliases, in definition order
	canonical map[string]string // folded label -> canonical sub-stat name
	subByName map[string]SubStatDef
}

// NewVocabulary builds a Vocabulary, rejecting empty and duplicate names.
func NewVocabulary(subs []SubStatDef, slots []SlotDef, inactiveMarker string) (*Vocabulary, error) {
	if len(subs) == 0 {
		return nil, errors.New("vocabulary: no sub-stats defined")
	}
	v := &Vocabulary{
		inactiveMarker: inactiveMarker,
		canonical:      make(map[string]string),
		subByName:      make(map[string]SubStatDef, len(subs)),
	}
	for _, s := range subs {
		if strings.TrimSpace(s.Name) == "" {
			return nil, errors.New("vocabulary: empty sub-stat name")
		}
		if _, dup := v.subByName[s.Name]; dup {
			return nil, fmt.Errorf("vocabulary: duplicate sub-stat %q", s.Name)
		}
		s.Aliases = append([]string(nil), s.Aliases...)
		s.Rolls = append([]float64(nil), s.Rolls...)
		v.subs = append(v.subs, s)
		v.subByName[s.Name] = s
		v.terms = append(v.terms, s.Name)
		v.canonical[foldCase(s.Name)] = s.Name
	}
	for _, s := range v.subs {
		for _, a := range s.Aliases {
			key := foldCase(a)
			if prev, ok := v.canonical[key]; ok && prev != s.Name {
				return nil, fmt.Errorf("vocabulary: alias %q of %q already names %q", a, s.Name, prev)
			}
			if _, ok := v.canonical[key]; !ok {
				v.terms = append(v.terms, a)
			}
			v.canonical[key] = s.Name
		}
	}
	seen := map[string]bool{}
	for _, sl := range slots {
		if strings.TrimSpace(sl.Slot) == "" {
			return nil, errors.New("vocabulary: empty slot name")
		}
		if seen[sl.Slot] {
			return nil, fmt.Errorf("vocabulary: duplicate slot %q", sl.Slot)
		}
		seen[sl.Slot] = true
		v.slots = append(v.slots, SlotDef{Slot: sl.Slot, MainStats: append([]string(nil), sl.MainStats...)})
	}
	return v, nil
}

// SearchTerms returns every label the sub-stat extractor looks for, canonical
// names first, then aliases. Order only breaks ties between terms of equal
// length found at the same position; a longer term at that position always
// wins regardless of where it is listed.
func (v *Vocabulary) SearchTerms() []string { return append([]string(nil), v.terms...) }

// SubNames returns the canonical sub-stat names in definition order.
func (v *Vocabulary) SubNames() []string {
	out := make([]string, len(v.subs))
	for i, s := range v.subs {
		out[i] = s.Name
	}
	return out
}

// InactiveMarker is the text the game prints on sub-stats not yet unlocked.
func (v *Vocabulary) InactiveMarker() string { return v.inactiveMarker }

// Slots returns the slot names in definition order.
func (v *Vocabulary) Slots() []string {
	out := make([]string, len(v.slots))
	for i, s := range v.slots {
		out[i] = s.Slot
	}
	return out
}

// MainStats returns the main stats allowed for slot. An empty slot returns
// every main stat of every slot, first occurrence order.
func (v *Vocabulary) MainStats(slot string) []string {
	if slot != "" {
		for _, s := range v.slots {
			if s.Slot == slot {
				return append([]string(nil), s.MainStats...)
			}
		}
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, s := range v.slots {
		for _, m := range s.MainStats {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// SlotsForMain returns the slots whose main-stat list contains name.
func (v *Vocabulary) SlotsForMain(name string) []string {
	var out []string
	for _, s := range v.slots {
		for _, m := range s.MainStats {
			if m == name {
				out = append(out, s.Slot)
				break
			}
		}
	}
	return out
}

// ResolveSub maps a recognized label to its canonical sub-stat name. Known
// aliases resolve exactly; anything else goes through FuzzyMatch over all
// search terms. The percent sign is stripped during normalization, so a
// fractional value on a flat stat resolves to its "%" variant, and a value
// that is only plausible for the other variant of the pair resolves to that one.
func (v *Vocabulary) ResolveSub(label string, value *float64) (string, bool) {
	name, ok := v.canonical[foldCase(strings.TrimSpace(label))]
	if !ok {
		term, hit := FuzzyMatch(label, v.terms)
		if !hit {
			return "", false
		}
		name = v.canonical[foldCase(term)]
	}
	if value == nil {
		return name, true
	}
	if *value != math.Trunc(*value) && !strings.HasSuffix(name, "%") {
		if _, ok := v.subByName[name+"%"]; ok {
			name += "%"
		}
	}
	if alt, ok := v.percentPair(name); ok && !v.PlausibleSubValue(name, *value) && v.PlausibleSubValue(alt, *value) {
		name = alt
	}
	return name, true
}

// percentPair returns the other half of a flat/"%" pair such as ATK and ATK%.
func (v *Vocabulary) percentPair(name string) (string, bool) {
	alt := name + "%"
	if flat, ok := strings.CutSuffix(name, "%"); ok {
		alt = flat
	}
	_, ok := v.subByName[alt]
	return alt, ok
}

// ResolveMain maps a recognized main-stat label to a main stat allowed in slot.
func (v *Vocabulary) ResolveMain(slot, label string) (string, bool) {
	return FuzzyMatch(strings.TrimSpace(label), v.MainStats(slot))
}

// PlausibleSubValue reports whether value can be reached by 1 to 6 rolls of
// sub-stat name. Stats without a roll table are always plausible.
func (v *Vocabulary) PlausibleSubValue(name string, value float64) bool {
	s, ok := v.subByName[name]
	if !ok || len(s.Rolls) == 0 {
		return true
	}
	lo, hi := s.Rolls[0], s.Rolls[0]
	for _, r := range s.Rolls[1:] {
		lo = min(lo, r)
		hi = max(hi, r)
	}
	const eps = 0.05
	return value >= lo-eps && value <= hi*maxRollsPerSub+eps
}

// ValidationError lists why a reading could not be validated. Illegible
// counts the problems that are only a missing value on a known stat.
// Truncated is set when a label without a value was repeated by the
// extractor, so sub-stats listed after it may be missing from the reading.
type ValidationError struct {
	Problems  []string
	Illegible int
	Truncated bool
}

// OnlyIllegible reports whether every problem is a missing value and the
// sub-stat list is complete.
func (e *ValidationError) OnlyIllegible() bool {
	return !e.Truncated && e.Illegible > 0 && e.Illegible == len(e.Problems)
}

func (e *ValidationError) Error() string {
	return "invalid reading: " + strings.Join(e.Problems, "; ")
}

// Validate resolves every name of r against the vocabulary for slot (empty
// slot allows any main stat). The returned reading only contains canonical
// vocabulary names; unresolved entries are reported in a *ValidationError.
// Known stats without a value are kept in the returned reading with a nil
// value, and still reported. Consecutive valueless repeats of one label are
// folded into a single entry and mark the error as truncated.
func (v *Vocabulary) Validate(r Reading, slot string) (Reading, error) {
	var problems []string
	illegible := 0
	out := Reading{Subs: make([]ParsedStat, 0, len(r.Subs))}

	if r.Main == nil {
		problems = append(problems, "main stat not found")
	} else if name, ok := v.ResolveMain(slot, r.Main.Name); !ok {
		problems = append(problems, fmt.Sprintf("unknown main stat %q for slot %q", r.Main.Name, slot))
	} else if r.Main.Value == nil {
		problems = append(problems, fmt.Sprintf("main stat %q has no value", name))
		illegible++
		out.Main = &ParsedStat{Name: name}
	} else {
		out.Main = &ParsedStat{Name: name, Value: floatPtr(*r.Main.Value)}
	}

	if len(r.Subs) > MaxSubStats {
		problems = append(problems, fmt.Sprintf("%d sub-stats, at most %d allowed", len(r.Subs), MaxSubStats))
	}
	seen := map[string]bool{}
	truncated := false
	for i, s := range r.Subs {
		if i >= MaxSubStats {
			break
		}
		if i > 0 && s.Value == nil && r.Subs[i-1].Value == nil && s.Name == r.Subs[i-1].Name {
			if !truncated {
				problems = append(problems, fmt.Sprintf("sub-stats after %q could not be read", s.Name))
				truncated = true
			}
			continue
		}
		name, ok := v.ResolveSub(s.Name, s.Value)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown sub-stat %q", s.Name))
			continue
		}
		if seen[name] {
			problems = append(problems, fmt.Sprintf("duplicate sub-stat %q", name))
			continue
		}
		if s.Value == nil {
			problems = append(problems, fmt.Sprintf("sub-stat %q has no value", name))
			illegible++
			seen[name] = true
			out.Subs = append(out.Subs, ParsedStat{Name: name})
			continue
		}
		if !v.PlausibleSubValue(name, *s.Value) {
			problems = append(problems, fmt.Sprintf("implausible value %.2f for %q", *s.Value, name))
			continue
		}
		seen[name] = true
		out.Subs = append(out.Subs, ParsedStat{Name: name, Value: floatPtr(*s.Value)})
	}
	if len(problems) > 0 {
		return out, &ValidationError{Problems: problems, Illegible: illegible, Truncated: truncated}
	}
	return out, nil
}
