package ocr

// MaxSubStats is the most sub-stats a relic can roll.
const MaxSubStats = 4

// ParsedStat is one recognized (name, value) pair. An empty Name means nothing
// was found; a nil Value means the label was found without a legible number.
type ParsedStat struct {
	Name  string   `json:"stat"`
	Value *float64 `json:"value"`
}

// Reading is the structured result of one relic screenshot.
type Reading struct {
	Main *ParsedStat  `json:"mainStat"`
	Subs []ParsedStat `json:"subStats"`
}

// Scan carries a Reading together with the text it was parsed from.
type Scan struct {
	RawText   string  `json:"rawText"`
	CleanText string  `json:"cleanText"`
	Reading   Reading `json:"reading"`
}

func floatPtr(v float64) *float64 { return &v }
