package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	raw := "  CRIT DMG  64.8%\r\n\r\n\r\nATK# 3.8\n»\n@@\nab\nDEF 19  "
	assert.Equal(t, "CRIT DMG  64.8\nATK 3.8\nDEF 19", Normalize(raw))
}

func TestNormalizeDropsShortLines(t *testing.T) {
	assert.Equal(t, "SPD 2\nSPD", Normalize("SPD 2\nHP\n  SPD  \nx\n"))
	assert.Equal(t, "", Normalize("®£&\n\n\n"))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"HP 705",
		"\r\n\r\nEffect Hit Rate% 3.8\r\n  Break Effect 6.4 \r\n",
		"a\rb c\n\n\n  ®x@y  \n(+3 to activate)\n",
		"   \t  \n\t\n Speed 2\n#&»@®£ \n",
		"ÉÉÉ\n éé \nCRIT Rate 2.9%",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
