package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEstimate(t *testing.T) {
	// 2016-10-21 00:40:43.050 UTC
	msg := string(FormatEstimate(0xB50AC, 1477010443050000, 7, 1.25, -3.5, 5.0, 0.5, -0.01))
	assert.Equal(t, "$EST,000B50AC,7,20161021004043.050,1.250,-3.500,5.000,0.5000,-0.0100\r\n", msg)
}

func TestFormatWarning(t *testing.T) {
	msg := string(FormatWarning(1, 0, "numerical"))
	assert.True(t, strings.HasPrefix(msg, "$WRN,00000001,"))
	assert.True(t, strings.HasSuffix(msg, ",numerical\r\n"))
}
