package records_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chernistry/tavily/internal/records"
)

func TestEncodeLine_PreservesNonASCII(t *testing.T) {
	record := records.URLRecord{
		URL:    "https://example.com/straße",
		Status: records.StatusSuccess,
	}

	line, err := records.EncodeLine(record)
	assert.NoError(t, err)
	assert.Contains(t, string(line), "straße")
	assert.True(t, strings.HasSuffix(string(line), "\n"))
}

func TestDecodeLines_RoundTrip(t *testing.T) {
	first, _ := records.EncodeLine(records.URLRecord{URL: "https://a.test", Status: records.StatusSuccess, Method: records.MethodHTTP})
	second, _ := records.EncodeLine(records.URLRecord{URL: "https://b.test", Status: records.StatusTimeout, Method: records.MethodBrowser})

	decoded, err := records.DecodeLines(strings.NewReader(string(first) + string(second)))
	assert.NoError(t, err)
	assert.Len(t, decoded, 2)
	assert.Equal(t, "https://a.test", decoded[0].URL)
	assert.Equal(t, records.StatusTimeout, decoded[1].Status)
}

func TestDecodeLines_IgnoresUnknownFields(t *testing.T) {
	line := `{"url":"https://a.test","status":"success","some_future_field":42}` + "\n"

	decoded, err := records.DecodeLines(strings.NewReader(line))
	assert.NoError(t, err)
	assert.Len(t, decoded, 1)
	assert.Equal(t, records.StatusSuccess, decoded[0].Status)
}

func TestDecodeLines_SkipsBlankLines(t *testing.T) {
	line := "\n" + `{"url":"https://a.test","status":"success"}` + "\n\n"

	decoded, err := records.DecodeLines(strings.NewReader(line))
	assert.NoError(t, err)
	assert.Len(t, decoded, 1)
}

func TestDecodeLines_MalformedLineFails(t *testing.T) {
	_, err := records.DecodeLines(strings.NewReader("{not json}\n"))
	assert.Error(t, err)
}
