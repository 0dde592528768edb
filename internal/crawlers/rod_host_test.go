package crawlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRodPayloadJS_CoversRegistry(t *testing.T) {
	for id := range payloadRegistry {
		_, ok := rodPayloadJS[id]
		assert.True(t, ok, "载荷 %s 缺少浏览器脚本", id)
	}
}

func TestDecodePayloadValue(t *testing.T) {
	res, err := decodePayloadValue(PayloadRenderedMedia, []byte(`["https://live.staticflickr.com/1/2_a_b.jpg"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://live.staticflickr.com/1/2_a_b.jpg"}, res.URLs)
	assert.NoError(t, res.Validate(PayloadRenderedMedia))

	res, err = decodePayloadValue(PayloadListingLinks, []byte(`[{"id":"1","title":"A","url":"/photos/x/albums/1","count":"3 photos"}]`))
	require.NoError(t, err)
	assert.Equal(t, []RawMember{{ID: "1", Title: "A", URL: "/photos/x/albums/1", Count: "3 photos"}}, res.Members)

	res, err = decodePayloadValue(PayloadPageTitle, []byte(`"相册"`))
	require.NoError(t, err)
	assert.Equal(t, "相册", res.Title)

	res, err = decodePayloadValue(PayloadScrollBottom, []byte(`null`))
	require.NoError(t, err)
	assert.NoError(t, res.Validate(PayloadScrollBottom))

	_, err = decodePayloadValue(PayloadRenderedMedia, []byte(`{"not":"array"}`))
	assert.ErrorIs(t, err, ErrInvalidResult)
}

func TestHeaderDict(t *testing.T) {
	headers := http.Header{}
	headers.Set("Referer", "https://www.flickr.com/")
	assert.Equal(t, []string{"Referer", "https://www.flickr.com/"}, headerDict(headers))
	assert.Empty(t, headerDict(nil))
}
