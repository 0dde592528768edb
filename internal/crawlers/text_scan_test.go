package crawlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCDNURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "普通URL",
			text: `var a = "https://live.staticflickr.com/65535/111_aaa_b.jpg";`,
			want: []string{"https://live.staticflickr.com/65535/111_aaa_b.jpg"},
		},
		{
			name: "JSON转义斜杠",
			text: `{"url":"https:\/\/live.staticflickr.com\/65535\/222_bbb_k.jpg"}`,
			want: []string{"https://live.staticflickr.com/65535/222_bbb_k.jpg"},
		},
		{
			name: "协议相对URL",
			text: `"//live.staticflickr.com/65535/333_ccc.png"`,
			want: []string{"//live.staticflickr.com/65535/333_ccc.png"},
		},
		{
			name: "重复URL只保留一次",
			text: `https://live.staticflickr.com/1/4_d_z.jpg https://live.staticflickr.com/1/4_d_z.jpg`,
			want: []string{"https://live.staticflickr.com/1/4_d_z.jpg"},
		},
		{
			name: "空文本",
			text: "",
			want: nil,
		},
		{
			name: "非图片",
			text: `https://live.staticflickr.com/65535/111_aaa_b.mp4`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCDNURLs(tt.text))
		})
	}
}

func TestExtractCDNURLs_UnicodeEscape(t *testing.T) {
	text := `"https:\u002F\u002Flive.staticflickr.com\u002F65535\u002f555_eee_h.jpg"`
	assert.Equal(t, []string{"https://live.staticflickr.com/65535/555_eee_h.jpg"}, ExtractCDNURLs(text))
}

func TestExtractStyleURLs(t *testing.T) {
	style := `background-image: url("https://live.staticflickr.com/1/2_x_b.jpg"); background: url(//live.staticflickr.com/1/3_y.jpg)`
	assert.Equal(t, []string{
		"https://live.staticflickr.com/1/2_x_b.jpg",
		"//live.staticflickr.com/1/3_y.jpg",
	}, ExtractStyleURLs(style))

	assert.Equal(t, []string{"https://live.staticflickr.com/1/2_x_b.jpg"},
		ExtractStyleURLs(`background-image: url(&quot;https://live.staticflickr.com/1/2_x_b.jpg&quot;)`))
}

func TestSplitSrcset(t *testing.T) {
	srcset := "https://a/1_b_m.jpg 240w, https://a/1_b_n.jpg 320w,https://a/1_b.jpg"
	assert.Equal(t, []string{"https://a/1_b_m.jpg", "https://a/1_b_n.jpg", "https://a/1_b.jpg"}, splitSrcset(srcset))
	assert.Empty(t, splitSrcset(""))
}
