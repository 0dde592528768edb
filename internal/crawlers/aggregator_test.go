package crawlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const albumURL1 = "https://www.flickr.com/photos/someone/albums/1"

func cdnURL(id int, size string) string {
	if size == "" {
		return fmt.Sprintf("https://live.staticflickr.com/65535/%d_abcdef.jpg", id)
	}
	return fmt.Sprintf("https://live.staticflickr.com/65535/%d_abcdef_%s.jpg", id, size)
}

// cdnURLs 生成 1..n 号资源的URL
func cdnURLs(n int, size string) []string {
	urls := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		urls = append(urls, cdnURL(i, size))
	}
	return urls
}

func TestAggregator_MergesAcrossStrategies(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, &fakePage{
		rendered: [][]string{{
			cdnURL(1, "b"),
			cdnURL(1, "q"), // 缩略图, 丢弃
			"https://example.com/65535/9_x_b.jpg",
			"//live.staticflickr.com/65535/2_abcdef_z.jpg",
		}},
		styles: []string{cdnURL(1, "k"), cdnURL(3, "")},
		scripts: []string{
			`{"url":"https:\/\/live.staticflickr.com\/65535\/2_abcdef_h.jpg"}`,
		},
	})

	agg := NewAggregator(nil)
	table, stats, err := agg.AggregateNew(context.Background(), host, handle)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 7, stats.Candidates)
	assert.Equal(t, 5, stats.Accepted)
	assert.Equal(t, 2, stats.Rejected)
	assert.Equal(t, 3, stats.NewResources)
	assert.Empty(t, stats.Failed)

	v, ok := table.Get("1")
	require.True(t, ok)
	assert.Equal(t, []cdn.SizeCode{"b", "k"}, v.Codes())

	v, ok = table.Get("3")
	require.True(t, ok)
	url, ok := v.Get(cdn.SizeUnspecified)
	assert.True(t, ok)
	assert.Equal(t, cdnURL(3, ""), url)
}

func TestAggregator_Idempotent(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, &fakePage{rendered: [][]string{cdnURLs(4, "b")}})

	agg := NewAggregator(nil)
	table := models.NewIdentityTable()
	_, err := agg.Aggregate(context.Background(), host, handle, table)
	require.NoError(t, err)
	first := table.Clone()

	stats, err := agg.Aggregate(context.Background(), host, handle, table)
	require.NoError(t, err)
	assert.Zero(t, stats.NewResources)
	assert.True(t, first.Equal(table))
}

func TestAggregator_StrategyFailureIsolated(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, &fakePage{
		rendered: [][]string{{cdnURL(1, "b")}},
		styles:   []string{cdnURL(2, "b")},
		evalErrs: map[string]error{PayloadScriptTexts.String(): errors.New("脚本执行失败")},
		panicOn:  PayloadStyleMedia.String(),
	})

	table, stats, err := NewAggregator(nil).AggregateNew(context.Background(), host, handle)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []string{"styles", "scripts"}, stats.Failed)
}

func TestAggregator_HostUnavailable(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, &fakePage{rendered: [][]string{{cdnURL(1, "b")}}})
	host.crash()

	_, _, err := NewAggregator(nil).AggregateNew(context.Background(), host, handle)
	assert.ErrorIs(t, err, ErrHostUnavailable)
}

func TestAggregator_Cancelled(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, &fakePage{rendered: [][]string{{cdnURL(1, "b")}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewAggregator(nil).AggregateNew(ctx, host, handle)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregator_CustomHosts(t *testing.T) {
	host := newFakeHost()
	handle := host.openActive(albumURL1, &fakePage{rendered: [][]string{{
		"https://img.example.org/1/10_abc_b.jpg",
		cdnURL(1, "b"),
	}}})

	canon := cdn.NewCanonicalizer(cdn.Options{Hosts: []string{"img.example.org"}})
	agg := NewAggregator(canon, RenderedElementStrategy{})
	table, _, err := agg.AggregateNew(context.Background(), host, handle)
	require.NoError(t, err)
	assert.Equal(t, []cdn.ResourceID{"10"}, table.IDs())
	assert.Same(t, canon, agg.Canonicalizer())
}

func TestAggregator_OrderIndependent(t *testing.T) {
	rendered := []string{
		cdnURL(1, "b"),
		"https://farm66.staticflickr.com/65535/2_abcdef_k.jpg",
		cdnURL(3, ""),
	}
	styles := []string{
		"https://farm66.staticflickr.com/65535/1_abcdef_b.jpg",
		cdnURL(2, "k"),
		cdnURL(4, "z"),
	}
	scripts := []string{
		`{"a":"https:\/\/c1.staticflickr.com\/65535\/3_abcdef.jpg","b":"https:\/\/live.staticflickr.com\/65535\/4_abcdef_o.jpg"}`,
		`{"c":"https:\/\/live.staticflickr.com\/65535\/1_abcdef_h.jpg"}`,
	}

	reversed := func(in []string) []string {
		out := slices.Clone(in)
		slices.Reverse(out)
		return out
	}

	aggregate := func(page *fakePage, strategies ...Strategy) *models.IdentityTable {
		t.Helper()
		host := newFakeHost()
		handle := host.openActive(albumURL1, page)
		table, _, err := NewAggregator(nil, strategies...).AggregateNew(context.Background(), host, handle)
		require.NoError(t, err)
		return table
	}

	want := aggregate(&fakePage{rendered: [][]string{rendered}, styles: styles, scripts: scripts})
	require.Equal(t, 4, want.Len())

	strategyOrders := [][]Strategy{
		DefaultStrategies(),
		{EmbeddedScriptStrategy{}, ComputedStyleStrategy{}, RenderedElementStrategy{}},
		{ComputedStyleStrategy{}, EmbeddedScriptStrategy{}, RenderedElementStrategy{}},
	}
	for i, order := range strategyOrders {
		pages := []*fakePage{
			{rendered: [][]string{rendered}, styles: styles, scripts: scripts},
			{rendered: [][]string{reversed(rendered)}, styles: reversed(styles), scripts: reversed(scripts)},
		}
		for j, page := range pages {
			got := aggregate(page, order...)
			assert.True(t, want.Equal(got), "策略顺序%d 候选顺序%d 结果不一致", i, j)
		}
	}

	v, ok := want.Get("1")
	require.True(t, ok)
	u, _ := v.Get("b")
	assert.Equal(t, cdnURL(1, "b"), u, "farm主机改写为live")
}
