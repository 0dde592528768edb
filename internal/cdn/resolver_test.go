package cdn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// variants 测试用的有序尺寸映射
type variants struct {
	order []SizeCode
	urls  map[SizeCode]string
}

func newVariants(codes ...SizeCode) *variants {
	v := &variants{urls: make(map[SizeCode]string)}
	for _, c := range codes {
		v.order = append(v.order, c)
		v.urls[c] = "u_" + string(c)
	}
	return v
}

func (v *variants) Get(size SizeCode) (string, bool) {
	u, ok := v.urls[size]
	return u, ok
}

func (v *variants) Codes() []SizeCode { return v.order }
func (v *variants) Len() int          { return len(v.order) }

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		codes  []SizeCode
		tier   Tier
		want   string
		wantOK bool
	}{
		{"原图优先", []SizeCode{"b", "o", "k"}, TierOriginal, "u_o", true},
		{"原图缺失回退6k", []SizeCode{"b", "6k", "k"}, TierOriginal, "u_6k", true},
		{"大图档位取b", []SizeCode{"z", "b", "h", "k"}, TierLarge, "u_b", true},
		{"大图档位b缺失取h", []SizeCode{"z", "h", "k"}, TierLarge, "u_h", true},
		{"最大非原图取3k", []SizeCode{"o", "3k", "k"}, TierXLarge, "u_3k", true},
		{"中图档位", []SizeCode{"c", "b"}, TierMedium, "u_c", true},
		{"中图档位接受无后缀", []SizeCode{"-", "b"}, TierMedium, "u_-", true},
		{"小图档位", []SizeCode{"m", "n"}, TierSmall, "u_n", true},
		{"回退链全部缺失取最大", []SizeCode{"m", "n"}, TierOriginal, "u_n", true},
		{"未知尺寸排最低", []SizeCode{"zz", "w"}, TierLarge, "u_w", true},
		{"仅未知尺寸按字典序", []SizeCode{"yy", "xx"}, TierLarge, "u_xx", true},
		{"空映射", nil, TierLarge, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(newVariants(tt.codes...), tt.tier)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_OrderIndependent(t *testing.T) {
	a := newVariants("m", "w", "n")
	b := newVariants("n", "m", "w")

	for _, tier := range []Tier{TierOriginal, TierXLarge, TierLarge, TierMedium, TierSmall} {
		ga, _ := Resolve(a, tier)
		gb, _ := Resolve(b, tier)
		assert.Equal(t, ga, gb, "档位 %s 的结果不应依赖插入顺序", tier)
	}
}

func TestResolve_NilMap(t *testing.T) {
	_, ok := Resolve(nil, TierLarge)
	assert.False(t, ok)
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"original", TierOriginal, false},
		{"XLarge", TierXLarge, false},
		{" large ", TierLarge, false},
		{"prefer-large", TierLarge, false},
		{"medium", TierMedium, false},
		{"small", TierSmall, false},
		{"huge", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTier(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRank(t *testing.T) {
	assert.Equal(t, 0, Rank("unknown"))
	assert.Greater(t, Rank("o"), Rank("6k"))
}
