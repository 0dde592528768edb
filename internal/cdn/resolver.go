package cdn

import (
	"fmt"
	"sort"
	"strings"
)

// Tier 画质档位
type Tier string

const (
	TierOriginal Tier = "original" // 原图优先
	TierXLarge   Tier = "xlarge"   // 最大非原图
	TierLarge    Tier = "large"    // 大图(1024)优先
	TierMedium   Tier = "medium"   // 中图(640/800)
	TierSmall    Tier = "small"    // 小图(320)
)

// sizeRanks 已声明尺寸的大小排名(数值越大越清晰)
var sizeRanks = map[SizeCode]int{
	"m":             1,  // 240
	"n":             2,  // 320
	"w":             3,  // 400
	SizeUnspecified: 4,  // 500
	"z":             5,  // 640
	"c":             6,  // 800
	"b":             7,  // 1024
	"h":             8,  // 1600
	"k":             9,  // 2048
	"3k":            10, // 3072
	"4k":            11, // 4096
	"f":             12, // 4096 方形
	"5k":            13, // 5120
	"6k":            14, // 6144
	"o":             15, // 原图
}

// tierChains 每个档位的回退链, 从最优到最次
var tierChains = map[Tier][]SizeCode{
	TierOriginal: {"o", "6k", "5k", "4k", "3k", "k", "h", "b"},
	TierXLarge:   {"3k", "k", "h", "b"},
	TierLarge:    {"b", "h", "k", "c", "z"},
	TierMedium:   {"z", "c", SizeUnspecified, "n", "w", "m"},
	TierSmall:    {"n", "m", "w", SizeUnspecified},
}

// tierAliases 档位别名
var tierAliases = map[string]Tier{
	"prefer-large":    TierLarge,
	"prefer-largest":  TierXLarge,
	"largest":         TierXLarge,
	"prefer-original": TierOriginal,
}

// VariantLookup 尺寸映射的只读视图
type VariantLookup interface {
	Get(size SizeCode) (string, bool)
	Codes() []SizeCode
	Len() int
}

// ParseTier 解析档位名称(大小写不敏感, 支持别名)
func ParseTier(name string) (Tier, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if t, ok := tierAliases[key]; ok {
		return t, nil
	}
	t := Tier(key)
	if _, ok := tierChains[t]; !ok {
		return "", fmt.Errorf("无效的画质档位: %s (有效值: %s)", name, strings.Join(TierNames(), ", "))
	}
	return t, nil
}

// TierNames 返回所有档位名称(已排序)
func TierNames() []string {
	names := make([]string, 0, len(tierChains))
	for t := range tierChains {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// Rank 返回尺寸排名, 未声明的尺寸返回0
func Rank(size SizeCode) int {
	return sizeRanks[size]
}

// Resolve 按档位回退链选择URL
// 回退链全部缺失时返回排名最高的可用尺寸(与插入顺序无关), 仅在映射为空时返回false
func Resolve(m VariantLookup, tier Tier) (string, bool) {
	if m == nil || m.Len() == 0 {
		return "", false
	}

	for _, size := range tierChains[tier] {
		if u, ok := m.Get(size); ok {
			return u, true
		}
	}

	best := bestAvailable(m.Codes())
	return m.Get(best)
}

// bestAvailable 在可用尺寸中选出排名最高者, 排名相同时按代码字典序
func bestAvailable(codes []SizeCode) SizeCode {
	var best SizeCode
	bestRank := -1
	for _, c := range codes {
		r := Rank(c)
		if r > bestRank || (r == bestRank && c < best) {
			best, bestRank = c, r
		}
	}
	return best
}
