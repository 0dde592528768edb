package models

import (
	"encoding/json"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
	"github.com/samber/lo"
)

// SizeVariantMap 单个资源的尺寸映射 (尺寸代码 -> URL)
// 每个尺寸最多一个URL, 后写覆盖; 只能通过首个URL创建, 因此永不为空
type SizeVariantMap struct {
	order []cdn.SizeCode
	urls  map[cdn.SizeCode]string
}

// NewSizeVariantMap 以第一个发现的URL创建尺寸映射
func NewSizeVariantMap(size cdn.SizeCode, url string) *SizeVariantMap {
	m := &SizeVariantMap{urls: make(map[cdn.SizeCode]string, 4)}
	m.Set(size, url)
	return m
}

// Set 写入尺寸URL, 已存在时覆盖
func (m *SizeVariantMap) Set(size cdn.SizeCode, url string) {
	if _, exists := m.urls[size]; !exists {
		m.order = append(m.order, size)
	}
	m.urls[size] = url
}

// Get 获取指定尺寸的URL
func (m *SizeVariantMap) Get(size cdn.SizeCode) (string, bool) {
	if m == nil {
		return "", false
	}
	u, ok := m.urls[size]
	return u, ok
}

// Codes 按首次发现顺序返回尺寸代码
func (m *SizeVariantMap) Codes() []cdn.SizeCode {
	if m == nil {
		return nil
	}
	return append([]cdn.SizeCode(nil), m.order...)
}

// Len 尺寸数量
func (m *SizeVariantMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Clone 深拷贝
func (m *SizeVariantMap) Clone() *SizeVariantMap {
	c := &SizeVariantMap{
		order: append([]cdn.SizeCode(nil), m.order...),
		urls:  make(map[cdn.SizeCode]string, len(m.urls)),
	}
	for k, v := range m.urls {
		c.urls[k] = v
	}
	return c
}

// Equal 内容相等(忽略插入顺序)
func (m *SizeVariantMap) Equal(other *SizeVariantMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	for k, v := range m.urls {
		if ov, ok := other.urls[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// MarshalJSON 序列化为 {尺寸: URL} 对象
func (m *SizeVariantMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(m.urls))
	for k, v := range m.urls {
		out[string(k)] = v
	}
	return json.Marshal(out)
}

// IdentityTable 资源身份表 (资源ID -> 尺寸映射)
// 只增不减; IDs() 保持首次发现顺序以便稳定输出
// 非并发安全: 同一时刻只属于一个聚合过程或一个采集结果
type IdentityTable struct {
	ids       []cdn.ResourceID
	resources map[cdn.ResourceID]*SizeVariantMap
}

// NewIdentityTable 创建空身份表
func NewIdentityTable() *IdentityTable {
	return &IdentityTable{resources: make(map[cdn.ResourceID]*SizeVariantMap)}
}

// Add 记录一个 (资源, 尺寸, URL), 返回是否为新资源
func (t *IdentityTable) Add(id cdn.ResourceID, size cdn.SizeCode, url string) bool {
	if m, ok := t.resources[id]; ok {
		m.Set(size, url)
		return false
	}
	t.resources[id] = NewSizeVariantMap(size, url)
	t.ids = append(t.ids, id)
	return true
}

// Get 获取资源的尺寸映射
func (t *IdentityTable) Get(id cdn.ResourceID) (*SizeVariantMap, bool) {
	m, ok := t.resources[id]
	return m, ok
}

// IDs 按首次发现顺序返回资源ID
func (t *IdentityTable) IDs() []cdn.ResourceID {
	return append([]cdn.ResourceID(nil), t.ids...)
}

// Len 资源数量
func (t *IdentityTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}

// VariantCount 所有资源的尺寸总数
func (t *IdentityTable) VariantCount() int {
	return lo.SumBy(t.ids, func(id cdn.ResourceID) int {
		return t.resources[id].Len()
	})
}

// Merge 合并另一张表(同尺寸以other为准), 返回新增资源数
func (t *IdentityTable) Merge(other *IdentityTable) int {
	if other == nil {
		return 0
	}
	added := 0
	for _, id := range other.ids {
		m := other.resources[id]
		for _, size := range m.order {
			if t.Add(id, size, m.urls[size]) {
				added++
			}
		}
	}
	return added
}

// Clone 深拷贝
func (t *IdentityTable) Clone() *IdentityTable {
	c := &IdentityTable{
		ids:       append([]cdn.ResourceID(nil), t.ids...),
		resources: make(map[cdn.ResourceID]*SizeVariantMap, len(t.resources)),
	}
	for id, m := range t.resources {
		c.resources[id] = m.Clone()
	}
	return c
}

// Equal 内容相等(忽略发现顺序)
func (t *IdentityTable) Equal(other *IdentityTable) bool {
	if t.Len() != other.Len() {
		return false
	}
	for id, m := range t.resources {
		om, ok := other.resources[id]
		if !ok || !m.Equal(om) {
			return false
		}
	}
	return true
}

// Resolve 按画质档位为每个资源选择一个URL, 顺序与 IDs() 一致
func (t *IdentityTable) Resolve(tier cdn.Tier) []string {
	return lo.FilterMap(t.ids, func(id cdn.ResourceID, _ int) (string, bool) {
		return cdn.Resolve(t.resources[id], tier)
	})
}

// MarshalJSON 序列化为 {资源ID: {尺寸: URL}} 对象
func (t *IdentityTable) MarshalJSON() ([]byte, error) {
	out := make(map[string]*SizeVariantMap, len(t.resources))
	for id, m := range t.resources {
		out[string(id)] = m
	}
	return json.Marshal(out)
}
