package core

import (
	"testing"
)

func TestHeaderManager_GetMergedHeaders(t *testing.T) {
	t.Run("默认头部存在", func(t *testing.T) {
		hm, err := NewHeaderManager(nil, nil)
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}

		headers := hm.GetMergedHeaders()
		if headers.Get("User-Agent") == "" {
			t.Error("期望默认User-Agent存在")
		}
		if headers.Get("Referer") != DefaultReferer {
			t.Errorf("期望默认Referer=%s, 实际=%s", DefaultReferer, headers.Get("Referer"))
		}
	})

	t.Run("优先级: 默认 < 配置 < 命令行", func(t *testing.T) {
		config := map[string]string{
			"User-Agent": "ConfigBot/1.0",
			"X-Config":   "from-config",
		}
		hm, err := NewHeaderManager(config, []string{"User-Agent: CliBot/2.0"})
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}

		headers := hm.GetMergedHeaders()
		if ua := headers.Get("User-Agent"); ua != "CliBot/2.0" {
			t.Errorf("期望User-Agent='CliBot/2.0', 实际='%s'", ua)
		}
		if v := headers.Get("X-Config"); v != "from-config" {
			t.Errorf("期望X-Config='from-config', 实际='%s'", v)
		}
	})

	t.Run("命令行头部格式错误", func(t *testing.T) {
		if _, err := NewHeaderManager(nil, []string{"no-colon"}); err == nil {
			t.Error("期望格式错误返回error")
		}
	})
}

func TestHeaderManager_GetHeaders(t *testing.T) {
	hm, err := NewHeaderManager(map[string]string{"Host": "evil.example"}, nil)
	if err != nil {
		t.Fatalf("创建HeaderManager失败: %v", err)
	}
	if _, err := hm.GetHeaders(); err == nil {
		t.Error("期望禁止头部验证失败")
	}

	hm, err = NewHeaderManager(map[string]string{"Cookie": "a=b"}, []string{"Authorization: Bearer token123"})
	if err != nil {
		t.Fatalf("创建HeaderManager失败: %v", err)
	}
	headers, err := hm.GetHeaders()
	if err != nil {
		t.Fatalf("获取头部失败: %v", err)
	}
	if headers.Get("Authorization") != "Bearer token123" {
		t.Error("Authorization未正确设置")
	}
}
