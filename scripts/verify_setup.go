package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/RecoveryAshes/FlickrExtractor/internal/core"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/shirou/gopsutil/v3/mem"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  FlickrExtractor 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 配置文件
	config, err := core.LoadConfig("")
	if err != nil {
		fmt.Printf("❌ 配置文件加载失败: %v\n", err)
		allOK = false
	} else if err := config.Validate(); err != nil {
		fmt.Printf("❌ 配置无效: %v\n", err)
		allOK = false
	} else {
		fmt.Printf("✅ 配置有效 (模式: %s, 档位: %s)\n", config.Mode(), config.Tier())
	}

	// 浏览器
	dynamic := config == nil || config.Mode() == models.ModeDynamic
	switch {
	case config != nil && config.Browser.ControlURL != "":
		fmt.Printf("✅ 使用已运行的浏览器: %s\n", config.Browser.ControlURL)
	case config != nil && config.Browser.Bin != "":
		if _, err := os.Stat(config.Browser.Bin); err != nil {
			fmt.Printf("❌ 配置的浏览器不存在: %s\n", config.Browser.Bin)
			allOK = false
		} else {
			fmt.Printf("✅ 浏览器: %s\n", config.Browser.Bin)
		}
	default:
		if path, found := launcher.LookPath(); found {
			fmt.Printf("✅ 浏览器: %s\n", path)
		} else if dynamic {
			fmt.Println("⚠️  未找到本地浏览器 - 首次运行dynamic模式时将自动下载Chromium")
			fmt.Println("   或使用 --mode static 跳过浏览器")
		}
	}

	// 内存
	if vm, err := mem.VirtualMemory(); err == nil {
		availableMB := vm.Available / 1024 / 1024
		fmt.Printf("✅ 可用内存: %d MB\n", availableMB)
		if config != nil && availableMB < uint64(config.Resource.MinAvailableMemory) {
			fmt.Printf("⚠️  可用内存低于 resource.min_available_memory (%d MB), 将无法打开新页面\n",
				config.Resource.MinAvailableMemory)
		}
	} else {
		fmt.Printf("⚠️  无法读取内存信息: %v\n", err)
	}

	// 项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/flickrextractor",
		"internal/cdn",
		"internal/core",
		"internal/crawlers",
		"internal/models",
		"internal/utils",
		"configs",
	}
	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/flickrextractor' 构建项目")
		fmt.Println("  2. 运行 './flickrextractor --help' 查看帮助")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
