package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/FlickrExtractor/internal/core"
	"github.com/RecoveryAshes/FlickrExtractor/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 提取参数
	targetURL string
	urlFile   string
	mode      string
	tier      string
	pageType  string
	loadAll   bool
	selected  []string
	headless  bool
	outputDir string
	textFile  string

	// 批量处理参数
	batchDelay      int
	continueOnError bool
)

// appConfig PersistentPreRunE中加载, 子命令共用
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "flickrextractor",
	Short: "Flickr图片地址提取工具",
	Long: `FlickrExtractor - 从Flickr页面提取图片CDN地址

支持:
  • 集合列表页: 查找全部集合, 逐个翻页采集
  • 单个集合/照片流: 提取当前页面, 可滚动加载全部
  • 按画质档位选择尺寸 (original|xlarge|large|medium|small)
  • 浏览器渲染(dynamic)和静态文档(static)两种模式
  • 批量URL处理
  • 自定义HTTP请求头

示例:
  # 采集用户的全部集合
  flickrextractor -u https://www.flickr.com/photos/<user>/albums

  # 只列出集合
  flickrextractor albums -u https://www.flickr.com/photos/<user>/albums

  # 只采集指定集合, 原图档位
  flickrextractor -u https://www.flickr.com/photos/<user>/albums --select 7215... --tier original

  # 自定义请求头
  flickrextractor -u <url> -H "Cookie: ..." -H "User-Agent: MyBot/1.0"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		headerManager, err := core.NewHeaderManager(appConfig.HTTP.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		if validateConfig {
			return showValidatedConfig(headerManager)
		}

		if targetURL == "" && urlFile == "" {
			return cmd.Help()
		}

		if err := ValidateFlags(targetURL, urlFile, mode, tier, pageType, batchDelay); err != nil {
			return err
		}
		applyFlags(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := core.RunOptions{
			LoadAll:    loadAll,
			Selected:   selected,
			ForcedType: core.PageType(pageType),
		}

		if urlFile != "" {
			return runBatch(ctx, opts, headerManager)
		}
		return runSingle(ctx, opts, headerManager)
	},
}

var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "列出集合列表页中的全部集合",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlags(targetURL, "", mode, "", "", 0); err != nil {
			return err
		}
		if targetURL == "" {
			return fmt.Errorf("必须指定 --url")
		}
		applyFlags(cmd)

		headerManager, err := core.NewHeaderManager(appConfig.HTTP.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		appConfig.Output.Report = false
		crawler, err := core.NewCrawler(targetURL, appConfig, headerManager)
		if err != nil {
			return fmt.Errorf("创建提取器失败: %w", err)
		}
		run, err := crawler.Run(ctx, core.RunOptions{ListOnly: true, ForcedType: core.PageAlbumsList})
		if err != nil {
			return fmt.Errorf("查找集合失败: %w", err)
		}

		for _, m := range run.Members {
			if m.DeclaredCount > 0 {
				fmt.Printf("%s\t%s\t%d\t%s\n", m.ID, m.DisplayTitle(), m.DeclaredCount, m.SourceURL)
			} else {
				fmt.Printf("%s\t%s\t-\t%s\n", m.ID, m.DisplayTitle(), m.SourceURL)
			}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("FlickrExtractor %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// setup 加载配置并初始化日志
func setup(cmd *cobra.Command, args []string) error {
	config, err := core.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}

	if err := utils.InitLogger(config.LogConfig()); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	if verbose {
		utils.Info("详细模式已启用")
	}

	appConfig = config
	return nil
}

// applyFlags 命令行参数覆盖配置文件, 未显式指定的参数不覆盖
func applyFlags(cmd *cobra.Command) {
	var headlessFlag *bool
	if cmd.Flags().Changed("headless") {
		headlessFlag = &headless
	}
	appConfig.MergeCLIFlags(mode, tier, headlessFlag, loadAll, outputDir, "")
}

// showValidatedConfig 验证配置并输出脱敏后的请求头
func showValidatedConfig(headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证配置...")
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("请求头验证失败: %w", err)
	}

	merged := headerManager.GetMergedHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("模式: %s, 档位: %s", appConfig.Mode(), appConfig.Tier())
	utils.Infof("当前有效的HTTP头部 (%d个): %s", len(merged), utils.RedactHeaders(merged))
	return nil
}

func runSingle(ctx context.Context, opts core.RunOptions, headerManager *core.HeaderManager) error {
	crawler, err := core.NewCrawler(targetURL, appConfig, headerManager)
	if err != nil {
		return fmt.Errorf("创建提取器失败: %w", err)
	}
	crawler.SetReporter(utils.NewBarReporter())

	run, err := crawler.Run(ctx, opts)
	if run != nil && run.Text != "" {
		if werr := writeText(run.Text); werr != nil {
			return werr
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			utils.Warn("已取消, 已输出完成部分的结果")
			return nil
		}
		return fmt.Errorf("提取失败: %w", err)
	}

	if run.ReportPath != "" {
		utils.Infof("📄 报告: %s", run.ReportPath)
	}
	utils.Info("✨ 提取任务完成!")
	return nil
}

func runBatch(ctx context.Context, opts core.RunOptions, headerManager *core.HeaderManager) error {
	urls, err := utils.ReadURLsFromFile(urlFile)
	if err != nil {
		return fmt.Errorf("读取URL文件失败: %w", err)
	}

	batch := core.NewBatchCrawler(appConfig, opts, time.Duration(batchDelay)*time.Second, continueOnError, headerManager)
	batch.SetCrawlerFactory(func(u string) (*core.Crawler, error) {
		c, err := core.NewCrawler(u, appConfig, headerManager)
		if err != nil {
			return nil, err
		}
		c.SetReporter(utils.NewBarReporter())
		return c, nil
	})

	summary, err := batch.CrawlBatch(ctx, urls)
	if summary != nil {
		var text string
		for _, r := range summary.Results {
			if r.Run != nil {
				text += r.Run.Text
			}
		}
		if text != "" {
			if werr := writeText(text); werr != nil {
				return werr
			}
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("批量提取失败: %w", err)
	}

	utils.Info("✨ 批量提取任务完成!")
	return nil
}

// writeText 输出URL文本, 未指定文件时写到标准输出
func writeText(text string) error {
	if textFile == "" {
		_, err := fmt.Fprint(os.Stdout, text)
		return err
	}
	if err := os.WriteFile(textFile, []byte(text), 0644); err != nil {
		return fmt.Errorf("写入结果文件失败: %w", err)
	}
	utils.Infof("📝 结果已写入: %s", textFile)
	return nil
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 页面参数
	rootCmd.PersistentFlags().StringVarP(&targetURL, "url", "u", "", "目标页面URL")
	rootCmd.PersistentFlags().StringVarP(&mode, "mode", "m", "", "页面获取方式 (dynamic|static), 默认取配置文件")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "无头浏览器模式")

	// 提取参数
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	rootCmd.Flags().StringVarP(&tier, "tier", "t", "", "画质档位 (original|xlarge|large|medium|small)")
	rootCmd.Flags().StringVar(&pageType, "page-type", "", "强制页面类型 (albums-list|single-album|photostream|other)")
	rootCmd.Flags().BoolVar(&loadAll, "load-all", false, "滚动加载直到图片数量稳定")
	rootCmd.Flags().StringSliceVar(&selected, "select", nil, "只采集指定ID的集合,可多次指定")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "报告输出目录")
	rootCmd.Flags().StringVarP(&textFile, "text-file", "w", "", "URL结果写入文件 (默认标准输出)")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchDelay, "batch-delay", 1, "批量处理URL间延迟(秒)")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	rootCmd.AddCommand(albumsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
