package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
	"github.com/RecoveryAshes/FlickrExtractor/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Crawl    models.CrawlConfig `mapstructure:"crawl"`
	CDN      CDNConfig          `mapstructure:"cdn"`
	Browser  BrowserConfig      `mapstructure:"browser"`
	Resource ResourceConfig     `mapstructure:"resource"`
	HTTP     HTTPConfig         `mapstructure:"http"`
	Logging  LoggingConfig      `mapstructure:"logging"`
	Output   OutputConfig       `mapstructure:"output"`
}

// CDNConfig CDN识别配置
type CDNConfig struct {
	Hosts           []string `mapstructure:"hosts"`
	SuppressedSizes []string `mapstructure:"suppressed_sizes"`
}

// BrowserConfig 页面宿主配置
type BrowserConfig struct {
	Mode       string `mapstructure:"mode"`        // dynamic | static
	Bin        string `mapstructure:"bin"`         // 浏览器可执行文件
	ControlURL string `mapstructure:"control_url"` // 连接已运行的浏览器
	NoSandbox  bool   `mapstructure:"no_sandbox"`
}

// ResourceConfig 资源限制配置
type ResourceConfig struct {
	MinAvailableMemory int           `mapstructure:"min_available_memory"` // MB
	CPULoadThreshold   int           `mapstructure:"cpu_load_threshold"`   // %
	MonitorInterval    time.Duration `mapstructure:"monitor_interval"`
	MaxContexts        int           `mapstructure:"max_contexts"`
}

// HTTPConfig 请求配置
type HTTPConfig struct {
	Headers            map[string]string `mapstructure:"headers"`
	Timeout            time.Duration     `mapstructure:"timeout"`
	InsecureSkipVerify bool              `mapstructure:"insecure_skip_verify"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	Report  bool   `mapstructure:"report"` // 是否生成JSON报告
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".flickrextractor"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	defaults := models.DefaultCrawlConfig()

	v.SetDefault("crawl.tier", defaults.Tier)
	v.SetDefault("crawl.load_timeout", defaults.LoadTimeout)
	v.SetDefault("crawl.settle_delay", defaults.SettleDelay)
	v.SetDefault("crawl.max_sub_pages", defaults.MaxSubPages)
	v.SetDefault("crawl.use_poller", defaults.UsePoller)
	v.SetDefault("crawl.poll_interval", defaults.PollInterval)
	v.SetDefault("crawl.max_polls", defaults.MaxPolls)
	v.SetDefault("crawl.stable_threshold", defaults.StableThreshold)
	v.SetDefault("crawl.headless", defaults.Headless)

	v.SetDefault("cdn.hosts", cdn.DefaultHosts)
	v.SetDefault("cdn.suppressed_sizes", []string{"s", "q", "t"})

	v.SetDefault("browser.mode", string(models.ModeDynamic))
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.no_sandbox", false)

	v.SetDefault("resource.min_available_memory", 300)
	v.SetDefault("resource.cpu_load_threshold", 200)
	v.SetDefault("resource.monitor_interval", 2*time.Second)
	v.SetDefault("resource.max_contexts", 1)

	v.SetDefault("http.headers", map[string]string{})
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.insecure_skip_verify", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.report", true)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return fmt.Errorf("crawl配置无效: %w", err)
	}
	if _, err := cdn.ParseTier(c.Crawl.Tier); err != nil {
		return err
	}
	if _, err := models.ParseCrawlMode(c.Browser.Mode); err != nil {
		return err
	}
	if c.Resource.MaxContexts < 1 {
		return fmt.Errorf("resource.max_contexts必须大于0")
	}
	return nil
}

// Tier 解析后的画质档位
func (c *Config) Tier() cdn.Tier {
	t, err := cdn.ParseTier(c.Crawl.Tier)
	if err != nil {
		return cdn.TierLarge
	}
	return t
}

// Mode 解析后的获取方式
func (c *Config) Mode() models.CrawlMode {
	m, err := models.ParseCrawlMode(c.Browser.Mode)
	if err != nil {
		return models.ModeDynamic
	}
	return m
}

// CanonicalizerOptions 由cdn配置生成规范化器选项
// suppressed_sizes 显式配置为空列表时不丢弃任何尺寸
func (c *Config) CanonicalizerOptions() cdn.Options {
	suppressed := make([]cdn.SizeCode, 0, len(c.CDN.SuppressedSizes))
	for _, s := range c.CDN.SuppressedSizes {
		suppressed = append(suppressed, cdn.SizeCode(s))
	}
	return cdn.Options{Hosts: c.CDN.Hosts, Suppressed: suppressed}
}

// LogConfig 转换为日志器配置
func (c *Config) LogConfig() utils.LogConfig {
	lc := utils.DefaultLogConfig()
	lc.Level = c.Logging.Level
	lc.LogDir = c.Logging.LogDir
	lc.MaxSize = c.Logging.Rotation.MaxSize
	lc.MaxBackups = c.Logging.Rotation.MaxBackups
	lc.MaxAge = c.Logging.Rotation.MaxAge
	lc.Compress = c.Logging.Rotation.Compress
	return lc
}

// MergeCLIFlags 合并命令行参数到配置, 空值表示未指定
func (c *Config) MergeCLIFlags(
	mode string,
	tier string,
	headless *bool,
	loadAll bool,
	outputDir string,
	logLevel string,
) {
	if mode != "" {
		c.Browser.Mode = mode
	}
	if tier != "" {
		c.Crawl.Tier = tier
	}
	if headless != nil {
		c.Crawl.Headless = *headless
	}
	if loadAll {
		c.Crawl.UsePoller = true
	}
	if outputDir != "" {
		c.Output.BaseDir = outputDir
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
}
