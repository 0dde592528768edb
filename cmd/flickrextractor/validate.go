package main

import (
	"fmt"

	"github.com/RecoveryAshes/FlickrExtractor/internal/cdn"
	"github.com/RecoveryAshes/FlickrExtractor/internal/core"
	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
)

// ValidateFlags 验证命令行标志, 空值表示使用配置文件
func ValidateFlags(
	targetURL string,
	urlFile string,
	mode string,
	tier string,
	pageType string,
	batchDelay int,
) error {
	if targetURL != "" && urlFile != "" {
		return fmt.Errorf("--url 与 --url-file 不能同时使用")
	}

	if targetURL != "" {
		if err := models.ValidateURL(targetURL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	if mode != "" {
		if _, err := models.ParseCrawlMode(mode); err != nil {
			return err
		}
	}

	if tier != "" {
		if _, err := cdn.ParseTier(tier); err != nil {
			return err
		}
	}

	switch core.PageType(pageType) {
	case "", core.PageAlbumsList, core.PageSingleAlbum, core.PagePhotostream, core.PageOther:
	default:
		return fmt.Errorf("无效的页面类型: %s", pageType)
	}

	if batchDelay < 0 || batchDelay > 600 {
		return fmt.Errorf("批量延迟必须在0-600秒之间,当前值: %d", batchDelay)
	}

	return nil
}
