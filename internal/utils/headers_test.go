package utils

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
)

func TestRedactHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer abcdefg")
	headers.Set("Cookie", "x")
	headers.Set("User-Agent", "Mozilla/5.0")

	got := RedactHeaders(headers)
	want := "Authorization: Bear***, Cookie: ***, User-Agent: Mozilla/5.0"
	if got != want {
		t.Errorf("RedactHeaders() = %q, 期望 %q", got, want)
	}
}

func TestValidateHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		value   string
		wantErr bool
	}{
		{"普通头部", "User-Agent", "Mozilla/5.0", false},
		{"Referer", "Referer", "https://www.flickr.com/", false},
		{"空名称", "", "x", true},
		{"禁止头部", "Host", "example.com", true},
		{"名称含空格", "X Bad", "x", true},
		{"值含换行", "X-Test", "a\nb", true},
		{"值过长", "X-Test", strings.Repeat("a", maxHeaderValueLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeader(tt.header, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *models.ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("错误类型应为 ValidationError, 实际 %T", err)
				}
			}
		})
	}
}

func TestGenerateReport(t *testing.T) {
	dir := t.TempDir()
	task, err := models.NewCrawlTask("https://www.flickr.com/photos/u/albums", models.ModeDynamic, models.DefaultCrawlConfig())
	if err != nil {
		t.Fatalf("创建任务失败: %v", err)
	}
	task.Start()
	task.Finish(nil, false)

	report := models.NewCrawlReport(task)
	results := models.NewCollectionResults()
	results.Put(models.NewFailedResult(models.CollectionMember{ID: "1", Title: "A", SourceURL: "https://www.flickr.com/photos/u/albums/1"}, "超时"))
	report.AddResults(results, "large")

	path, err := NewReporter(dir).GenerateReport(report)
	if err != nil {
		t.Fatalf("生成报告失败: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "reports") {
		t.Errorf("报告路径错误: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	var loaded models.CrawlReport
	if err := loaded.FromJSON(data); err != nil {
		t.Fatalf("解析报告失败: %v", err)
	}
	if loaded.TaskID != task.ID || loaded.Stats.Failed != 1 {
		t.Errorf("报告内容不符: task=%s failed=%d", loaded.TaskID, loaded.Stats.Failed)
	}
}

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# 相册列表\n" +
		"https://www.flickr.com/photos/u/albums\n" +
		"\n" +
		"ftp://example.com/x\n" +
		"https://www.flickr.com/photos/u/albums\n" +
		"https://www.flickr.com/photos/u/albums/123\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}

	urls, err := ReadURLsFromFile(path)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("期望2个URL, 实际%d个: %v", len(urls), urls)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("# 无内容\n"), 0644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	if _, err := ReadURLsFromFile(empty); err == nil {
		t.Error("期望无有效URL时返回error")
	}
}
