package localio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoOutputPath 本地保存需要输出目录
var ErrNoOutputPath = errors.New("output path is required for local save")

// SaveImages 把一组解码后的图片写入目标目录
// 文件名按运行器给出的顺序编号；部分写入不回滚，
// 返回已成功写入的数量和首个失败的错误
func SaveImages(outputPath string, images [][]byte) (int, error) {
	if outputPath == "" {
		return 0, ErrNoOutputPath
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	written := 0
	for i, image := range images {
		name := filepath.Join(outputPath, fmt.Sprintf("output_%d.png", i))
		if err := os.WriteFile(name, image, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written++
	}
	return written, nil
}
