package review

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// seedFile 种子文件格式
//
//	reviews:
//	  - title: Dune
//	    content_type: livro
//	    rating: PEAK_FICTION
//	    ...
type seedFile struct {
	Reviews []CreateInput `yaml:"reviews"`
}

// LoadSeed 读取 YAML 种子文件
func LoadSeed(path string) ([]CreateInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("review: read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed 解析 YAML 种子内容
func ParseSeed(data []byte) ([]CreateInput, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("review: parse seed: %w", err)
	}
	return f.Reviews, nil
}
