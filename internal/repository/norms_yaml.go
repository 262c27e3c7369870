package repository

import (
	"fmt"
	"os"

	"energo-data/internal/domain"

	"gopkg.in/yaml.v3"
)

// normsFile norms.yaml 结构：consumption 为 1 月到 12 月的 12 个数值
//
//	norms:
//	  - rooms: 1
//	    residents: 1
//	    consumption: [120, 110, 100, 90, 80, 70, 70, 75, 85, 100, 110, 125]
type normsFile struct {
	Norms []struct {
		Rooms       int       `yaml:"rooms"`
		Residents   int       `yaml:"residents"`
		Consumption []float64 `yaml:"consumption"`
	} `yaml:"norms"`
}

// LoadNormsYAML 读取标准表种子文件
func LoadNormsYAML(path string) ([]domain.NormBucket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read norms file: %w", err)
	}
	return ParseNormsYAML(data)
}

// ParseNormsYAML 解析标准表；consumption 必须正好 12 个值
func ParseNormsYAML(data []byte) ([]domain.NormBucket, error) {
	var f normsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse norms yaml: %w", err)
	}

	out := make([]domain.NormBucket, 0, len(f.Norms))
	for i, n := range f.Norms {
		if len(n.Consumption) != domain.MonthsPerYear {
			return nil, fmt.Errorf("norm %d (rooms=%d residents=%d): expected %d monthly values, got %d",
				i, n.Rooms, n.Residents, domain.MonthsPerYear, len(n.Consumption))
		}
		b := domain.NormBucket{RoomsCount: n.Rooms, ResidentsCount: n.Residents}
		copy(b.Consumption[:], n.Consumption)
		out = append(out, b)
	}
	return out, nil
}
