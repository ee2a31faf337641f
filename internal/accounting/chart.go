package accounting

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed chart.yaml
var defaultChartYAML []byte

// ChartEntry is one account in a chart definition file.
type ChartEntry struct {
	Code   string      `yaml:"code"`
	Name   string      `yaml:"name"`
	Type   AccountType `yaml:"type"`
	Parent string      `yaml:"parent,omitempty"`
}

// Chart is an ordered chart of accounts definition.
type Chart struct {
	Accounts []ChartEntry `yaml:"accounts"`
}

// DefaultChart returns the embedded construction chart of accounts.
func DefaultChart() (Chart, error) {
	return ParseChart(defaultChartYAML)
}

// LoadChart reads a chart from a YAML file.
func LoadChart(path string) (Chart, error) {
	f, err := os.Open(path)
	if err != nil {
		return Chart{}, err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return Chart{}, err
	}
	return ParseChart(raw)
}

// ParseChart decodes raw YAML and checks that parents precede children.
func ParseChart(raw []byte) (Chart, error) {
	var chart Chart
	if err := yaml.Unmarshal(raw, &chart); err != nil {
		return Chart{}, fmt.Errorf("accounting: parse chart: %w", err)
	}
	seen := make(map[string]bool, len(chart.Accounts))
	for _, entry := range chart.Accounts {
		if entry.Code == "" || entry.Name == "" || !entry.Type.Valid() {
			return Chart{}, fmt.Errorf("accounting: chart entry %q: %w", entry.Code, ErrInvalidAccount)
		}
		if seen[entry.Code] {
			return Chart{}, fmt.Errorf("accounting: chart entry %q: %w", entry.Code, ErrDuplicateCode)
		}
		if entry.Parent != "" && !seen[entry.Parent] {
			return Chart{}, fmt.Errorf("accounting: chart entry %q references unknown parent %q: %w", entry.Code, entry.Parent, ErrInvalidAccount)
		}
		seen[entry.Code] = true
	}
	return chart, nil
}

// SeedChart inserts every chart entry whose code is not present yet and
// returns how many accounts were created.
func (s *Service) SeedChart(ctx context.Context, chart Chart) (int, error) {
	created := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created = 0
		for _, entry := range chart.Accounts {
			_, err := insertAccount(ctx, tx, CreateAccountInput{
				Code:       entry.Code,
				Name:       entry.Name,
				Type:       entry.Type,
				ParentCode: entry.Parent,
			})
			if errors.Is(err, ErrDuplicateCode) {
				continue
			}
			if err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.recordAudit(ctx, "chart.seed", int64(created), map[string]any{"created": created})
	}
	return created, nil
}
