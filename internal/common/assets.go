package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// AssetConfig names one token/network pair whose Prime wallets are polled.
type AssetConfig struct {
	Symbol  string `yaml:"symbol"`
	Network string `yaml:"network"`
}

type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets"`
}

type ThresholdsConfig struct {
	Thresholds []int `yaml:"thresholds"`
}

func resolvePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, file), nil
}

func loadYAML(file string, out interface{}) error {
	path, err := resolvePath(file)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", file, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unable to parse %s: %w", file, err)
	}
	return nil
}

func LoadAssetConfig(assetsFile string) ([]AssetConfig, error) {
	var config AssetsConfig
	if err := loadYAML(assetsFile, &config); err != nil {
		return nil, err
	}

	for i, asset := range config.Assets {
		if asset.Symbol == "" {
			return nil, fmt.Errorf("asset at index %d missing symbol", i)
		}
		if asset.Network == "" {
			return nil, fmt.Errorf("asset at index %d missing network", i)
		}
	}

	return config.Assets, nil
}

// LoadAssetSymbols returns the configured assets as SYMBOL-network keys.
func LoadAssetSymbols(assetsFile string) ([]string, error) {
	assets, err := LoadAssetConfig(assetsFile)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(assets))
	for i, asset := range assets {
		symbols[i] = fmt.Sprintf("%s-%s", asset.Symbol, asset.Network)
	}

	return symbols, nil
}

// LoadThresholds reads tank usage thresholds (percentages). A missing file
// yields nil so callers fall back to their defaults.
func LoadThresholds(thresholdsFile string) ([]int, error) {
	if thresholdsFile == "" {
		return nil, nil
	}

	var config ThresholdsConfig
	if err := loadYAML(thresholdsFile, &config); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[int]bool)
	for i, th := range config.Thresholds {
		if th <= 0 || th > 100 {
			return nil, fmt.Errorf("threshold at index %d must be between 1 and 100, got %d", i, th)
		}
		if seen[th] {
			return nil, fmt.Errorf("duplicate threshold %d", th)
		}
		seen[th] = true
	}

	return config.Thresholds, nil
}
