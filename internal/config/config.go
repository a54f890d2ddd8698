package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load 读取主配置及其 include 链，按“被引用者在前”的顺序合并，再补默认值、解析密钥并校验。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	chain := &includeChain{visiting: map[string]bool{}, done: map[string]bool{}}
	if err := chain.walk(root); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, l := range chain.layers {
		if err := v.MergeConfigMap(l.settings); err != nil {
			return nil, fmt.Errorf("merge config %s: %w", l.path, err)
		}
	}
	var cfg Config
	decodeHook := func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	explicit := make(keySet)
	for _, k := range v.AllKeys() {
		explicit.mark(k)
	}
	cfg.applyDefaults(explicit)
	cfg.resolveSecrets()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	cfg.Path = root
	return &cfg, nil
}

// resolveSecrets 优先使用显式 api_key，否则读取 api_key_env 指向的环境变量。
func (c *Config) resolveSecrets() {
	for name, p := range c.Providers {
		if strings.TrimSpace(p.APIKey) == "" && strings.TrimSpace(p.APIKeyEnv) != "" {
			p.APIKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
		}
		c.Providers[name] = p
	}
	if c.Notify.Telegram.BotToken == "" {
		c.Notify.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
}

type configLayer struct {
	path     string
	settings map[string]any
}

// includeChain 做深度优先展开；同一文件只合并一次，回到正在展开的文件即为循环。
type includeChain struct {
	layers   []configLayer
	visiting map[string]bool
	done     map[string]bool
}

func (c *includeChain) walk(path string) error {
	path = filepath.Clean(path)
	switch {
	case c.visiting[path]:
		return fmt.Errorf("config include cycle at %s", path)
	case c.done[path]:
		return nil
	}
	c.visiting[path] = true
	defer delete(c.visiting, path)

	settings, includes, err := readLayer(path)
	if err != nil {
		return err
	}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := c.walk(inc); err != nil {
			return err
		}
	}
	delete(settings, "include")
	c.layers = append(c.layers, configLayer{path: path, settings: settings})
	c.done[path] = true
	return nil
}

func readLayer(path string) (map[string]any, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config %s: %w", path, err)
	}
	settings := map[string]any{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	var includes []string
	switch raw := settings["include"].(type) {
	case nil:
	case string:
		includes = appendTrimmed(includes, raw)
	case []any:
		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, nil, fmt.Errorf("config %s: include entries must be strings", path)
			}
			includes = appendTrimmed(includes, s)
		}
	default:
		return nil, nil, fmt.Errorf("config %s: include must be a list of paths", path)
	}
	return settings, includes, nil
}

func appendTrimmed(list []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		list = append(list, s)
	}
	return list
}
