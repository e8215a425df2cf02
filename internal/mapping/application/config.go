package application

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	mapping "program-mapping/internal/mapping/domain"
)

// Config defines mapping session configuration.
type Config struct {
	WindowSize   int              `yaml:"window_size"`
	PreloadDelay time.Duration    `yaml:"preload_delay"`
	SessionTTL   time.Duration    `yaml:"session_ttl"`
	LabelObject  string           `yaml:"label_object"`
	Fields       mapping.FieldSet `yaml:"fields"`
}

// DefaultFields is the year field set used when none is configured.
var DefaultFields = mapping.FieldSet{
	{Key: "applications", Label: "Applications"},
	{Key: "services", Label: "Services"},
	{Key: "sob", Label: "SOB"},
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		WindowSize:   getenvIntDefault("MAPPING_WINDOW_SIZE", mapping.DefaultWindowSize),
		PreloadDelay: getenvDuration("MAPPING_PRELOAD_DELAY", 200*time.Millisecond),
		SessionTTL:   getenvDuration("MAPPING_SESSION_TTL", 30*time.Minute),
		LabelObject:  getenvDefault("MAPPING_LABEL_OBJECT", "product_program_mapping"),
	}

	if path := os.Getenv("MAPPING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if len(cfg.Fields) == 0 {
		cfg.Fields = parseFields(os.Getenv("MAPPING_FIELDS"))
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = append(mapping.FieldSet(nil), DefaultFields...)
	}
	return cfg, cfg.Validate()
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return errors.New("mapping config: window size must be positive")
	}
	if c.PreloadDelay < 0 {
		return errors.New("mapping config: negative preload delay")
	}
	return c.Fields.Validate()
}

// parseFields reads "key:Label,key2:Label 2".
func parseFields(value string) mapping.FieldSet {
	var fields mapping.FieldSet
	for _, part := range splitCSV(value) {
		key, label, _ := strings.Cut(part, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields = append(fields, mapping.FieldSpec{Key: key, Label: strings.TrimSpace(label)})
	}
	return fields
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
