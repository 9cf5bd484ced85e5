package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/onboard/pkg/errors"
)

// providerKeyZenodoBaseURL addresses the Zenodo endpoint in SetValue/GetValue.
const providerKeyZenodoBaseURL = "zenodo.base_url"

// SetValue sets a configuration value by key. Settings are addressed by their
// YAML name (for example "max_concurrent"); provider endpoints as
// "zenodo.base_url". The result is validated before it is applied.
func (c *Config) SetValue(key, value string) error {
	if key == providerKeyZenodoBaseURL {
		c.Providers.Zenodo.BaseURL = value
		return nil
	}

	updated := c.Settings
	field, ok := settingsField(reflect.ValueOf(&updated).Elem(), key)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		field.SetBool(boolVal)
	case reflect.Int64:
		// time.Duration is the only int64 setting.
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		field.SetInt(int64(d))
	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		field.SetInt(int64(intVal))
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}

	if err := validateSettings(updated); err != nil {
		return err
	}
	c.Settings = updated
	return nil
}

// GetValue returns the value of key as a string.
func (c *Config) GetValue(key string) (string, error) {
	if key == providerKeyZenodoBaseURL {
		return c.Providers.Zenodo.BaseURL, nil
	}
	value, ok := c.ToMap()[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}
	return value, nil
}

// ToMap flattens the configuration into key/value strings.
// This is useful for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)

	settingsValue := reflect.ValueOf(c.Settings)
	settingsType := settingsValue.Type()

	for i := 0; i < settingsValue.NumField(); i++ {
		yamlKey := yamlName(settingsType.Field(i))
		if yamlKey == "" {
			continue
		}

		fieldValue := settingsValue.Field(i)
		var strValue string
		switch v := fieldValue.Interface().(type) {
		case time.Duration:
			strValue = v.String()
		case bool:
			strValue = strconv.FormatBool(v)
		case int:
			strValue = strconv.Itoa(v)
		case string:
			strValue = v
		default:
			strValue = fmt.Sprintf("%v", v)
		}
		result[yamlKey] = strValue
	}
	result[providerKeyZenodoBaseURL] = c.Providers.Zenodo.BaseURL

	return result
}

// Keys returns every key accepted by SetValue and GetValue, sorted.
func (c *Config) Keys() []string {
	m := c.ToMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func settingsField(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if yamlName(t.Field(i)) == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// yamlName handles yaml tags with options (e.g., "scratch_dir,omitempty").
func yamlName(field reflect.StructField) string {
	tag := field.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}
