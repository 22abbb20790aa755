package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const maskedValue = "********"

// Attribute is a resolved setting with its printable value and source.
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

func attributeNames() []string {
	return []string{
		"secret_key", "debug", "allowed_hosts",
		"database_engine", "database_name", "database_user", "database_host",
		"database_port", "database_ssl_require",
		"cors_allowed_origins", "csrf_trusted_origins",
		"log_level_" + LoggerFramework, "log_level_" + LoggerPayments,
		"base_dir", "port", "rate_limit_rps", "rate_limit_burst",
	}
}

// Attributes lists every setting with its source. The secret key is masked.
func (c Config) Attributes() []Attribute {
	secret := maskedValue
	if c.SecretKey == FallbackSecretKey {
		secret = "(insecure default)"
	}
	return []Attribute{
		{Name: "secret_key", Value: secret, Source: c.Source("secret_key")},
		{Name: "debug", Value: strconv.FormatBool(c.Debug), Source: c.Source("debug")},
		{Name: "allowed_hosts", Value: strings.Join(c.AllowedHosts, ","), Source: c.Source("allowed_hosts")},
		{Name: "database_engine", Value: c.Database.Engine, Source: c.Source("database_engine")},
		{Name: "database_name", Value: c.Database.Name, Source: c.Source("database_name")},
		{Name: "database_user", Value: c.Database.User, Source: c.Source("database_user")},
		{Name: "database_host", Value: c.Database.Host, Source: c.Source("database_host")},
		{Name: "database_port", Value: strconv.Itoa(c.Database.Port), Source: c.Source("database_port")},
		{Name: "database_ssl_require", Value: strconv.FormatBool(c.Database.SSLRequire), Source: c.Source("database_ssl_require")},
		{Name: "cors_allowed_origins", Value: strings.Join(c.CORSAllowedOrigins, ","), Source: c.Source("cors_allowed_origins")},
		{Name: "csrf_trusted_origins", Value: strings.Join(c.CSRFTrustedOrigins, ","), Source: c.Source("csrf_trusted_origins")},
		{Name: "log_level_" + LoggerFramework, Value: c.LogLevel(LoggerFramework).String(), Source: c.Source("log_level_" + LoggerFramework)},
		{Name: "log_level_" + LoggerPayments, Value: c.LogLevel(LoggerPayments).String(), Source: c.Source("log_level_" + LoggerPayments)},
		{Name: "base_dir", Value: c.BaseDir, Source: c.Source("base_dir")},
		{Name: "port", Value: c.Port, Source: c.Source("port")},
		{Name: "rate_limit_rps", Value: strconv.FormatFloat(c.RateLimitRPS, 'f', -1, 64), Source: c.Source("rate_limit_rps")},
		{Name: "rate_limit_burst", Value: strconv.Itoa(c.RateLimitBurst), Source: c.Source("rate_limit_burst")},
	}
}

// FormatText renders the attributes as an aligned table.
func (c Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-40s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-28s %-40s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-28s %-40s %s\n", attr.Name, value, attr.Source))
	}
	for _, w := range c.Warnings {
		sb.WriteString(fmt.Sprintf("warning: %s\n", w))
	}
	return sb.String()
}

// FormatJSON renders the attributes and warnings as indented JSON.
func (c Config) FormatJSON() (string, error) {
	result := map[string]any{
		"attributes": c.Attributes(),
		"warnings":   c.Warnings,
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
