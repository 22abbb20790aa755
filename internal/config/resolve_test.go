package config

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestResolveDebug(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "Yes"} {
		if got, _ := resolveDebug(MapEnvironment(map[string]string{"DJANGO_DEBUG": v})); !got {
			t.Fatalf("expected %q to enable debug", v)
		}
	}
	for _, v := range []string{"0", "false", "no", "on", "", " true", "yes "} {
		if got, _ := resolveDebug(MapEnvironment(map[string]string{"DEBUG": v})); got {
			t.Fatalf("expected %q to disable debug", v)
		}
	}
	if got, src := resolveDebug(MapEnvironment(nil)); !got || src != SourceDefault {
		t.Fatalf("expected unset debug to default to true")
	}

	t.Run("django variable wins even when empty", func(t *testing.T) {
		got, _ := resolveDebug(MapEnvironment(map[string]string{"DJANGO_DEBUG": "", "DEBUG": "true"}))
		if got {
			t.Fatalf("expected empty DJANGO_DEBUG to take precedence")
		}
	})
}

func TestResolveSecret(t *testing.T) {
	if got, _ := resolveSecret(MapEnvironment(nil)); got != FallbackSecretKey {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got, _ := resolveSecret(MapEnvironment(map[string]string{"SECRET_KEY": "second"})); got != "second" {
		t.Fatalf("expected second variable, got %q", got)
	}
	both := MapEnvironment(map[string]string{"DJANGO_SECRET_KEY": "first", "SECRET_KEY": "second"})
	if got, _ := resolveSecret(both); got != "first" {
		t.Fatalf("expected first variable to win, got %q", got)
	}
	emptyFirst := MapEnvironment(map[string]string{"DJANGO_SECRET_KEY": "", "SECRET_KEY": "second"})
	if got, _ := resolveSecret(emptyFirst); got != "second" {
		t.Fatalf("expected empty first variable to be skipped, got %q", got)
	}
}

func TestResolveAllowedHosts(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{"json", map[string]string{"DJANGO_ALLOWED_HOSTS": `["a","b"]`}, []string{"a", "b"}},
		{"comma", map[string]string{"ALLOWED_HOSTS": "a, b ,c"}, []string{"a", "b", "c"}},
		{"comma drops empties", map[string]string{"ALLOWED_HOSTS": " , a,,"}, []string{"a"}},
		{"duplicates collapse", map[string]string{"ALLOWED_HOSTS": `["a","b","a"]`}, []string{"a", "b"}},
		{"unset", nil, []string{}},
		{"first non-empty wins", map[string]string{"DJANGO_ALLOWED_HOSTS": "", "ALLOWED_HOSTS": "x"}, []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := resolveAllowedHosts(MapEnvironment(tt.env))
			if !slices.Equal(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolveList(t *testing.T) {
	t.Run("preserves order", func(t *testing.T) {
		env := MapEnvironment(map[string]string{"CORS_ALLOWED_ORIGINS": `["https://a.com","https://b.com"]`})
		got, _, err := resolveList(env, "CORS_ALLOWED_ORIGINS", "[]")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []string{"https://a.com", "https://b.com"}; !slices.Equal(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("uses default when unset", func(t *testing.T) {
		got, src, err := resolveList(MapEnvironment(nil), "X", `["d"]`)
		if err != nil || !slices.Equal(got, []string{"d"}) || src != SourceDefault {
			t.Fatalf("unexpected result %v %s %v", got, src, err)
		}
	})

	t.Run("malformed value propagates", func(t *testing.T) {
		_, _, err := resolveList(MapEnvironment(map[string]string{"X": "a,b"}), "X", "[]")
		if !errors.Is(err, ErrMalformedList) {
			t.Fatalf("expected ErrMalformedList, got %v", err)
		}
	})

	t.Run("null is empty", func(t *testing.T) {
		got, _, err := resolveList(MapEnvironment(map[string]string{"X": "null"}), "X", "[]")
		if err != nil || got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil list, got %v %v", got, err)
		}
	})
}

func TestResolveLogLevels(t *testing.T) {
	env := MapEnvironment(map[string]string{
		"DJANGO_LOG_LEVEL":   "error",
		"PAYMENTS_LOG_LEVEL": "verbose",
	})
	levels, _, warnings := resolveLogLevels(env)
	if levels[LoggerFramework] != LevelError {
		t.Fatalf("expected ERROR, got %s", levels[LoggerFramework])
	}
	if levels[LoggerPayments] != LevelInfo {
		t.Fatalf("expected invalid level to fall back to INFO, got %s", levels[LoggerPayments])
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}

func TestResolveDatabaseFromURL(t *testing.T) {
	env := MapEnvironment(map[string]string{"DATABASE_URL": "postgres://u:p@h:5432/d"})
	db, _, err := resolveDatabase(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.Engine != EnginePostgres || db.Host != "h" || db.Port != 5432 || db.Name != "d" || db.User != "u" || db.Password != "p" {
		t.Fatalf("unexpected descriptor: %+v", db)
	}
	if db.ConnMaxAge != 600*time.Second {
		t.Fatalf("expected 600s connection age, got %s", db.ConnMaxAge)
	}
	if !db.SSLRequire || db.Options["sslmode"] != "require" {
		t.Fatalf("expected TLS to be required by default, got %+v", db)
	}
}

func TestResolveDatabaseSSLDisabled(t *testing.T) {
	env := MapEnvironment(map[string]string{"DATABASE_URL": "postgresql://u@h/d?sslmode=disable", "DB_SSL": "False"})
	db, _, err := resolveDatabase(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.SSLRequire {
		t.Fatalf("expected TLS not required")
	}
	if db.Options["sslmode"] != "disable" {
		t.Fatalf("expected query option to be preserved, got %v", db.Options)
	}
	if db.Port != 5432 {
		t.Fatalf("expected default port, got %d", db.Port)
	}
}

func TestResolveDatabaseMySQLURL(t *testing.T) {
	env := MapEnvironment(map[string]string{"DATABASE_URL": "mysql://root:pw@db.local/lms"})
	db, _, err := resolveDatabase(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.Engine != EngineMySQL || db.Port != 3306 {
		t.Fatalf("unexpected descriptor: %+v", db)
	}
	if _, ok := db.Options["sslmode"]; ok {
		t.Fatalf("sslmode is a postgres option")
	}
}

func TestResolveDatabaseSchemeAliases(t *testing.T) {
	cases := map[string]string{
		"pgsql://u:p@h/d":    EnginePostgres,
		"postgis://u:p@h/d":  EnginePostgres,
		"POSTGRESQL://u@h/d": EnginePostgres,
		"mysql://u:p@h/d":    EngineMySQL,
		"sqlite:///lms.db":   EngineSQLite,
	}
	for raw, want := range cases {
		db, _, err := resolveDatabase(MapEnvironment(map[string]string{"DATABASE_URL": raw}))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		if db.Engine != want {
			t.Fatalf("%s: expected engine %s, got %s", raw, want, db.Engine)
		}
	}
}

func TestResolveDatabaseSQLitePaths(t *testing.T) {
	cases := map[string]string{
		"sqlite:///db.sqlite3":           "db.sqlite3",
		"sqlite:////var/lib/lms.sqlite3": "/var/lib/lms.sqlite3",
	}
	for raw, want := range cases {
		db, sources, err := resolveDatabase(MapEnvironment(map[string]string{"DATABASE_URL": raw}))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		if db.Name != want || db.Host != "" || db.Port != 0 {
			t.Fatalf("%s: unexpected descriptor %+v", raw, db)
		}
		if _, ok := db.Options["sslmode"]; ok {
			t.Fatalf("%s: sslmode must not be set for sqlite", raw)
		}
		if sources["database_name"] != SourceEnvironment {
			t.Fatalf("%s: expected environment source, got %s", raw, sources["database_name"])
		}
	}
}

func TestResolveDatabaseIPv6Host(t *testing.T) {
	db, _, err := resolveDatabase(MapEnvironment(map[string]string{"DATABASE_URL": "postgres://u:p@[::1]:5432/d"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.Host != "::1" || db.Address() != "[::1]:5432" {
		t.Fatalf("expected bracketed address, got host=%q address=%q", db.Host, db.Address())
	}
}

func TestResolveDatabaseRejectsUnknownScheme(t *testing.T) {
	for _, raw := range []string{"nosuchdb://u@h/d", "oracle://u:p@h/d"} {
		if _, _, err := resolveDatabase(MapEnvironment(map[string]string{"DATABASE_URL": raw})); !errors.Is(err, ErrInvalidDatabaseURL) {
			t.Fatalf("%s: expected ErrInvalidDatabaseURL, got %v", raw, err)
		}
	}
}

func TestResolveDatabaseSSLWhitespaceIsFalse(t *testing.T) {
	db, _, err := resolveDatabase(MapEnvironment(map[string]string{"DATABASE_URL": "postgres://u@h/d", "DB_SSL": " True"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.SSLRequire {
		t.Fatalf("expected padded value to disable TLS")
	}
}

func TestResolveDatabaseFromFields(t *testing.T) {
	db, sources, err := resolveDatabase(MapEnvironment(map[string]string{"DB_HOST": "x"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DatabaseConfig{Engine: EnginePostgres, Name: "db_lms", User: "postgres", Host: "x", Port: 5432}
	if db.Engine != want.Engine || db.Name != want.Name || db.User != want.User || db.Password != "" || db.Host != want.Host || db.Port != want.Port {
		t.Fatalf("expected %+v, got %+v", want, db)
	}
	if db.URL != "" || db.ConnMaxAge != 0 || db.SSLRequire {
		t.Fatalf("field descriptor must not carry URL settings: %+v", db)
	}
	if sources["database_host"] != SourceEnvironment || sources["database_name"] != SourceDefault {
		t.Fatalf("unexpected sources: %v", sources)
	}
}

func TestResolveDatabaseInvalidPort(t *testing.T) {
	if _, _, err := resolveDatabase(MapEnvironment(map[string]string{"DB_PORT": "abc"})); err == nil {
		t.Fatalf("expected error for invalid DB_PORT")
	}
	if _, _, err := resolveDatabase(MapEnvironment(map[string]string{"DATABASE_URL": "postgres://h:99999/d"})); !errors.Is(err, ErrInvalidDatabaseURL) {
		t.Fatalf("expected ErrInvalidDatabaseURL, got %v", err)
	}
}

func TestDatabaseMasked(t *testing.T) {
	db := DatabaseConfig{Engine: EnginePostgres, User: "u", Password: "p", Host: "h", Port: 5432, Name: "d"}
	if got := db.Masked(); got != "postgresql://u:xxxxx@h:5432/d" {
		t.Fatalf("unexpected masked value %q", got)
	}
	ipv6 := DatabaseConfig{Engine: EngineMySQL, User: "u", Host: "::1", Port: 3306, Name: "d"}
	if got := ipv6.Masked(); got != "mysql://u@[::1]:3306/d" {
		t.Fatalf("unexpected masked IPv6 value %q", got)
	}
	withURL := DatabaseConfig{URL: "postgres://u:p@h:5432/d"}
	if got := withURL.Masked(); got != "postgres://u:xxxxx@h:5432/d" {
		t.Fatalf("unexpected masked URL %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{"debug": LevelDebug, "INFO": LevelInfo, "Warn": LevelWarning, "critical": LevelError}
	for raw, want := range cases {
		got, err := ParseLogLevel(raw)
		if err != nil || got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
