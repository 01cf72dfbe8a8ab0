package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "po****le", maskSecret("postgres://example"))
}

func TestCheckRequiredConfig(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":          "postgres://localhost/estately",
		"ESTATELY_STORE_DRIVER": "memory",
	}
	result := CheckRequiredConfig(func(k string) string { return env[k] })

	assert.Equal(t, []string{"ESTATELY_AUTH_SECRET"}, result.Missing)
	assert.Contains(t, result.Present, "DATABASE_URL")
	assert.Equal(t, "memory", result.Present["ESTATELY_STORE_DRIVER"])
	assert.Len(t, result.Warnings, 1)
}

func TestCheckRequiredConfig_PrefersPrefixedNames(t *testing.T) {
	env := map[string]string{
		"ESTATELY_DATABASE_URL": "postgres://primary/estately",
		"DATABASE_URL":          "postgres://legacy/estately",
		"JWT_SECRET_KEY":        "a-long-enough-secret",
	}
	result := CheckRequiredConfig(func(k string) string { return env[k] })

	assert.Empty(t, result.Missing)
	assert.Contains(t, result.Present, "ESTATELY_DATABASE_URL")
	assert.NotContains(t, result.Present, "DATABASE_URL")
	assert.Equal(t, "a-****et", result.Present["JWT_SECRET_KEY"])
}
