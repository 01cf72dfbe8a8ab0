package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/estately/internal/database"
)

// ConfigCheckResult holds the result of configuration validation
type ConfigCheckResult struct {
	Missing  []string          // Required variables that are missing
	Present  map[string]string // Variables that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

// requiredVar is satisfied by any of its names; the first is preferred
type requiredVar struct {
	names []string
}

var requiredVars = []requiredVar{
	{names: []string{"ESTATELY_DATABASE_URL", "DATABASE_URL"}},
	{names: []string{"ESTATELY_AUTH_SECRET", "JWT_SECRET_KEY"}},
}

var optionalVars = []string{
	"ESTATELY_STORE_DRIVER",
	"ESTATELY_SERVER_PORT",
	"ESTATELY_LOG_LEVEL",
	"ESTATELY_REMINDERS_ENABLED",
}

// CheckRequiredConfig validates that required environment variables are set
func CheckRequiredConfig(lookup func(string) string) *ConfigCheckResult {
	if lookup == nil {
		lookup = os.Getenv
	}
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	for _, v := range requiredVars {
		found := false
		for _, name := range v.names {
			if val := lookup(name); val != "" {
				result.Present[name] = maskSecret(val)
				found = true
				break
			}
		}
		if !found {
			result.Missing = append(result.Missing, v.names[0])
		}
	}

	for _, name := range optionalVars {
		if val := lookup(name); val != "" {
			result.Present[name] = val
		}
	}

	if lookup("ESTATELY_STORE_DRIVER") == "memory" {
		result.Warnings = append(result.Warnings, "memory store selected: conversations are lost on restart")
	}

	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(result *ConfigCheckResult) {
	fmt.Println("=== Configuration Check ===")

	if len(result.Missing) > 0 {
		fmt.Println("❌ Missing required variables:")
		for _, v := range result.Missing {
			fmt.Printf("   - %s\n", v)
		}
		fmt.Println("")
	}

	if len(result.Present) > 0 {
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println("✓ Configured variables:")
		for _, k := range keys {
			fmt.Printf("   - %s = %s\n", k, result.Present[k])
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("⚠ Warning: %s\n", w)
	}

	if len(result.Missing) == 0 {
		fmt.Println("✓ All required configuration is present")
	}

	fmt.Println("============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// EnvCommand reports which environment variables are configured
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Check required environment variables (after loading .env)",
		Action: func(c *cli.Context) error {
			if err := database.LoadEnv(); err != nil {
				return err
			}
			result := CheckRequiredConfig(os.Getenv)
			PrintConfigCheck(result)
			if len(result.Missing) > 0 {
				return cli.Exit("missing required configuration", 1)
			}
			return nil
		},
	}
}
