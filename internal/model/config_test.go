package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: user@example.com
  password: secret
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 993, cfg.IMAP.Port)
	assert.Equal(t, "ssl", cfg.IMAP.Security)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
	assert.Equal(t, 14, cfg.Scan.WindowDays)
	assert.True(t, cfg.Scan.UnseenOnly)
	assert.Equal(t, 10, cfg.Scan.IntervalMinutes)
	assert.Equal(t, 20, cfg.Scan.MaxMatches)
	assert.NotEmpty(t, cfg.StateDB)
}

func TestLoadConfig_ScalarListFields(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: user@example.com
vendors:
  - name: DHL
    from_filter: "@dhl.de"
    regex: 'JJD\w{13,17}'
  - name: UPS
    from_filter:
      - "@ups.com"
      - "quantum@ups.example"
    regex:
      - '1Z\w{16}'
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Vendors, 2)
	assert.Equal(t, []string{"@dhl.de"}, cfg.Vendors[0].FromFilter, "scalar becomes one-element list")
	assert.Equal(t, []string{`JJD\w{13,17}`}, cfg.Vendors[0].Regex)
	assert.Equal(t, []string{"@ups.com", "quantum@ups.example"}, cfg.Vendors[1].FromFilter)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &AppConfig{}
	assert.Error(t, cfg.Validate(), "host required")

	cfg.IMAP.Host = "mail.example.com"
	assert.Error(t, cfg.Validate(), "username required")

	cfg.IMAP.Username = "user"
	cfg.IMAP.Security = "plaintext"
	assert.Error(t, cfg.Validate(), "unknown security mode")

	cfg.IMAP.Security = "starttls"
	assert.NoError(t, cfg.Validate())
}

func TestAccountID(t *testing.T) {
	cfg := &AppConfig{}
	cfg.IMAP.Username = "user@example.com"
	cfg.IMAP.Host = "mail.example.com"
	cfg.IMAP.Mailbox = "INBOX"

	assert.Equal(t, "user@example.com@mail.example.com/INBOX", cfg.AccountID())
}

func TestLoadVendorRules_DropsRulesWithoutRegex(t *testing.T) {
	cfg := &AppConfig{
		Vendors: []VendorRule{
			{Name: "NoPatterns", FromFilter: []string{"@x.com"}},
			{Name: "DHL", Regex: []string{`JJD\w+`}},
		},
	}

	rules, dropped, err := LoadVendorRules(cfg)
	require.NoError(t, err)

	require.Len(t, rules, 1)
	assert.Equal(t, "DHL", rules[0].Name)
	assert.Len(t, rules[0].Patterns(), 1)
	assert.Equal(t, []string{"NoPatterns"}, dropped)
}

func TestLoadVendorRules_BadPattern(t *testing.T) {
	cfg := &AppConfig{
		Vendors: []VendorRule{{Name: "Broken", Regex: []string{`([`}}},
	}

	_, _, err := LoadVendorRules(cfg)
	assert.Error(t, err)
}

func TestLoadVendorRules_RulesFile(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "vendors.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`
vendors:
  - name: DHL
    html: true
    from_filter: "@dhl.de"
    regex: 'JJD\w{13,17}'
    css_selectors:
      - ".tracking"
    url: "https://www.dhl.de/track?id={tracking}"
`), 0o600))

	cfg := &AppConfig{
		RulesFile: rulesPath,
		// Inline vendors are ignored when a rules file is set.
		Vendors: []VendorRule{{Name: "Inline", Regex: []string{`X`}}},
	}

	rules, dropped, err := LoadVendorRules(cfg)
	require.NoError(t, err)
	assert.Empty(t, dropped)

	require.Len(t, rules, 1)
	assert.Equal(t, "DHL", rules[0].Name)
	assert.True(t, rules[0].HTML)
	assert.Equal(t, []string{".tracking"}, rules[0].CSSSelectors)
	assert.Equal(t, "https://www.dhl.de/track?id=JJD123", rules[0].TrackingURL("JJD123"))
}

func TestVendorRule_CompileRequiresName(t *testing.T) {
	rule := VendorRule{Regex: []string{`X`}}
	assert.Error(t, rule.Compile())
}
