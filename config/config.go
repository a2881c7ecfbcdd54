package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const defaultPath = "."

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port     int `json:"port" yaml:"port"`
		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	SecretKey struct {
		Access  string `json:"access" yaml:"access"`
		Refresh string `json:"refresh" yaml:"refresh"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`

	MFA *MFAConfig `json:"mfa" yaml:"mfa"`

	Biometric *BiometricConfig `json:"biometric" yaml:"biometric"`

	// SSO maps provider names ("google", "microsoft") to their client configuration.
	SSO map[string]*SSOProviderConfig `json:"sso" yaml:"sso"`

	Audit *AuditConfig `json:"audit" yaml:"audit"`

	Compliance *ComplianceConfig `json:"compliance" yaml:"compliance"`
}

// Log defines logger output settings.
type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// AuthConfig defines authentication-related configuration.
type AuthConfig struct {
	BcryptCost             int           `json:"bcryptCost" yaml:"bcryptCost"`
	MaxFailedAttempts      int           `json:"maxFailedAttempts" yaml:"maxFailedAttempts"`
	LockoutDuration        time.Duration `json:"lockoutDuration" yaml:"lockoutDuration"`
	AccessTokenTTL         time.Duration `json:"accessTokenTTL" yaml:"accessTokenTTL"`
	RefreshTokenTTL        time.Duration `json:"refreshTokenTTL" yaml:"refreshTokenTTL"`
	SessionTTL             time.Duration `json:"sessionTTL" yaml:"sessionTTL"`
	MaxActiveSessions      int           `json:"maxActiveSessions" yaml:"maxActiveSessions"`
	PasswordResetTokenTTL  time.Duration `json:"passwordResetTokenTTL" yaml:"passwordResetTokenTTL"`
	PasswordHistoryEnabled bool          `json:"passwordHistoryEnabled" yaml:"passwordHistoryEnabled"`
}

// PasswordStrengthConfig defines password strength requirements.
type PasswordStrengthConfig struct {
	MinLength        int      `json:"minLength" yaml:"minLength"`
	MaxLength        int      `json:"maxLength" yaml:"maxLength"`
	RequireUppercase bool     `json:"requireUppercase" yaml:"requireUppercase"`
	RequireLowercase bool     `json:"requireLowercase" yaml:"requireLowercase"`
	RequireNumbers   bool     `json:"requireNumbers" yaml:"requireNumbers"`
	RequireSpecial   bool     `json:"requireSpecial" yaml:"requireSpecial"`
	ForbiddenWords   []string `json:"forbiddenWords" yaml:"forbiddenWords"`
}

// MFAConfig defines TOTP enrollment settings.
type MFAConfig struct {
	Issuer string `json:"issuer" yaml:"issuer"`
	// LoginChallengeTTL bounds how long an MFA-gated login may wait for the
	// second factor.
	LoginChallengeTTL time.Duration `json:"loginChallengeTTL" yaml:"loginChallengeTTL"`
}

// BiometricConfig defines challenge handling for biometric authentication.
type BiometricConfig struct {
	ChallengeTTL time.Duration `json:"challengeTTL" yaml:"challengeTTL"`
}

// SSOProviderConfig defines one external identity provider.
type SSOProviderConfig struct {
	ClientID     string   `json:"clientId" yaml:"clientId"`
	ClientSecret string   `json:"clientSecret" yaml:"clientSecret"`
	RedirectURI  string   `json:"redirectUri" yaml:"redirectUri"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
	IsActive     bool     `json:"isActive" yaml:"isActive"`
}

// AuditConfig defines suspicious-activity detection thresholds.
type AuditConfig struct {
	FailedLoginThreshold     int           `json:"failedLoginThreshold" yaml:"failedLoginThreshold"`
	FailedLoginWindow        time.Duration `json:"failedLoginWindow" yaml:"failedLoginWindow"`
	PermissionDenyThreshold  int           `json:"permissionDenyThreshold" yaml:"permissionDenyThreshold"`
	PermissionDenyWindow     time.Duration `json:"permissionDenyWindow" yaml:"permissionDenyWindow"`
	BusinessHoursStart       int           `json:"businessHoursStart" yaml:"businessHoursStart"`
	BusinessHoursEnd         int           `json:"businessHoursEnd" yaml:"businessHoursEnd"`
	DefaultQueryLimit        int           `json:"defaultQueryLimit" yaml:"defaultQueryLimit"`
	MaxQueryLimit            int           `json:"maxQueryLimit" yaml:"maxQueryLimit"`
	ExportMaxEntries         int           `json:"exportMaxEntries" yaml:"exportMaxEntries"`
	IncidentSeverityEscalate bool          `json:"incidentSeverityEscalate" yaml:"incidentSeverityEscalate"`
}

// ComplianceConfig defines report generation settings.
type ComplianceConfig struct {
	ReportValidity     time.Duration `json:"reportValidity" yaml:"reportValidity"`
	DSRResponseDays    int           `json:"dsrResponseDays" yaml:"dsrResponseDays"`
	FinancialResources []string      `json:"financialResources" yaml:"financialResources"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

// applyDefaults fills unset policy knobs with the process-wide defaults the
// authentication core documents.
func applyDefaults(cfg *Config) {
	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.MaxFailedAttempts <= 0 {
		cfg.Auth.MaxFailedAttempts = 5
	}
	if cfg.Auth.LockoutDuration <= 0 {
		cfg.Auth.LockoutDuration = 30 * time.Minute
	}
	if cfg.Auth.AccessTokenTTL <= 0 {
		cfg.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.Auth.RefreshTokenTTL <= 0 {
		cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.Auth.PasswordResetTokenTTL <= 0 {
		cfg.Auth.PasswordResetTokenTTL = 30 * time.Minute
	}

	if cfg.Biometric == nil {
		cfg.Biometric = &BiometricConfig{}
	}
	if cfg.Biometric.ChallengeTTL <= 0 {
		cfg.Biometric.ChallengeTTL = 5 * time.Minute
	}

	if cfg.MFA == nil {
		cfg.MFA = &MFAConfig{}
	}
	if cfg.MFA.Issuer == "" {
		cfg.MFA.Issuer = cfg.Env.ServiceName
	}
	if cfg.MFA.LoginChallengeTTL <= 0 {
		cfg.MFA.LoginChallengeTTL = 5 * time.Minute
	}

	if cfg.Audit == nil {
		cfg.Audit = &AuditConfig{}
	}
	if cfg.Audit.FailedLoginThreshold <= 0 {
		cfg.Audit.FailedLoginThreshold = 5
	}
	if cfg.Audit.FailedLoginWindow <= 0 {
		cfg.Audit.FailedLoginWindow = 15 * time.Minute
	}
	if cfg.Audit.PermissionDenyThreshold <= 0 {
		cfg.Audit.PermissionDenyThreshold = 10
	}
	if cfg.Audit.PermissionDenyWindow <= 0 {
		cfg.Audit.PermissionDenyWindow = 10 * time.Minute
	}
	if cfg.Audit.BusinessHoursStart <= 0 {
		cfg.Audit.BusinessHoursStart = 6
	}
	if cfg.Audit.BusinessHoursEnd <= 0 {
		cfg.Audit.BusinessHoursEnd = 22
	}
	if cfg.Audit.DefaultQueryLimit <= 0 {
		cfg.Audit.DefaultQueryLimit = 50
	}
	if cfg.Audit.MaxQueryLimit <= 0 {
		cfg.Audit.MaxQueryLimit = 500
	}
	if cfg.Audit.ExportMaxEntries <= 0 {
		cfg.Audit.ExportMaxEntries = 10000
	}

	if cfg.Compliance == nil {
		cfg.Compliance = &ComplianceConfig{}
	}
	if cfg.Compliance.ReportValidity <= 0 {
		cfg.Compliance.ReportValidity = 365 * 24 * time.Hour
	}
	if cfg.Compliance.DSRResponseDays <= 0 {
		cfg.Compliance.DSRResponseDays = 30
	}
	if len(cfg.Compliance.FinancialResources) == 0 {
		cfg.Compliance.FinancialResources = []string{"payments", "invoices", "ledger"}
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
