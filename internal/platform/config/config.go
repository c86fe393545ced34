package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultRequestTimeout   = 20 * time.Second
	defaultMaxBodyBytes     = 64 * 1024
	defaultStoreName        = "Menu"
	defaultLocale           = "en"
	defaultCurrencyLabel    = "CUP"
	defaultHandoffBaseURL   = "https://wa.me"
	defaultHandoffPhone     = "55904070"
	defaultHandoffMode      = HandoffModeLink
	defaultPersistence      = PersistenceMemory
	defaultSessionHeader    = "X-Cart-Session"
	defaultSessionTTL       = 24 * time.Hour
	defaultSweepInterval    = 10 * time.Minute
	defaultMaxLineQuantity  = 99
	defaultCartCollection   = "menu_carts"
	defaultQueryTimeout     = 5 * time.Second
	defaultMaxOpenConns     = 10
	defaultOpeningTime      = "10:00"
	defaultClosingTime      = "22:00"
	defaultSlotInterval     = 15 * time.Minute
	defaultScheduledTime    = "12:00"
	defaultSecretsEnv       = "local"
	defaultSecretsFallback  = ".secrets.local"
	defaultHandoffTopicName = "menu-orders"
)

// Cart persistence backends.
const (
	PersistenceMemory    = "memory"
	PersistenceFirestore = "firestore"
)

// Hand-off dispatch modes.
const (
	HandoffModeLink   = "link"
	HandoffModePubSub = "pubsub"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Handoff   HandoffConfig
	Catalog   CatalogConfig
	Zones     ZonesConfig
	Cart      CartConfig
	Hours     HoursConfig
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	Secrets   SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// StoreConfig names the storefront and how amounts are shown.
type StoreConfig struct {
	Name          string
	Locale        language.Tag
	CurrencyLabel string
}

// HandoffConfig describes the messaging deep link orders are sent through.
type HandoffConfig struct {
	BaseURL string
	Phone   string
	Mode    string
}

// CatalogConfig points at the menu database.
type CatalogConfig struct {
	DatabaseURL  string
	MaxOpenConns int
	QueryTimeout time.Duration
}

// ZonesConfig optionally overrides the built-in delivery zone table.
type ZonesConfig struct {
	File string
}

// CartConfig controls session carts.
type CartConfig struct {
	Persistence     string
	SessionHeader   string
	SessionTTL      time.Duration
	SweepInterval   time.Duration
	MaxLineQuantity int
}

// HoursConfig bounds scheduled delivery times.
type HoursConfig struct {
	Opening       string
	Closing       string
	SlotInterval  time.Duration
	ScheduledTime string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID      string
	EmulatorHost   string
	CartCollection string
}

// PubSubConfig configures the optional order topic.
type PubSubConfig struct {
	ProjectID    string
	Topic        string
	EmulatorHost string
}

// SecretsConfig configures Secret Manager lookups.
type SecretsConfig struct {
	ProjectID    string
	Environment  string
	FallbackFile string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

func defaultOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the merged environment (dotenv < OS env < explicit map) so
// callers can build dependencies, such as the secret fetcher, before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultOptions(opts)
	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(dotEnv))
	for k, v := range dotEnv {
		values[k] = v
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

// Load assembles the application configuration from defaults, .env overrides,
// environment variables and secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions(opts)
	if options.secret == nil {
		options.secret = SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		})
	}

	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}

	var invalid []string

	localeRaw := stringWithDefault(lookup, "MENU_STORE_LOCALE", defaultLocale)
	locale, err := language.Parse(localeRaw)
	if err != nil {
		invalid = append(invalid, "Store.Locale")
		locale = language.English
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "MENU_SERVER_PORT", defaultPort),
			ReadTimeout:    durationWithDefault(lookup, "MENU_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "MENU_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "MENU_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "MENU_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			MaxBodyBytes:   int64(intWithDefault(lookup, "MENU_SERVER_MAX_BODY_BYTES", defaultMaxBodyBytes)),
		},
		Store: StoreConfig{
			Name:          stringWithDefault(lookup, "MENU_STORE_NAME", defaultStoreName),
			Locale:        locale,
			CurrencyLabel: stringWithDefault(lookup, "MENU_STORE_CURRENCY_LABEL", defaultCurrencyLabel),
		},
		Handoff: HandoffConfig{
			BaseURL: strings.TrimRight(stringWithDefault(lookup, "MENU_HANDOFF_BASE_URL", defaultHandoffBaseURL), "/"),
			Phone:   stringWithDefault(lookup, "MENU_HANDOFF_PHONE", defaultHandoffPhone),
			Mode:    strings.ToLower(stringWithDefault(lookup, "MENU_HANDOFF_MODE", defaultHandoffMode)),
		},
		Catalog: CatalogConfig{
			DatabaseURL:  stringWithDefault(lookup, "MENU_DATABASE_URL", stringWithDefault(lookup, "DATABASE_URL", "")),
			MaxOpenConns: intWithDefault(lookup, "MENU_DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
			QueryTimeout: durationWithDefault(lookup, "MENU_DATABASE_QUERY_TIMEOUT", defaultQueryTimeout),
		},
		Zones: ZonesConfig{
			File: stringWithDefault(lookup, "MENU_ZONES_FILE", ""),
		},
		Cart: CartConfig{
			Persistence:     strings.ToLower(stringWithDefault(lookup, "MENU_CART_PERSISTENCE", defaultPersistence)),
			SessionHeader:   stringWithDefault(lookup, "MENU_CART_SESSION_HEADER", defaultSessionHeader),
			SessionTTL:      durationWithDefault(lookup, "MENU_CART_SESSION_TTL", defaultSessionTTL),
			SweepInterval:   durationWithDefault(lookup, "MENU_CART_SWEEP_INTERVAL", defaultSweepInterval),
			MaxLineQuantity: intWithDefault(lookup, "MENU_CART_MAX_LINE_QUANTITY", defaultMaxLineQuantity),
		},
		Hours: HoursConfig{
			Opening:       stringWithDefault(lookup, "MENU_HOURS_OPENING", defaultOpeningTime),
			Closing:       stringWithDefault(lookup, "MENU_HOURS_CLOSING", defaultClosingTime),
			SlotInterval:  durationWithDefault(lookup, "MENU_HOURS_SLOT_INTERVAL", defaultSlotInterval),
			ScheduledTime: stringWithDefault(lookup, "MENU_HOURS_DEFAULT_TIME", defaultScheduledTime),
		},
		Firestore: FirestoreConfig{
			ProjectID:      stringWithDefault(lookup, "MENU_FIRESTORE_PROJECT_ID", stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")),
			EmulatorHost:   stringWithDefault(lookup, "MENU_FIRESTORE_EMULATOR_HOST", ""),
			CartCollection: stringWithDefault(lookup, "MENU_FIRESTORE_CART_COLLECTION", defaultCartCollection),
		},
		PubSub: PubSubConfig{
			ProjectID:    stringWithDefault(lookup, "MENU_PUBSUB_PROJECT_ID", ""),
			Topic:        stringWithDefault(lookup, "MENU_PUBSUB_TOPIC", defaultHandoffTopicName),
			EmulatorHost: stringWithDefault(lookup, "MENU_PUBSUB_EMULATOR_HOST", ""),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "MENU_SECRETS_PROJECT_ID", ""),
			Environment:  strings.ToLower(stringWithDefault(lookup, "MENU_SECRETS_ENVIRONMENT", defaultSecretsEnv)),
			FallbackFile: stringWithDefault(lookup, "MENU_SECRETS_FALLBACK_FILE", defaultSecretsFallback),
		},
	}

	// Pub/Sub and Secret Manager default to the Firestore project.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Secrets.ProjectID == "" {
		cfg.Secrets.ProjectID = cfg.Firestore.ProjectID
	}

	resolved, err := resolveSecret(ctx, cfg.Catalog.DatabaseURL, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Catalog.DatabaseURL = resolved

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

func validateConfig(cfg Config, invalid []string) error {
	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		invalid = append(invalid, "Server.MaxBodyBytes")
	}
	if u, err := url.Parse(cfg.Handoff.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid = append(invalid, "Handoff.BaseURL")
	}
	if !isDigits(cfg.Handoff.Phone) {
		invalid = append(invalid, "Handoff.Phone")
	}
	switch cfg.Handoff.Mode {
	case HandoffModeLink:
	case HandoffModePubSub:
		if cfg.PubSub.ProjectID == "" {
			invalid = append(invalid, "PubSub.ProjectID")
		}
		if strings.TrimSpace(cfg.PubSub.Topic) == "" {
			invalid = append(invalid, "PubSub.Topic")
		}
	default:
		invalid = append(invalid, "Handoff.Mode")
	}
	switch cfg.Cart.Persistence {
	case PersistenceMemory:
	case PersistenceFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
		if strings.TrimSpace(cfg.Firestore.CartCollection) == "" {
			invalid = append(invalid, "Firestore.CartCollection")
		}
	default:
		invalid = append(invalid, "Cart.Persistence")
	}
	if strings.TrimSpace(cfg.Cart.SessionHeader) == "" {
		invalid = append(invalid, "Cart.SessionHeader")
	}
	if cfg.Cart.MaxLineQuantity <= 0 {
		invalid = append(invalid, "Cart.MaxLineQuantity")
	}
	opening, openErr := ParseClock(cfg.Hours.Opening)
	closing, closeErr := ParseClock(cfg.Hours.Closing)
	if openErr != nil {
		invalid = append(invalid, "Hours.Opening")
	}
	if closeErr != nil {
		invalid = append(invalid, "Hours.Closing")
	}
	if openErr == nil && closeErr == nil && closing <= opening {
		invalid = append(invalid, "Hours.Closing")
	}
	if cfg.Hours.SlotInterval <= 0 || cfg.Hours.SlotInterval%time.Minute != 0 {
		invalid = append(invalid, "Hours.SlotInterval")
	}
	if _, err := ParseClock(cfg.Hours.ScheduledTime); err != nil {
		invalid = append(invalid, "Hours.ScheduledTime")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

// ParseClock parses a 24-hour "HH:MM" string into minutes after midnight.
func ParseClock(value string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("config: invalid clock %q", value)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("config: invalid hour in %q", value)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("config: invalid minute in %q", value)
	}
	return h*60 + m, nil
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
