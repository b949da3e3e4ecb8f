package req

// Settings tunes the service. Zero fields fall back to DefaultSettings.
type Settings struct {
	DefaultImpactDepth int
	MaxImpactDepth     int
	LayoutWorkers      int
	EncryptArchives    bool
	Schema             SchemaValidator
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		DefaultImpactDepth: 5,
		MaxImpactDepth:     20,
		LayoutWorkers:      4,
		Schema:             RequiredAttributesValidator{},
	}
}

// Service is the orchestration layer over the store. It owns the mutation
// pipeline (validation, triggers, fingerprints, history, levels, suspect
// flags) and the read-side engines built on it.
type Service struct {
	database  Database
	engine    ScriptEngine
	vault     Vault
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	settings  Settings
}

// NewService creates a new Service with the provided dependencies.
// vault and encryptor may be nil when archives are not used.
func NewService(database Database, engine ScriptEngine, vault Vault, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator, settings Settings) *Service {
	defaults := DefaultSettings()
	if settings.DefaultImpactDepth <= 0 {
		settings.DefaultImpactDepth = defaults.DefaultImpactDepth
	}
	if settings.MaxImpactDepth <= 0 {
		settings.MaxImpactDepth = defaults.MaxImpactDepth
	}
	if settings.LayoutWorkers <= 0 {
		settings.LayoutWorkers = defaults.LayoutWorkers
	}
	if settings.Schema == nil {
		settings.Schema = defaults.Schema
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Service{
		database:  database,
		engine:    engine,
		vault:     vault,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		settings:  settings,
	}
}
