package config

// NewCatalogForTest builds a Catalog without flag parsing
func NewCatalogForTest(path string) *Catalog {
	return &Catalog{path: path}
}

// NewRepositoryForTest builds a Repository without flag parsing
func NewRepositoryForTest(backend, dsn, projectID string) *Repository {
	return &Repository{
		backend:   backend,
		dsn:       dsn,
		projectID: projectID,
	}
}

// NewLoggerForTest builds a Logger without flag parsing
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}
