package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellisql/intellisql/internal/catalog"
)

func TestParseAppliesDefaults(t *testing.T) {
	doc := `
dataSources:
  main:
    type: MYSQL
    url: "tcp(localhost:3306)/app"
    username: app
    password: secret
props:
  logLevel: DEBUG
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	ds := cfg.DataSources["main"]
	require.Equal(t, 20, ds.MaximumPoolSize)
	require.Equal(t, 5, ds.MinimumIdle)
	require.Equal(t, 30000, ds.ConnectionTimeoutMillis)
	require.Equal(t, 3, ds.HealthCheckFailureThreshold)

	require.EqualValues(t, 100000, cfg.Props.MaxIntermediateRows)
	require.Equal(t, 300, cfg.Props.QueryTimeoutSeconds)
	require.Equal(t, 1000, cfg.Props.DefaultFetchSize)
	require.Equal(t, "DEBUG", cfg.Props.LogLevel)
}

func TestParseSubstitutesEnvVar(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")
	doc := `
dataSources:
  main:
    type: POSTGRESQL
    url: "postgres://localhost/app"
    password: ${DB_PASSWORD}
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "hunter2", cfg.DataSources["main"].Password)
}

func TestParseMissingEnvVarFailsStartup(t *testing.T) {
	doc := `
dataSources:
  main:
    type: MYSQL
    url: "tcp(localhost:3306)/app"
    password: ${DEFINITELY_NOT_SET_12345}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "DEFINITELY_NOT_SET_12345")
}

func TestParseRejectsUnsupportedSourceType(t *testing.T) {
	doc := `
dataSources:
  main:
    type: MONGODB
    url: "mongodb://localhost/app"
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported type")
}

func TestParseRejectsMinimumIdleAboveMaximumPoolSize(t *testing.T) {
	doc := `
dataSources:
  main:
    type: MYSQL
    url: "tcp(localhost:3306)/app"
    maximumPoolSize: 5
    minimumIdle: 10
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "minimumIdle")
}

func TestParseCollectsAllValidationErrors(t *testing.T) {
	doc := `
dataSources:
  main:
    type: BOGUS
    maximumPoolSize: -1
props:
  logLevel: VERBOSE
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported type")
	require.Contains(t, err.Error(), "url is required")
	require.Contains(t, err.Error(), "maximumPoolSize must be positive")
	require.Contains(t, err.Error(), "unsupported level")
}

func TestBuildSourcesConvertsToCatalogSources(t *testing.T) {
	doc := `
dataSources:
  main:
    type: ELASTIC_SEARCH
    url: "http://localhost:9200"
    maximumPoolSize: 10
    minimumIdle: 2
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	sources := cfg.BuildSources()
	src, ok := sources["main"]
	require.True(t, ok)
	require.Equal(t, catalog.KindDocumentIndex, src.Kind)
	require.Equal(t, 10, src.Config.MaximumPoolSize)
	require.Equal(t, catalog.Healthy, src.Health())
}
