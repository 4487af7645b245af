package driver

import (
	"net/url"
	"strings"
)

// parseDSN reads the URL shape spec.md §6 describes: scheme, host, port,
// logical database, and a property list. The driver only needs the
// catalog-resolution pieces out of it -- host names the default data
// source, path names the default schema -- since fetchSize/queryTimeout/
// etc. are Processor-level configuration set once at construction, not
// per-connection.
func parseDSN(dsn string) (defaultSource, defaultSchema string, err error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", "", err
	}
	defaultSource = u.Host
	defaultSchema = strings.TrimPrefix(u.Path, "/")
	return defaultSource, defaultSchema, nil
}
