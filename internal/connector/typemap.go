package connector

import "github.com/intellisql/intellisql/internal/core/types"

// RelationalTypeMapping is the fixed relational source->logical type table
// of spec.md §4.3 (VARCHAR -> string, BIGINT -> int64, TIMESTAMP ->
// timestamp, etc.), shared by the MySQL and PostgreSQL connectors.
var RelationalTypeMapping = TypeMapping{
	"VARCHAR":    types.String,
	"CHAR":       types.String,
	"TEXT":       types.String,
	"TINYTEXT":   types.String,
	"MEDIUMTEXT": types.String,
	"LONGTEXT":   types.String,
	"BOOLEAN":    types.Boolean,
	"BOOL":       types.Boolean,
	"TINYINT":    types.Int32,
	"SMALLINT":   types.Int32,
	"INT":        types.Int32,
	"INTEGER":    types.Int32,
	"MEDIUMINT":  types.Int32,
	"BIGINT":     types.Int64,
	"SERIAL":     types.Int64,
	"BIGSERIAL":  types.Int64,
	"FLOAT":      types.Float64,
	"DOUBLE":     types.Float64,
	"REAL":       types.Float64,
	"DOUBLE PRECISION": types.Float64,
	"DECIMAL":    types.Decimal,
	"NUMERIC":    types.Decimal,
	"DATE":       types.Date,
	"TIMESTAMP":  types.Timestamp,
	"DATETIME":   types.Timestamp,
	"TIMESTAMPTZ": types.Timestamp,
	"BLOB":       types.Binary,
	"BYTEA":      types.Binary,
	"VARBINARY":  types.Binary,
	"BINARY":     types.Binary,
	"JSON":       types.JSON,
	"JSONB":      types.JSON,
}

// DocumentIndexTypeMapping is the fixed search-index source->logical type
// table of spec.md §4.3 (keyword/text -> string, nested/object -> json).
var DocumentIndexTypeMapping = TypeMapping{
	"keyword":   types.String,
	"text":      types.String,
	"boolean":   types.Boolean,
	"byte":      types.Int32,
	"short":     types.Int32,
	"integer":   types.Int32,
	"long":      types.Int64,
	"float":     types.Float64,
	"double":    types.Float64,
	"scaled_float": types.Decimal,
	"date":      types.Timestamp,
	"binary":    types.Binary,
	"nested":    types.JSON,
	"object":    types.JSON,
	"array":     types.Array,
}
