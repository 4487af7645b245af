package dialect

import (
	"github.com/intellisql/intellisql/internal/similartext"
	"github.com/intellisql/intellisql/internal/dialect/token"
)

// suggestKeyword renders a ", maybe you mean SELECT?" style suffix for an
// unrecognized token, reusing similartext's edit-distance suggestion logic
// against the reserved-word vocabulary instead of table/column names.
func suggestKeyword(got string) string {
	return similartext.Find(reservedWords(), got)
}

// suggestFromNames renders a ", maybe you mean X?" suffix against an
// arbitrary name list, used by the validator for unknown table names.
func suggestFromNames(names []string, got string) string {
	return similartext.Find(names, got)
}

var reservedWordList []string

func reservedWords() []string {
	if reservedWordList != nil {
		return reservedWordList
	}
	for t := token.Token(0); t < 256; t++ {
		if t.IsKeyword() {
			reservedWordList = append(reservedWordList, t.String())
		}
	}
	return reservedWordList
}
