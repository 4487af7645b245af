package connector

import "io"

// errEOF is returned by every Iterator.Next once exhausted, matching the
// stdlib io.EOF convention the driver/rowexec layers already check for.
var errEOF = io.EOF
