package memory

import "errors"

var errUnsavedReference = errors.New("loan references a student or book that is not stored")
