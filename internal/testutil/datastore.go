package testutil

import (
	"fmt"
	"path/filepath"
)

// NewTestDSN generates a DSN for an in-memory SQLite database for testing purposes.
func NewTestDSN(testName string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", testName)
}

// NewTestFileDSN generates a DSN for an on-disk SQLite database inside dir.
func NewTestFileDSN(dir, testName string) string {
	return "file:" + filepath.Join(dir, testName+".db")
}
