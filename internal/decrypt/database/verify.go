package database

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sjzar/wx4dec/internal/errors"
)

// Verify opens a decrypted database file and runs SQLite's built-in
// integrity check. It does not interpret schema or content: a result
// other than "ok" only means the page stream the decrypt pipeline
// produced is not a well-formed SQLite file, not why.
func Verify(path string) error {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return errors.OpenFileFailed(path, err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return errors.CorruptInput("quick_check failed: " + err.Error())
	}
	if result != "ok" {
		return errors.CorruptInput("quick_check reported: " + result)
	}

	return nil
}
