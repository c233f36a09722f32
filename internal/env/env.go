package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvironmentVariables loads the .env file or crashes the program with an error
//
// A missing .env file is fine, as the variables may already be set by the
// environment the program runs in.
func LoadEnvironmentVariables() {
	if err := Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, ".env error: %s\n", err)
		os.Exit(1)
	}
}

// Load loads variables from the given files, skipping files that do not exist.
func Load(filenames ...string) error {
	for _, filename := range filenames {
		if err := godotenv.Load(filename); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return err
		}
	}

	return nil
}
