package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads $ENV_FILE when set, else every .env between the working
// directory and the project root, nearest first. Variables already in the
// environment win unless DOTENV_OVERLOAD=1. NO_DOTENV=1 disables loading.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	load := godotenv.Load
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = load(envFile)
		return
	}
	for _, p := range dotenvFiles() {
		_ = load(p)
	}
}

// dotenvFiles lists the existing .env files from the working directory up to
// the project root. A pinned $BITFROST_ROOT is searched last.
func dotenvFiles() []string {
	var files []string
	add := func(dir string) {
		p := filepath.Join(dir, ".env")
		if !exists(p) {
			return
		}
		for _, f := range files {
			if f == p {
				return
			}
		}
		files = append(files, p)
	}

	if wd, err := os.Getwd(); err == nil {
		walkUp(wd, func(dir string) bool {
			add(dir)
			return isModuleRoot(dir)
		})
	}
	if root := os.Getenv(RootEnv); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			add(abs)
		}
	}
	return files
}
