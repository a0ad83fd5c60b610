package confkit

import (
	"fmt"
	"os"
	"path/filepath"
)

// RootEnv names the variable that pins the project root. Deployed binaries run
// outside the source tree and set it to the directory holding etc/.
const RootEnv = "BITFROST_ROOT"

const maxWalkDepth = 8

// ProjectRoot returns $BITFROST_ROOT when set. Otherwise it walks up from the
// working directory to the first directory with a go.mod or .git, and settles
// for the working directory itself when there is none.
func ProjectRoot() (string, error) {
	if root := os.Getenv(RootEnv); root != "" {
		return filepath.Abs(root)
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("confkit: getwd: %w", err)
	}
	root := wd
	walkUp(wd, func(dir string) bool {
		if isModuleRoot(dir) {
			root = dir
			return true
		}
		return false
	})
	return root, nil
}

// EtcPath returns the path of name under the project's etc/ directory.
func EtcPath(name string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "etc", name), nil
}

// MustEtcPath is EtcPath that panics on error.
func MustEtcPath(name string) string {
	p, err := EtcPath(name)
	if err != nil {
		panic(err)
	}
	return p
}

// walkUp calls visit on dir and its parents until visit returns true, the
// filesystem root is reached, or maxWalkDepth levels were seen.
func walkUp(dir string, visit func(dir string) bool) {
	for i := 0; i < maxWalkDepth; i++ {
		if visit(dir) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func isModuleRoot(dir string) bool {
	return exists(filepath.Join(dir, "go.mod")) || exists(filepath.Join(dir, ".git"))
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
