package preprocessor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/mathutil"
)

// includeResolver locates the files named by -include and -include_lib.
type includeResolver struct {
	includeDirs []string
	codePaths   []string
	lookupEnv   func(string) (string, bool)
	readFile    func(string) ([]byte, error)
	glob        func(string) ([]string, error)
}

func newIncludeResolver(cfg Config) *includeResolver {
	ir := &includeResolver{
		includeDirs: cfg.IncludeDirs,
		codePaths:   cfg.CodePaths,
		lookupEnv:   cfg.LookupEnv,
		readFile:    cfg.ReadFile,
		glob:        cfg.Glob,
	}
	if ir.lookupEnv == nil {
		ir.lookupEnv = os.LookupEnv
	}
	if ir.readFile == nil {
		ir.readFile = readSourceFile
	}
	if ir.glob == nil {
		ir.glob = filepath.Glob
	}
	return ir
}

// readSourceFile reads a whole source file.
func readSourceFile(name string) ([]byte, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", name)
	}
	if fi.Size() > mathutil.MaxInt {
		return nil, fmt.Errorf("%s: file too big", name)
	}
	return os.ReadFile(name)
}

// substitutePathVariables replaces a leading "$NAME" path component with
// the value of the environment variable NAME.
func substitutePathVariables(path string, lookup func(string) (string, bool)) (string, error) {
	if !strings.HasPrefix(path, "$") {
		return path, nil
	}
	name, rest, _ := strings.Cut(path[1:], "/")
	if name == "" {
		return "", fmt.Errorf("empty path variable in %q", path)
	}
	val, ok := lookup(name)
	if !ok {
		return "", fmt.Errorf("undefined path variable $%s", name)
	}
	if rest == "" && !strings.HasSuffix(path, "/") {
		return val, nil
	}
	return filepath.Join(val, rest), nil
}

// resolveInclude finds an -include path.
func (ir *includeResolver) resolveInclude(lit, includer string) (string, []byte, error) {
	path, err := substitutePathVariables(lit, ir.lookupEnv)
	if err != nil {
		return "", nil, err
	}
	return ir.find(path, includer)
}

// find reads path. Absolute paths are used as is; relative ones are tried
// against the including file's directory, then each include directory,
// then the working directory.
func (ir *includeResolver) find(path, includer string) (string, []byte, error) {
	if filepath.IsAbs(path) {
		bs, err := ir.readFile(path)
		if err != nil {
			return "", nil, err
		}
		return filepath.Clean(path), bs, nil
	}

	var cands []string
	if includer != "" {
		cands = append(cands, filepath.Join(filepath.Dir(includer), path))
	}
	for _, dir := range ir.includeDirs {
		cands = append(cands, filepath.Join(dir, path))
	}
	cands = append(cands, path)

	for _, cand := range cands {
		bs, err := ir.readFile(cand)
		if err == nil {
			return filepath.Clean(cand), bs, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("cannot resolve include %q: %w", path, fs.ErrNotExist)
}

// resolveIncludeLib finds an -include_lib path. The first component names
// an application; the first "<app>-*" directory under the code paths
// replaces it. Without a match the path is resolved like -include.
func (ir *includeResolver) resolveIncludeLib(lit, includer string) (string, []byte, error) {
	path, err := substitutePathVariables(lit, ir.lookupEnv)
	if err != nil {
		return "", nil, err
	}
	app, rest, ok := strings.Cut(filepath.ToSlash(path), "/")
	if ok && app != "" && app != "." && app != ".." && !filepath.IsAbs(path) {
		for _, root := range ir.codePaths {
			matches, err := ir.glob(filepath.Join(root, app+"-*"))
			if err != nil {
				return "", nil, fmt.Errorf("invalid application name %q: %w", app, err)
			}
			if len(matches) == 0 {
				continue
			}
			resolved := filepath.Join(matches[0], filepath.FromSlash(rest))
			bs, err := ir.readFile(resolved)
			if err != nil {
				return "", nil, err
			}
			return resolved, bs, nil
		}
	}
	return ir.find(path, includer)
}
