package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrMountPath is returned when a scan root is empty, missing or not a directory
var ErrMountPath = errors.New("invalid mount path")

var (
	bareDriveLetter = regexp.MustCompile(`^[A-Za-z]:$`)
	driveLetterPath = regexp.MustCompile(`^[A-Za-z]:[\\/]`)
)

// IsWindowsStyle reports whether p is a drive-letter or UNC path
func IsWindowsStyle(p string) bool {
	return bareDriveLetter.MatchString(p) || driveLetterPath.MatchString(p) ||
		strings.HasPrefix(p, `\\`) || strings.HasPrefix(p, "//")
}

// NormalizeMountPath turns user input into a scan root.
// A bare drive letter such as "E:" names the process's current directory on
// that drive, so it is rewritten to the drive root "E:\".
func NormalizeMountPath(input string) (string, error) {
	p := strings.TrimSpace(input)
	p = strings.Trim(p, `"'`)
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrMountPath)
	}

	switch {
	case bareDriveLetter.MatchString(p):
		return p + `\`, nil

	case driveLetterPath.MatchString(p):
		p = strings.ReplaceAll(p, "/", `\`)
		p = collapse(p, `\`)
		if len(p) > 3 {
			p = strings.TrimRight(p, `\`)
		}
		return p, nil

	case strings.HasPrefix(p, `\\`) || strings.HasPrefix(p, "//"):
		rest := strings.Trim(strings.ReplaceAll(p, "/", `\`), `\`)
		parts := strings.FieldsFunc(rest, func(r rune) bool { return r == '\\' })
		if len(parts) < 2 {
			return "", fmt.Errorf("%w: UNC path needs a server and a share: %s", ErrMountPath, input)
		}
		return `\\` + strings.Join(parts, `\`), nil
	}

	return filepath.Clean(p), nil
}

func collapse(p, sep string) string {
	double := sep + sep
	for strings.Contains(p, double) {
		p = strings.ReplaceAll(p, double, sep)
	}
	return p
}

// ValidateRoot checks that root exists and is a readable directory
func ValidateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s does not exist or is not mounted", ErrMountPath, root)
		}
		return fmt.Errorf("%w: cannot access %s: %v", ErrMountPath, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrMountPath, root)
	}

	f, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("%w: cannot read %s: %v", ErrMountPath, root, err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: cannot list %s: %v", ErrMountPath, root, err)
	}
	return nil
}
