package str

import "github.com/pavanmanishd/arena/v2"

func isSep(c byte) bool { return c == '/' || c == '\\' }

func lastSep(b []byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if isSep(b[i]) {
			return i
		}
	}
	return -1
}

// File returns the part of s after the last '/' or '\', or all of s if it has
// no separator.
func (s String) File(a *arena.Arena) String {
	i := lastSep(s.b)
	return FromBytes(a, s.b[i+1:])
}

// Directory returns the part of s before the last '/' or '\'. A string with no
// separator is returned whole.
func (s String) Directory(a *arena.Arena) String {
	i := lastSep(s.b)
	if i < 0 {
		return s.Duplicate(a)
	}
	return FromBytes(a, s.b[:i])
}

// Extension returns the file extension including its dot: the file name from
// its first '.' on. A leading dot marks a hidden file, not an extension, so
// ".gitignore" has none and ".config.yaml" has ".yaml".
func (s String) Extension(a *arena.Arena) String {
	file := s.b[lastSep(s.b)+1:]
	for i := 1; i < len(file); i++ {
		if file[i] == '.' {
			return FromBytes(a, file[i:])
		}
	}
	return String{}
}

// IsAbsolute reports whether s is an absolute path or a URI. It accepts
// POSIX roots ("/usr"), home paths ("~/notes"), Windows drives ("C:\", "d:/")
// and URI schemes ("file://", "s3://").
func (s String) IsAbsolute() bool {
	switch {
	case s.HasPrefix("/"), s.HasPrefix("~/"):
		return true
	case s.HasPrefix("./"), s.HasPrefix("../"), s.HasPrefix(`.\`), s.HasPrefix(`..\`):
		return false
	}
	// a drive letter or a scheme, then ":/" or ":\"
	i := 0
	for i < len(s.b) && isSchemeByte(s.b[i], i == 0) {
		i++
	}
	return i > 0 && i+1 < len(s.b) && s.b[i] == ':' && isSep(s.b[i+1])
}

func isSchemeByte(c byte, first bool) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '+', c == '-', c == '.':
		return !first
	}
	return false
}
