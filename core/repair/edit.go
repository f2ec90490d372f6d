package repair

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// lineEdit rewrites the 1-based line n. It reports whether the line changed.
type lineEdit func(n int, line string) (string, bool)

// editLines applies edit to every line of root/rel and writes the file back
// when something changed. Line endings and the trailing newline are kept.
func editLines(root, rel string, edit lineEdit) (bool, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return false, contract.NewError(contract.IoError, "stat", rel, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return false, contract.NewError(contract.IoError, "read", rel, err)
	}

	text := string(content)
	trailing := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")

	changed := false
	for i, line := range lines {
		body, cr := strings.CutSuffix(line, "\r")
		out, ok := edit(i+1, body)
		if !ok || out == body {
			continue
		}
		if cr {
			out += "\r"
		}
		lines[i] = out
		changed = true
	}
	if !changed {
		return false, nil
	}

	var buf bytes.Buffer
	buf.WriteString(strings.Join(lines, "\n"))
	if trailing {
		buf.WriteByte('\n')
	}
	if err := writeFileAtomic(abs, buf.Bytes(), info.Mode().Perm()); err != nil {
		return false, contract.NewError(contract.IoError, "write", rel, err)
	}
	return true, nil
}

// writeFileAtomic replaces path through a temporary file in the same directory.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".trae-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}

// issueLines collects the line numbers of issues, ignoring file-level ones.
func issueLines(issues []schema.Issue) map[int]bool {
	out := make(map[int]bool, len(issues))
	for _, is := range issues {
		if is.Line > 0 {
			out[is.Line] = true
		}
	}
	return out
}
