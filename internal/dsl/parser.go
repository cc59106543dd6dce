// Package dsl parses declarative entity definitions and registers them as
// dynamic entity types.
package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	entityRe = regexp.MustCompile(`^entity\s+(\w+)\s*:(.*)$`)
	fieldRe  = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	enumRe   = regexp.MustCompile(`^enum\[(.*)\]$`)
	refRe    = regexp.MustCompile(`^ref\[([A-Za-z0-9_.]+)\]$`)
	arrayRe  = regexp.MustCompile(`^array\[(.+)\]$`)
	moduleRe = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
)

// splitOptionTokens splits `k=v k2='v 2'` on blanks outside quotes and
// brackets.
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// parseOptions turns the tail of a line into lower-cased keys. A bare
// token is a flag with value "true".
func parseOptions(raw string) map[string]string {
	opts := map[string]string{}
	raw = stripComment(raw)
	if strings.HasPrefix(strings.ToLower(raw), "options:") {
		raw = strings.TrimSpace(raw[len("options:"):])
	}
	for _, tok := range splitOptionTokens(raw) {
		tok = strings.Trim(strings.TrimSpace(tok), ",")
		if tok == "" {
			continue
		}
		if !strings.Contains(tok, "=") {
			opts[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if len(v) >= 2 {
			if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
				v = v[1 : len(v)-1]
			}
		}
		if k != "" {
			opts[k] = v
		}
	}
	return opts
}

// stripComment cuts a trailing # comment that is not inside quotes.
func stripComment(s string) string {
	inSingle, inDouble := false, false
	for i, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return strings.TrimSpace(s)
}

func splitEnum(inside string) []string {
	var out []string
	for _, p := range strings.Split(inside, ",") {
		if s := strings.Trim(strings.TrimSpace(p), `"'`); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// joinBracketed glues a type such as `enum[A,` `B]` that the field regexp
// cut at a blank.
func joinBracketed(rawType, tail string) (string, string) {
	open := strings.Count(rawType, "[") - strings.Count(rawType, "]")
	for open > 0 {
		idx := strings.Index(tail, "]")
		if idx < 0 {
			break
		}
		rawType += tail[:idx+1]
		tail = tail[idx+1:]
		open = strings.Count(rawType, "[") - strings.Count(rawType, "]")
	}
	return strings.TrimSpace(rawType), tail
}

func parseField(name, rawType, tail string, line int) Field {
	rawType, tail = joinBracketed(rawType, tail)
	f := Field{Name: name, Type: strings.ToLower(rawType), Options: parseOptions(tail), Line: line}
	if mm := enumRe.FindStringSubmatch(rawType); mm != nil {
		f.Type = "enum"
		f.Enum = splitEnum(mm[1])
	} else if mm := refRe.FindStringSubmatch(rawType); mm != nil {
		f.Type = "ref"
		f.RefTarget = mm[1]
	} else if mm := arrayRe.FindStringSubmatch(rawType); mm != nil {
		f.Type = "array"
		elem := mm[1]
		f.ElemType = strings.ToLower(elem)
		if em := enumRe.FindStringSubmatch(elem); em != nil {
			f.ElemType = "enum"
			f.Enum = splitEnum(em[1])
		}
		if rm := refRe.FindStringSubmatch(elem); rm != nil {
			f.ElemType = "ref"
			f.RefTarget = rm[1]
		}
	}
	return f
}

// Parse reads entity blocks from r. name labels the Source of each block.
func Parse(r io.Reader, name string) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	currentModule := ""

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}
		if m := entityRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{
				Module:  currentModule,
				Name:    m[1],
				Options: parseOptions(m[2]),
				Source:  fmt.Sprintf("%s:%d", name, lineNo),
			}
			continue
		}
		if current == nil {
			return nil, errors.Errorf("%s:%d: field outside of an entity block", name, lineNo)
		}
		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.Errorf("%s:%d: cannot parse %q", name, lineNo, line)
		}
		current.Fields = append(current.Fields, parseField(m[1], m[2], m[3], lineNo))
	}
	if current != nil {
		entities = append(entities, current)
	}
	return entities, errors.Wrapf(scanner.Err(), "read %s", name)
}

// LoadFile parses one .dsl file.
func LoadFile(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dsl")
	}
	defer file.Close()
	return Parse(file, path)
}

// LoadDir parses every .dsl file under root in lexical walk order.
func LoadDir(root string) ([]*Entity, error) {
	var out []*Entity
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}
		ents, err := LoadFile(path)
		if err != nil {
			return err
		}
		out = append(out, ents...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
