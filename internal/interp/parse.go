package interp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MikhailWahib/uldb"
	"github.com/MikhailWahib/uldb/internal/schema"
)

// ErrSyntax is returned for requests that cannot be parsed.
var ErrSyntax = errors.New("syntax error")

// Request is a parsed command line: name(arg, arg, ...).
type Request struct {
	Name string
	Args []string
}

// Parse splits a request line into its command name and raw arguments.
// Commas inside double quotes do not split arguments. Arguments keep their
// quotes; use ParseValue or ParseAssignment to interpret them.
func Parse(line string) (Request, error) {
	line = strings.TrimSpace(line)
	open := strings.IndexByte(line, '(')
	if open <= 0 || !strings.HasSuffix(line, ")") {
		return Request{}, fmt.Errorf("%w: expected name(args) in %q", ErrSyntax, line)
	}
	name := strings.TrimSpace(line[:open])
	args, err := splitArgs(line[open+1 : len(line)-1])
	if err != nil {
		return Request{}, err
	}
	return Request{Name: name, Args: args}, nil
}

// splitArgs splits s on commas outside double quotes and trims each part.
// An empty or blank s yields no arguments.
func splitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated string", ErrSyntax)
	}
	args = append(args, strings.TrimSpace(cur.String()))
	for _, a := range args {
		if a == "" {
			return nil, fmt.Errorf("%w: empty argument", ErrSyntax)
		}
	}
	return args, nil
}

// ParseValue reads a literal: a double-quoted string or a 32-bit integer.
func ParseValue(s string) (uldb.Value, error) {
	if strings.HasPrefix(s, `"`) {
		str, err := strconv.Unquote(s)
		if err != nil {
			return uldb.Value{}, fmt.Errorf("%w: bad string literal %s", ErrSyntax, s)
		}
		return uldb.Str(str), nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return uldb.Value{}, fmt.Errorf("%w: %s does not fit in 32 bits", uldb.ErrSchemaViolation, s)
		}
		return uldb.Value{}, fmt.Errorf("%w: wrong field value format %q", ErrSyntax, s)
	}
	return uldb.Int(int32(n)), nil
}

// ParseAssignment splits NAME=literal into the field name and its value.
func ParseAssignment(s string) (string, uldb.Value, error) {
	name, lit, err := splitAssignment(s)
	if err != nil {
		return "", uldb.Value{}, err
	}
	v, err := ParseValue(lit)
	if err != nil {
		return "", uldb.Value{}, fmt.Errorf("field %s: %w", name, err)
	}
	return name, v, nil
}

// ParseFieldDecl splits NAME=TYPE into a field declaration.
func ParseFieldDecl(s string) (uldb.Field, error) {
	name, typ, err := splitAssignment(s)
	if err != nil {
		return uldb.Field{}, err
	}
	ft, err := schema.ParseFieldType(typ)
	if err != nil {
		return uldb.Field{}, fmt.Errorf("field %s: %w", name, err)
	}
	return uldb.Field{Name: name, Type: ft}, nil
}

func splitAssignment(s string) (string, string, error) {
	name, rest, ok := strings.Cut(s, "=")
	name, rest = strings.TrimSpace(name), strings.TrimSpace(rest)
	if !ok || name == "" || rest == "" {
		return "", "", fmt.Errorf("%w: expected NAME=value, got %q", ErrSyntax, s)
	}
	return name, rest, nil
}
