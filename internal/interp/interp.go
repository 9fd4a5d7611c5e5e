// Package interp runs uldb requests written in the line-oriented query
// syntax, for example:
//
//	open(school)
//	create_table(courses, CODE=INTEGER, NAME=STRING)
//	insert_to(courses, CODE=1, NAME="Maths")
//	from_if_get(courses, CODE=1, *)
//	from_update_where(courses, CODE=1, NAME="Algebra")
//	from_delete_where(courses, CODE=1)
package interp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MikhailWahib/uldb"
)

// DB is the part of *uldb.DB the interpreter drives.
type DB interface {
	CreateTable(name string, fields ...uldb.Field) error
	DeleteTable(name string) error
	ListTables() ([]string, error)
	Schema(name string) (uldb.Signature, error)
	Insert(name string, row uldb.Row) (int32, error)
	ReadAll(name string) ([]uldb.Row, error)
	SelectMany(name string, selected []string, field string, value uldb.Value) ([][]uldb.Value, error)
	Update(name, condField string, condValue uldb.Value, target string, newValue uldb.Value) (bool, error)
	Delete(name, field string, value uldb.Value) (bool, error)
	Size(name string) (int, error)
	Close() error
}

// OpenFunc opens the database directory named by a request.
type OpenFunc func(path string) (DB, error)

var (
	// ErrNoDatabase is returned by table requests before open().
	ErrNoDatabase = errors.New("no database open")
	// ErrAlreadyOpen is returned by a second open().
	ErrAlreadyOpen = errors.New("a database is already open")
	// ErrUnknownCommand is returned for an unknown request name.
	ErrUnknownCommand = errors.New("unknown command")
)

// Result is the output of one request. Columns is empty for requests that
// only report a message.
type Result struct {
	Columns []string
	Rows    [][]string
	Message string
}

// Interpreter executes requests against at most one open database.
type Interpreter struct {
	open   OpenFunc
	db     DB
	logger *slog.Logger

	commands map[string]command
}

type command struct {
	minArgs int
	maxArgs int // -1 for variadic
	run     func(args []string) (*Result, error)
}

// New returns an interpreter that opens databases with open.
func New(open OpenFunc, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Interpreter{open: open, logger: logger}
	in.commands = map[string]command{
		"open":              {1, 1, in.openDB},
		"create_table":      {2, -1, in.createTable},
		"delete_table":      {1, 1, in.deleteTable},
		"list_tables":       {0, 0, in.listTables},
		"insert_to":         {1, -1, in.insertTo},
		"from_if_get":       {3, -1, in.fromIfGet},
		"from_delete_where": {2, 2, in.fromDeleteWhere},
		"from_update_where": {3, 3, in.fromUpdateWhere},
		"get_all":           {1, 1, in.getAll},
		"table_size":        {1, 1, in.tableSize},
		"get_schema":        {1, 1, in.getSchema},
	}
	return in
}

// Use sets an already open database.
func (in *Interpreter) Use(db DB) {
	in.db = db
}

// Close closes the open database, if any.
func (in *Interpreter) Close() error {
	if in.db == nil {
		return nil
	}
	err := in.db.Close()
	in.db = nil
	return err
}

// Skip reports whether line holds no request: blank or a # comment.
func Skip(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.HasPrefix(line, "#")
}

// Exec parses and runs a single request line.
func (in *Interpreter) Exec(line string) (*Result, error) {
	req, err := Parse(line)
	if err != nil {
		return nil, err
	}
	cmd, ok := in.commands[req.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, req.Name)
	}
	if len(req.Args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(req.Args) > cmd.maxArgs) {
		return nil, fmt.Errorf("%w: %s takes %s", ErrSyntax, req.Name, arity(cmd))
	}
	if req.Name != "open" && in.db == nil {
		return nil, ErrNoDatabase
	}
	in.logger.Debug("exec", "cmd", req.Name, "args", req.Args)
	return cmd.run(req.Args)
}

func arity(c command) string {
	switch {
	case c.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", c.minArgs)
	case c.minArgs == c.maxArgs:
		return fmt.Sprintf("%d arguments", c.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", c.minArgs, c.maxArgs)
}

// MaxLineSize is the longest request line NewScanner accepts. It leaves room
// for several maximum-length string literals written with escapes.
const MaxLineSize = 16 << 20

// NewScanner returns a line scanner over r that accepts lines up to
// MaxLineSize bytes.
func NewScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return sc
}

// RunScript executes every request read from r, passing each result to
// emit. It stops at the first error, reported with its line number.
func (in *Interpreter) RunScript(ctx context.Context, r io.Reader, emit func(*Result)) error {
	sc := NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		if Skip(line) {
			continue
		}
		res, err := in.Exec(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if res != nil {
			emit(res)
		}
	}
	return sc.Err()
}

func (in *Interpreter) openDB(args []string) (*Result, error) {
	if in.db != nil {
		return nil, ErrAlreadyOpen
	}
	db, err := in.open(args[0])
	if err != nil {
		return nil, err
	}
	in.db = db
	return &Result{Message: "opened " + args[0]}, nil
}

func (in *Interpreter) createTable(args []string) (*Result, error) {
	fields := make([]uldb.Field, 0, len(args)-1)
	for _, a := range args[1:] {
		f, err := ParseFieldDecl(a)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if err := in.db.CreateTable(args[0], fields...); err != nil {
		return nil, err
	}
	return &Result{Message: "created table " + args[0]}, nil
}

func (in *Interpreter) deleteTable(args []string) (*Result, error) {
	if err := in.db.DeleteTable(args[0]); err != nil {
		return nil, err
	}
	return &Result{Message: "deleted table " + args[0]}, nil
}

func (in *Interpreter) listTables(_ []string) (*Result, error) {
	names, err := in.db.ListTables()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: []string{"table"}}
	for _, n := range names {
		res.Rows = append(res.Rows, []string{n})
	}
	return res, nil
}

func (in *Interpreter) insertTo(args []string) (*Result, error) {
	row := make(uldb.Row, len(args)-1)
	for _, a := range args[1:] {
		name, v, err := ParseAssignment(a)
		if err != nil {
			return nil, err
		}
		if _, dup := row[name]; dup {
			return nil, fmt.Errorf("%w: field %s given twice", ErrSyntax, name)
		}
		row[name] = v
	}
	id, err := in.db.Insert(args[0], row)
	if err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("inserted id %d", id)}, nil
}

// fromIfGet selects fields of every matching row. A * argument stands for
// every schema field.
func (in *Interpreter) fromIfGet(args []string) (*Result, error) {
	name := args[0]
	field, value, err := ParseAssignment(args[1])
	if err != nil {
		return nil, err
	}
	selected := args[2:]
	for _, s := range selected {
		if s == "*" {
			sig, err := in.db.Schema(name)
			if err != nil {
				return nil, err
			}
			selected = sig.Names()
			break
		}
	}
	res, err := in.db.SelectMany(name, selected, field, value)
	if err != nil {
		return nil, err
	}
	return table(selected, res), nil
}

func (in *Interpreter) fromDeleteWhere(args []string) (*Result, error) {
	field, value, err := ParseAssignment(args[1])
	if err != nil {
		return nil, err
	}
	matched, err := in.db.Delete(args[0], field, value)
	if err != nil {
		return nil, err
	}
	return &Result{Message: matchMessage(matched, "deleted")}, nil
}

func (in *Interpreter) fromUpdateWhere(args []string) (*Result, error) {
	field, value, err := ParseAssignment(args[1])
	if err != nil {
		return nil, err
	}
	target, newValue, err := ParseAssignment(args[2])
	if err != nil {
		return nil, err
	}
	matched, err := in.db.Update(args[0], field, value, target, newValue)
	if err != nil {
		return nil, err
	}
	return &Result{Message: matchMessage(matched, "updated")}, nil
}

func (in *Interpreter) getAll(args []string) (*Result, error) {
	sig, err := in.db.Schema(args[0])
	if err != nil {
		return nil, err
	}
	rows, err := in.db.ReadAll(args[0])
	if err != nil {
		return nil, err
	}
	cols := append([]string{"id"}, sig.Names()...)
	vals := make([][]uldb.Value, len(rows))
	for i, r := range rows {
		vals[i] = make([]uldb.Value, len(cols))
		for j, c := range cols {
			vals[i][j] = r[c]
		}
	}
	return table(cols, vals), nil
}

func (in *Interpreter) tableSize(args []string) (*Result, error) {
	n, err := in.db.Size(args[0])
	if err != nil {
		return nil, err
	}
	return &Result{Message: strconv.Itoa(n)}, nil
}

func (in *Interpreter) getSchema(args []string) (*Result, error) {
	sig, err := in.db.Schema(args[0])
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: []string{"field", "type"}}
	for _, f := range sig {
		res.Rows = append(res.Rows, []string{f.Name, f.Type.String()})
	}
	return res, nil
}

func table(cols []string, vals [][]uldb.Value) *Result {
	res := &Result{Columns: cols, Rows: make([][]string, 0, len(vals))}
	for _, row := range vals {
		out := make([]string, len(row))
		for i, v := range row {
			out[i] = v.String()
		}
		res.Rows = append(res.Rows, out)
	}
	return res
}

func matchMessage(matched bool, verb string) string {
	if matched {
		return verb
	}
	return "no match"
}
