package stateio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// All code interacting with files is here.

// header of a saved fact table.  The column names and their order are part of
// the output contract; the CGE build step keys on them.
var factHeader = []string{"row", "col", "region", "year", "parameter", "value"}

const (
	defaultSep         = ','
	defaultEOL         = '\n'
	defaultFloatFormat = "%.10g"
)

// Files reads and writes fact tables and raw source extracts as delimited
// text.
type Files struct {
	sep         byte
	eol         byte
	floatFormat string
	header      bool
}

type FileOpt func(*Files)

func FileSep(sep byte) FileOpt {
	return func(f *Files) { f.sep = sep }
}

func FileFloatFormat(format string) FileOpt {
	return func(f *Files) { f.floatFormat = format }
}

func FileHeader(header bool) FileOpt {
	return func(f *Files) { f.header = header }
}

func NewFiles(opts ...FileOpt) *Files {
	f := &Files{
		sep:         defaultSep,
		eol:         defaultEOL,
		floatFormat: defaultFloatFormat,
		header:      true,
	}

	for _, o := range opts {
		o(f)
	}

	return f
}

// Save writes the facts of t to fileName, one line per fact, parameters in
// insertion order.
func (f *Files) Save(fileName string, t *Table) error {
	var (
		file *os.File
		e    error
	)
	if file, e = os.Create(fileName); e != nil {
		return e
	}
	defer func() { _ = file.Close() }()

	w := bufio.NewWriter(file)
	defer func() { _ = w.Flush() }()

	sep := string(f.sep)
	if f.header {
		if _, e := w.WriteString(strings.Join(factHeader, sep) + string(f.eol)); e != nil {
			return e
		}
	}

	for _, p := range t.Parameters() {
		for _, fact := range t.Facts(p) {
			line := strings.Join([]string{
				fact.Row, fact.Col, fact.Region,
				strconv.Itoa(fact.Year), p,
				fmt.Sprintf(f.floatFormat, fact.Value),
			}, sep)

			if _, e := w.WriteString(line + string(f.eol)); e != nil {
				return e
			}
		}
	}

	return nil
}

// Load reads a fact table saved by Save.  The catalogs come back empty; callers
// that need them re-attach via Extend.
func (f *Files) Load(fileName string) (*Table, error) {
	var (
		recs [][]string
		e    error
	)
	if recs, e = f.Read(fileName); e != nil {
		return nil, e
	}

	t := NewTable(nil, nil)
	for ind, r := range recs {
		if len(r) != len(factHeader) {
			return nil, fmt.Errorf("%s line %d: got %d fields, want %d", fileName, ind+1, len(r), len(factHeader))
		}

		var (
			yr  int
			val float64
			err error
		)
		if yr, err = strconv.Atoi(r[3]); err != nil {
			return nil, fmt.Errorf("%s line %d: bad year %q", fileName, ind+1, r[3])
		}

		if val, err = strconv.ParseFloat(r[5], 64); err != nil {
			return nil, fmt.Errorf("%s line %d: bad value %q", fileName, ind+1, r[5])
		}

		t = t.Append(r[4], Fact{Row: r[0], Col: r[1], Region: r[2], Year: yr, Value: val})
	}

	return t, nil
}

// Read returns the records of a delimited file, header skipped when the Files
// was built with FileHeader(true).  Raw adapter inputs come through here.
func (f *Files) Read(fileName string) ([][]string, error) {
	var (
		file *os.File
		e    error
	)
	if file, e = os.Open(fileName); e != nil {
		return nil, e
	}
	defer func() { _ = file.Close() }()

	var out [][]string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if first && f.header {
			first = false
			continue
		}
		first = false

		out = append(out, splitQuoted(line, f.sep))
	}

	return out, scanner.Err()
}

// splitQuoted splits on sep, honoring double-quoted fields (government CSV
// extracts quote names containing commas).
func splitQuoted(line string, sep byte) []string {
	var (
		out    []string
		field  strings.Builder
		quoted bool
	)

	for ind := 0; ind < len(line); ind++ {
		c := line[ind]
		switch {
		case c == '"':
			quoted = !quoted
		case c == sep && !quoted:
			out = append(out, field.String())
			field.Reset()
		default:
			field.WriteByte(c)
		}
	}

	out = append(out, field.String())

	return out
}
