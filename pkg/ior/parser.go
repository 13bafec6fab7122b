package ior

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/atgtools/iorstat/pkg/units"
	"github.com/mitchellh/mapstructure"
)

// parseState tracks which section of the report the scanner is in.
type parseState int

const (
	stateNone parseState = iota
	stateInputSummary
	stateRunSummary
)

func (s parseState) String() string {
	switch s {
	case stateNone:
		return "none"
	case stateInputSummary:
		return "input_summary"
	case stateRunSummary:
		return "run_summary"
	default:
		return fmt.Sprintf("parseState(%d)", int(s))
	}
}

const (
	headerRunBegan      = "Run began"
	headerRunFinished   = "Run finished"
	headerPath          = "Path"
	headerFS            = "FS:"
	headerInputSummary  = "Summary:"
	headerRunSummary    = "Summary of all tests:"
	headerMaxWrite      = "Max Write:"
	headerMaxRead       = "Max Read:"
	runSummaryColumns   = 21
	maxScanTokenSize    = 1024 * 1024
	initialScanBufBytes = 64 * 1024
)

// timeLayouts are the renderings of C's %c that IOR emits.
var timeLayouts = []string{
	time.ANSIC,
	"Mon Jan _2 15:04:05 MST 2006",
	"01/02/06 15:04:05",
}

var (
	clientsPattern = regexp.MustCompile(`^(\d+)\s*\((\d+) per node`)
	patternPattern = regexp.MustCompile(`^(\S+)\s*\((\d+) segment`)
	fsFieldSep     = regexp.MustCompile(`\s{2,}`)
)

// Parse reads one IOR report and returns the first run it contains.
// Parsing stops at the first "Run finished" line; use ParseAll for files
// holding several concatenated runs.
func Parse(r io.Reader) (*RunRecord, error) {
	p := newParser()

	scanner := newScanner(r)
	for scanner.Scan() {
		done, err := p.feed(scanner.Text())
		if err != nil {
			return nil, err
		}

		if done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	return p.finish()
}

// ParseLines is Parse over lines that have already been read.
func ParseLines(lines []string) (*RunRecord, error) {
	p := newParser()

	for _, line := range lines {
		done, err := p.feed(line)
		if err != nil {
			return nil, err
		}

		if done {
			break
		}
	}

	return p.finish()
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialScanBufBytes), maxScanTokenSize)

	return scanner
}

// parser is a single-pass line scanner. Each state has its own handler so
// transitions can be exercised line by line.
type parser struct {
	state  parseState
	lineNo int
	rec    *RunRecord
	raw    map[string]any
}

func newParser() *parser {
	return &parser{
		state: stateNone,
		rec:   &RunRecord{RunSummary: make([]TestResult, 0, 8)},
	}
}

// feed consumes one line. It returns done once "Run finished" is seen.
func (p *parser) feed(line string) (bool, error) {
	p.lineNo++

	line = strings.TrimRight(line, "\r\n")

	done, err := p.dispatch(line)
	if err != nil {
		return false, &LineError{Line: p.lineNo, Text: line, Err: err}
	}

	return done, nil
}

func (p *parser) dispatch(line string) (bool, error) {
	switch {
	case strings.HasPrefix(line, headerRunBegan):
		t, err := parseTimestamp(line)
		if err != nil {
			return false, err
		}

		p.rec.Start = &t

		return false, nil
	case strings.HasPrefix(line, headerRunFinished):
		t, err := parseTimestamp(line)
		if err != nil {
			return false, err
		}

		p.rec.Stop = &t

		return true, nil
	case strings.HasPrefix(line, headerPath):
		return false, p.handlePath(line)
	case strings.HasPrefix(line, headerFS):
		return false, p.handleFileSystem(line)
	}

	switch p.state {
	case stateInputSummary:
		return false, p.handleInputSummary(line)
	case stateRunSummary:
		return false, p.handleRunSummary(line)
	default:
		return false, p.handleNone(line)
	}
}

func (p *parser) handleNone(line string) error {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == headerInputSummary:
		p.state = stateInputSummary
		p.raw = make(map[string]any, 16)
		p.rec.InputSummary = &InputSummary{}
	case trimmed == headerRunSummary:
		p.state = stateRunSummary
	case strings.HasPrefix(trimmed, headerMaxWrite):
		return p.handleMaxLine(trimmed, headerMaxWrite, OpWrite)
	case strings.HasPrefix(trimmed, headerMaxRead):
		return p.handleMaxLine(trimmed, headerMaxRead, OpRead)
	}

	return nil
}

func (p *parser) handleInputSummary(line string) error {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		p.state = stateNone

		return p.closeInputSummary()
	}

	key, value, ok := strings.Cut(trimmed, "=")
	if !ok {
		return malformed("summary line without '='")
	}

	key = strings.ReplaceAll(strings.TrimSpace(key), " ", "_")
	value = strings.TrimSpace(value)

	switch key {
	case "clients":
		if m := clientsPattern.FindStringSubmatch(value); m != nil {
			p.raw["clients"] = m[1]
			p.raw["ppn"] = m[2]

			return nil
		}

		if _, err := strconv.Atoi(value); err != nil {
			return malformed("clients %q", value)
		}

		p.raw["clients"] = value
	case "pattern":
		if m := patternPattern.FindStringSubmatch(value); m != nil {
			p.raw["pattern"] = m[1]
			p.raw["segments"] = m[2]

			return nil
		}

		p.raw["pattern"] = value
	case "repetitions":
		n, err := strconv.Atoi(value)
		if err != nil {
			return malformed("repetitions %q", value)
		}

		p.raw["repetitions"] = n
	case "xfersize", "blocksize", "aggregate_filesize":
		v, err := units.Decode(value)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}

		p.raw[key] = v
	default:
		p.raw[key] = value
	}

	return nil
}

// closeInputSummary decodes the collected key/value pairs and derives the
// node count.
func (p *parser) closeInputSummary() error {
	if p.raw == nil {
		return nil
	}

	summary := p.rec.InputSummary

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           summary,
	})
	if err != nil {
		return fmt.Errorf("creating summary decoder: %w", err)
	}

	if err := decoder.Decode(p.raw); err != nil {
		return malformed("decoding summary: %v", err)
	}

	if summary.PPN > 0 {
		summary.Nodes = summary.Clients / summary.PPN
	}

	p.raw = nil

	return nil
}

func (p *parser) handleRunSummary(line string) error {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		p.state = stateNone

		return nil
	}

	if !strings.HasPrefix(trimmed, string(OpRead)) && !strings.HasPrefix(trimmed, string(OpWrite)) {
		return nil
	}

	result, err := parseResultRow(strings.Fields(trimmed))
	if err != nil {
		return err
	}

	p.rec.RunSummary = append(p.rec.RunSummary, *result)

	return nil
}

func (p *parser) handlePath(line string) error {
	if _, value, ok := strings.Cut(line, ":"); ok {
		if fields := strings.Fields(value); len(fields) > 0 {
			p.rec.Path = fields[0]

			return nil
		}
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return malformed("path line without a value")
	}

	p.rec.Path = fields[1]

	return nil
}

func (p *parser) handleFileSystem(line string) error {
	snapshot := &FileSystemSnapshot{}

	for _, field := range fsFieldSep.Split(strings.TrimSpace(line), -1) {
		if field == "" {
			continue
		}

		key, value, ok := strings.Cut(field, ":")
		if !ok {
			return malformed("file system field %q without ':'", field)
		}

		v, err := units.Decode(value)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", strings.TrimSpace(key), err)
		}

		switch strings.TrimSpace(key) {
		case "FS":
			snapshot.ApproxTotalBytes = int64(v)
		case "Used FS":
			snapshot.ApproxUsedBytesPct = v
		case "Inodes":
			snapshot.ApproxTotalInodes = int64(v)
		case "Used Inodes":
			snapshot.ApproxUsedInodesPct = v
		}
	}

	p.rec.FileSystem = snapshot

	return nil
}

// handleMaxLine records an abbreviated result from lines such as
// "Max Write: 475.00 MiB/sec (498.07 MB/sec)".
func (p *parser) handleMaxLine(line, header string, op Operation) error {
	fields := strings.Fields(strings.TrimPrefix(line, header))
	if len(fields) == 0 {
		return malformed("%s without a value", header)
	}

	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return malformed("%s value %q", header, fields[0])
	}

	p.rec.RunSummary = append(p.rec.RunSummary, TestResult{
		Operation:   op,
		MaxMiBs:     v,
		Abbreviated: true,
	})

	return nil
}

// finish closes any open section and returns the record.
func (p *parser) finish() (*RunRecord, error) {
	if p.state == stateInputSummary {
		if err := p.closeInputSummary(); err != nil {
			return nil, &LineError{Line: p.lineNo, Err: err}
		}
	}

	return p.rec, nil
}

func parseTimestamp(line string) (time.Time, error) {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return time.Time{}, malformed("timestamp line without ':'")
	}

	value = strings.TrimSpace(value)

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, malformed("unparsable timestamp %q", value)
}

// parseResultRow maps the fixed IOR results columns onto a TestResult.
func parseResultRow(fields []string) (*TestResult, error) {
	if len(fields) != runSummaryColumns {
		return nil, malformed("result row has %d columns, want %d", len(fields), runSummaryColumns)
	}

	c := columnReader{fields: fields}

	r := &TestResult{
		Operation:         Operation(fields[0]),
		MaxMiBs:           c.floatAt(1),
		MinMiBs:           c.floatAt(2),
		AvgMiBs:           c.floatAt(3),
		StdDevMiBs:        c.floatAt(4),
		MeanTime:          c.floatAt(5),
		TestNum:           c.intAt(6),
		NumTasks:          c.intAt(7),
		PPN:               c.intAt(8),
		Repetitions:       c.intAt(9),
		FilePerProc:       c.intAt(10) != 0,
		ReorderTasks:      c.intAt(11) != 0,
		TaskPerNodeOffset: c.intAt(12),
		ReorderRandom:     c.intAt(13) != 0,
		ReorderRandomSeed: c.intAt(14),
		SegmentCount:      c.intAt(15),
		BlockSize:         c.floatAt(16),
		TransferSize:      c.floatAt(17),
		AggregateSize:     c.floatAt(18),
		API:               fields[19],
		RefNum:            c.intAt(20),
	}

	if c.err != nil {
		return nil, c.err
	}

	return r, nil
}

// columnReader converts positional columns, remembering the first failure.
type columnReader struct {
	fields []string
	err    error
}

func (c *columnReader) floatAt(i int) float64 {
	v, err := strconv.ParseFloat(c.fields[i], 64)
	if err != nil && c.err == nil {
		c.err = malformed("column %d %q is not a number", i+1, c.fields[i])
	}

	return v
}

func (c *columnReader) intAt(i int) int {
	v, err := strconv.Atoi(c.fields[i])
	if err != nil && c.err == nil {
		c.err = malformed("column %d %q is not an integer", i+1, c.fields[i])
	}

	return v
}
