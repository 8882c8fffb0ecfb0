// Package parser reads the comma-delimited command stream of new orders
// (N), cancels (C), and flushes (F), and produces typed Commands for the
// host to dispatch. It has two modes: strict (default), which fails the
// whole stream on the first malformed record, and tolerant
// (--ignore-errors), which falls back field-by-field and skips only what
// it cannot interpret at all.
package parser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skuldlabs/clob/internal/common"
)

// Kind distinguishes the three command tags on the wire.
type Kind int

const (
	New Kind = iota
	Cancel
	Flush
)

// Command is one parsed record from the input stream.
type Command struct {
	Kind Kind

	// New
	UserID      uint64
	Symbol      string
	Price       uint64
	Quantity    uint64
	Side        common.Side
	UserOrderID uint64

	// Cancel reuses UserID and UserOrderID above.
}

// ParseError reports a malformed record in strict mode, naming the
// offending line.
type ParseError struct {
	Line int
	Raw  []string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parser: line %d (%v): %v", e.Line, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reader decodes Commands off r one record at a time.
type Reader struct {
	csv          *csv.Reader
	ignoreErrors bool
	line         int
	log          zerolog.Logger
}

// NewReader wraps r. ignoreErrors selects tolerant field-level fallback
// parsing (the CLI's --ignore-errors flag); strict mode surfaces the
// first malformed record as a *ParseError. log receives a debug line for
// every record tolerant mode skips — an unknown command tag or an
// unrecognized side token — since those are otherwise silent drops.
func NewReader(r io.Reader, ignoreErrors bool, log zerolog.Logger) *Reader {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comment = '#'
	cr.FieldsPerRecord = -1 // flexible: N, C, and F rows have different widths.
	cr.TrimLeadingSpace = true
	return &Reader{csv: cr, ignoreErrors: ignoreErrors, log: log}
}

// Next returns the next Command, or io.EOF once the stream is exhausted.
// In strict mode a malformed record returns a *ParseError and the caller
// should stop reading. In tolerant mode, records this function cannot
// interpret at all (an unknown command tag, or an unrecognized side
// token) are skipped internally and never surfaced to the caller.
func (r *Reader) Next() (Command, error) {
	for {
		record, err := r.csv.Read()
		if err != nil {
			return Command{}, err
		}
		r.line++
		record = trimFields(record)

		if len(record) == 0 {
			continue
		}

		cmd, ok, err := r.parseRecord(record)
		if err != nil {
			return Command{}, &ParseError{Line: r.line, Raw: record, Err: err}
		}
		if !ok {
			// Tolerant mode only: record could not be interpreted at all.
			continue
		}
		return cmd, nil
	}
}

func trimFields(record []string) []string {
	out := make([]string, len(record))
	for i, f := range record {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

func (r *Reader) parseRecord(record []string) (Command, bool, error) {
	switch field(record, 0) {
	case "N":
		return r.parseNew(record)
	case "C":
		return r.parseCancel(record)
	case "F":
		return Command{Kind: Flush}, true, nil
	default:
		if r.ignoreErrors {
			r.log.Debug().Int("line", r.line).Strs("record", record).
				Msg("skipping record: unknown command tag")
			return Command{}, false, nil
		}
		return Command{}, false, fmt.Errorf("invalid transaction type %q", field(record, 0))
	}
}

func (r *Reader) parseNew(record []string) (Command, bool, error) {
	side, sideOK := parseSide(field(record, 5))
	if !sideOK {
		if r.ignoreErrors {
			r.log.Debug().Int("line", r.line).Strs("record", record).
				Msg("skipping record: unrecognized side token")
			return Command{}, false, nil
		}
		return Command{}, false, fmt.Errorf("invalid side %q", field(record, 5))
	}

	var (
		userID, price, quantity, orderID uint64
		err                              error
	)
	if r.ignoreErrors {
		userID = parseUintOrZero(field(record, 1))
		price = parseUintOrZero(field(record, 3))
		quantity = parseUintOrZero(field(record, 4))
		orderID = parseUintOrZero(field(record, 6))
	} else {
		if userID, err = parseUint(field(record, 1)); err != nil {
			return Command{}, false, err
		}
		if price, err = parseUint(field(record, 3)); err != nil {
			return Command{}, false, err
		}
		if quantity, err = parseUint(field(record, 4)); err != nil {
			return Command{}, false, err
		}
		if orderID, err = parseUint(field(record, 6)); err != nil {
			return Command{}, false, err
		}
	}

	return Command{
		Kind:        New,
		UserID:      userID,
		Symbol:      field(record, 2),
		Price:       price,
		Quantity:    quantity,
		Side:        side,
		UserOrderID: orderID,
	}, true, nil
}

func (r *Reader) parseCancel(record []string) (Command, bool, error) {
	var (
		userID, orderID uint64
		err             error
	)
	if r.ignoreErrors {
		userID = parseUintOrZero(field(record, 1))
		orderID = parseUintOrZero(field(record, 2))
	} else {
		if userID, err = parseUint(field(record, 1)); err != nil {
			return Command{}, false, err
		}
		if orderID, err = parseUint(field(record, 2)); err != nil {
			return Command{}, false, err
		}
	}
	return Command{Kind: Cancel, UserID: userID, UserOrderID: orderID}, true, nil
}

func parseSide(tok string) (common.Side, bool) {
	switch tok {
	case "B":
		return common.Buy, true
	case "S":
		return common.Sell, true
	default:
		return 0, false
	}
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseUintOrZero(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
